package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("SNAPSHOT_PATH", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 10*time.Minute, cfg.ReportCacheTTL)
	require.Equal(t, 1000, cfg.AuditCapacity)
	require.True(t, cfg.AuditEnabled)
	require.Equal(t, "0 2 * * *", cfg.WarmupCron)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigReadsOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUDIT_CAPACITY", "50")
	t.Setenv("REPORT_CACHE_TTL", "90s")
	t.Setenv("CLINIC_TEST_MODE", "true")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, 50, cfg.AuditCapacity)
	require.Equal(t, 90*time.Second, cfg.ReportCacheTTL)
	require.True(t, cfg.TestMode)
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]Config{
		"no record store":   {},
		"negative capacity": {PGDSN: "postgres://x", AuditCapacity: -1},
		"negative ttl":      {SnapshotPath: "snap.json", ReportCacheTTL: -time.Second},
		"negative conns":    {PGDSN: "postgres://x", PGMaxConns: -2},
		"plain admin token": {PGDSN: "postgres://x", AdminTokenHash: "letmein"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, cfg.Validate())
		})
	}
	ok := Config{SnapshotPath: "snap.json"}
	require.NoError(t, ok.Validate())
}

// Command seed creates the record tables and loads a JSON snapshot into them.
package main

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/odyssey-erp/clinic-reports/internal/app"
	"github.com/odyssey-erp/clinic-reports/internal/platform/db"
	"github.com/odyssey-erp/clinic-reports/internal/records"
	"github.com/odyssey-erp/clinic-reports/internal/reports"
)

//go:embed schema.sql
var schema string

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("usage: seed <snapshot.json>")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	snap, err := records.NewFileSource(os.Args[1]).Snapshot(ctx)
	if err != nil {
		log.Fatalf("read snapshot: %v", err)
	}

	pool, err := db.New(ctx, db.Options{DSN: cfg.PGDSN})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	fmt.Println("→ Applying schema...")
	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("apply schema: %v", err)
	}

	fmt.Println("→ Importing records...")
	n, err := records.NewRepository(pool).Import(ctx, snap)
	if err != nil {
		log.Fatalf("import: %v", err)
	}

	if client, err := app.OpenRedis(ctx, cfg); err == nil {
		if ver, err := reports.NewCache(client, cfg.ReportCacheTTL).Bump(ctx); err == nil {
			fmt.Println("→ Report cache version", ver)
		}
		_ = client.Close()
	}

	fmt.Printf("✓ Seeded %d rows at %s\n", n, time.Now().Format(time.RFC3339))
}

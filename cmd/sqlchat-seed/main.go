package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sqlchat/sqlchat/internal/config"
	"github.com/sqlchat/sqlchat/internal/livedb"
	"github.com/sqlchat/sqlchat/internal/seed"
)

func main() {
	direction := flag.String("direction", "up", "seed direction: up|down|status")
	steps := flag.Int("steps", 0, "number of seed steps; 0 means all for up, 1 for down")
	dialectFlag := flag.String("dialect", "postgres", "target dialect: postgres|duckdb|sqlite")
	dsnFlag := flag.String("dsn", "", "target DSN or file path; defaults to SQLCHAT_SEED_DSN")
	flag.Parse()

	cfg, err := config.LoadFromEnv("sqlchat-seed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	dialect, err := livedb.ParseDialect(*dialectFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dialect error: %v\n", err)
		os.Exit(1)
	}
	dsn := strings.TrimSpace(*dsnFlag)
	if dsn == "" {
		dsn = cfg.Seed.DSN
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "SQLCHAT_SEED_DSN or -dsn is required")
		os.Exit(1)
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database open error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "database ping error: %v\n", err)
		os.Exit(1)
	}

	runner := seed.NewRunner()
	switch *direction {
	case "up":
		applied, err := runner.Up(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed up failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("applied %d seed step(s)\n", applied)
	case "down":
		rolledBack, err := runner.Down(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed down failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("rolled back %d seed step(s)\n", rolledBack)
	case "status":
		status, err := runner.Status(ctx, db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed status failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("applied: %v\npending: %v\n", status.Applied, status.Pending)
	default:
		fmt.Fprintf(os.Stderr, "invalid direction: %s\n", *direction)
		os.Exit(1)
	}
}

// Command describe prints the column layout of one repository table.
//
//	describe -config config.yaml -table robot_status
//	describe -config config.yaml -all
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/minerdash/minerdash/server/internal/config"
	"github.com/minerdash/minerdash/server/internal/dashboard"
	"github.com/minerdash/minerdash/server/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	table := flag.String("table", "", "table to describe")
	all := flag.Bool("all", false, "describe the log, status and meta tables")
	asJSON := flag.Bool("json", false, "print JSON instead of text")
	timeout := flag.Duration("timeout", 10*time.Second, "overall deadline")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if err := run(*configPath, *table, *all, *asJSON, *timeout, logger); err != nil {
		fmt.Fprintln(os.Stderr, "describe:", err)
		os.Exit(1)
	}
}

func run(configPath, table string, all, asJSON bool, timeout time.Duration, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	db := cfg.Server.Database

	var tables []string
	switch {
	case all:
		tables = []string{db.Tables.Log, db.Tables.Status, db.Tables.Meta}
	case table != "":
		tables = []string{table}
	default:
		return fmt.Errorf("one of -table or -all is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sqlDB, err := store.Open(ctx, db.Driver, db.DSN())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	repo, err := store.New(sqlDB, logger, db.StoreOptions())
	if err != nil {
		return err
	}
	svc := dashboard.New(repo, logger, nil, dashboard.DefaultSettings())

	for _, t := range tables {
		d, err := svc.DescribeTable(ctx, t)
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(d); err != nil {
				return err
			}
			continue
		}
		fmt.Print(d.String())
	}
	return nil
}

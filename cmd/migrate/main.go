// Command migrate inspects and changes the database schema.
//
//	migrate status        show the schema plan and pending SQL migrations
//	migrate up            apply pending SQL migrations (Postgres)
//	migrate auto          run AutoMigrate for every model
//	migrate down VERSION  roll back one SQL migration
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/middleware"

	"gorm.io/gorm"
)

type command func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error

var commands = map[string]command{
	"status": status,
	"up":     up,
	"auto":   auto,
	"down":   down,
}

var errUsage = errors.New("usage: migrate <status|up|auto|down VERSION>")

func main() {
	flag.Parse()
	if err := run(flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return errUsage
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel, os.Stdout)

	ctx := context.Background()
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	return cmd(ctx, db, cfg, args[1:])
}

func status(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	st, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("mode:         %s\n", st.Mode)
	fmt.Printf("environment:  %s\n", st.Environment)
	fmt.Printf("sql:          %t (%d applied)\n", st.WillRunSQL, len(st.AppliedVersions))
	fmt.Printf("automigrate:  %t\n", st.WillRunAutoMigrate)
	for _, m := range st.PendingMigrations {
		fmt.Printf("pending:      %s\n", m.String())
	}
	return nil
}

func up(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
	return database.RunMigrations(ctx, db)
}

func auto(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	cfg.DBSchemaMode = database.SchemaModeAuto
	return database.ApplySchema(ctx, db, cfg)
}

func down(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	return database.RollbackMigration(ctx, db, version)
}

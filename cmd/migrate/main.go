package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/pressly/goose/v3"
	"github.com/urfave/cli"
	_ "modernc.org/sqlite"

	"events_bot/migrations"
)

var dbPath string

func main() {
	app := &cli.App{
		Name:  "migrate",
		Usage: "manage the schema of the events bot settings database",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:        "db",
				Usage:       "path to sqlite database",
				Value:       "./data/bot.db",
				EnvVar:      "DATABASE_PATH",
				Destination: &dbPath,
			},
		},
		Commands: []cli.Command{
			{Name: "up", Usage: "migrate to the latest version", Action: withDB(func(db *sql.DB) error { return goose.Up(db, ".") })},
			{Name: "up-one", Usage: "migrate one version up", Action: withDB(func(db *sql.DB) error { return goose.UpByOne(db, ".") })},
			{Name: "down", Usage: "roll back one version", Action: withDB(func(db *sql.DB) error { return goose.Down(db, ".") })},
			{Name: "status", Usage: "show migration status", Action: withDB(func(db *sql.DB) error { return goose.Status(db, ".") })},
			{Name: "version", Usage: "show current version", Action: withDB(func(db *sql.DB) error { return goose.Version(db, ".") })},
			{Name: "reset", Usage: "roll back all migrations", Action: withDB(func(db *sql.DB) error { return goose.Reset(db, ".") })},
		},
		HideVersion: true,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func withDB(fn func(db *sql.DB) error) func(c *cli.Context) error {
	return func(c *cli.Context) error {
		db, err := sql.Open("sqlite", dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() { _ = db.Close() }()

		goose.SetBaseFS(migrations.FS)
		if err := goose.SetDialect("sqlite3"); err != nil {
			return fmt.Errorf("set dialect: %w", err)
		}
		if err := fn(db); err != nil {
			return fmt.Errorf("%s: %w", c.Command.Name, err)
		}
		return nil
	}
}

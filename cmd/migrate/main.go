package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"keygate.backend/internal/config"
	"keygate.backend/internal/migrate"
)

type command func(ctx context.Context, dsn string) error

var commands = map[string]command{
	"up":     migrate.Up,
	"down":   migrate.Down,
	"status": migrate.Status,
}

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
)

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dsn := fs.String("dsn", "", "database URL, defaults to the DB_* environment")
	if err := fs.Parse(args); err != nil {
		return err
	}

	name := "up"
	if fs.NArg() > 0 {
		name = fs.Arg(0)
	}
	run, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (want up, down or status)", name)
	}

	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	if *dsn == "" {
		*dsn = loadCfg().Database.URL()
	}

	return run(context.Background(), *dsn)
}

func main() {
	if err := runMigrate(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

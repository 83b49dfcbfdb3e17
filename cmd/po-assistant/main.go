// Package main is the entrypoint for the procurement assistant.
package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/morezero/procurement-assistant/internal/config"
	"github.com/morezero/procurement-assistant/internal/server"
	"github.com/morezero/procurement-assistant/pkg/cards"
	"github.com/morezero/procurement-assistant/pkg/commsutil"
	"github.com/morezero/procurement-assistant/pkg/db"
)

const usage = `Usage: po-assistant [command]
       po-assistant serve              Start the assistant (HTTP, NATS subjects, workers).
       po-assistant chat [--comms]     Interactive chat; --comms talks to a running server over NATS.
       po-assistant cards list         List agent cards (CARDS_DIR or built-in).
       po-assistant cards save [dir]   Write the built-in agent cards to dir (default CARDS_DIR or ./cards).
       po-assistant migrate up         Run database migrations.
       po-assistant migrate down       Roll back one migration.
       po-assistant migrate status     Show migration status.
       po-assistant ensure-db [name]   Create database if missing (default name from DATABASE_URL).
       po-assistant clear              Delete all stored sessions; schema is preserved.

Environment: DATABASE_URL (sessions in memory when unset), COMMS_URL, HTTP_PORT, CARDS_DIR,
CATALOG_FILE, PO_OUTPUT_DIR, HIGH_VALUE_THRESHOLD, LOG_LEVEL.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "chat":
		remote := len(args) > 1 && args[1] == "--comms"
		if err := runChat(remote); err != nil {
			log.Fatalf("po-assistant chat: %v", err)
		}
		return
	case "cards":
		sub := "list"
		if len(args) > 1 {
			sub = args[1]
		}
		switch sub {
		case "list":
			if err := runCardsList(); err != nil {
				log.Fatalf("po-assistant cards list: %v", err)
			}
		case "save":
			dir := ""
			if len(args) > 2 {
				dir = args[2]
			}
			if err := runCardsSave(dir); err != nil {
				log.Fatalf("po-assistant cards save: %v", err)
			}
		default:
			log.Fatalf("po-assistant cards: unknown subcommand %q (use list, save)", sub)
		}
		return
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("po-assistant migrate: require subcommand (up, down, status)")
		}
		sub := args[1]
		switch sub {
		case "up":
			if err := runMigrateUp(); err != nil {
				log.Fatalf("po-assistant migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(); err != nil {
				log.Fatalf("po-assistant migrate status: %v", err)
			}
		case "down":
			if err := runMigrateDown(); err != nil {
				log.Fatalf("po-assistant migrate down: %v", err)
			}
		default:
			log.Fatalf("po-assistant migrate: unknown subcommand %q (use up, down, status)", sub)
		}
		return
	case "clear":
		if err := runClear(); err != nil {
			log.Fatalf("po-assistant clear: %v", err)
		}
		return
	case "ensure-db":
		dbName := ""
		if len(args) > 1 {
			dbName = args[1]
		}
		if err := runEnsureDB(dbName); err != nil {
			log.Fatalf("po-assistant ensure-db: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("po-assistant: %v", err)
	}
}

func runChat(remote bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	server.SetupLogging("error")
	ctx := context.Background()

	if remote {
		if cfg.COMMSURL == "" {
			return fmt.Errorf("COMMS_URL is required for --comms")
		}
		nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-chat", nil)
		if err != nil {
			return err
		}
		defer nc.Close()
		return chatLoop(ctx, os.Stdin, os.Stdout, &commsBackend{nc: nc, subject: cfg.ChatSubject, timeout: cfg.RequestTimeout}, "")
	}

	app, err := server.NewApp(cfg, server.AppOptions{})
	if err != nil {
		return err
	}
	defer app.Close()
	return chatLoop(ctx, os.Stdin, os.Stdout, &localBackend{sessions: app.Sessions()}, "")
}

func loadCardRegistry(cfg *config.Config) (*cards.Registry, error) {
	if cfg.CardsDir == "" {
		return cards.NewDefaultRegistry()
	}
	reg := cards.NewRegistry()
	if _, err := reg.LoadDir(cfg.CardsDir); err != nil {
		return nil, err
	}
	return reg, nil
}

func runCardsList() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	reg, err := loadCardRegistry(cfg)
	if err != nil {
		return fmt.Errorf("load cards: %w", err)
	}
	for _, c := range reg.All() {
		fmt.Printf("%-20s %-8s %s\n", c.AgentID, c.Version, strings.Join(c.Capabilities, ", "))
	}
	return nil
}

func runCardsSave(dir string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dir == "" {
		dir = cfg.CardsDir
	}
	if dir == "" {
		dir = "cards"
	}
	for _, c := range cards.DefaultCards() {
		path, err := cards.SaveCard(dir, c)
		if err != nil {
			return fmt.Errorf("save %s: %w", c.AgentID, err)
		}
		fmt.Printf("Wrote %s\n", path)
	}
	return nil
}

func runMigrateUp() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrationSQL, err := db.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := db.RunMigrations(ctx, pool, migrationSQL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runMigrateStatus() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return db.MigrationStatus(ctx, pool, cfg.MigrationPath)
}

func runMigrateDown() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return db.MigrationDown(ctx, pool, cfg.MigrationPath)
}

func runClear() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := db.ClearSessions(ctx, pool); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	return nil
}

func runEnsureDB(dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	targetURL, err := withDatabase(cfg.DatabaseURL, dbName)
	if err != nil {
		return err
	}
	if err := db.EnsureDatabase(context.Background(), targetURL); err != nil {
		return err
	}
	fmt.Println("Database is ready.")
	return nil
}

// withDatabase replaces the database path of rawURL with name; an empty name keeps it.
func withDatabase(rawURL, name string) (string, error) {
	if name == "" {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	u.Path = "/" + name
	return u.String(), nil
}

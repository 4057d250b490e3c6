package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hongminglow/rewear-be/internal/config"
	"github.com/hongminglow/rewear-be/internal/models"
	"github.com/hongminglow/rewear-be/internal/storage"
	"github.com/hongminglow/rewear-be/internal/storage/postgres"
)

const usage = `usage:
  server                      run the HTTP API
  server migrate up           apply all pending migrations
  server migrate down [-n N]  roll back N migrations (default 1)
  server migrate status       print the current schema version
  server admin grant <email>  give a user the admin role`

func runCommand(cfg config.Config, args []string) error {
	switch args[0] {
	case "migrate":
		return runMigrate(cfg, args[1:])
	case "admin":
		return runAdmin(cfg, args[1:])
	case "help", "-h", "--help":
		fmt.Fprintln(os.Stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func runMigrate(cfg config.Config, args []string) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrations")
	}
	if len(args) == 0 {
		return errors.New(usage)
	}
	switch args[0] {
	case "up":
		if err := postgres.MigrateUp(cfg.DatabaseURL); err != nil {
			return err
		}
		log.Info("migrations applied")
	case "down":
		fs := flag.NewFlagSet("migrate down", flag.ContinueOnError)
		steps := fs.Int("n", 1, "number of migrations to roll back")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if err := postgres.MigrateDown(cfg.DatabaseURL, *steps); err != nil {
			return err
		}
		log.WithField("steps", *steps).Info("migrations rolled back")
	case "status":
		version, dirty, err := postgres.MigrateStatus(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "version=%d dirty=%t\n", version, dirty)
	default:
		return fmt.Errorf("unknown migrate action %q", args[0])
	}
	return nil
}

func runAdmin(cfg config.Config, args []string) error {
	if len(args) != 2 || args[0] != "grant" {
		return errors.New(usage)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	return grantAdmin(ctx, store, args[1])
}

func grantAdmin(ctx context.Context, users storage.UserStore, email string) error {
	user, err := users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no user with email %s", email)
		}
		return err
	}
	if user.IsAdmin() {
		log.WithField("email", user.Email).Info("user is already an admin")
		return nil
	}
	if _, err := users.UpdateUserRole(ctx, user.ID, models.RoleAdmin); err != nil {
		return fmt.Errorf("grant admin: %w", err)
	}
	log.WithField("email", user.Email).Info("admin role granted")
	return nil
}

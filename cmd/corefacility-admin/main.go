// Package main is the entry point for the corefacility admin CLI.
// The tool covers the operations that must work without a running server:
// schema migration, superuser bootstrap, password resets and management of
// the privileged command queue.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/serik1987/corefacility/internal/app"
	"github.com/serik1987/corefacility/internal/config"
	"github.com/serik1987/corefacility/internal/domain"
	"github.com/serik1987/corefacility/internal/posix"
	"github.com/serik1987/corefacility/internal/provider"
	"github.com/serik1987/corefacility/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "version":
		fmt.Printf("corefacility admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "migrate":
		cmdMigrate(args)

	case "create-superuser":
		cmdCreateSuperuser(args)

	case "set-password":
		cmdSetPassword(args)

	case "queue-list":
		cmdQueueList(args)

	case "queue-confirm":
		cmdQueueConfirm(args)

	case "queue-purge":
		cmdQueuePurge(args)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// env bundles everything a subcommand needs.
type env struct {
	users *service.UserService
	queue *service.QueueService
	close func()
}

// buildEnv opens the datastore and wires the services the CLI uses.
// Migrations run as part of opening the database.
func buildEnv(ctx context.Context, configPath string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	logger := app.NewLogger(cfg.Logging)

	db, repos, err := app.OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := repos.AccessLevel.Seed(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := app.EnsureSupportAccount(ctx, repos.User, logger); err != nil {
		db.Close()
		return nil, err
	}

	media, err := app.OpenMediaStore(ctx, cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	runner := posix.NewExecRunner(logger)
	client := posix.NewClient(cfg.Posix, repos.PosixRequest, runner, logger)
	registry := provider.NewRegistry(cfg, repos, db, media, client)

	return &env{
		users: service.NewUserService(registry, repos.User, repos.Token, nil, cfg.Auth, logger),
		queue: service.NewQueueService(repos.PosixRequest, nil, nil, logger),
		close: func() { db.Close() },
	}, nil
}

// execute runs a subcommand body against a freshly built environment.
func execute(name string, configPath string, body func(ctx context.Context, e *env) error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := buildEnv(ctx, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup error: %v\n", err)
		os.Exit(1)
	}
	defer e.close()

	if err := body(ctx, e); err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", name, err)
		os.Exit(1)
	}
}

func cmdMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the configuration file")
	fs.Parse(args)

	execute("migrate", *configPath, func(ctx context.Context, e *env) error {
		fmt.Println("database schema is up to date")
		return nil
	})
}

func cmdCreateSuperuser(args []string) {
	fs := flag.NewFlagSet("create-superuser", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the configuration file")
	login := fs.String("login", "", "login of the new superuser")
	name := fs.String("name", "", "given name")
	surname := fs.String("surname", "", "family name")
	email := fs.String("email", "", "contact address")
	password := fs.String("password", "", "initial password")
	fs.Parse(args)

	if *login == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "both -login and -password are required")
		os.Exit(2)
	}

	execute("create-superuser", *configPath, func(ctx context.Context, e *env) error {
		u, err := e.users.Create(ctx, service.CreateUserInput{
			Login:    *login,
			Name:     *name,
			Surname:  *surname,
			Email:    *email,
			Password: *password,
		})
		if err != nil {
			return err
		}
		superuser := true
		if _, err := e.users.Update(ctx, u.ID(), service.UpdateUserInput{IsSuperuser: &superuser}); err != nil {
			return err
		}
		fmt.Printf("superuser %q created (id %d)\n", *login, u.ID())
		return nil
	})
}

func cmdSetPassword(args []string) {
	fs := flag.NewFlagSet("set-password", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the configuration file")
	login := fs.String("login", "", "login of the account")
	password := fs.String("password", "", "new password")
	fs.Parse(args)

	if *login == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "both -login and -password are required")
		os.Exit(2)
	}

	execute("set-password", *configPath, func(ctx context.Context, e *env) error {
		u, err := e.users.GetByLogin(ctx, *login)
		if err != nil {
			return err
		}
		if err := e.users.SetPassword(ctx, u.ID(), *password); err != nil {
			return err
		}
		fmt.Printf("password of %q updated\n", *login)
		return nil
	})
}

func cmdQueueList(args []string) {
	fs := flag.NewFlagSet("queue-list", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the configuration file")
	status := fs.String("status", string(domain.PosixAnalyzed), "status band to list")
	limit := fs.Int("limit", 0, "maximum rows, zero for all")
	fs.Parse(args)

	execute("queue-list", *configPath, func(ctx context.Context, e *env) error {
		rows, err := e.queue.List(ctx, domain.PosixRequestStatus(*status), *limit)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Printf("no requests in the %q band\n", *status)
			return nil
		}
		for _, req := range rows {
			fmt.Printf("%6d  %-12s  %-24s  %s\n", req.ID, req.Status, req.ActionClass, req.Method)
		}
		return nil
	})
}

func cmdQueueConfirm(args []string) {
	fs := flag.NewFlagSet("queue-confirm", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the configuration file")
	id := fs.Int64("id", 0, "queued request id")
	fs.Parse(args)

	if *id <= 0 {
		fmt.Fprintln(os.Stderr, "-id is required")
		os.Exit(2)
	}

	execute("queue-confirm", *configPath, func(ctx context.Context, e *env) error {
		if err := e.queue.Confirm(ctx, *id); err != nil {
			return err
		}
		fmt.Printf("request %d confirmed\n", *id)
		return nil
	})
}

func cmdQueuePurge(args []string) {
	fs := flag.NewFlagSet("queue-purge", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the configuration file")
	id := fs.Int64("id", 0, "queued request id")
	fs.Parse(args)

	if *id <= 0 {
		fmt.Fprintln(os.Stderr, "-id is required")
		os.Exit(2)
	}

	execute("queue-purge", *configPath, func(ctx context.Context, e *env) error {
		if err := e.queue.Purge(ctx, *id); err != nil {
			return err
		}
		fmt.Printf("request %d purged\n", *id)
		return nil
	})
}

func printUsage() {
	fmt.Println(`corefacility admin CLI

Usage:
  corefacility-admin <command> [arguments]

Commands:
  migrate           Apply pending database migrations
  create-superuser  Create an account with full administrative access
  set-password      Reset an account password
  queue-list        List queued operating-system requests
  queue-confirm     Release an analyzed request for execution
  queue-purge       Drop a queued request without executing it
  version           Print version information
  help              Show this help message

Examples:
  corefacility-admin migrate -config /etc/corefacility/config.yaml
  corefacility-admin create-superuser -login admin -password secret
  corefacility-admin queue-list -status analyzed
  corefacility-admin queue-confirm -id 42

Use "corefacility-admin <command> -h" for command flags.`)
}

// Command migrate manages the public registry schema and the tenant
// schemas of the helpdesk database.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/helpdesk/backend/internal/infrastructure/config"
	"github.com/helpdesk/backend/internal/infrastructure/logger"
	"github.com/helpdesk/backend/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// sourceRoot is where "create" writes new migration files
const sourceRoot = "internal/infrastructure/migration/sql"

const usage = `Usage: migrate [flags] <command> [arguments]

Public schema:
  up | down | version
  step <n>                      apply n migrations, negative n rolls back
  force <version>               mark version applied after a manual repair

Tenant schemas:
  tenant-up <tenant-uuid>       create the schema if missing and migrate it
  tenant-down <tenant-uuid>     roll back every migration of the schema
  tenant-version <tenant-uuid>  show the schema's migration version
  tenants-up                    migrate the schema of every registered tenant

Files:
  create <name> [description]   write the next migration pair of -set
  list                          list the embedded migrations of -set

Database settings come from config.toml and HELPDESK_DATABASE_* variables.

Flags:
`

// errUsage reports a malformed command line
var errUsage = errors.New("invalid arguments")

type options struct {
	configPath string
	set        string
	timeout    time.Duration
}

func main() {
	var (
		opts     options
		logLevel string
	)
	flag.StringVar(&opts.configPath, "config", "", "config.toml path (default: ./ then /etc/helpdesk)")
	flag.StringVar(&opts.set, "set", string(migration.SetPublic), "migration set for create and list: public or tenant")
	flag.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "deadline for database commands")
	flag.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: logger.ISO8601Millis,
		Service:    "helpdesk-migrate",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	err = run(log, opts, flag.Args())
	_ = log.Sync()
	switch {
	case errors.Is(err, errUsage):
		log.Error("Bad command line", zap.Error(err))
		flag.Usage()
		os.Exit(2)
	case err != nil:
		log.Error("Migration command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		os.Exit(1)
	}
}

func run(log *zap.Logger, opts options, args []string) error {
	command, rest := args[0], args[1:]
	set := migration.Set(opts.set)

	switch command {
	case "create":
		if len(rest) == 0 {
			return fmt.Errorf("%w: create needs a migration name", errUsage)
		}
		description := ""
		if len(rest) > 1 {
			description = rest[1]
		}
		mf, err := migration.CreateMigration(filepath.Join(sourceRoot, opts.set), set, rest[0], description)
		if err != nil {
			return err
		}
		log.Info("Migration created", zap.String("up", mf.UpPath), zap.String("down", mf.DownPath))
		return nil

	case "list":
		names, err := migration.ListMigrations(set)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	db, err := openDB(ctx, opts.configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	provisioner := migration.NewProvisioner(db, log)
	switch command {
	case "up", "down", "version", "step", "force":
		m, err := migration.New(db, log)
		if err != nil {
			return err
		}
		defer m.Close()
		return runPublic(log, m, command, rest)

	case "tenant-up", "tenant-down", "tenant-version":
		tenantID, err := tenantArg(rest)
		if err != nil {
			return err
		}
		switch command {
		case "tenant-up":
			return provisioner.Provision(ctx, tenantID)
		case "tenant-down":
			return provisioner.Rollback(ctx, tenantID)
		}
		status, err := provisioner.TenantStatus(ctx, tenantID)
		if err != nil {
			return err
		}
		logStatus(log, tenantID.String(), status)
		return nil

	case "tenants-up":
		n, err := provisioner.ProvisionAll(ctx)
		log.Info("Tenant schemas migrated", zap.Int("count", n))
		return err
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, command)
}

func runPublic(log *zap.Logger, m *migration.Migrator, command string, args []string) error {
	switch command {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "version":
		status, err := m.Status()
		if err != nil {
			return err
		}
		logStatus(log, m.Schema(), status)
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("%w: %s needs a number", errUsage, command)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, command, err)
	}
	if command == "force" {
		return m.Force(n)
	}
	return m.Steps(n)
}

func openDB(ctx context.Context, configPath string) (*sql.DB, error) {
	load := config.Load
	if configPath != "" {
		load = func() (*config.Config, error) { return config.LoadFile(configPath) }
	}
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	cfg.Database.ApplicationName = cfg.App.Name + "-migrate"
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func tenantArg(args []string) (uuid.UUID, error) {
	if len(args) == 0 {
		return uuid.Nil, fmt.Errorf("%w: tenant UUID required", errUsage)
	}
	id, err := uuid.Parse(args[0])
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %q is not a tenant UUID", errUsage, args[0])
	}
	return id, nil
}

func logStatus(log *zap.Logger, target string, status migration.Status) {
	if status.Version == 0 {
		log.Info("No migrations applied", zap.String("target", target))
		return
	}
	log.Info("Migration version",
		zap.String("target", target),
		zap.Uint("version", status.Version),
		zap.Bool("dirty", status.Dirty),
	)
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/entityregistry/internal/config"
	"github.com/JonMunkholm/entityregistry/internal/core"
	"github.com/JonMunkholm/entityregistry/internal/logging"
	"github.com/JonMunkholm/entityregistry/internal/store"
)

const defaultDatabaseURL = "sqlite://registry.db"

type globalOptions struct {
	databaseURL string
	logLevel    string
	logFormat   string
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	cmd := &cobra.Command{
		Use:           "registry-import",
		Short:         "Entity registry import, export and maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupWriter(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "Store URL (default: $DATABASE_URL, then "+defaultDatabaseURL+")")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format: text, json")

	cmd.AddCommand(newMigrateCmd(&opts))
	cmd.AddCommand(newSeedCmd(&opts))
	cmd.AddCommand(newFolderCmd(&opts))
	cmd.AddCommand(newFileCmd(&opts))
	cmd.AddCommand(newImportCmd(&opts))
	cmd.AddCommand(newExportCmd(&opts))
	cmd.AddCommand(newTemplateCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitCode(err))
	}
}

// loadConfig reads the environment the way the server does, with the
// --database-url flag taking precedence.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	environ := env.ToMap(os.Environ())
	switch {
	case o.databaseURL != "":
		environ["DATABASE_URL"] = o.databaseURL
	case environ["DATABASE_URL"] == "" && environ["DB_URL"] == "":
		environ["DATABASE_URL"] = defaultDatabaseURL
	}
	cfg, err := config.LoadFrom(environ)
	if err != nil {
		return nil, withCode(exitRequest, err)
	}
	return cfg, nil
}

// openStore opens the configured store. Migrations run only when migrate
// is set; the migrate command sets it, every other command expects an
// up-to-date schema.
func (o *globalOptions) openStore(ctx context.Context, migrate bool) (store.Store, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	dbCfg := cfg.Database
	dbCfg.AutoMigrate = migrate
	s, err := store.Open(ctx, dbCfg)
	if err != nil {
		return nil, withCode(exitStore, err)
	}
	return s, nil
}

// outputFile returns stdout for "" or "-", else a created file.
func outputFile(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// kindUsage is the --kind help text, listing the registered record kinds.
func kindUsage() string {
	defs := core.Kinds()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = string(def.Kind)
	}
	return "Record kind: " + strings.Join(names, ", ") + " (required)"
}

func parseKindFlag(s string) (core.RecordKind, error) {
	kind, err := core.ParseKind(s)
	if err != nil {
		return "", withCode(exitRequest, err)
	}
	return kind, nil
}

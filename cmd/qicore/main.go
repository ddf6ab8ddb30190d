// Command qicore runs and inspects cultivation worlds built from Lua content
// packs.
//
// Usage: qicore [--config file] [--db path] [--content dir] <command>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/template"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nathoo/qicore/cache"
	"github.com/nathoo/qicore/config"
	"github.com/nathoo/qicore/engine"
	"github.com/nathoo/qicore/loader"
	"github.com/nathoo/qicore/store"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	dbFlag     string
	contentDir string
	logLevel   string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:           "qicore",
	Short:         "Authoritative simulation kernel for a cultivation RPG",
	Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("db") {
			cfg.DB = dbFlag
		}
		if flags.Changed("content") {
			cfg.Content = contentDir
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logrus.SetLevel(cfg.Level())
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", os.Getenv("QICORE_CONFIG"), "YAML config file")
	pf.StringVarP(&dbFlag, "db", "d", "", `SQLite database path; "" keeps state in memory (default from config)`)
	pf.StringVar(&contentDir, "content", "", "content pack directory (default from config)")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(playCmd(), runCmd(), validateCmd(), newCmd(), inspectCmd(), applyCmd())
}

// app bundles what every command that touches sessions needs.
type app struct {
	kernel *engine.Kernel
	repo   store.Repository
}

// open loads the content pack, opens the repository and builds a kernel.
func open() (*app, error) {
	defs, warnings, err := loader.LoadWithWarnings(cfg.Content)
	if err != nil {
		return nil, fmt.Errorf("loading content: %w", err)
	}
	for _, w := range warnings {
		logrus.WithField("content", cfg.Content).Warn(w)
	}

	var repo store.Repository
	if cfg.DB == "" {
		repo = store.NewMemory()
	} else {
		db, err := store.OpenSQLite(cfg.DB)
		if err != nil {
			return nil, err
		}
		repo = db
	}

	k := engine.New(repo, defs, engine.Options{
		Logger:           logrus.StandardLogger(),
		Seed:             cfg.Seed,
		FlushParallelism: cfg.FlushParallelism,
		TemplateCache:    cache.New[string, *template.Template](cfg.CacheCapacity),
	})
	return &app{kernel: k, repo: repo}, nil
}

// close flushes every session and releases the repository.
func (a *app) close() {
	if err := a.kernel.Close(context.Background()); err != nil {
		logrus.WithError(err).Error("closing sessions")
	}
	if err := a.repo.Close(); err != nil {
		logrus.WithError(err).Error("closing repository")
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// ABOUTME: Maintenance CLI that talks to the workbook directly, bypassing the HTTP API
// ABOUTME: Provisions tabs, browses records, inspects grants and runs reconciles

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/famlink/internal/blob"
	"github.com/2389/famlink/internal/config"
	"github.com/2389/famlink/internal/family"
	"github.com/2389/famlink/internal/records"
	"github.com/2389/famlink/internal/sheet"
	"github.com/2389/famlink/internal/tenant"
)

// defaultRemoteTimeout applies when the backend was injected rather than configured.
const defaultRemoteTimeout = 10 * time.Second

// validFormats defines the allowed output formats.
var validFormats = []string{"text", "json"}

// app holds global flags and the workbook connection shared by all commands.
type app struct {
	configPath string
	tenantKey  string
	format     string
	verbose    bool

	backend sheet.Backend
	closer  io.Closer
	store   *records.Store
	family  *family.Service
	logger  *slog.Logger
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := &app{}
	err := newRootCommand(a).ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "famlink-admin",
		Short:         "famlink workbook maintenance",
		Long:          "Operates on the configured workbook directly. Runs with full access to every tenant.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(a.format) {
				return fmt.Errorf("invalid format %q: must be one of %v", a.format, validFormats)
			}
			return a.connect(cmd.Context(), cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultPath(), "config file path")
	cmd.PersistentFlags().StringVarP(&a.tenantKey, "tenant", "t", tenant.DefaultKey, "tenant key")
	cmd.PersistentFlags().StringVar(&a.format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newEnsureTabsCommand(a))
	cmd.AddCommand(newTablesCommand(a))
	cmd.AddCommand(newRecordsCommand(a))
	cmd.AddCommand(newPeopleCommand(a))
	cmd.AddCommand(newGrantsCommand(a))
	cmd.AddCommand(newGrantCommand(a))
	cmd.AddCommand(newReconcileCommand(a))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}
	return false
}

// connect opens the configured backend unless one was injected.
func (a *app) connect(ctx context.Context, errOut io.Writer) error {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	timeout := defaultRemoteTimeout
	if a.backend == nil {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := a.open(ctx, cfg); err != nil {
			return err
		}
		timeout = cfg.Backend.RemoteTimeout
	}

	wb := sheet.NewWorkbook(sheet.Instrument(a.backend, timeout, nil, a.logger), a.logger)
	a.store = records.NewStore(wb, a.logger)
	a.family = family.NewService(a.store, blob.NewMemoryStore(), a.logger)
	return nil
}

func (a *app) open(ctx context.Context, cfg *config.Config) error {
	switch cfg.Backend.Kind {
	case config.BackendGoogle:
		b, err := sheet.NewGoogleBackend(ctx, cfg.Backend.SpreadsheetID, cfg.Backend.CredentialsFile)
		if err != nil {
			return fmt.Errorf("opening google sheets backend: %w", err)
		}
		a.backend = b
	case config.BackendSQLite:
		b, err := sheet.NewSQLiteBackend(cfg.Database.Path, cfg.Database.Driver)
		if err != nil {
			return fmt.Errorf("opening sqlite backend: %w", err)
		}
		a.backend = b
		a.closer = b
	default:
		return fmt.Errorf("backend %q holds no persistent workbook", cfg.Backend.Kind)
	}
	return nil
}

func (a *app) close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

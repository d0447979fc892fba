package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/idosync/internal/config"
	"github.com/zjrosen/idosync/internal/idos"
	"github.com/zjrosen/idosync/internal/log"
	"github.com/zjrosen/idosync/internal/migration"
	"github.com/zjrosen/idosync/internal/report"
	"github.com/zjrosen/idosync/internal/tracing"
)

func (a *app) migrateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "migrate",
		Short: "Assign, normalize and deduplicate idOS identifiers",
		Long: `Run one pass over every account's tasks. Tasks without an idOS get one
derived from their id, stored values are rewritten to canonical form and
duplicates within an account receive -1, -2, ... suffixes.

A failed write is logged and counted; re-run the command to retry it.

Examples:
  idosync migrate --service-account sa.json --database-url https://my-app.firebaseio.com
  idosync migrate --database-url sqlite://rehearsal.db --dry-run --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPass(cmd, false)
		},
	}
	c.Flags().Bool("dry-run", false, "compute changes without writing them")
	addPassFlags(c)
	return c
}

func addPassFlags(c *cobra.Command) {
	c.Flags().Bool("derive-from-key", false, "derive missing ids from the task key instead of TASK-<key>")
	c.Flags().Bool("json", false, "print the summary as JSON")
	c.Flags().BoolP("verbose", "v", false, "list every changed task")
}

// runPass executes one pass. check forces a dry run and turns pending
// changes into ErrPendingChanges.
func (a *app) runPass(cmd *cobra.Command, check bool) error {
	if check {
		a.cfg.DryRun = true
	}
	if err := a.cfg.Validate(); err != nil {
		_, _ = fmt.Fprint(a.errOut, cmd.UsageString())
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := tracing.NewProvider(a.cfg.Tracing)
	if err != nil {
		return &config.ConfigurationError{Field: "tracing", Reason: "cannot be started", Err: err}
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.ErrorErr(log.CatTrace, "Failed to flush traces", err)
		}
	}()

	s, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	collector := &report.Collector{}
	m := migration.New(s, migration.Options{
		DryRun:   a.cfg.DryRun,
		Resolver: idos.Options{DeriveFromKey: a.cfg.DeriveFromKey},
		Tracer:   provider.Tracer(),
		Observer: collector,
	})

	sum, err := m.Run(ctx)
	if sum == nil {
		return err
	}

	// An interrupted pass still reports what it did.
	if printErr := a.printSummary(sum, collector.Changes, check); printErr != nil && err == nil {
		err = printErr
	}
	if err != nil {
		return err
	}

	if check && sum.Pending() {
		return fmt.Errorf("%d task(s) would change: %w", sum.RecordsChanged, ErrPendingChanges)
	}
	return nil
}

func (a *app) printSummary(sum *migration.Summary, changes []report.Change, check bool) error {
	if a.cfg.JSON {
		return report.WriteJSON(a.out, sum, changes)
	}
	if !a.cfg.Verbose && !check {
		changes = nil
	}
	return report.Render(a.out, sum, changes)
}

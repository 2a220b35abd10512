// Command stockctl runs stock maintenance from the shell: reconcile passes,
// divergence reports, the pending backlog and the expiry sweep.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinic/pharmacy/internal/application/inventory"
	"github.com/clinic/pharmacy/internal/bootstrap"
	"github.com/clinic/pharmacy/internal/infrastructure/cache"
	"github.com/clinic/pharmacy/internal/infrastructure/config"
	"github.com/clinic/pharmacy/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	logLevel string
	log      *zap.Logger
	services *bootstrap.Services
	closers  []func() error
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:               "stockctl",
		Short:             "Pharmacy stock maintenance",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.open,
		PersistentPostRun: func(*cobra.Command, []string) { a.close() },
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.AddCommand(a.reconcileCommand(), a.divergenceCommand(), a.pendingCommand(), a.expireCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		a.close()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) open(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	log, err := logger.New(&logger.Config{Level: a.logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.log = log

	db, err := bootstrap.OpenDatabase(cfg, log)
	if err != nil {
		return err
	}
	guard, closeGuard := cache.NewReconcileGuard(cmd.Context(), cfg.Redis, cfg.Stock.ReconcileLockTTL, log)
	a.closers = append(a.closers, closeGuard, db.Close)

	a.services = bootstrap.NewServices(db.DB, bootstrap.Options{
		Stock:  cfg.Stock,
		Guard:  guard,
		Logger: log,
	})
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
	if a.log != nil {
		_ = logger.Sync(a.log)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseMedication(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid medication id %q: %w", raw, err)
	}
	return &id, nil
}

func (a *app) reconcileCommand() *cobra.Command {
	var medication string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Replay pending ledger entries and align store totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseMedication(medication)
			if err != nil {
				return err
			}
			result, err := a.services.Reconciler.Reconcile(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if len(result.Errored) > 0 {
				return fmt.Errorf("%d movements could not be replayed", len(result.Errored))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&medication, "medication", "", "limit the pass to one medication id")
	return cmd
}

func (a *app) divergenceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "divergence",
		Short: "List medications whose stores diverge or have entries waiting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records := make([]inventory.SyncRecordResponse, 0)
			for r, err := range a.services.Reconciler.DivergenceReport(cmd.Context()) {
				if err != nil {
					return err
				}
				records = append(records, inventory.ToSyncRecordResponse(r))
			}
			return writeJSON(cmd.OutOrStdout(), records)
		},
	}
}

func (a *app) pendingCommand() *cobra.Command {
	var (
		medication string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending ledger entries in replay order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseMedication(medication)
			if err != nil {
				return err
			}
			items := make([]inventory.MovementResponse, 0)
			for m, err := range a.services.Ledger.ListPending(cmd.Context(), id) {
				if err != nil {
					return err
				}
				items = append(items, inventory.ToMovementResponse(&m))
				if limit > 0 && len(items) >= limit {
					break
				}
			}
			return writeJSON(cmd.OutOrStdout(), items)
		},
	}
	cmd.Flags().StringVar(&medication, "medication", "", "only entries of this medication id")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many entries (0 lists all)")
	return cmd
}

func (a *app) expireCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "expire-lots",
		Short: "Flag lots past their expiry date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.services.Medications.ExpireLots(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			a.log.Info("expiry sweep finished", zap.Int("expired", n))
			cmd.Printf("%d lots expired\n", n)
			return nil
		},
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"herdcore/internal/adapters/httpapi"
	"herdcore/internal/backup"
	"herdcore/internal/core"
	"herdcore/internal/scheduler"
)

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "herdd",
		Short:         "Livestock lifecycle service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "load settings from this .env file")

	root.AddCommand(
		newServeCmd(&envFile),
		newSeedCmd(&envFile),
		newBackupCmd(&envFile),
		newValidatePendingCmd(&envFile),
	)
	return root
}

func newServeCmd(envFile *string) *cobra.Command {
	var trace bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var opts []core.ServiceOption
			if trace {
				opts = append(opts, core.WithTracer(core.NewJSONTracer(cmd.ErrOrStderr())))
			}
			a, err := bootstrap(ctx, *envFile, opts...)
			if err != nil {
				return err
			}
			defer a.close()
			return serve(ctx, a)
		},
	}
	cmd.Flags().BoolVar(&trace, "trace", false, "write operation spans as JSON lines to stderr")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	var snapshots scheduler.Snapshotter
	if a.cfg.Backup.Cron != "" {
		m, err := a.backups(ctx)
		if err != nil {
			return err
		}
		snapshots = m
	}
	sched := scheduler.New(scheduler.Config{
		BackupSpec:  a.cfg.Backup.Cron,
		PendingSpec: a.cfg.PendingCron,
	}, snapshots, a.svc, a.logger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr: a.cfg.HTTP.Addr,
		Handler: httpapi.New(a.svc, httpapi.Options{
			Logger:    a.logger.Named("http"),
			RateLimit: a.cfg.HTTP.RateLimit,
			RateBurst: a.cfg.HTTP.RateBurst,
			Gatherer:  a.metrics,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func newSeedCmd(envFile *string) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the catalog records missing from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), *envFile)
			if err != nil {
				return err
			}
			defer a.close()
			if path == "" {
				path = a.cfg.CatalogPath
			}
			if path == "" {
				return errors.New("no catalog given: pass --catalog or set HERDCORE_CATALOG")
			}
			summary, err := a.seed(cmd.Context(), path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, skipped %d\n", summary.Created, summary.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "catalog", "", "catalog YAML file")
	return cmd
}

// backupRunE bootstraps the app and its backup manager before calling fn.
func backupRunE(envFile *string, fn func(cmd *cobra.Command, a *app, m *backup.Manager, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), *envFile)
		if err != nil {
			return err
		}
		defer a.close()
		m, err := a.backups(cmd.Context())
		if err != nil {
			return err
		}
		return fn(cmd, a, m, args)
	}
}

func newBackupCmd(envFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the store into the blob store",
		Args:  cobra.NoArgs,
		RunE: backupRunE(envFile, func(cmd *cobra.Command, _ *app, m *backup.Manager, _ []string) error {
			info, err := m.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", info.Key, info.Size)
			return nil
		}),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, oldest first",
		Args:  cobra.NoArgs,
		RunE: backupRunE(envFile, func(cmd *cobra.Command, _ *app, m *backup.Manager, _ []string) error {
			infos, err := m.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, info := range infos {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\tanimals=%s\n", info.Key, info.Size, info.Metadata["animals"])
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore [key]",
		Short: "Replace the store state with a snapshot, the newest by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: backupRunE(envFile, func(cmd *cobra.Command, a *app, m *backup.Manager, args []string) error {
			target, ok := a.store.(backup.Target)
			if !ok {
				return fmt.Errorf("%s store cannot import state", a.cfg.Storage.Driver)
			}
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			info, err := m.Restore(cmd.Context(), key, target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", info.Key)
			return nil
		}),
	})
	return cmd
}

func newValidatePendingCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-pending",
		Short: "Validate draft events whose timestamp has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), *envFile)
			if err != nil {
				return err
			}
			defer a.close()
			outcomes, err := a.svc.ValidatePendingEvents(cmd.Context())
			if err != nil {
				return err
			}
			failed := 0
			for _, o := range outcomes {
				if o.Err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%v\n", o.EventID, o.Err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "validated %d of %d events\n", len(outcomes)-failed, len(outcomes))
			return nil
		},
	}
}

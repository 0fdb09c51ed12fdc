package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"herdcore/internal/backup"
	"herdcore/internal/blob"
	"herdcore/internal/catalog"
	"herdcore/internal/config"
	"herdcore/internal/core"
	"herdcore/pkg/logger"
	"herdcore/plugins/swine"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   core.PersistentStore
	svc     *core.Service
	metrics *prometheus.Registry
}

func bootstrap(ctx context.Context, envFile string, opts ...core.ServiceOption) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	base, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	store, err := core.OpenPersistentStore(cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	opts = append([]core.ServiceOption{
		core.WithLogger(logger.NewSugared(base.Named("core"))),
		core.WithMetricsRecorder(recorder),
		core.WithAuditRecorder(core.NewLogAuditRecorder(logger.NewSugared(base.Named("audit")))),
	}, opts...)
	svc := core.NewService(store, opts...)
	if _, err := svc.InstallPlugin(swine.New()); err != nil {
		return nil, fmt.Errorf("install swine plugin: %w", err)
	}

	a := &app{cfg: cfg, logger: base, store: store, svc: svc, metrics: reg}
	if cfg.CatalogPath != "" {
		if _, err := a.seed(ctx, cfg.CatalogPath); err != nil {
			a.close()
			return nil, err
		}
	}
	base.Info("herdd initialized", zap.String("storage", cfg.Storage.Driver), zap.Strings("plugins", pluginNames(svc)))
	return a, nil
}

func pluginNames(svc *core.Service) []string {
	var names []string
	for _, p := range svc.RegisteredPlugins() {
		names = append(names, p.Name+"@"+p.Version)
	}
	return names
}

func (a *app) seed(ctx context.Context, path string) (catalog.Summary, error) {
	cat, err := catalog.LoadFile(path)
	if err != nil {
		return catalog.Summary{}, err
	}
	return catalog.Seed(ctx, a.svc, cat, a.logger.Named("catalog"))
}

func (a *app) backups(ctx context.Context) (*backup.Manager, error) {
	source, ok := a.store.(backup.Source)
	if !ok {
		return nil, fmt.Errorf("%s store cannot export its state", a.cfg.Storage.Driver)
	}
	store, err := blob.Open(ctx, a.cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open %s blob store: %w", a.cfg.Blob.Driver, err)
	}
	return backup.New(source, store, backup.Options{
		Prefix: a.cfg.Backup.Prefix,
		Keep:   a.cfg.Backup.Keep,
		Logger: a.logger.Named("backup"),
	}), nil
}

func (a *app) close() {
	if c, ok := a.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

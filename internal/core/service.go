package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"herdcore/internal/infra/persistence/memory"
	"herdcore/pkg/domain"
)

// Service exposes the transactional lifecycle operations of the herd: catalog
// setup, animals and groups, events, feed inventories and event orders.
type Service struct {
	store   PersistentStore
	plugins map[string]PluginMetadata
	clock   Clock
	now     func() time.Time
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
}

// ServiceOption configures optional collaborators of a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	clock   Clock
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		logger:  noopLogger{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		audit:   noopAuditRecorder{},
	}
}

// WithClock overrides the clock used for "now" checks such as future
// timestamps.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer sets the span tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		store:   store,
		plugins: make(map[string]PluginMetadata),
		clock:   o.clock,
		now:     selectNowFunc(store, o.clock),
		logger:  o.logger,
		metrics: o.metrics,
		tracer:  o.tracer,
		audit:   o.audit,
	}
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

type nowFuncProvider interface {
	NowFunc() func() time.Time
}

type rulesEngineProvider interface {
	RulesEngine() *RulesEngine
}

// selectNowFunc prefers an explicit clock, then the store's clock.
func selectNowFunc(store PersistentStore, clock Clock) func() time.Time {
	if clock != nil {
		return func() time.Time { return clock.Now().UTC() }
	}
	if p, ok := store.(nowFuncProvider); ok {
		if fn := p.NowFunc(); fn != nil {
			return func() time.Time { return fn().UTC() }
		}
	}
	return func() time.Time { return time.Now().UTC() }
}

func extractRulesEngine(store PersistentStore) *RulesEngine {
	if p, ok := store.(rulesEngineProvider); ok {
		return p.RulesEngine()
	}
	return nil
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Now returns the service clock reading.
func (s *Service) Now() time.Time {
	return s.now()
}

// run executes fn in one store transaction and reports the outcome to the
// tracer, metrics, audit and logger. fn returns the id of the primary record.
func (s *Service) run(ctx context.Context, op string, fn func(*txn) (string, error)) (Result, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	now := s.now()
	var entityID string
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		id, err := fn(newTxn(tx, now))
		entityID = id
		return err
	})
	duration := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "entity_id", entityID, "code", string(domain.Code(err)), "error", err)
		s.recordAuditError(ctx, op, entityID, duration, err)
		return res, err
	}
	s.logger.Debug("operation committed", "operation", op, "entity_id", entityID, "duration", duration)
	for _, v := range res.Violations {
		s.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "severity", string(v.Severity), "entity", string(v.Entity), "entity_id", v.EntityID, "message", v.Message)
	}
	s.recordAuditSuccess(ctx, op, entityID, duration)
	return res, nil
}

// view runs fn against a read-only snapshot.
func (s *Service) view(ctx context.Context, fn func(*reader) error) error {
	now := s.now()
	return s.store.View(ctx, func(v TransactionView) error {
		return fn(newReader(v, now))
	})
}

type operationMeta struct {
	entity EntityType
	action Action
}

var operationCatalog = map[string]operationMeta{
	"create_uom":              {domain.EntityUoM, domain.ActionCreate},
	"create_product":          {domain.EntityProduct, domain.ActionCreate},
	"create_location":         {domain.EntityLocation, domain.ActionCreate},
	"update_location":         {domain.EntityLocation, domain.ActionUpdate},
	"create_sequence":         {domain.EntitySequence, domain.ActionCreate},
	"create_specie":           {domain.EntitySpecie, domain.ActionCreate},
	"update_specie":           {domain.EntitySpecie, domain.ActionUpdate},
	"create_breed":            {domain.EntityBreed, domain.ActionCreate},
	"create_farm_line":        {domain.EntityFarmLine, domain.ActionCreate},
	"create_bom":              {domain.EntityBOM, domain.ActionCreate},
	"create_lot":              {domain.EntityLot, domain.ActionCreate},
	"post_move":               {domain.EntityMove, domain.ActionCreate},
	"create_quality_test":     {domain.EntityQualityTest, domain.ActionCreate},
	"update_quality_test":     {domain.EntityQualityTest, domain.ActionUpdate},
	"confirm_quality_test":    {domain.EntityQualityTest, domain.ActionUpdate},
	"create_animal":           {domain.EntityAnimal, domain.ActionCreate},
	"delete_animal":           {domain.EntityAnimal, domain.ActionDelete},
	"create_group":            {domain.EntityGroup, domain.ActionCreate},
	"delete_group":            {domain.EntityGroup, domain.ActionDelete},
	"create_event":            {domain.EntityEvent, domain.ActionCreate},
	"update_event":            {domain.EntityEvent, domain.ActionUpdate},
	"delete_event":            {domain.EntityEvent, domain.ActionDelete},
	"copy_event":              {domain.EntityEvent, domain.ActionCreate},
	"validate_event":          {domain.EntityEvent, domain.ActionUpdate},
	"cancel_event":            {domain.EntityEvent, domain.ActionUpdate},
	"draft_event":             {domain.EntityEvent, domain.ActionUpdate},
	"create_dose":             {domain.EntityDose, domain.ActionCreate},
	"delete_dose":             {domain.EntityDose, domain.ActionDelete},
	"create_feed_inventory":   {domain.EntityFeedInventory, domain.ActionCreate},
	"validate_feed_inventory": {domain.EntityFeedInventory, domain.ActionUpdate},
	"draft_feed_inventory":    {domain.EntityFeedInventory, domain.ActionUpdate},
	"cancel_feed_inventory":   {domain.EntityFeedInventory, domain.ActionUpdate},
	"delete_feed_inventory":   {domain.EntityFeedInventory, domain.ActionDelete},
	"create_event_order":      {domain.EntityEventOrder, domain.ActionCreate},
	"confirm_event_order":     {domain.EntityEventOrder, domain.ActionUpdate},
	"cancel_event_order":      {domain.EntityEventOrder, domain.ActionUpdate},
	"draft_event_order":       {domain.EntityEventOrder, domain.ActionUpdate},
	"delete_event_order":      {domain.EntityEventOrder, domain.ActionDelete},
}

func (s *Service) recordAuditSuccess(ctx context.Context, op, entityID string, duration time.Duration) {
	s.recordAudit(ctx, op, entityID, duration, nil)
}

func (s *Service) recordAuditError(ctx context.Context, op, entityID string, duration time.Duration, err error) {
	s.recordAudit(ctx, op, entityID, duration, err)
}

func (s *Service) recordAudit(ctx context.Context, op, entityID string, duration time.Duration, err error) {
	meta, ok := operationCatalog[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

// ErrNotFound is returned when a referenced record does not exist. It unwraps
// to a domain error carrying CodeNotFound.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e ErrNotFound) Unwrap() error {
	return &domain.Error{Code: domain.CodeNotFound, Message: e.Error()}
}

// InstallPlugin registers a plugin, wiring its rules into the active engine.
func (s *Service) InstallPlugin(plugin Plugin) (PluginMetadata, error) {
	if plugin == nil {
		return PluginMetadata{}, fmt.Errorf("plugin cannot be nil")
	}
	if _, ok := s.plugins[plugin.Name()]; ok {
		return PluginMetadata{}, fmt.Errorf("plugin %s already registered", plugin.Name())
	}
	engine := extractRulesEngine(s.store)
	if engine == nil {
		return PluginMetadata{}, fmt.Errorf("store does not expose a rules engine")
	}

	registry := NewPluginRegistry()
	if err := plugin.Register(registry); err != nil {
		return PluginMetadata{}, err
	}

	meta := PluginMetadata{
		Name:    plugin.Name(),
		Version: plugin.Version(),
	}
	for _, rule := range registry.Rules() {
		engine.Register(rule)
		meta.Rules = append(meta.Rules, rule.Name())
	}
	s.plugins[plugin.Name()] = meta
	s.logger.Info("plugin installed", "plugin", meta.Name, "version", meta.Version, "rules", len(meta.Rules))
	return meta, nil
}

// RegisteredPlugins returns metadata describing installed plugins ordered by
// name.
func (s *Service) RegisteredPlugins() []PluginMetadata {
	out := make([]PluginMetadata, 0, len(s.plugins))
	for _, meta := range s.plugins {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

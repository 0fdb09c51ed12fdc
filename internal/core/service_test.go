package core

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"herdcore/pkg/domain"
)

type logLine struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, logLine{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) last(msg string) (logLine, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.lines) - 1; i >= 0; i-- {
		if l.lines[i].msg == msg {
			return l.lines[i], true
		}
	}
	return logLine{}, false
}

func argValue(args []any, key string) any {
	for i := 0; i+1 < len(args); i += 2 {
		if args[i] == key {
			return args[i+1]
		}
	}
	return nil
}

func TestJSONTracerRecordsOutcomes(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	f := newFixture(t, WithTracer(tracer))
	_, _, err := f.svc.CreateProduct(f.ctx, Product{Code: "X", DefaultUoMID: "missing"})
	expectCode(t, err, domain.CodeNotFound)

	entries := tracer.Entries()
	if len(entries) < 2 {
		t.Fatalf("expected spans for the seeded catalog, got %d", len(entries))
	}
	if first := entries[0]; first.Operation != "create_uom" || first.Status != "success" {
		t.Fatalf("unexpected first span %+v", first)
	}
	last := entries[len(entries)-1]
	if last.Operation != "create_product" || last.Status != "error" || last.Error == "" {
		t.Fatalf("unexpected failed span %+v", last)
	}

	decoder := json.NewDecoder(&buf)
	written := 0
	for decoder.More() {
		var entry JSONTraceEntry
		if err := decoder.Decode(&entry); err != nil {
			t.Fatalf("decode span: %v", err)
		}
		written++
	}
	if written != len(entries) {
		t.Fatalf("expected %d written spans, got %d", len(entries), written)
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	f := newFixture(t, WithMetricsRecorder(rec))
	_, _, err = f.svc.CreateUoM(f.ctx, UoM{Name: "t", Category: domain.UoMWeight})
	if err == nil {
		t.Fatalf("expected a uom without factor to fail")
	}

	if got := testutil.ToFloat64(rec.operations.WithLabelValues("create_uom", "success")); got != 4 {
		t.Fatalf("expected 4 successful create_uom, got %v", got)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("create_uom", "error")); got != 1 {
		t.Fatalf("expected 1 failed create_uom, got %v", got)
	}

	again, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("second recorder: %v", err)
	}
	if again.operations != rec.operations {
		t.Fatalf("expected collectors to be reused")
	}
}

func TestLogAuditRecorder(t *testing.T) {
	logger := &captureLogger{}
	f := newFixture(t, WithAuditRecorder(NewLogAuditRecorder(logger)))
	p, _, err := f.svc.CreateProduct(f.ctx, Product{Code: "STRAW", DefaultUoMID: "uom-kg"})
	f.check("product", err)

	line, ok := logger.last("audit")
	if !ok || line.level != "info" || argValue(line.args, "operation") != "create_product" || argValue(line.args, "entity_id") != p.ID {
		t.Fatalf("unexpected audit line %+v", line)
	}

	_, _, err = f.svc.CreateProduct(f.ctx, Product{Code: "HAY", DefaultUoMID: "missing"})
	expectCode(t, err, domain.CodeNotFound)
	line, _ = logger.last("audit")
	if line.level != "warn" || argValue(line.args, "error") == nil {
		t.Fatalf("expected failed audit at warn level, got %+v", line)
	}
}

func TestServiceLogsRuleWarnings(t *testing.T) {
	logger := &captureLogger{}
	f := newFixture(t, WithLogger(logger))
	noted := ruleFunc{name: "feed_receipt_note", fn: func(changes []domain.Change) domain.Result {
		var res domain.Result
		for _, id := range domain.ChangedIDs(changes, domain.EntityMove) {
			res.Violations = append(res.Violations, domain.Violation{Rule: "feed_receipt_note", Severity: domain.SeverityWarn, Entity: domain.EntityMove, EntityID: id})
		}
		return res
	}}
	if _, err := f.svc.InstallPlugin(stubPlugin{name: "notes", rule: noted}); err != nil {
		t.Fatalf("install: %v", err)
	}
	f.fillSilo()
	line, ok := logger.last("rule violation")
	if !ok || line.level != "warn" || argValue(line.args, "rule") != "feed_receipt_note" {
		t.Fatalf("expected receipt warning logged, got %+v", line)
	}
}

type ruleFunc struct {
	name string
	fn   func([]domain.Change) domain.Result
}

func (r ruleFunc) Name() string { return r.name }

func (r ruleFunc) Evaluate(_ context.Context, _ domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	return r.fn(changes), nil
}

type stubPlugin struct {
	name string
	rule Rule
}

func (p stubPlugin) Name() string    { return p.name }
func (p stubPlugin) Version() string { return "0.1.0" }

func (p stubPlugin) Register(registry *PluginRegistry) error {
	registry.RegisterRule(p.rule)
	return nil
}

func TestInstallPlugin(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.InstallPlugin(nil); err == nil {
		t.Fatalf("expected nil plugin to fail")
	}

	productWarning := ruleFunc{name: "product_audit", fn: func(changes []domain.Change) domain.Result {
		var res domain.Result
		for _, id := range domain.ChangedIDs(changes, domain.EntityProduct) {
			res.Violations = append(res.Violations, domain.Violation{Rule: "product_audit", Severity: domain.SeverityWarn, Entity: domain.EntityProduct, EntityID: id})
		}
		return res
	}}
	meta, err := f.svc.InstallPlugin(stubPlugin{name: "stub", rule: productWarning})
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if meta.Version != "0.1.0" || len(meta.Rules) != 1 || meta.Rules[0] != "product_audit" {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if _, err := f.svc.InstallPlugin(stubPlugin{name: "stub"}); err == nil {
		t.Fatalf("expected duplicate plugin to fail")
	}
	if got := f.svc.RegisteredPlugins(); len(got) != 1 || got[0].Name != "stub" {
		t.Fatalf("unexpected plugins %+v", got)
	}

	p, res, err := f.svc.CreateProduct(f.ctx, Product{Code: "STRAW", DefaultUoMID: "uom-kg"})
	f.check("product", err)
	if len(res.Violations) != 1 || res.Violations[0].EntityID != p.ID {
		t.Fatalf("expected plugin rule to warn on the new product, got %+v", res.Violations)
	}
}

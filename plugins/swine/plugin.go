// Package swine contributes pig husbandry rules to the herd engine.
package swine

import (
	"context"
	"fmt"
	"strings"

	"herdcore/internal/core"
	"herdcore/pkg/domain"
)

// Defaults applied by New.
const (
	DefaultMaxLiveBorn      = 20
	DefaultMinLactationDays = 21
)

// Plugin holds the thresholds checked by the swine rules.
type Plugin struct {
	MaxLiveBorn      int
	MinLactationDays int
}

// New constructs a swine plugin with default thresholds.
func New() Plugin {
	return Plugin{MaxLiveBorn: DefaultMaxLiveBorn, MinLactationDays: DefaultMinLactationDays}
}

// Name returns the plugin identifier.
func (Plugin) Name() string { return "swine" }

// Version returns the plugin semantic version.
func (Plugin) Version() string { return "0.2.0" }

// Register wires the litter size and lactation length warnings.
func (p Plugin) Register(registry *core.PluginRegistry) error {
	if p.MaxLiveBorn <= 0 || p.MinLactationDays <= 0 {
		return fmt.Errorf("swine thresholds must be positive")
	}
	registry.RegisterRule(litterSizeRule{max: p.MaxLiveBorn})
	registry.RegisterRule(earlyWeaningRule{minDays: p.MinLactationDays})
	return nil
}

// isSwine matches species by name; farms register pigs under local names.
func isSwine(view domain.TransactionView, specieID string) bool {
	sp, ok := view.Species().Get(specieID)
	if !ok {
		return false
	}
	name := strings.ToLower(sp.Name)
	for _, token := range []string{"pig", "swine", "porcine", "sow", "hog"} {
		if strings.Contains(name, token) {
			return true
		}
	}
	return false
}

// validatedEvents returns the validated events of kind touched by changes.
func validatedEvents(view domain.TransactionView, changes []domain.Change, kind domain.EventKind) []domain.Event {
	var out []domain.Event
	for _, id := range domain.ChangedIDs(changes, domain.EntityEvent) {
		ev, ok := view.Events().Get(id)
		if !ok || ev.Kind != kind || ev.State != domain.EventValidated {
			continue
		}
		if !isSwine(view, ev.SpecieID) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

type litterSizeRule struct{ max int }

func (litterSizeRule) Name() string { return "swine_litter_size" }

func (r litterSizeRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, ev := range validatedEvents(view, changes, domain.EventFarrowing) {
		if ev.Farrowing == nil || ev.Farrowing.Live <= r.max {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("farrowing of %d live piglets exceeds %d", ev.Farrowing.Live, r.max),
			Entity:   domain.EntityEvent,
			EntityID: ev.ID,
		})
	}
	return res, nil
}

type earlyWeaningRule struct{ minDays int }

func (earlyWeaningRule) Name() string { return "swine_early_weaning" }

func (r earlyWeaningRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, ev := range validatedEvents(view, changes, domain.EventWeaning) {
		if ev.Weaning == nil || ev.Weaning.CycleID == "" {
			continue
		}
		cycle, ok := view.Cycles().Get(ev.Weaning.CycleID)
		if !ok || cycle.FarrowingEventID == "" {
			continue
		}
		farrowing, ok := view.Events().Get(cycle.FarrowingEventID)
		if !ok {
			continue
		}
		days := int(ev.Timestamp.Sub(farrowing.Timestamp).Hours() / 24)
		if days >= r.minDays {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("litter weaned after %d days of lactation, expected at least %d", days, r.minDays),
			Entity:   domain.EntityEvent,
			EntityID: ev.ID,
		})
	}
	return res, nil
}

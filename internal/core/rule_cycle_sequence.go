package core

import (
	"context"
	"fmt"
	"sort"

	"herdcore/pkg/domain"
)

// NewCycleSequenceRule blocks cycle histories with gaps in their sequence
// numbers or with more than one open cycle per female.
func NewCycleSequenceRule() domain.Rule {
	return cycleSequenceRule{}
}

type cycleSequenceRule struct{}

func (cycleSequenceRule) Name() string { return "cycle_sequence" }

func (r cycleSequenceRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	changed := domain.ChangedIDs(changes, domain.EntityCycle)
	if len(changed) == 0 {
		return res, nil
	}
	females := make(map[string]struct{})
	byFemale := make(map[string][]domain.FemaleCycle)
	for _, c := range view.Cycles().List() {
		byFemale[c.AnimalID] = append(byFemale[c.AnimalID], c)
	}
	for _, id := range changed {
		if c, ok := view.Cycles().Get(id); ok {
			females[c.AnimalID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(females))
	for id := range females {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, animalID := range ids {
		cycles := byFemale[animalID]
		sort.Slice(cycles, func(i, j int) bool { return cycles[i].Sequence < cycles[j].Sequence })
		open := 0
		for i, c := range cycles {
			if c.Sequence != i+1 {
				res.Violations = append(res.Violations, r.violation(c, fmt.Sprintf("female %s cycle %d follows cycle %d", animalID, c.Sequence, i)))
			}
			if !c.Closed() {
				open++
			}
		}
		if open > 1 {
			last := cycles[len(cycles)-1]
			res.Violations = append(res.Violations, r.violation(last, fmt.Sprintf("female %s has %d open cycles", animalID, open)))
		}
	}
	return res, nil
}

func (r cycleSequenceRule) violation(c domain.FemaleCycle, msg string) domain.Violation {
	return domain.Violation{
		Rule:     r.Name(),
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   domain.EntityCycle,
		EntityID: c.ID,
	}
}

package core

import (
	"context"
	"sort"
	"time"

	"herdcore/pkg/domain"
)

// CurrentWeight returns the newest weight record of an animal or group.
func (s *Service) CurrentWeight(ctx context.Context, subjectID string) (WeightRecord, bool, error) {
	var (
		best  WeightRecord
		found bool
	)
	err := s.view(ctx, func(r *reader) error {
		for _, w := range r.view.Weights().List() {
			if w.AnimalID != subjectID && w.GroupID != subjectID {
				continue
			}
			if !found || w.Timestamp.After(best.Timestamp) {
				best, found = w, true
			}
		}
		return nil
	})
	return best, found, err
}

// CycleStats summarises one reproductive cycle.
type CycleStats struct {
	CycleID       string
	Sequence      int
	State         domain.CycleState
	Inseminations int
	Diagnosis     domain.DiagnosisResult
	Live          int
	Stillborn     int
	Mummified     int
	Fostered      int
	Weaned        int
	Removed       int
	// LactationDays counts from farrowing to weaning, -1 when either is missing.
	LactationDays int
	// WeaningToServiceDays counts from the previous cycle's weaning to the
	// first insemination of this one, -1 when either is missing.
	WeaningToServiceDays int
}

// CycleStats computes statistics for a cycle from its validated events.
func (s *Service) CycleStats(ctx context.Context, cycleID string) (CycleStats, error) {
	var st CycleStats
	err := s.view(ctx, func(r *reader) error {
		c, err := r.cycle(cycleID)
		if err != nil {
			return err
		}
		st = CycleStats{CycleID: c.ID, Sequence: c.Sequence, State: c.State, LactationDays: -1, WeaningToServiceDays: -1}

		var firstService time.Time
		for _, id := range c.InseminationEventIDs {
			ev, ok := r.validatedEvent(id)
			if !ok {
				continue
			}
			st.Inseminations++
			if firstService.IsZero() || ev.Timestamp.Before(firstService) {
				firstService = ev.Timestamp
			}
		}
		var lastDiagnosis time.Time
		for _, id := range c.DiagnosisEventIDs {
			if ev, ok := r.validatedEvent(id); ok && !ev.Timestamp.Before(lastDiagnosis) {
				lastDiagnosis = ev.Timestamp
				st.Diagnosis = ev.Diagnosis.Result
			}
		}
		st.Fostered = r.fostered(c, nil)

		farrowing, farrowed := r.validatedEvent(c.FarrowingEventID)
		if farrowed {
			st.Live = farrowing.Farrowing.Live
			st.Stillborn = farrowing.Farrowing.Stillborn
			st.Mummified = farrowing.Farrowing.Mummified
		}
		if weaning, ok := r.validatedEvent(c.WeaningEventID); ok {
			st.Weaned = weaning.Weaning.Quantity
			st.Removed = weaning.Weaning.Casualties
			if farrowed {
				st.LactationDays = daysBetween(farrowing.Timestamp, weaning.Timestamp)
			}
		}

		if firstService.IsZero() {
			return nil
		}
		for _, prev := range r.cyclesOf(c.AnimalID) {
			if prev.Sequence != c.Sequence-1 {
				continue
			}
			if weaning, ok := r.validatedEvent(prev.WeaningEventID); ok {
				st.WeaningToServiceDays = daysBetween(weaning.Timestamp, firstService)
			}
		}
		return nil
	})
	return st, err
}

// EventsInWindow returns the validated events of kind for an animal with a
// timestamp in [from, to], oldest first. An empty kind matches every kind.
func (s *Service) EventsInWindow(ctx context.Context, animalID string, kind EventKind, from, to time.Time) ([]Event, error) {
	var out []Event
	err := s.view(ctx, func(r *reader) error {
		for _, ev := range r.view.Events().List() {
			if ev.State != domain.EventValidated || ev.SubjectID() != animalID {
				continue
			}
			if kind != "" && ev.Kind != kind {
				continue
			}
			if ev.Timestamp.Before(from) || ev.Timestamp.After(to) {
				continue
			}
			out = append(out, ev)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, err
}

// DueFemale is a mated female whose last insemination is DaysSince days old.
type DueFemale struct {
	Animal           Animal
	LastInsemination time.Time
	DaysSince        int
}

// FemalesDueForDiagnosis lists active mated females of a farm whose last
// insemination lies between minDays and maxDays before now.
func (s *Service) FemalesDueForDiagnosis(ctx context.Context, farmID string, minDays, maxDays int, now time.Time) ([]DueFemale, error) {
	var out []DueFemale
	err := s.view(ctx, func(r *reader) error {
		for _, a := range r.view.Animals().List() {
			if !a.Active || a.Type != domain.AnimalFemale || a.FarmID != farmID || a.FemaleState != domain.FemaleMated {
				continue
			}
			c, ok := r.currentCycle(a.ID)
			if !ok {
				continue
			}
			var last time.Time
			for _, id := range c.InseminationEventIDs {
				if ev, ok := r.validatedEvent(id); ok && ev.Timestamp.After(last) {
					last = ev.Timestamp
				}
			}
			if last.IsZero() {
				continue
			}
			days := daysBetween(last, now)
			if days < minDays || days > maxDays {
				continue
			}
			out = append(out, DueFemale{Animal: a, LastInsemination: last, DaysSince: days})
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].DaysSince > out[j].DaysSince })
	return out, err
}

// daysBetween counts calendar days from a to b.
func daysBetween(a, b time.Time) int {
	return int(dayOf(b).Sub(dayOf(a)) / oneDay)
}

package domain

import (
	"slices"
	"time"
)

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Clone returns a copy of the unit.
func (u UoM) Clone() UoM { return u }

// Clone returns a copy of the product.
func (p Product) Clone() Product { return p }

// Clone returns a deep copy of the location.
func (l Location) Clone() Location {
	l.LocationsToFed = slices.Clone(l.LocationsToFed)
	return l
}

// Clone returns a copy of the sequence.
func (s Sequence) Clone() Sequence { return s }

// Clone returns a deep copy of the specie.
func (s Specie) Clone() Specie {
	s.ReclassificationProductIDs = slices.Clone(s.ReclassificationProductIDs)
	return s
}

// Clone returns a copy of the breed.
func (b Breed) Clone() Breed { return b }

// Clone returns a copy of the farm line.
func (f FarmLine) Clone() FarmLine { return f }

// Clone returns a deep copy of the bill of materials.
func (b BOM) Clone() BOM {
	b.Inputs = slices.Clone(b.Inputs)
	return b
}

// Clone returns a deep copy of the lot.
func (l Lot) Clone() Lot {
	l.Expiration = cloneTime(l.Expiration)
	l.CostLines = slices.Clone(l.CostLines)
	return l
}

// Clone returns a copy of the move.
func (m Move) Clone() Move { return m }

// Clone returns a deep copy of the production.
func (p Production) Clone() Production {
	p.InputMoveIDs = slices.Clone(p.InputMoveIDs)
	p.OutputMoveIDs = slices.Clone(p.OutputMoveIDs)
	return p
}

// Clone returns a deep copy of the quality test.
func (q QualityTest) Clone() QualityTest {
	q.Lines = slices.Clone(q.Lines)
	return q
}

// Clone returns a deep copy of the animal.
func (a Animal) Clone() Animal {
	a.Birthdate = cloneTime(a.Birthdate)
	a.RemovalDate = cloneTime(a.RemovalDate)
	a.LastExtraction = cloneTime(a.LastExtraction)
	return a
}

// Clone returns a deep copy of the group.
func (g AnimalGroup) Clone() AnimalGroup {
	g.RemovalDate = cloneTime(g.RemovalDate)
	return g
}

// Clone returns a copy of the weight record.
func (w WeightRecord) Clone() WeightRecord { return w }

// Clone returns a deep copy of the cycle.
func (c FemaleCycle) Clone() FemaleCycle {
	c.InseminationEventIDs = slices.Clone(c.InseminationEventIDs)
	c.DiagnosisEventIDs = slices.Clone(c.DiagnosisEventIDs)
	c.FosterEventIDs = slices.Clone(c.FosterEventIDs)
	return c
}

// Clone returns a copy of the dose.
func (d Dose) Clone() Dose { return d }

// Clone returns a deep copy of the inventory.
func (f FeedInventory) Clone() FeedInventory {
	f.DestinationIDs = slices.Clone(f.DestinationIDs)
	f.Lines = slices.Clone(f.Lines)
	f.FeedEventIDs = slices.Clone(f.FeedEventIDs)
	f.MoveIDs = slices.Clone(f.MoveIDs)
	return f
}

// Clone returns a copy of the order.
func (o EventOrder) Clone() EventOrder { return o }

// Clone returns a deep copy of the event including its payload.
func (e Event) Clone() Event {
	e.MoveIDs = slices.Clone(e.MoveIDs)
	if e.Move != nil {
		v := *e.Move
		e.Move = &v
	}
	if e.Transformation != nil {
		v := *e.Transformation
		e.Transformation = &v
	}
	if e.Removal != nil {
		v := *e.Removal
		e.Removal = &v
	}
	if e.Feed != nil {
		v := *e.Feed
		e.Feed = &v
	}
	if e.Insemination != nil {
		v := *e.Insemination
		e.Insemination = &v
	}
	if e.Diagnosis != nil {
		v := *e.Diagnosis
		e.Diagnosis = &v
	}
	if e.Abort != nil {
		v := *e.Abort
		e.Abort = &v
	}
	if e.Farrowing != nil {
		v := *e.Farrowing
		v.ProducedAnimalIDs = slices.Clone(v.ProducedAnimalIDs)
		e.Farrowing = &v
	}
	if e.Foster != nil {
		v := *e.Foster
		e.Foster = &v
	}
	if e.Weaning != nil {
		v := *e.Weaning
		e.Weaning = &v
	}
	if e.Reclassification != nil {
		v := *e.Reclassification
		e.Reclassification = &v
	}
	if e.SemenExtraction != nil {
		v := *e.SemenExtraction
		e.SemenExtraction = &v
	}
	return e
}

package core

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"herdcore/internal/stock"
	"herdcore/pkg/domain"
)

var (
	day0     = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	clockNow = day0.AddDate(0, 0, 183).Add(12 * time.Hour)
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// onDay returns 08:00 on day n after day0.
func onDay(n int) time.Time { return day0.AddDate(0, 0, n).Add(8 * time.Hour) }

// fixture is a pig farm with three pens, a silo feeding the first two, a dose
// store and the virtual locations of the specie.
type fixture struct {
	t   *testing.T
	ctx context.Context
	svc *Service
}

func newFixture(t *testing.T, opts ...ServiceOption) *fixture {
	t.Helper()
	opts = append([]ServiceOption{WithClock(ClockFunc(func() time.Time { return clockNow }))}, opts...)
	f := &fixture{t: t, ctx: context.Background(), svc: NewInMemoryService(NewDefaultRulesEngine(), opts...)}
	f.seedCatalog()
	return f
}

func (f *fixture) check(what string, err error) {
	f.t.Helper()
	if err != nil {
		f.t.Fatalf("%s: %v", what, err)
	}
}

func (f *fixture) seedCatalog() {
	f.t.Helper()
	for _, u := range []UoM{
		{Base: Base{ID: "uom-kg"}, Name: "kg", Category: domain.UoMWeight, Factor: dec("1"), Digits: 3},
		{Base: Base{ID: "uom-g"}, Name: "g", Category: domain.UoMWeight, Factor: dec("0.001")},
		{Base: Base{ID: "uom-unit"}, Name: "unit", Category: domain.UoMUnit, Factor: dec("1")},
		{Base: Base{ID: "uom-cm3"}, Name: "cm3", Category: domain.UoMVolume, Factor: dec("1"), Digits: 1},
	} {
		_, _, err := f.svc.CreateUoM(f.ctx, u)
		f.check("uom "+u.ID, err)
	}
	for _, p := range []Product{
		{Base: Base{ID: "prod-male"}, Code: "BOAR", DefaultUoMID: "uom-unit", CostPrice: dec("250")},
		{Base: Base{ID: "prod-female"}, Code: "SOW", DefaultUoMID: "uom-unit", CostPrice: dec("180")},
		{Base: Base{ID: "prod-individual"}, Code: "PIG", DefaultUoMID: "uom-unit", CostPrice: dec("200")},
		{Base: Base{ID: "prod-group"}, Code: "PIGLETS", DefaultUoMID: "uom-unit", CostPrice: dec("30"), FarrowingPrice: dec("20.0")},
		{Base: Base{ID: "prod-fattening"}, Code: "FATTENING", DefaultUoMID: "uom-unit"},
		{Base: Base{ID: "prod-feed"}, Code: "FEED", DefaultUoMID: "uom-kg", CostPrice: dec("0.5")},
		{Base: Base{ID: "prod-semen"}, Code: "SEMEN", DefaultUoMID: "uom-cm3"},
		{Base: Base{ID: "prod-dose"}, Code: "DOSE", DefaultUoMID: "uom-unit", CostPrice: dec("4"), ExpirationDays: 3},
	} {
		_, _, err := f.svc.CreateProduct(f.ctx, p)
		f.check("product "+p.ID, err)
	}
	for _, s := range []Sequence{
		{Base: Base{ID: "seq-male"}, Prefix: "M", Padding: 4},
		{Base: Base{ID: "seq-female"}, Prefix: "F", Padding: 4},
		{Base: Base{ID: "seq-individual"}, Prefix: "I", Padding: 4},
		{Base: Base{ID: "seq-group"}, Prefix: "G", Padding: 4},
		{Base: Base{ID: "seq-semen"}, Prefix: "S", Padding: 4},
		{Base: Base{ID: "seq-dose"}, Prefix: "D", Padding: 4},
		{Base: Base{ID: "seq-order"}, Prefix: "EO", Padding: 4},
	} {
		_, _, err := f.svc.CreateSequence(f.ctx, s)
		f.check("sequence "+s.ID, err)
	}
	for _, loc := range []Location{
		{Base: Base{ID: "farm"}, Name: "Home farm", Type: domain.LocationWarehouse},
		{Base: Base{ID: "farm-prod"}, Name: "Production", Type: domain.LocationProduction, WarehouseID: "farm"},
		{Base: Base{ID: "farm-store"}, Name: "Dose store", Type: domain.LocationStorage, WarehouseID: "farm"},
		{Base: Base{ID: "L1"}, Name: "Pen 1", Type: domain.LocationStorage, WarehouseID: "farm"},
		{Base: Base{ID: "L2"}, Name: "Pen 2", Type: domain.LocationStorage, WarehouseID: "farm"},
		{Base: Base{ID: "L3"}, Name: "Pen 3", Type: domain.LocationStorage, WarehouseID: "farm"},
		{Base: Base{ID: "silo"}, Name: "Silo", Type: domain.LocationStorage, WarehouseID: "farm", Silo: true, LocationsToFed: []string{"L1", "L2"}},
		{Base: Base{ID: "supplier"}, Name: "Suppliers", Type: domain.LocationSupplier},
		{Base: Base{ID: "customer"}, Name: "Customers", Type: domain.LocationCustomer},
		{Base: Base{ID: "removed"}, Name: "Removed", Type: domain.LocationLostFound, WarehouseID: "farm"},
		{Base: Base{ID: "foster"}, Name: "Foster", Type: domain.LocationLostFound, WarehouseID: "farm"},
		{Base: Base{ID: "lost"}, Name: "Lost", Type: domain.LocationLostFound, WarehouseID: "farm"},
		{Base: Base{ID: "feed-lost"}, Name: "Feed lost", Type: domain.LocationLostFound, WarehouseID: "farm"},
	} {
		_, _, err := f.svc.CreateLocation(f.ctx, loc)
		f.check("location "+loc.ID, err)
	}
	_, _, err := f.svc.UpdateLocation(f.ctx, "farm", func(l *Location) error {
		l.ProductionLocationID = "farm-prod"
		l.StorageLocationID = "farm-store"
		return nil
	})
	f.check("link farm", err)

	_, _, err = f.svc.CreateSpecie(f.ctx, Specie{
		Base:                       Base{ID: "pig"},
		Name:                       "Pig",
		MaleEnabled:                true,
		FemaleEnabled:              true,
		IndividualEnabled:          true,
		GroupEnabled:               true,
		MaleProductID:              "prod-male",
		FemaleProductID:            "prod-female",
		IndividualProductID:        "prod-individual",
		GroupProductID:             "prod-group",
		SemenProductID:             "prod-semen",
		RemovedLocationID:          "removed",
		FosterLocationID:           "foster",
		LostFoundLocationID:        "lost",
		FeedLostFoundLocationID:    "feed-lost",
		ReclassificationProductIDs: []string{"prod-fattening"},
	})
	f.check("specie", err)
	_, _, err = f.svc.CreateBreed(f.ctx, Breed{Base: Base{ID: "breed-lw"}, SpecieID: "pig", Name: "LW"})
	f.check("breed", err)
	_, _, err = f.svc.CreateFarmLine(f.ctx, FarmLine{
		Base:                 Base{ID: "line"},
		SpecieID:             "pig",
		FarmID:               "farm",
		HasMale:              true,
		HasFemale:            true,
		HasIndividual:        true,
		HasGroup:             true,
		MaleSequenceID:       "seq-male",
		FemaleSequenceID:     "seq-female",
		IndividualSequenceID: "seq-individual",
		GroupSequenceID:      "seq-group",
		SemenLotSequenceID:   "seq-semen",
		DoseLotSequenceID:    "seq-dose",
		EventOrderSequenceID: "seq-order",
	})
	f.check("farm line", err)
	_, _, err = f.svc.CreateBOM(f.ctx, BOM{
		Base:            Base{ID: "bom-dose"},
		Name:            "100 cm3 dose",
		OutputProductID: "prod-dose",
		OutputUoMID:     "uom-unit",
		OutputQuantity:  dec("1"),
		Inputs:          []domain.BOMLine{{ProductID: "prod-semen", UoMID: "uom-cm3", Quantity: dec("100")}},
	})
	f.check("bom", err)

	_, _, err = f.svc.PostMove(f.ctx, stock.MoveRequest{
		ProductID:      "prod-dose",
		Quantity:       dec("50"),
		FromLocationID: "supplier",
		ToLocationID:   "farm-store",
		EffectiveDate:  day0.AddDate(0, 0, -10),
		UnitPrice:      dec("4"),
	})
	f.check("dose stock", err)
}

func (f *fixture) animal(typ AnimalType, loc string, at time.Time) Animal {
	f.t.Helper()
	a, _, err := f.svc.CreateAnimal(f.ctx, Animal{Type: typ, SpecieID: "pig", BreedID: "breed-lw", InitialLocationID: loc, ArrivalDate: at})
	f.check("create "+string(typ), err)
	return a
}

func (f *fixture) group(loc string, qty int, at time.Time) AnimalGroup {
	f.t.Helper()
	g, _, err := f.svc.CreateGroup(f.ctx, AnimalGroup{SpecieID: "pig", BreedID: "breed-lw", InitialLocationID: loc, InitialQuantity: qty, ArrivalDate: at})
	f.check("create group", err)
	return g
}

// draft stores ev as a draft event.
func (f *fixture) draft(ev Event) Event {
	f.t.Helper()
	created, _, err := f.svc.CreateEvent(f.ctx, ev)
	f.check("create "+string(ev.Kind)+" event", err)
	return created
}

// validated creates and validates ev.
func (f *fixture) validated(ev Event) Event {
	f.t.Helper()
	created := f.draft(ev)
	done, _, err := f.svc.ValidateEvent(f.ctx, created.ID)
	f.check("validate "+string(ev.Kind)+" event", err)
	return done
}

// validate creates ev and returns the validation error.
func (f *fixture) validate(ev Event) error {
	f.t.Helper()
	created := f.draft(ev)
	_, _, err := f.svc.ValidateEvent(f.ctx, created.ID)
	return err
}

func (f *fixture) locationOf(animalID string) string {
	f.t.Helper()
	loc, ok, err := f.svc.AnimalLocation(f.ctx, animalID, time.Time{})
	f.check("animal location", err)
	if !ok {
		return ""
	}
	return loc
}

func (f *fixture) getAnimal(id string) Animal {
	f.t.Helper()
	a, err := f.svc.GetAnimal(f.ctx, id)
	f.check("get animal", err)
	return a
}

func (f *fixture) getGroup(id string) AnimalGroup {
	f.t.Helper()
	g, err := f.svc.GetGroup(f.ctx, id)
	f.check("get group", err)
	return g
}

func (f *fixture) getEvent(id string) Event {
	f.t.Helper()
	ev, err := f.svc.GetEvent(f.ctx, id)
	f.check("get event", err)
	return ev
}

func (f *fixture) groupLocations(id string) map[string]int {
	f.t.Helper()
	out, err := f.svc.GroupLocations(f.ctx, id, time.Time{})
	f.check("group locations", err)
	return out
}

func (f *fixture) cycle(animalID string) FemaleCycle {
	f.t.Helper()
	a := f.getAnimal(animalID)
	var c FemaleCycle
	err := f.svc.Store().View(f.ctx, func(v TransactionView) error {
		var ok bool
		if c, ok = v.Cycles().Get(a.CurrentCycleID); !ok {
			return notFound(domain.EntityCycle, a.CurrentCycleID)
		}
		return nil
	})
	f.check("current cycle", err)
	return c
}

func (f *fixture) stats(cycleID string) CycleStats {
	f.t.Helper()
	st, err := f.svc.CycleStats(f.ctx, cycleID)
	f.check("cycle stats", err)
	return st
}

func (f *fixture) quantity(q stock.Query) decimal.Decimal {
	f.t.Helper()
	var out decimal.Decimal
	err := f.svc.Store().View(f.ctx, func(v TransactionView) error {
		var err error
		out, err = stock.NewReader(v).Quantity(q)
		return err
	})
	f.check("quantity", err)
	return out
}

func (f *fixture) move(id string) Move {
	f.t.Helper()
	var m Move
	err := f.svc.Store().View(f.ctx, func(v TransactionView) error {
		var ok bool
		if m, ok = v.Moves().Get(id); !ok {
			return notFound(domain.EntityMove, id)
		}
		return nil
	})
	f.check("get move", err)
	return m
}

func (f *fixture) lot(id string) Lot {
	f.t.Helper()
	var l Lot
	err := f.svc.Store().View(f.ctx, func(v TransactionView) error {
		var ok bool
		if l, ok = v.Lots().Get(id); !ok {
			return notFound(domain.EntityLot, id)
		}
		return nil
	})
	f.check("get lot", err)
	return l
}

func insemination(femaleID string, at time.Time) Event {
	return Event{Kind: domain.EventInsemination, AnimalID: femaleID, Timestamp: at, Insemination: &domain.InseminationPayload{DoseProductID: "prod-dose"}}
}

func diagnosis(femaleID string, at time.Time, result domain.DiagnosisResult) Event {
	return Event{Kind: domain.EventPregnancyDiagnosis, AnimalID: femaleID, Timestamp: at, Diagnosis: &domain.DiagnosisPayload{Result: result}}
}

func farrowing(femaleID string, at time.Time, live, stillborn, mummified int) Event {
	return Event{Kind: domain.EventFarrowing, AnimalID: femaleID, Timestamp: at, Farrowing: &domain.FarrowingPayload{Live: live, Stillborn: stillborn, Mummified: mummified}}
}

// lactating places a female at loc and takes her through insemination,
// a positive diagnosis and a farrowing of live piglets on day 115. It returns
// the female and the farrowing event.
func (f *fixture) lactating(loc string, live int) (Animal, Event) {
	f.t.Helper()
	female := f.animal(domain.AnimalFemale, loc, onDay(0))
	f.validated(insemination(female.ID, onDay(1)))
	f.validated(diagnosis(female.ID, onDay(30), domain.DiagnosisPositive))
	ev := f.validated(farrowing(female.ID, onDay(115), live, 0, 0))
	return f.getAnimal(female.ID), ev
}

func expectCode(t *testing.T, err error, code domain.ErrorCode) {
	t.Helper()
	if !domain.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

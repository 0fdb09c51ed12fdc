package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"herdcore/internal/stock"
	"herdcore/pkg/domain"
)

var (
	noDateBound time.Time
	one         = decimal.NewFromInt(1)
)

// reader bundles the lookups shared by queries and transactions.
type reader struct {
	view  TransactionView
	stock *stock.Reader
	now   time.Time
}

func newReader(view TransactionView, now time.Time) *reader {
	return &reader{view: view, stock: stock.NewReader(view), now: now}
}

func notFound(entity EntityType, id string) error {
	return ErrNotFound{Entity: entity, ID: id}
}

func (r *reader) specie(id string) (Specie, error) {
	v, ok := r.view.Species().Get(id)
	if !ok {
		return Specie{}, notFound(domain.EntitySpecie, id)
	}
	return v, nil
}

func (r *reader) location(id string) (Location, error) {
	v, ok := r.view.Locations().Get(id)
	if !ok {
		return Location{}, notFound(domain.EntityLocation, id)
	}
	return v, nil
}

func (r *reader) product(id string) (Product, error) {
	v, ok := r.view.Products().Get(id)
	if !ok {
		return Product{}, notFound(domain.EntityProduct, id)
	}
	return v, nil
}

func (r *reader) uom(id string) (UoM, error) {
	v, ok := r.view.UoMs().Get(id)
	if !ok {
		return UoM{}, notFound(domain.EntityUoM, id)
	}
	return v, nil
}

func (r *reader) lot(id string) (Lot, error) {
	v, ok := r.view.Lots().Get(id)
	if !ok {
		return Lot{}, notFound(domain.EntityLot, id)
	}
	return v, nil
}

func (r *reader) bom(id string) (BOM, error) {
	v, ok := r.view.BOMs().Get(id)
	if !ok {
		return BOM{}, notFound(domain.EntityBOM, id)
	}
	return v, nil
}

func (r *reader) animal(id string) (Animal, error) {
	v, ok := r.view.Animals().Get(id)
	if !ok {
		return Animal{}, notFound(domain.EntityAnimal, id)
	}
	return v, nil
}

func (r *reader) group(id string) (AnimalGroup, error) {
	v, ok := r.view.Groups().Get(id)
	if !ok {
		return AnimalGroup{}, notFound(domain.EntityGroup, id)
	}
	return v, nil
}

func (r *reader) event(id string) (Event, error) {
	v, ok := r.view.Events().Get(id)
	if !ok {
		return Event{}, notFound(domain.EntityEvent, id)
	}
	return v, nil
}

func (r *reader) cycle(id string) (FemaleCycle, error) {
	v, ok := r.view.Cycles().Get(id)
	if !ok {
		return FemaleCycle{}, notFound(domain.EntityCycle, id)
	}
	return v, nil
}

func (r *reader) feedInventory(id string) (FeedInventory, error) {
	v, ok := r.view.FeedInventories().Get(id)
	if !ok {
		return FeedInventory{}, notFound(domain.EntityFeedInventory, id)
	}
	return v, nil
}

func (r *reader) eventOrder(id string) (EventOrder, error) {
	v, ok := r.view.EventOrders().Get(id)
	if !ok {
		return EventOrder{}, notFound(domain.EntityEventOrder, id)
	}
	return v, nil
}

// referenceUoM returns the unit of a category whose factor is one.
func (r *reader) referenceUoM(cat domain.UoMCategory) (UoM, error) {
	for _, u := range r.view.UoMs().List() {
		if u.Category == cat && u.Factor.Equal(one) {
			return u, nil
		}
	}
	return UoM{}, domain.Errorf(domain.CodeInvalidConfiguration, "no reference %s unit", cat)
}

// warehouse resolves the farm a location belongs to. A warehouse is its own
// farm.
func (r *reader) warehouse(locationID string) (Location, error) {
	loc, err := r.location(locationID)
	if err != nil {
		return Location{}, err
	}
	if loc.Type == domain.LocationWarehouse {
		return loc, nil
	}
	if loc.WarehouseID == "" {
		return Location{}, domain.Errorf(domain.CodeInvalidConfiguration, "location %s has no warehouse", loc.Name)
	}
	return r.location(loc.WarehouseID)
}

func (r *reader) productionLocation(farmID string) (string, error) {
	farm, err := r.location(farmID)
	if err != nil {
		return "", err
	}
	if farm.ProductionLocationID == "" {
		return "", domain.Errorf(domain.CodeMissingProductionLocation, "farm %s has no production location", farm.Name)
	}
	return farm.ProductionLocationID, nil
}

// farmLine returns the line enabling animal type t for (specie, farm). The
// first matching line wins when several exist.
func (r *reader) farmLine(specieID, farmID string, t AnimalType) (FarmLine, error) {
	for _, line := range r.view.FarmLines().List() {
		if line.SpecieID == specieID && line.FarmID == farmID && line.Has(t) {
			return line, nil
		}
	}
	return FarmLine{}, domain.Errorf(domain.CodeNoFarmLine, "no farm line for %s in specie %s at farm %s", t, specieID, farmID)
}

// anyFarmLine returns the first line of (specie, farm) regardless of type.
func (r *reader) anyFarmLine(specieID, farmID string) (FarmLine, bool) {
	for _, line := range r.view.FarmLines().List() {
		if line.SpecieID == specieID && line.FarmID == farmID {
			return line, true
		}
	}
	return FarmLine{}, false
}

// subjectLot returns the lot of an event's animal or group.
func (r *reader) subjectLot(ev Event) (Lot, error) {
	if ev.AnimalType == domain.AnimalGroupType {
		g, err := r.group(ev.GroupID)
		if err != nil {
			return Lot{}, err
		}
		return r.lot(g.LotID)
	}
	a, err := r.animal(ev.AnimalID)
	if err != nil {
		return Lot{}, err
	}
	return r.lot(a.LotID)
}

// lotCount returns the whole-unit quantity of a lot at a location.
func (r *reader) lotCount(lotID, locationID string, at time.Time) (int, error) {
	qty, err := r.stock.LotQuantity(lotID, []string{locationID}, at)
	if err != nil {
		return 0, err
	}
	return int(qty.IntPart()), nil
}

// storageSum returns the quantity of a lot across storage locations.
func (r *reader) storageSum(lotID string, at time.Time) (int, error) {
	positions, err := r.stock.ProductsByLocation(stock.Query{LotIDs: []string{lotID}, At: at})
	if err != nil {
		return 0, err
	}
	total := decimal.Zero
	for k, v := range positions {
		loc, ok := r.view.Locations().Get(k.LocationID)
		if ok && loc.Type == domain.LocationStorage {
			total = total.Add(v)
		}
	}
	return int(total.IntPart()), nil
}

// lotLocation returns the stock-bearing location holding a lot at time at.
// When the lot is split, the location with the largest quantity wins; ties go
// to the smallest id.
func (r *reader) lotLocation(lotID string, at time.Time) (string, bool, error) {
	positions, err := r.stock.LotLocations(lotID, at)
	if err != nil {
		return "", false, err
	}
	ids := make([]string, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return "", false, nil
	}
	sort.Strings(ids)
	best := ids[0]
	for _, id := range ids[1:] {
		if positions[id].GreaterThan(positions[best]) {
			best = id
		}
	}
	return best, true, nil
}

// cyclesOf returns a female's cycles ordered by sequence.
func (r *reader) cyclesOf(animalID string) []FemaleCycle {
	var out []FemaleCycle
	for _, c := range r.view.Cycles().List() {
		if c.AnimalID == animalID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func (r *reader) currentCycle(animalID string) (FemaleCycle, bool) {
	cycles := r.cyclesOf(animalID)
	if len(cycles) == 0 {
		return FemaleCycle{}, false
	}
	return cycles[len(cycles)-1], true
}

// validatedEvent returns the event when it exists and is validated.
func (r *reader) validatedEvent(id string) (Event, bool) {
	if id == "" {
		return Event{}, false
	}
	ev, ok := r.view.Events().Get(id)
	if !ok || ev.State != domain.EventValidated {
		return Event{}, false
	}
	return ev, true
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return dayOf(t).Add(24*time.Hour - time.Nanosecond)
}

package core

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"herdcore/pkg/domain"
)

var transformations = map[AnimalType][]AnimalType{
	domain.AnimalGroupType:  {domain.AnimalMale, domain.AnimalFemale, domain.AnimalIndividual, domain.AnimalGroupType},
	domain.AnimalMale:       {domain.AnimalIndividual, domain.AnimalGroupType},
	domain.AnimalFemale:     {domain.AnimalIndividual, domain.AnimalGroupType},
	domain.AnimalIndividual: {domain.AnimalMale, domain.AnimalFemale, domain.AnimalGroupType},
}

func (t *txn) validateTransformation(ev *Event) error {
	p := ev.Transformation
	if !slices.Contains(transformations[ev.AnimalType], p.ToAnimalType) {
		return domain.Errorf(domain.CodeInvalidTransformation, "%s cannot become %s", ev.AnimalType, p.ToAnimalType)
	}
	sp, err := t.specie(ev.SpecieID)
	if err != nil {
		return err
	}
	if !sp.Enabled(p.ToAnimalType) {
		return domain.Errorf(domain.CodeInvalidTransformation, "specie %s does not enable %s", sp.Name, p.ToAnimalType)
	}
	qty := p.Quantity
	switch {
	case ev.AnimalType.IsIndividual():
		qty = 1
	case p.ToAnimalType.IsIndividual():
		if qty == 0 {
			qty = 1
		}
		if qty != 1 {
			return domain.Errorf(domain.CodeInvalidTransformation, "a group becomes one %s at a time, got %d", p.ToAnimalType, qty)
		}
	case qty < 1:
		return domain.Errorf(domain.CodeInvalidQuantity, "transformation quantity must be positive, got %d", qty)
	}
	p.Quantity = qty

	to, err := t.location(p.ToLocationID)
	if err != nil {
		return err
	}
	if to.Type != domain.LocationStorage {
		return domain.Errorf(domain.CodeInvalidAnimalDestination, "%s is a %s location", to.Name, to.Type)
	}
	if _, err := t.checkDestination(ev.SpecieID, p.ToAnimalType, to.ID); err != nil {
		return err
	}
	lot, err := t.subjectLot(*ev)
	if err != nil {
		return err
	}
	if err := t.requirePresence(*ev, lot, ev.LocationID, qty, ev.Timestamp); err != nil {
		return err
	}
	production, err := t.productionLocation(ev.FarmID)
	if err != nil {
		return err
	}

	price := lot.CostPrice()
	out, err := t.postAnimalMove(lot, qty, ev.LocationID, production, ev.Timestamp, price, eventOrigin(ev.ID))
	if err != nil {
		return err
	}
	p.OutMoveID = out.ID
	ev.MoveIDs = append(ev.MoveIDs, out.ID)

	in, err := t.transformationTarget(ev, sp, qty, production, price)
	if err != nil {
		return err
	}
	p.InMoveID = in.ID
	ev.MoveIDs = append(ev.MoveIDs, in.ID)

	if ev.AnimalType == domain.AnimalGroupType {
		return t.settleGroup(ev.GroupID, ev.Timestamp)
	}
	return t.deactivateAnimal(ev.AnimalID, ev.Timestamp, "transformation")
}

// transformationTarget moves the transformed animals into an existing
// destination group, or into a new group or animal carrying the source cost.
// It returns the move entering the destination.
func (t *txn) transformationTarget(ev *Event, sp Specie, qty int, production string, price decimal.Decimal) (Move, error) {
	p := ev.Transformation
	origin := eventOrigin(ev.ID)
	if p.ToAnimalType == domain.AnimalGroupType && p.ToGroupID != "" {
		g, err := t.group(p.ToGroupID)
		if err != nil {
			return Move{}, err
		}
		if g.SpecieID != sp.ID || !g.Active {
			return Move{}, domain.Errorf(domain.CodeInvalidTransformation, "group %s cannot receive animals", g.Number)
		}
		lot, err := t.lot(g.LotID)
		if err != nil {
			return Move{}, err
		}
		return t.postAnimalMove(lot, qty, production, p.ToLocationID, ev.Timestamp, lot.CostPrice(), origin)
	}

	breedID := ""
	var birthdate *time.Time
	if a, err := t.animal(ev.AnimalID); err == nil {
		breedID, birthdate = a.BreedID, a.Birthdate
	} else if g, err := t.group(ev.GroupID); err == nil {
		breedID = g.BreedID
	}
	arr := arrival{
		from:     production,
		costLine: &domain.LotCostLine{Category: "transformation", UnitPrice: price, Origin: origin},
		origin:   origin,
	}
	var lotID string
	if p.ToAnimalType == domain.AnimalGroupType {
		g, err := t.createGroup(AnimalGroup{
			SpecieID:          sp.ID,
			BreedID:           breedID,
			Origin:            domain.OriginRaised,
			ArrivalDate:       ev.Timestamp,
			InitialLocationID: p.ToLocationID,
			InitialQuantity:   qty,
		}, arr)
		if err != nil {
			return Move{}, err
		}
		p.ToGroupID = g.ID
		lotID = g.LotID
	} else {
		a, err := t.createAnimal(Animal{
			Type:              p.ToAnimalType,
			SpecieID:          sp.ID,
			BreedID:           breedID,
			Origin:            domain.OriginRaised,
			ArrivalDate:       ev.Timestamp,
			InitialLocationID: p.ToLocationID,
			Birthdate:         birthdate,
		}, arr)
		if err != nil {
			return Move{}, err
		}
		p.ToAnimalID = a.ID
		lotID = a.LotID
	}
	return t.arrivalMove(lotID, origin)
}

// arrivalMove returns the latest done move of a lot posted for origin.
func (t *txn) arrivalMove(lotID string, origin domain.Origin) (Move, error) {
	moves := t.stock.DoneMoves(func(m Move) bool { return m.LotID == lotID && m.Origin == origin })
	if len(moves) == 0 {
		return Move{}, domain.Errorf(domain.CodeNotFound, "no move of lot %s for %s %s", lotID, origin.Kind, origin.ID)
	}
	return moves[len(moves)-1], nil
}

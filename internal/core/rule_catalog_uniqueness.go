package core

import (
	"context"
	"fmt"

	"herdcore/pkg/domain"
)

// NewCatalogUniquenessRule keeps catalog identities unambiguous: product codes
// are unique, a semen product belongs to one specie and every specie virtual
// location is a lost-and-found.
func NewCatalogUniquenessRule() domain.Rule {
	return catalogUniquenessRule{}
}

type catalogUniquenessRule struct{}

func (catalogUniquenessRule) Name() string { return "catalog_uniqueness" }

func (r catalogUniquenessRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	if len(domain.ChangedIDs(changes, domain.EntityProduct)) > 0 {
		codes := make(map[string]string)
		for _, p := range view.Products().List() {
			if p.Code == "" {
				continue
			}
			if other, dup := codes[p.Code]; dup {
				res.Violations = append(res.Violations, r.violation(domain.EntityProduct, p.ID, fmt.Sprintf("product code %q is used by %s and %s", p.Code, other, p.ID)))
				continue
			}
			codes[p.Code] = p.ID
		}
	}
	if len(domain.ChangedIDs(changes, domain.EntitySpecie)) == 0 {
		return res, nil
	}
	semen := make(map[string]string)
	for _, s := range view.Species().List() {
		if s.SemenProductID != "" {
			if other, dup := semen[s.SemenProductID]; dup {
				res.Violations = append(res.Violations, r.violation(domain.EntitySpecie, s.ID, fmt.Sprintf("semen product %s is shared by species %s and %s", s.SemenProductID, other, s.Name)))
			} else {
				semen[s.SemenProductID] = s.Name
			}
		}
		for _, id := range []string{s.RemovedLocationID, s.FosterLocationID, s.LostFoundLocationID, s.FeedLostFoundLocationID} {
			if id == "" {
				continue
			}
			loc, ok := view.Locations().Get(id)
			if !ok || loc.Type != domain.LocationLostFound {
				res.Violations = append(res.Violations, r.violation(domain.EntitySpecie, s.ID, fmt.Sprintf("specie %s virtual location %s is not a lost_found location", s.Name, id)))
			}
		}
	}
	return res, nil
}

func (r catalogUniquenessRule) violation(entity domain.EntityType, id, msg string) domain.Violation {
	return domain.Violation{
		Rule:     r.Name(),
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   entity,
		EntityID: id,
	}
}

package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"herdcore/internal/stock"
	"herdcore/pkg/domain"
)

// txn is the write side of one service operation.
type txn struct {
	*reader
	tx     Transaction
	ledger *stock.Ledger
}

func newTxn(tx Transaction, now time.Time) *txn {
	ledger := stock.NewLedger(tx)
	return &txn{
		reader: &reader{view: tx.Snapshot(), stock: ledger.Reader, now: now},
		tx:     tx,
		ledger: ledger,
	}
}

// nextNumber allocates the next value of a sequence.
func (t *txn) nextNumber(sequenceID string) (string, error) {
	if sequenceID == "" {
		return "", domain.Errorf(domain.CodeInvalidConfiguration, "no sequence configured")
	}
	var number string
	_, err := t.tx.Sequences().Update(sequenceID, func(s *Sequence) error {
		n := s.NextNumber
		if n < 1 {
			n = 1
		}
		digits := fmt.Sprintf("%d", n)
		if pad := s.Padding - len(digits); pad > 0 {
			digits = strings.Repeat("0", pad) + digits
		}
		number = s.Prefix + digits
		s.NextNumber = n + 1
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("sequence %s: %w", sequenceID, err)
	}
	return number, nil
}

func (t *txn) checkTimestamp(ts time.Time) error {
	if ts.After(t.now) {
		return domain.Errorf(domain.CodeTimestampInFuture, "timestamp %s is after %s", ts.Format(time.RFC3339), t.now.Format(time.RFC3339))
	}
	return nil
}

func (t *txn) addCostLine(lotID string, line domain.LotCostLine) error {
	_, err := t.tx.Lots().Update(lotID, func(l *Lot) error {
		l.CostLines = append(l.CostLines, line)
		return nil
	})
	return err
}

func eventOrigin(id string) domain.Origin {
	return domain.Origin{Kind: domain.OriginEvent, ID: id}
}

// postAnimalMove posts a move of count units of an animal lot.
func (t *txn) postAnimalMove(lot Lot, count int, from, to string, at time.Time, price decimal.Decimal, origin domain.Origin) (Move, error) {
	return t.ledger.Post(stock.MoveRequest{
		ProductID:      lot.ProductID,
		Quantity:       decimal.NewFromInt(int64(count)),
		FromLocationID: from,
		ToLocationID:   to,
		LotID:          lot.ID,
		EffectiveDate:  at,
		UnitPrice:      price,
		Origin:         origin,
	})
}

// requirePresence fails unless at least count units of the subject lot stand
// at locationID at time at.
func (t *txn) requirePresence(ev Event, lot Lot, locationID string, count int, at time.Time) error {
	have, err := t.lotCount(lot.ID, locationID, at)
	if err != nil {
		return err
	}
	if have >= count {
		return nil
	}
	if ev.AnimalType == domain.AnimalGroupType {
		return domain.Errorf(domain.CodeGroupNotInLocation, "group %s has %d of %d animals at %s on %s", lot.Number, have, count, locationID, at.Format(time.DateOnly))
	}
	return domain.Errorf(domain.CodeAnimalNotInLocation, "animal %s is not at %s on %s", lot.Number, locationID, at.Format(time.DateOnly))
}

// deactivateAnimal marks a single animal as gone at ts.
func (t *txn) deactivateAnimal(id string, ts time.Time, reason string) error {
	_, err := t.tx.Animals().Update(id, func(a *Animal) error {
		when := ts
		a.Active = false
		a.RemovalDate = &when
		a.RemovalReason = reason
		return nil
	})
	if err != nil {
		return err
	}
	return t.refreshFemale(id)
}

// settleGroup deactivates a group once its storage sum reaches zero.
func (t *txn) settleGroup(id string, ts time.Time) error {
	g, err := t.group(id)
	if err != nil {
		return err
	}
	sum, err := t.storageSum(g.LotID, noDateBound)
	if err != nil {
		return err
	}
	if sum > 0 || !g.Active {
		return nil
	}
	_, err = t.tx.Groups().Update(id, func(g *AnimalGroup) error {
		when := ts
		g.Active = false
		g.RemovalDate = &when
		return nil
	})
	return err
}

// restoreSubject reactivates an animal or group whose exit was cancelled.
func (t *txn) restoreSubject(ev Event) error {
	if ev.AnimalType == domain.AnimalGroupType {
		_, err := t.tx.Groups().Update(ev.GroupID, func(g *AnimalGroup) error {
			g.Active = true
			g.RemovalDate = nil
			return nil
		})
		return err
	}
	_, err := t.tx.Animals().Update(ev.AnimalID, func(a *Animal) error {
		a.Active = true
		a.RemovalDate = nil
		a.RemovalReason = ""
		return nil
	})
	if err != nil {
		return err
	}
	return t.refreshFemale(ev.AnimalID)
}

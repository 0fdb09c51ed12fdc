package domain

import (
	"context"
	"time"
)

// Entity is the constraint satisfied by every stored record: a pointer to the
// record exposes its Base and the record can deep-copy itself.
type Entity[T any] interface {
	*T
	Meta() *Base
	Clone() T
}

// ReadTable offers read access to one entity kind. Results are copies;
// List is ordered by id, which follows creation order for generated ids.
type ReadTable[T any] interface {
	Get(id string) (T, bool)
	List() []T
}

// Table adds mutation to ReadTable. Mutations are recorded as Changes and
// only become visible outside the transaction on commit.
type Table[T any] interface {
	ReadTable[T]
	Create(T) (T, error)
	Update(id string, mutator func(*T) error) (T, error)
	Delete(id string) error
}

// TransactionView provides read-only access to snapshot data for rules and
// queries.
type TransactionView interface {
	UoMs() ReadTable[UoM]
	Products() ReadTable[Product]
	Locations() ReadTable[Location]
	Sequences() ReadTable[Sequence]
	Species() ReadTable[Specie]
	Breeds() ReadTable[Breed]
	FarmLines() ReadTable[FarmLine]
	BOMs() ReadTable[BOM]
	Lots() ReadTable[Lot]
	Moves() ReadTable[Move]
	Productions() ReadTable[Production]
	QualityTests() ReadTable[QualityTest]
	Animals() ReadTable[Animal]
	Groups() ReadTable[AnimalGroup]
	Weights() ReadTable[WeightRecord]
	Cycles() ReadTable[FemaleCycle]
	Events() ReadTable[Event]
	Doses() ReadTable[Dose]
	FeedInventories() ReadTable[FeedInventory]
	EventOrders() ReadTable[EventOrder]
}

// Transaction exposes the tables a persistence implementation must support
// within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	// Now is the transaction clock, shared by every record it stamps.
	Now() time.Time
	// LockAnimal takes an exclusive lock on an animal for the rest of the
	// transaction.
	LockAnimal(id string)
	UoMs() Table[UoM]
	Products() Table[Product]
	Locations() Table[Location]
	Sequences() Table[Sequence]
	Species() Table[Specie]
	Breeds() Table[Breed]
	FarmLines() Table[FarmLine]
	BOMs() Table[BOM]
	Lots() Table[Lot]
	Moves() Table[Move]
	Productions() Table[Production]
	QualityTests() Table[QualityTest]
	Animals() Table[Animal]
	Groups() Table[AnimalGroup]
	Weights() Table[WeightRecord]
	Cycles() Table[FemaleCycle]
	Events() Table[Event]
	Doses() Table[Dose]
	FeedInventories() Table[FeedInventory]
	EventOrders() Table[EventOrder]
}

// PersistentStore is a minimal abstraction over durable backends.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	RulesEngine() *RulesEngine
}

package tilemap

import (
	"context"
	"fmt"
)

// Store is the storage collaborator the materializer writes through. The
// Postgres Repository is the production implementation; tests use an
// in-memory fake.
type Store interface {
	Begin(ctx context.Context) (StoreTx, error)
}

// StoreTx is one atomic materialization transaction. Insert methods assign
// the record's identifier in place. Either Commit or Rollback must be
// called exactly once; Rollback after Commit is a no-op.
type StoreTx interface {
	DeleteMapByName(ctx context.Context, name string) error
	InsertMap(ctx context.Context, m *Map) error
	InsertTileset(ctx context.Context, ts *Tileset) error
	InsertLayer(ctx context.Context, l *Layer) error
	InsertTiles(ctx context.Context, tiles []Tile) error
	InsertObject(ctx context.Context, o *Object) error
	InsertProperties(ctx context.Context, props []Property) error
	Commit() error
	Rollback() error
}

// MaterializeError wraps a storage rejection during materialization. The
// failed transaction is rolled back before the error propagates, so readers
// never observe a partial load.
type MaterializeError struct {
	Op  string
	Err error
}

func (e *MaterializeError) Error() string {
	return fmt.Sprintf("materialize %s: %v", e.Op, e.Err)
}

func (e *MaterializeError) Unwrap() error {
	return e.Err
}

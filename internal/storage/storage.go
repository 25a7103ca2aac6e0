// Package storage defines the key-value store boundary shared by all
// backends. Keys are the canonical textual encodings of record ids and
// values are the canonical serialized records.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no record exists under the key.
var ErrNotFound = errors.New("record not found")

// Store is a durable mapping from string key to serialized record bytes.
// Single-key writes are atomic natively; Apply commits a multi-key batch
// as one unit, which is the only discipline cross-entity mutations need.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	Apply(ctx context.Context, batch *Batch) error
	CountPrefix(ctx context.Context, prefix string) (int, error)
	Close() error
}

// Op is one entry of a batch: either a put or a delete of a single key.
type Op struct {
	Key    string
	Value  []byte
	Delete bool
}

// Batch is an ordered set of writes applied atomically by Store.Apply.
type Batch struct {
	ops []Op
}

func (b *Batch) Put(key string, value []byte) {
	b.ops = append(b.ops, Op{Key: key, Value: value})
}

func (b *Batch) Delete(key string) {
	b.ops = append(b.ops, Op{Key: key, Delete: true})
}

func (b *Batch) Ops() []Op {
	return b.ops
}

func (b *Batch) Len() int {
	return len(b.ops)
}

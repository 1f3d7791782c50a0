package storage

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrOverlayClosed is returned when an overlay is used after Commit or Discard.
var ErrOverlayClosed = errors.New("overlay already committed or discarded")

// Overlay stages writes on top of a base DB. Reads see staged writes first
// and fall through to the base. Nothing reaches the base until Commit, which
// applies every staged write in one atomic batch. Discard drops them.
//
// An Overlay is not safe for concurrent use; the engine owns one per
// instruction.
type Overlay struct {
	base   DB
	staged map[string][]byte // nil value marks a delete
	done   bool
}

// NewOverlay creates an overlay over base. base must implement Batcher for
// Commit to be atomic.
func NewOverlay(base DB) *Overlay {
	return &Overlay{base: base, staged: make(map[string][]byte)}
}

// Get returns the staged value for key or falls through to the base.
func (o *Overlay) Get(key []byte) ([]byte, error) {
	if o.done {
		return nil, ErrOverlayClosed
	}
	if v, ok := o.staged[string(key)]; ok {
		if v == nil {
			return nil, ErrNotFound
		}
		return copyBytes(v), nil
	}
	return o.base.Get(key)
}

// Put stages a write.
func (o *Overlay) Put(key, value []byte) error {
	if o.done {
		return ErrOverlayClosed
	}
	v := make([]byte, len(value))
	copy(v, value)
	o.staged[string(key)] = v
	return nil
}

// Delete stages a delete.
func (o *Overlay) Delete(key []byte) error {
	if o.done {
		return ErrOverlayClosed
	}
	o.staged[string(key)] = nil
	return nil
}

// Has reports whether key exists in the staged view.
func (o *Overlay) Has(key []byte) (bool, error) {
	if o.done {
		return false, ErrOverlayClosed
	}
	if v, ok := o.staged[string(key)]; ok {
		return v != nil, nil
	}
	return o.base.Has(key)
}

// ForEach iterates the merged view of base and staged writes in key order.
func (o *Overlay) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	if o.done {
		return ErrOverlayClosed
	}
	merged := make(map[string][]byte)
	err := o.base.ForEach(prefix, func(key, value []byte) error {
		merged[string(key)] = value
		return nil
	})
	if err != nil {
		return err
	}
	p := string(prefix)
	for k, v := range o.staged {
		if !strings.HasPrefix(k, p) {
			continue
		}
		if v == nil {
			delete(merged, k)
		} else {
			merged[k] = copyBytes(v)
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), merged[k]); err != nil {
			return err
		}
	}
	return nil
}

// NewBatch returns a batch that stages into the overlay on Commit.
func (o *Overlay) NewBatch() Batch {
	return &directBatch{db: o}
}

// Dirty returns the number of staged writes.
func (o *Overlay) Dirty() int {
	return len(o.staged)
}

// Changes returns the staged keys in order. Deleted keys are included.
func (o *Overlay) Changes() [][]byte {
	keys := make([][]byte, 0, len(o.staged))
	for k := range o.staged {
		keys = append(keys, []byte(k))
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })
	return keys
}

// Commit writes every staged change to the base in a single batch.
func (o *Overlay) Commit() error {
	if o.done {
		return ErrOverlayClosed
	}
	o.done = true

	var batch Batch
	if b, ok := o.base.(Batcher); ok {
		batch = b.NewBatch()
	} else {
		batch = &directBatch{db: o.base}
	}
	for _, key := range o.Changes() {
		v := o.staged[string(key)]
		var err error
		if v == nil {
			err = batch.Delete(key)
		} else {
			err = batch.Put(key, v)
		}
		if err != nil {
			return fmt.Errorf("overlay stage: %w", err)
		}
	}
	o.staged = nil
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("overlay commit: %w", err)
	}
	return nil
}

// Discard drops all staged writes.
func (o *Overlay) Discard() {
	o.done = true
	o.staged = nil
}

// Close discards any uncommitted writes.
func (o *Overlay) Close() error {
	if !o.done {
		o.Discard()
	}
	return nil
}

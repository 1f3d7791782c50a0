package storage

// PrefixDB wraps a DB and prepends a fixed prefix to all keys.
// The runtime uses it to give the staking, token and engine tables their own
// keyspace inside one database (or one overlay).
type PrefixDB struct {
	inner  DB
	prefix []byte
}

// NewPrefixDB creates a new PrefixDB wrapping inner with the given prefix.
func NewPrefixDB(inner DB, prefix []byte) *PrefixDB {
	return &PrefixDB{inner: inner, prefix: copyBytes(prefix)}
}

// prefixed returns key with the prefix prepended.
func (p *PrefixDB) prefixed(key []byte) []byte {
	out := make([]byte, len(p.prefix)+len(key))
	copy(out, p.prefix)
	copy(out[len(p.prefix):], key)
	return out
}

// Get retrieves a value by key.
func (p *PrefixDB) Get(key []byte) ([]byte, error) {
	return p.inner.Get(p.prefixed(key))
}

// Put stores a key-value pair.
func (p *PrefixDB) Put(key, value []byte) error {
	return p.inner.Put(p.prefixed(key), value)
}

// Delete removes a key.
func (p *PrefixDB) Delete(key []byte) error {
	return p.inner.Delete(p.prefixed(key))
}

// Has checks if a key exists.
func (p *PrefixDB) Has(key []byte) (bool, error) {
	return p.inner.Has(p.prefixed(key))
}

// ForEach iterates over all keys with the given prefix (within the PrefixDB namespace).
// The callback receives keys with the PrefixDB prefix stripped, so callers see only
// their logical keyspace.
func (p *PrefixDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return p.inner.ForEach(p.prefixed(prefix), func(key, value []byte) error {
		return fn(key[len(p.prefix):], value)
	})
}

// Close is a no-op; the outer DB manages its own lifecycle.
func (p *PrefixDB) Close() error {
	return nil
}

// NewBatch creates a batch that prepends the prefix to all keys. Writes are
// atomic when the inner DB implements Batcher.
func (p *PrefixDB) NewBatch() Batch {
	batcher, ok := p.inner.(Batcher)
	if !ok {
		return &directBatch{db: p.inner, prefix: p.prefix}
	}
	return &prefixBatch{inner: batcher.NewBatch(), prefix: p.prefix}
}

type prefixBatch struct {
	inner  Batch
	prefix []byte
}

func (pb *prefixBatch) key(k []byte) []byte {
	out := make([]byte, len(pb.prefix)+len(k))
	copy(out, pb.prefix)
	copy(out[len(pb.prefix):], k)
	return out
}

func (pb *prefixBatch) Put(key, value []byte) error {
	return pb.inner.Put(pb.key(key), value)
}

func (pb *prefixBatch) Delete(key []byte) error {
	return pb.inner.Delete(pb.key(key))
}

func (pb *prefixBatch) Commit() error {
	return pb.inner.Commit()
}

// directBatch buffers writes and applies them one by one. Used only when the
// inner DB has no native batch.
type directBatch struct {
	db     DB
	prefix []byte
	ops    []batchOp
}

func (db *directBatch) Put(key, value []byte) error {
	db.ops = append(db.ops, newPutOp(append(copyBytes(db.prefix), key...), value))
	return nil
}

func (db *directBatch) Delete(key []byte) error {
	db.ops = append(db.ops, newDeleteOp(append(copyBytes(db.prefix), key...)))
	return nil
}

func (db *directBatch) Commit() error {
	for _, op := range db.ops {
		var err error
		if op.value == nil {
			err = db.db.Delete(op.key)
		} else {
			err = db.db.Put(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	db.ops = nil
	return nil
}

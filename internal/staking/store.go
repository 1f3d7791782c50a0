package staking

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-staking/internal/storage"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
)

// Key prefixes.
var (
	prefixPool      = []byte("p/")  // p/<pool(20)> -> Pool JSON
	prefixUser      = []byte("u/")  // u/<pool(20)><user(20)> -> User JSON
	prefixUserIndex = []byte("ui/") // ui/<user(20)> -> pool(20)
)

// errStopIteration ends a ForEach early.
var errStopIteration = errors.New("stop iteration")

// Store persists Pool and User records keyed by derived address.
// It caches nothing; every read goes to the underlying DB.
type Store struct {
	db storage.DB
}

// NewStore creates a staking account store.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// PutPool stores a pool record.
func (s *Store) PutPool(p *Pool) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("pool marshal: %w", err)
	}
	return s.db.Put(poolKey(p.Address), data)
}

// GetPool loads a pool. Returns ErrAccountNotFound if absent.
func (s *Store) GetPool(addr types.Address) (*Pool, error) {
	data, err := s.db.Get(poolKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, wrap(ErrAccountNotFound, "pool %s", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("pool get: %w", err)
	}
	var p Pool
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("pool unmarshal: %w", err)
	}
	return &p, nil
}

// HasPool checks whether a pool record exists.
func (s *Store) HasPool(addr types.Address) (bool, error) {
	return s.db.Has(poolKey(addr))
}

// DeletePool removes a pool record.
func (s *Store) DeletePool(addr types.Address) error {
	return s.db.Delete(poolKey(addr))
}

// ForEachPool iterates over every pool.
func (s *Store) ForEachPool(fn func(*Pool) error) error {
	return s.db.ForEach(prefixPool, func(_, value []byte) error {
		var p Pool
		if err := json.Unmarshal(value, &p); err != nil {
			return nil // Skip corrupt entries.
		}
		return fn(&p)
	})
}

// PutUser stores a user record and its address index.
func (s *Store) PutUser(u *User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("user marshal: %w", err)
	}
	if err := s.db.Put(userKey(u.Pool, u.Address), data); err != nil {
		return err
	}
	return s.db.Put(userIndexKey(u.Address), u.Pool.Bytes())
}

// GetUser loads the user record at addr within pool.
func (s *Store) GetUser(pool, addr types.Address) (*User, error) {
	data, err := s.db.Get(userKey(pool, addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, wrap(ErrAccountNotFound, "user %s", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("user get: %w", err)
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("user unmarshal: %w", err)
	}
	return &u, nil
}

// GetUserByAddress loads a user record by its address alone.
func (s *Store) GetUserByAddress(addr types.Address) (*User, error) {
	raw, err := s.db.Get(userIndexKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, wrap(ErrAccountNotFound, "user %s", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("user index get: %w", err)
	}
	if len(raw) != types.AddressSize {
		return nil, fmt.Errorf("user index: corrupt entry for %s", addr)
	}
	var pool types.Address
	copy(pool[:], raw)
	return s.GetUser(pool, addr)
}

// HasUser checks whether a user record exists in pool.
func (s *Store) HasUser(pool, addr types.Address) (bool, error) {
	return s.db.Has(userKey(pool, addr))
}

// DeleteUser removes a user record and its index.
func (s *Store) DeleteUser(pool, addr types.Address) error {
	if err := s.db.Delete(userKey(pool, addr)); err != nil {
		return err
	}
	return s.db.Delete(userIndexKey(addr))
}

// ForEachUser iterates over the user records of pool.
func (s *Store) ForEachUser(pool types.Address, fn func(*User) error) error {
	return s.db.ForEach(userPrefix(pool), func(_, value []byte) error {
		var u User
		if err := json.Unmarshal(value, &u); err != nil {
			return nil // Skip corrupt entries.
		}
		return fn(&u)
	})
}

// HasUsers reports whether any user record of pool remains.
func (s *Store) HasUsers(pool types.Address) (bool, error) {
	found := false
	err := s.db.ForEach(userPrefix(pool), func(_, _ []byte) error {
		found = true
		return errStopIteration
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return false, err
	}
	return found, nil
}

// ListUsers returns every user record of pool.
func (s *Store) ListUsers(pool types.Address) ([]User, error) {
	users := []User{}
	err := s.ForEachUser(pool, func(u *User) error {
		users = append(users, *u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func userPrefix(pool types.Address) []byte {
	prefix := make([]byte, 0, len(prefixUser)+types.AddressSize)
	prefix = append(prefix, prefixUser...)
	return append(prefix, pool[:]...)
}

func poolKey(addr types.Address) []byte {
	key := make([]byte, 0, len(prefixPool)+types.AddressSize)
	key = append(key, prefixPool...)
	return append(key, addr[:]...)
}

func userKey(pool, addr types.Address) []byte {
	key := make([]byte, 0, len(prefixUser)+2*types.AddressSize)
	key = append(key, prefixUser...)
	key = append(key, pool[:]...)
	return append(key, addr[:]...)
}

func userIndexKey(addr types.Address) []byte {
	key := make([]byte, 0, len(prefixUserIndex)+types.AddressSize)
	key = append(key, prefixUserIndex...)
	return append(key, addr[:]...)
}

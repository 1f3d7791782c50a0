package token

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-staking/internal/storage"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
)

var prefixAccount = []byte("a/") // a/<address(20)> -> Account JSON

// Store persists token accounts.
type Store struct {
	db storage.DB
}

// NewStore creates a token account store.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// Put stores an account under its address.
func (s *Store) Put(acct *Account) error {
	data, err := json.Marshal(acct)
	if err != nil {
		return fmt.Errorf("token marshal: %w", err)
	}
	return s.db.Put(accountKey(acct.Address), data)
}

// Get retrieves an account. Returns ErrAccountNotFound if it does not exist.
func (s *Store) Get(addr types.Address) (*Account, error) {
	data, err := s.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("token get: %w", err)
	}
	var acct Account
	if err := json.Unmarshal(data, &acct); err != nil {
		return nil, fmt.Errorf("token unmarshal: %w", err)
	}
	return &acct, nil
}

// Has checks if an account exists.
func (s *Store) Has(addr types.Address) (bool, error) {
	return s.db.Has(accountKey(addr))
}

// Delete removes an account.
func (s *Store) Delete(addr types.Address) error {
	return s.db.Delete(accountKey(addr))
}

// ForEach iterates over all token accounts in address order.
// Return a non-nil error from fn to stop iteration early.
func (s *Store) ForEach(fn func(*Account) error) error {
	return s.db.ForEach(prefixAccount, func(key, value []byte) error {
		if len(key) != len(prefixAccount)+types.AddressSize {
			return nil // Malformed key, skip.
		}
		var acct Account
		if err := json.Unmarshal(value, &acct); err != nil {
			return nil // Skip corrupt entries.
		}
		return fn(&acct)
	})
}

// ListByOwner returns every account controlled by owner.
func (s *Store) ListByOwner(owner types.Address) ([]Account, error) {
	accounts := []Account{}
	err := s.ForEach(func(acct *Account) error {
		if acct.Owner == owner {
			accounts = append(accounts, *acct)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func accountKey(addr types.Address) []byte {
	key := make([]byte, len(prefixAccount)+types.AddressSize)
	copy(key, prefixAccount)
	copy(key[len(prefixAccount):], addr[:])
	return key
}

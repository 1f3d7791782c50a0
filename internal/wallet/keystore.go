package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/Klingon-tech/klingnet-staking/pkg/crypto"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
)

const keystoreVersion = 2

// Keystore errors.
var (
	ErrWalletExists   = errors.New("wallet already exists")
	ErrWalletNotFound = errors.New("wallet not found")
	ErrKeyExists      = errors.New("key name already exists")
	ErrKeyNotFound    = errors.New("key not found")
	ErrInvalidName    = errors.New("invalid name")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// keystoreFile is the on-disk JSON format of one wallet.
type keystoreFile struct {
	Version       int        `json:"version"`
	CreatedAt     time.Time  `json:"created_at"`
	EncryptedSeed []byte     `json:"encrypted_seed"`
	Keys          []KeyEntry `json:"keys"`
	NextIndex     uint32     `json:"next_index"`
}

// KeyEntry names one derived signing key.
type KeyEntry struct {
	Name    string        `json:"name"`
	Account uint32        `json:"account"`
	Index   uint32        `json:"index"`
	Address types.Address `json:"address"`
}

// Keystore stores encrypted wallets, one file per wallet, in a directory.
type Keystore struct {
	path string
}

// NewKeystore opens the keystore at path, creating the directory if needed.
func NewKeystore(path string) (*Keystore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{path: path}, nil
}

func (ks *Keystore) walletPath(name string) string {
	return filepath.Join(ks.path, name+".wallet")
}

// Create writes a new wallet holding seed encrypted under password.
func (ks *Keystore) Create(name string, seed, password []byte, params EncryptionParams) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if len(seed) != SeedSize {
		return fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	path := ks.walletPath(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %q", ErrWalletExists, name)
	}

	encrypted, err := Encrypt(seed, password, params)
	if err != nil {
		return fmt.Errorf("encrypt seed: %w", err)
	}
	return ks.writeFile(path, &keystoreFile{
		Version:       keystoreVersion,
		CreatedAt:     time.Now().UTC(),
		EncryptedSeed: encrypted,
		Keys:          []KeyEntry{},
	})
}

// Seed decrypts and returns a wallet's seed.
func (ks *Keystore) Seed(name string, password []byte) ([]byte, error) {
	kf, err := ks.readFile(name)
	if err != nil {
		return nil, err
	}
	seed, err := Decrypt(kf.EncryptedSeed, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt wallet %q: %w", name, err)
	}
	return seed, nil
}

// NewKey derives the wallet's next signing key and records it as keyName.
func (ks *Keystore) NewKey(wallet, keyName string, password []byte) (*KeyEntry, error) {
	if !namePattern.MatchString(keyName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, keyName)
	}
	kf, err := ks.readFile(wallet)
	if err != nil {
		return nil, err
	}
	for _, k := range kf.Keys {
		if k.Name == keyName {
			return nil, fmt.Errorf("%w: %q", ErrKeyExists, keyName)
		}
	}

	seed, err := Decrypt(kf.EncryptedSeed, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt wallet %q: %w", wallet, err)
	}
	defer zero(seed)

	entry := KeyEntry{Name: keyName, Index: kf.NextIndex}
	hd, err := deriveEntry(seed, entry)
	if err != nil {
		return nil, err
	}
	entry.Address = hd.Address()

	kf.Keys = append(kf.Keys, entry)
	kf.NextIndex++
	if err := ks.writeFile(ks.walletPath(wallet), kf); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Keys returns the named keys of a wallet.
func (ks *Keystore) Keys(wallet string) ([]KeyEntry, error) {
	kf, err := ks.readFile(wallet)
	if err != nil {
		return nil, err
	}
	return kf.Keys, nil
}

// Key returns one named key of a wallet.
func (ks *Keystore) Key(wallet, keyName string) (*KeyEntry, error) {
	kf, err := ks.readFile(wallet)
	if err != nil {
		return nil, err
	}
	for i := range kf.Keys {
		if kf.Keys[i].Name == keyName {
			return &kf.Keys[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q in wallet %q", ErrKeyNotFound, keyName, wallet)
}

// Signer decrypts the wallet and returns the private key of keyName.
func (ks *Keystore) Signer(wallet, keyName string, password []byte) (*crypto.PrivateKey, error) {
	entry, err := ks.Key(wallet, keyName)
	if err != nil {
		return nil, err
	}
	seed, err := ks.Seed(wallet, password)
	if err != nil {
		return nil, err
	}
	defer zero(seed)

	hd, err := deriveEntry(seed, *entry)
	if err != nil {
		return nil, err
	}
	if hd.Address() != entry.Address {
		return nil, fmt.Errorf("key %q derives %s, recorded %s", keyName, hd.Address(), entry.Address)
	}
	return hd.Signer()
}

func deriveEntry(seed []byte, entry KeyEntry) (*HDKey, error) {
	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	return master.DeriveStakingKey(entry.Account, entry.Index)
}

// List returns the names of all wallets in the keystore.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.path)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}

	names := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if ext := filepath.Ext(name); ext == ".wallet" {
			names = append(names, name[:len(name)-len(ext)])
		}
	}
	return names, nil
}

// Delete removes a wallet file.
func (ks *Keystore) Delete(name string) error {
	path := ks.walletPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("%w: %q", ErrWalletNotFound, name)
	}
	return os.Remove(path)
}

func (ks *Keystore) writeFile(path string, kf *keystoreFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	return nil
}

func (ks *Keystore) readFile(name string) (*keystoreFile, error) {
	data, err := os.ReadFile(ks.walletPath(name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %q", ErrWalletNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read wallet: %w", err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse wallet: %w", err)
	}
	if kf.Version != keystoreVersion {
		return nil, fmt.Errorf("unsupported wallet version: %d", kf.Version)
	}
	return &kf, nil
}

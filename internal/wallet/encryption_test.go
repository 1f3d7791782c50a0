package wallet

import (
	"bytes"
	"errors"
	"testing"
)

// testParams keeps Argon2id cheap in tests.
var testParams = EncryptionParams{Memory: 64, Iterations: 1, Parallelism: 1}

func TestEncryptDecrypt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"seed", bytes.Repeat([]byte{0xab}, SeedSize)},
		{"empty", []byte{}},
		{"large", bytes.Repeat([]byte("staking"), 4096)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := Encrypt(tt.data, []byte("pw"), testParams)
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			got, err := Decrypt(sealed, []byte("pw"))
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if !bytes.Equal(got, tt.data) {
				t.Error("roundtrip mismatch")
			}
		})
	}
}

func TestDecrypt_WrongPassword(t *testing.T) {
	sealed, _ := Encrypt([]byte("secret"), []byte("right"), testParams)
	if _, err := Decrypt(sealed, []byte("wrong")); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("err = %v, want ErrWrongPassword", err)
	}
}

func TestDecrypt_Tampered(t *testing.T) {
	sealed, _ := Encrypt([]byte("secret"), []byte("pw"), testParams)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"ciphertext", func(b []byte) []byte { b[len(b)-1] ^= 1; return b }},
		{"salt", func(b []byte) []byte { b[1] ^= 1; return b }},
		{"iterations", func(b []byte) []byte { b[1+SaltSize+4] = 2; return b }},
		{"version", func(b []byte) []byte { b[0] = 9; return b }},
		{"memory out of range", func(b []byte) []byte { b[1+SaltSize+3] = 0xff; return b }},
		{"truncated", func(b []byte) []byte { return b[:headerSize] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := tt.mutate(append([]byte(nil), sealed...))
			if _, err := Decrypt(blob, []byte("pw")); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEncrypt_Randomized(t *testing.T) {
	a, _ := Encrypt([]byte("secret"), []byte("pw"), testParams)
	b, _ := Encrypt([]byte("secret"), []byte("pw"), testParams)
	if bytes.Equal(a, b) {
		t.Error("two encryptions produced identical output")
	}
	if a[0] != sealVersion {
		t.Errorf("version byte = %d, want %d", a[0], sealVersion)
	}
}

func TestEncryptionParams_Validate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Errorf("default params invalid: %v", err)
	}
	bad := []EncryptionParams{
		{Memory: 0, Iterations: 1, Parallelism: 1},
		{Memory: 64, Iterations: 0, Parallelism: 1},
		{Memory: 64, Iterations: 1, Parallelism: 0},
		{Memory: maxMemoryKiB + 1, Iterations: 1, Parallelism: 1},
	}
	for _, p := range bad {
		if _, err := Encrypt([]byte("x"), []byte("pw"), p); err == nil {
			t.Errorf("Encrypt accepted params %+v", p)
		}
	}
}

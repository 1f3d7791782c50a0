package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func mustKey(t *testing.T) *PrivateKey {
	t.Helper()
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	return key
}

func TestGenerateKey(t *testing.T) {
	key := mustKey(t)
	if len(key.PublicKey()) != PublicKeySize {
		t.Errorf("PublicKey() length = %d, want %d", len(key.PublicKey()), PublicKeySize)
	}
	if len(key.Serialize()) != PrivateKeySize {
		t.Errorf("Serialize() length = %d, want %d", len(key.Serialize()), PrivateKeySize)
	}
	if bytes.Equal(key.Serialize(), mustKey(t).Serialize()) {
		t.Error("two generated keys should not be identical")
	}
}

func TestPrivateKeyFromBytes(t *testing.T) {
	original := mustKey(t)
	restored, err := PrivateKeyFromBytes(original.Serialize())
	if err != nil {
		t.Fatalf("PrivateKeyFromBytes() error: %v", err)
	}
	if !bytes.Equal(original.PublicKey(), restored.PublicKey()) {
		t.Error("restored key should have same public key")
	}
	if original.Address() != restored.Address() {
		t.Error("restored key should have same address")
	}

	for _, n := range []int{0, 16, 64} {
		if _, err := PrivateKeyFromBytes(make([]byte, n)); err == nil {
			t.Errorf("PrivateKeyFromBytes(%d bytes) should fail", n)
		}
	}
}

func TestSign_Verify(t *testing.T) {
	key := mustKey(t)
	hash := Hash([]byte("stake tier 0"))

	sig, err := key.Sign(hash[:])
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if len(sig) != SignatureSize {
		t.Errorf("signature length = %d, want %d", len(sig), SignatureSize)
	}
	if !VerifySignature(hash[:], sig, key.PublicKey()) {
		t.Fatal("valid signature should verify")
	}

	var v Verifier = SchnorrVerifier{}
	if !v.Verify(hash[:], sig, key.PublicKey()) {
		t.Error("SchnorrVerifier should verify valid signature")
	}

	other := Hash([]byte("stake tier 1"))
	if VerifySignature(other[:], sig, key.PublicKey()) {
		t.Error("signature should not verify over a different hash")
	}
	if VerifySignature(hash[:], sig, mustKey(t).PublicKey()) {
		t.Error("signature should not verify under a different key")
	}

	corrupted := append([]byte(nil), sig...)
	corrupted[10] ^= 0xff
	if VerifySignature(hash[:], corrupted, key.PublicKey()) {
		t.Error("corrupted signature should not verify")
	}
}

func TestSign_InvalidHashLength(t *testing.T) {
	key := mustKey(t)
	if _, err := key.Sign([]byte("short")); err == nil {
		t.Error("Sign() should reject non-32-byte input")
	}
}

func TestVerify_InvalidInputs(t *testing.T) {
	tests := []struct {
		name      string
		hash      []byte
		signature []byte
		publicKey []byte
	}{
		{"nil hash", nil, make([]byte, 64), make([]byte, 33)},
		{"empty signature", make([]byte, 32), nil, make([]byte, 33)},
		{"empty public key", make([]byte, 32), make([]byte, 64), nil},
		{"short signature", make([]byte, 32), make([]byte, 10), make([]byte, 33)},
		{"garbage public key", make([]byte, 32), make([]byte, 64), []byte("bad")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if VerifySignature(tt.hash, tt.signature, tt.publicKey) {
				t.Error("should return false for invalid inputs")
			}
		})
	}
}

func TestValidatePublicKey(t *testing.T) {
	if err := ValidatePublicKey(mustKey(t).PublicKey()); err != nil {
		t.Errorf("ValidatePublicKey(valid) error: %v", err)
	}
	for _, bad := range [][]byte{nil, make([]byte, 33), make([]byte, 65)} {
		if err := ValidatePublicKey(bad); !errors.Is(err, ErrInvalidPublicKey) {
			t.Errorf("ValidatePublicKey(%x) = %v, want ErrInvalidPublicKey", bad, err)
		}
	}
}

func TestPrivateKey_Zero(t *testing.T) {
	key := mustKey(t)
	key.Zero()
	for _, b := range key.Serialize() {
		if b != 0 {
			t.Fatal("Serialize() should return zeros after Zero()")
		}
	}
}

package backup

import (
	"bytes"
	"testing"
)

func TestDeriveKeyDeterminism(t *testing.T) {
	salt := []byte("1234567890abcdef")

	key1 := DeriveKey("mypassphrase", salt)
	key2 := DeriveKey("mypassphrase", salt)

	if !bytes.Equal(key1, key2) {
		t.Error("same passphrase+salt should produce same key")
	}
	if len(key1) != keySize {
		t.Errorf("key length = %d, want %d", len(key1), keySize)
	}

	other := DeriveKey("otherpassphrase", salt)
	if bytes.Equal(key1, other) {
		t.Error("different passphrases should produce different keys")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte("sqlite snapshot bytes go here")

	encrypted, err := EncryptSnapshot(plaintext, "correct horse battery")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(encrypted, plaintext) {
		t.Error("ciphertext contains plaintext")
	}

	decrypted, err := DecryptSnapshot(encrypted, "correct horse battery")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Error("round trip lost data")
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	encrypted, err := EncryptSnapshot([]byte("secret"), "right")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := DecryptSnapshot(encrypted, "wrong"); err == nil {
		t.Error("wrong passphrase should fail authentication")
	}
}

func TestDecryptTruncated(t *testing.T) {
	if _, err := DecryptSnapshot([]byte("short"), "pass"); err == nil {
		t.Error("truncated input should fail")
	}
}

func TestEncryptUniqueSaltAndNonce(t *testing.T) {
	a, err := EncryptSnapshot([]byte("same input"), "pass")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	b, err := EncryptSnapshot([]byte("same input"), "pass")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same input should differ")
	}
}

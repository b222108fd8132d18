package security

import (
	"strings"
	"testing"
)

var testKey = []byte("0123456789abcdef0123456789abcdef") // 32 bytes

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := "oauth-access-token-value"

	encrypted, err := EncryptToken(plaintext, testKey)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if encrypted == plaintext {
		t.Error("ciphertext must differ from plaintext")
	}

	decrypted, err := DecryptToken(encrypted, testKey)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}

	if decrypted != plaintext {
		t.Errorf("expected %q, got %q", plaintext, decrypted)
	}
}

func TestEncrypt_NoncesDiffer(t *testing.T) {
	a, err := EncryptToken("same", testKey)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	b, err := EncryptToken("same", testKey)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if a == b {
		t.Error("two encryptions of the same plaintext must not match")
	}
}

func TestEncrypt_RejectsBadKeyLength(t *testing.T) {
	if _, err := EncryptToken("x", []byte("short")); err == nil {
		t.Error("expected error for short key")
	}
	if _, err := DecryptToken("x", []byte("short")); err == nil {
		t.Error("expected error for short key")
	}
}

func TestDecrypt_RejectsTamperedCiphertext(t *testing.T) {
	encrypted, err := EncryptToken("token", testKey)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	tampered := strings.Map(func(r rune) rune {
		if r == 'A' {
			return 'B'
		}
		return 'A'
	}, encrypted[:1]) + encrypted[1:]

	if _, err := DecryptToken(tampered, testKey); err == nil {
		t.Error("expected error for tampered ciphertext")
	}
}

func TestDecrypt_RejectsGarbage(t *testing.T) {
	if _, err := DecryptToken("not base64!!!", testKey); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := DecryptToken("AAAA", testKey); err == nil {
		t.Error("expected error for too-short payload")
	}
}

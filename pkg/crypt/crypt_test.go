package crypt

import (
	"bytes"
	"errors"
	"testing"
)

func TestDeriveKey(t *testing.T) {
	a := DeriveKey("passphrase")
	b := DeriveKey("passphrase")
	c := DeriveKey("other")

	if len(a) != KeySize {
		t.Fatalf("expected %d byte key, got %d", KeySize, len(a))
	}
	if !bytes.Equal(a, b) {
		t.Errorf("key derivation is not deterministic")
	}
	if bytes.Equal(a, c) {
		t.Errorf("different passphrases derived the same key")
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		passphrase string
		plaintext  []byte
	}{
		{name: "empty", passphrase: "k", plaintext: []byte{}},
		{name: "one block exactly", passphrase: "k", plaintext: []byte("12345678")},
		{name: "yaml document", passphrase: "a much longer passphrase than sixteen bytes", plaintext: []byte("A: one\nB: two\n")},
		{name: "binary", passphrase: "", plaintext: []byte{0, 1, 2, 255, 254, 8, 8, 8, 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := Encrypt(tt.passphrase, tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if len(ciphertext)%8 != 0 || len(ciphertext) == 0 {
				t.Fatalf("unexpected ciphertext length %d", len(ciphertext))
			}
			if len(tt.plaintext) > 0 && bytes.Contains(ciphertext, tt.plaintext) {
				t.Errorf("ciphertext contains plaintext")
			}

			got, err := Decrypt(tt.passphrase, ciphertext)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(got, tt.plaintext) {
				t.Errorf("round trip = %q, want %q", got, tt.plaintext)
			}
		})
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	plaintext := []byte("SECRET: hunter2\n")
	ciphertext, err := Encrypt("right", plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	// CBC is unauthenticated: a wrong key either trips the padding check or
	// produces different bytes.
	got, err := Decrypt("wrong", ciphertext)
	if err != nil {
		if !errors.Is(err, ErrDecrypt) {
			t.Fatalf("expected ErrDecrypt, got %v", err)
		}
		return
	}
	if bytes.Equal(got, plaintext) {
		t.Fatalf("wrong key recovered the plaintext")
	}
}

func TestDecrypt_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "short", data: []byte("abc")},
		{name: "not block aligned", data: bytes.Repeat([]byte{1}, 13)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decrypt("k", tt.data); !errors.Is(err, ErrDecrypt) {
				t.Errorf("expected ErrDecrypt, got %v", err)
			}
		})
	}
}

func TestRecrypt(t *testing.T) {
	plaintext := []byte("A: one\n")
	old, err := Encrypt("old", plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	rotated, err := Recrypt("old", "new", old)
	if err != nil {
		t.Fatalf("Recrypt() error = %v", err)
	}

	got, err := Decrypt("new", rotated)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("Recrypt lost data: got %q", got)
	}
}

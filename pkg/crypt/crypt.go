// Package crypt encrypts and decrypts fragment contents at rest.
//
// Keys are derived from an arbitrary-length passphrase: the first 16 bytes
// of its SHA-256 digest. Data is enciphered with Blowfish in CBC mode with a
// zero IV and PKCS#5 padding, which is byte-compatible with files written by
// OpenSSL's bf-cbc cipher under the same derivation.
//
// CBC carries no authentication. Decrypting with the wrong passphrase usually
// fails the padding check and returns ErrDecrypt, but it may also succeed and
// return garbage.
package crypt

import (
	"bytes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/blowfish"
)

// KeySize is the length of the derived cipher key in bytes.
const KeySize = 16

// ErrDecrypt is returned when ciphertext cannot be decrypted.
var ErrDecrypt = errors.New("decrypt failed")

// DeriveKey returns the cipher key for a passphrase.
func DeriveKey(passphrase string) []byte {
	sum := sha256.Sum256([]byte(passphrase))
	key := make([]byte, KeySize)
	copy(key, sum[:KeySize])
	return key
}

func newBlock(passphrase string) (cipher.Block, error) {
	block, err := blowfish.NewCipher(DeriveKey(passphrase))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return block, nil
}

// Encrypt enciphers plaintext with the key derived from passphrase.
func Encrypt(passphrase string, plaintext []byte) ([]byte, error) {
	block, err := newBlock(passphrase)
	if err != nil {
		return nil, err
	}

	padded := pad(plaintext, block.BlockSize())
	out := make([]byte, len(padded))
	iv := make([]byte, block.BlockSize())
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return out, nil
}

// Decrypt deciphers ciphertext with the key derived from passphrase.
func Decrypt(passphrase string, ciphertext []byte) ([]byte, error) {
	block, err := newBlock(passphrase)
	if err != nil {
		return nil, err
	}

	size := block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%size != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a multiple of %d", ErrDecrypt, len(ciphertext), size)
	}

	out := make([]byte, len(ciphertext))
	iv := make([]byte, size)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)

	return unpad(out, size)
}

// Recrypt decrypts data with oldPassphrase and encrypts it with newPassphrase.
func Recrypt(oldPassphrase, newPassphrase string, data []byte) ([]byte, error) {
	plain, err := Decrypt(oldPassphrase, data)
	if err != nil {
		return nil, err
	}
	return Encrypt(newPassphrase, plain)
}

func pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, size int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, fmt.Errorf("%w: bad padding", ErrDecrypt)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrDecrypt)
		}
	}
	return data[:len(data)-n], nil
}

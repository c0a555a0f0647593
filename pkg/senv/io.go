package senv

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/senvtool/senv/pkg/crypt"
	"github.com/senvtool/senv/pkg/paths"
)

func encrypted(path string, opts IOOptions) bool {
	if opts.Encrypted != nil {
		return *opts.Encrypted
	}
	return paths.IsEncrypted(path)
}

// Read returns the contents of path, decrypted when the name carries the
// encrypted marker or opts says so.
func (e *Engine) Read(path string, opts IOOptions) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapError("read", "", path, err)
	}
	if !encrypted(path, opts) {
		return data, nil
	}

	plain, err := e.decrypt(path, data)
	if err != nil {
		return nil, wrapError("read", "", path, err)
	}
	return plain, nil
}

// Write stores data at path, encrypting when the name carries the encrypted
// marker or opts says so. Parent directories are created.
func (e *Engine) Write(path string, data []byte, opts IOOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if encrypted(path, opts) {
		var err error
		data, err = e.encrypt(path, data)
		if err != nil {
			return wrapError("write", "", path, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return wrapError("write", "", path, fmt.Errorf("failed to create directory: %w", err))
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return wrapError("write", "", path, err)
	}
	return nil
}

// Recrypt re-encrypts the file at path from the engine's key to newKey.
func (e *Engine) Recrypt(path, newKey string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key, source, err := e.resolveKey()
	if err != nil {
		return wrapError("recrypt", "", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return wrapError("recrypt", "", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return wrapError("recrypt", "", path, err)
	}

	out, err := crypt.Recrypt(key, newKey, data)
	if err != nil {
		e.metrics.RecordDecryptFailure()
		return wrapError("recrypt", "", path, fmt.Errorf("could not decrypt `%s` with key from %s: %w", path, source, err))
	}

	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return wrapError("recrypt", "", path, err)
	}

	e.logger.Info().Str("path", path).Msg("file re-encrypted")
	return nil
}

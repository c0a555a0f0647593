package senv

// Root returns the resolved configuration root.
func (e *Engine) Root() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolveRoot()
}

// Dir returns the fragment directory under the root.
func (e *Engine) Dir() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dir()
}

// Key returns the passphrase, resolving it on first use. Resolution order is
// the Key option, then SENV_KEY, then the key file in the config directory.
func (e *Engine) Key() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key, _, err := e.resolveKey()
	return key, err
}

// KeySource describes where the passphrase came from. It does not trigger
// resolution.
func (e *Engine) KeySource() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.keySource == "" {
		return "(no key source)"
	}
	return e.keySource
}

// SetKey replaces the passphrase for the rest of the engine's life.
func (e *Engine) SetKey(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.key, e.keySource = key, "option"
}

package paths

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// tempDir returns a symlink-free temporary directory.
func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("failed to resolve temp dir: %v", err)
	}
	return dir
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		ok        bool
		kind      Kind
		format    Format
		encrypted bool
	}{
		{name: "starlark", path: "development.star", ok: true, kind: KindExecutable, format: FormatStarlark},
		{name: "encrypted starlark", path: "development.enc.star", ok: true, kind: KindExecutable, format: FormatStarlark, encrypted: true},
		{name: "yaml", path: "/x/development.yml", ok: true, kind: KindData, format: FormatYAML},
		{name: "encrypted yaml long marker", path: "development.encrypted.yaml", ok: true, kind: KindData, format: FormatYAML, encrypted: true},
		{name: "json", path: "development.json", ok: true, kind: KindData, format: FormatJSON},
		{name: "toml", path: "development.toml", ok: true, kind: KindData, format: FormatTOML},
		{name: "cue", path: "development.enc.cue", ok: true, kind: KindData, format: FormatCUE, encrypted: true},
		{name: "open data format", path: "development.ini", ok: true, kind: KindData, format: FormatUnknown},
		{name: "no extension", path: "development", ok: false},
		{name: "too many tokens", path: "development.a.b.yml", ok: false},
		{name: "two tokens without marker", path: "development.local.yml", ok: false},
		{name: "bare marker", path: "development.enc", ok: false},
		{name: "hidden", path: ".key", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := Classify(tt.path)
			if ok != tt.ok {
				t.Fatalf("Classify(%q) ok = %v, want %v", tt.path, ok, tt.ok)
			}
			if !ok {
				return
			}
			if f.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", f.Kind, tt.kind)
			}
			if f.Format != tt.format {
				t.Errorf("format = %s, want %s", f.Format, tt.format)
			}
			if f.Encrypted != tt.encrypted {
				t.Errorf("encrypted = %v, want %v", f.Encrypted, tt.encrypted)
			}
		})
	}
}

func TestIsEncryptedAndFormatOf(t *testing.T) {
	if !IsEncrypted("/tmp/secrets.enc") {
		t.Errorf("expected trailing .enc to be encrypted")
	}
	if !IsEncrypted("a.enc.yml") {
		t.Errorf("expected .enc.yml to be encrypted")
	}
	if IsEncrypted("/enc.d/plain.yml") {
		t.Errorf("directory names must not mark a file encrypted")
	}
	if got := FormatOf("a.enc.JSON"); got != FormatJSON {
		t.Errorf("FormatOf = %s, want json", got)
	}
	if got := FormatOf("a"); got != FormatUnknown {
		t.Errorf("FormatOf = %s, want unknown", got)
	}
}

func TestFragmentsFor_Order(t *testing.T) {
	dir := tempDir(t)
	for _, name := range []string{
		"development.enc.yml",
		"development.yml",
		"nested/development.star",
		"development.enc.star",
		"development.json",
		"production.yml",
		"development.yml~",
		".hidden/development.yml",
	} {
		touch(t, filepath.Join(dir, name))
	}

	fragments, err := FragmentsFor(dir, "development")
	if err != nil {
		t.Fatalf("FragmentsFor() error = %v", err)
	}

	var got []string
	for _, f := range fragments {
		rel, _ := filepath.Rel(dir, f.Path)
		got = append(got, rel)
	}
	want := []string{
		"nested/development.star",
		"development.enc.star",
		"development.yml",
		"development.json",
		"development.enc.yml",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestFragmentsFor_MissingDir(t *testing.T) {
	if _, err := FragmentsFor(filepath.Join(tempDir(t), "missing"), "development"); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestResolveRoot(t *testing.T) {
	root := tempDir(t)
	if err := os.MkdirAll(filepath.Join(root, DefaultConfigDir), 0o755); err != nil {
		t.Fatal(err)
	}
	deep := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}

	t.Run("walks upward", func(t *testing.T) {
		got, err := ResolveRoot(RootOptions{WorkDir: deep})
		if err != nil {
			t.Fatalf("ResolveRoot() error = %v", err)
		}
		if got != root {
			t.Errorf("root = %s, want %s", got, root)
		}
	})

	t.Run("explicit root wins", func(t *testing.T) {
		other := tempDir(t)
		got, err := ResolveRoot(RootOptions{Root: other, WorkDir: deep})
		if err != nil {
			t.Fatalf("ResolveRoot() error = %v", err)
		}
		if got != other {
			t.Errorf("root = %s, want %s", got, other)
		}
	})

	t.Run("search path", func(t *testing.T) {
		empty := tempDir(t)
		got, err := ResolveRoot(RootOptions{SearchPath: empty + ":" + root, WorkDir: deep})
		if err != nil {
			t.Fatalf("ResolveRoot() error = %v", err)
		}
		if got != root {
			t.Errorf("root = %s, want %s", got, root)
		}
	})

	t.Run("not found lists candidates", func(t *testing.T) {
		a, b := tempDir(t), tempDir(t)
		_, err := ResolveRoot(RootOptions{SearchPath: a + ":" + b})
		if !errors.Is(err, ErrNoRootFound) {
			t.Fatalf("expected ErrNoRootFound, got %v", err)
		}
		var nrf *NoRootFoundError
		if !errors.As(err, &nrf) {
			t.Fatalf("expected *NoRootFoundError, got %T", err)
		}
		if !reflect.DeepEqual(nrf.Tried, []string{a, b}) {
			t.Errorf("tried = %v", nrf.Tried)
		}
		if !strings.Contains(err.Error(), a) {
			t.Errorf("message %q does not list %s", err.Error(), a)
		}
	})
}

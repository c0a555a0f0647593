package paths

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Kind is the closed set of fragment kinds.
type Kind int

const (
	// KindData fragments are templated structured documents.
	KindData Kind = iota
	// KindExecutable fragments are sandboxed scripts.
	KindExecutable
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindExecutable:
		return "executable"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// Format is the closed set of fragment content formats.
type Format int

const (
	FormatUnknown Format = iota
	FormatStarlark
	FormatYAML
	FormatJSON
	FormatTOML
	FormatCUE
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatStarlark:
		return "starlark"
	case FormatYAML:
		return "yaml"
	case FormatJSON:
		return "json"
	case FormatTOML:
		return "toml"
	case FormatCUE:
		return "cue"
	default:
		return "unknown"
	}
}

// ExecutableToken marks executable fragments.
const ExecutableToken = "star"

var formatTokens = map[string]Format{
	ExecutableToken: FormatStarlark,
	"yml":           FormatYAML,
	"yaml":          FormatYAML,
	"json":          FormatJSON,
	"jsonc":         FormatJSON,
	"toml":          FormatTOML,
	"cue":           FormatCUE,
}

// Fragment is a discovered configuration file.
type Fragment struct {
	Path      string
	Stem      string
	Tokens    []string
	Kind      Kind
	Format    Format
	Encrypted bool
}

// Basename returns the file name of the fragment.
func (f Fragment) Basename() string {
	return filepath.Base(f.Path)
}

func isEncryptedToken(token string) bool {
	return token == "enc" || token == "encrypted"
}

// splitName splits a basename into its stem and extension tokens.
func splitName(base string) (string, []string) {
	parts := strings.Split(base, ".")
	return parts[0], parts[1:]
}

// IsEncrypted reports whether the file name carries the encrypted marker.
func IsEncrypted(path string) bool {
	_, tokens := splitName(filepath.Base(path))
	for _, token := range tokens {
		if isEncryptedToken(token) {
			return true
		}
	}
	return false
}

// FormatOf returns the content format named by the last extension token.
func FormatOf(path string) Format {
	_, tokens := splitName(filepath.Base(path))
	if len(tokens) == 0 {
		return FormatUnknown
	}
	return formatTokens[strings.ToLower(tokens[len(tokens)-1])]
}

// Classify parses a fragment file name. It returns false when the extension
// tokens are not one of the recognized forms: <ext> or <enc>.<ext>.
func Classify(path string) (Fragment, bool) {
	stem, tokens := splitName(filepath.Base(path))
	if stem == "" {
		return Fragment{}, false
	}

	var ext string
	encrypted := false
	switch len(tokens) {
	case 1:
		ext = tokens[0]
	case 2:
		if !isEncryptedToken(tokens[0]) {
			return Fragment{}, false
		}
		encrypted = true
		ext = tokens[1]
	default:
		return Fragment{}, false
	}
	if ext == "" || isEncryptedToken(ext) {
		return Fragment{}, false
	}

	f := Fragment{
		Path:      path,
		Stem:      stem,
		Tokens:    tokens,
		Kind:      KindData,
		Format:    formatTokens[strings.ToLower(ext)],
		Encrypted: encrypted,
	}
	if ext == ExecutableToken {
		f.Kind = KindExecutable
	}
	return f, true
}

// FragmentsFor returns the fragments for profile found anywhere under dir,
// executable fragments first, then data fragments. Within each group the
// order is ascending by basename length, then by extension token count.
func FragmentsFor(dir, profile string) ([]Fragment, error) {
	var found []Fragment

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
			return nil
		}

		f, ok := Classify(path)
		if !ok || f.Stem != profile {
			return nil
		}
		found = append(found, f)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(found, func(i, j int) bool {
		li, lj := len(found[i].Basename()), len(found[j].Basename())
		if li != lj {
			return li < lj
		}
		return len(found[i].Tokens) < len(found[j].Tokens)
	})

	ordered := make([]Fragment, 0, len(found))
	for _, f := range found {
		if f.Kind == KindExecutable {
			ordered = append(ordered, f)
		}
	}
	for _, f := range found {
		if f.Kind == KindData {
			ordered = append(ordered, f)
		}
	}

	return ordered, nil
}

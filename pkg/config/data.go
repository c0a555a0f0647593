package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"text/template"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/senvtool/senv/pkg/paths"
	"github.com/senvtool/senv/pkg/tracker"
)

// DataParser renders and parses data fragments.
type DataParser struct {
	cue *cue.Context
}

// NewDataParser creates a new data fragment parser.
func NewDataParser() *DataParser {
	return &DataParser{cue: cuecontext.New()}
}

// Apply renders src as a template against env, parses it according to
// format and sets every top-level key in env, in sorted key order.
func (dp *DataParser) Apply(format paths.Format, name string, src []byte, env tracker.Environ) (map[string]interface{}, error) {
	rendered, err := Render(name, src, env)
	if err != nil {
		return nil, err
	}

	doc, err := dp.Parse(format, name, rendered)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env.Set(k, Stringify(doc[k]))
	}

	return doc, nil
}

// Parse decodes a rendered data fragment into its top-level mapping.
func (dp *DataParser) Parse(format paths.Format, name string, src []byte) (map[string]interface{}, error) {
	var (
		doc interface{}
		err error
	)

	switch format {
	case paths.FormatYAML:
		err = yaml.Unmarshal(src, &doc)
	case paths.FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(src)))
		dec.UseNumber()
		err = dec.Decode(&doc)
	case paths.FormatTOML:
		m := map[string]interface{}{}
		err = toml.Unmarshal(src, &m)
		doc = m
	case paths.FormatCUE:
		doc, err = dp.parseCUE(name, src)
	default:
		return nil, fmt.Errorf("%w in %s", ErrUnknownFormat, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s as %s: %w", name, format, err)
	}

	mapping, ok := normalize(doc).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s does not contain a key/value mapping", ErrInvalidFragment, name)
	}
	return mapping, nil
}

func (dp *DataParser) parseCUE(name string, src []byte) (interface{}, error) {
	val := dp.cue.CompileBytes(src, cue.Filename(name))
	if err := val.Err(); err != nil {
		return nil, err
	}
	if val.IncompleteKind() != cue.StructKind {
		return nil, nil
	}
	var doc map[string]interface{}
	if err := val.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Render expands src as a text/template whose data is the current
// environment. Missing keys render empty; env "KEY" and default "x" VALUE are
// available for keys that are not identifiers and for fallbacks.
func Render(name string, src []byte, env tracker.Environ) ([]byte, error) {
	data := make(map[string]string)
	for _, k := range env.Keys() {
		data[k] = env.Get(k)
	}

	funcs := template.FuncMap{
		"env": func(key string) string {
			return env.Get(key)
		},
		"default": func(def, val string) string {
			if val == "" {
				return def
			}
			return val
		},
	}

	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=zero").Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Stringify converts a decoded value to its environment string: strings as
// is, scalars in canonical text, nil as empty, lists and maps as JSON.
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		data, err := json.Marshal(normalize(val))
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

// normalize converts map[interface{}]interface{} values into
// map[string]interface{} recursively.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case map[string]interface{}:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	default:
		return v
	}
}

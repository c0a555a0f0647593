package config

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/senvtool/senv/pkg/paths"
	"github.com/senvtool/senv/pkg/tracker"
)

func TestDataParser_Apply(t *testing.T) {
	parser := NewDataParser()

	tests := []struct {
		name    string
		format  paths.Format
		src     string
		initial map[string]string
		want    map[string]string
	}{
		{
			name:   "yaml",
			format: paths.FormatYAML,
			src:    "A: one\nB: 2\nC: true\nD: null\nE: [1, 2]\nF: 1.5\n",
			want:   map[string]string{"A": "one", "B": "2", "C": "true", "D": "", "E": "[1,2]", "F": "1.5"},
		},
		{
			name:    "yaml template",
			format:  paths.FormatYAML,
			src:     "URL: postgres://{{ .DB_HOST }}/app\nMISSING: x{{ .NOPE }}x\nODD: {{ env \"A-B\" }}\nDEF: {{ default \"fallback\" .NOPE }}\n",
			initial: map[string]string{"DB_HOST": "db", "A-B": "dash"},
			want: map[string]string{
				"DB_HOST": "db", "A-B": "dash",
				"URL": "postgres://db/app", "MISSING": "xx", "ODD": "dash", "DEF": "fallback",
			},
		},
		{
			name:   "json with comments",
			format: paths.FormatJSON,
			src:    "{\n  // comment\n  \"A\": \"one\",\n  \"N\": 10000000000000000001,\n  \"O\": {\"k\": \"v\"},\n}\n",
			want:   map[string]string{"A": "one", "N": "10000000000000000001", "O": `{"k":"v"}`},
		},
		{
			name:   "toml",
			format: paths.FormatTOML,
			src:    "A = \"one\"\nB = 2\n[section]\nk = \"v\"\n",
			want:   map[string]string{"A": "one", "B": "2", "section": `{"k":"v"}`},
		},
		{
			name:   "cue",
			format: paths.FormatCUE,
			src:    "A: \"one\"\nB: 1 + 1\nC: \"\\(A)-two\"\n",
			want:   map[string]string{"A": "one", "B": "2", "C": "one-two"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := tracker.FromMap(tt.initial)
			if _, err := parser.Apply(tt.format, "fragment", []byte(tt.src), env); err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if !reflect.DeepEqual(env.Map(), tt.want) {
				t.Errorf("env = %v, want %v", env.Map(), tt.want)
			}
		})
	}
}

func TestDataParser_Errors(t *testing.T) {
	parser := NewDataParser()

	tests := []struct {
		name   string
		format paths.Format
		src    string
		is     error
	}{
		{name: "unknown format", format: paths.FormatUnknown, src: "A=1", is: ErrUnknownFormat},
		{name: "yaml list", format: paths.FormatYAML, src: "- a\n- b\n", is: ErrInvalidFragment},
		{name: "yaml scalar", format: paths.FormatYAML, src: "just text\n", is: ErrInvalidFragment},
		{name: "empty yaml", format: paths.FormatYAML, src: "", is: ErrInvalidFragment},
		{name: "json array", format: paths.FormatJSON, src: "[1, 2]", is: ErrInvalidFragment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(tt.format, "fragment", []byte(tt.src))
			if !errors.Is(err, tt.is) {
				t.Fatalf("expected %v, got %v", tt.is, err)
			}
		})
	}

	if _, err := parser.Parse(paths.FormatYAML, "bad.yml", []byte("A: [unclosed\n")); err == nil {
		t.Errorf("expected syntax error")
	}
	if _, err := Render("bad", []byte("{{ .A "), tracker.NewEnv()); err == nil || !strings.Contains(err.Error(), "bad") {
		t.Errorf("expected template error, got %v", err)
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{"s", "s"},
		{true, "true"},
		{42, "42"},
		{int64(-7), "-7"},
		{uint64(7), "7"},
		{2.5, "2.5"},
		{map[interface{}]interface{}{1: "a"}, `{"1":"a"}`},
		{[]interface{}{"a", 1}, `["a",1]`},
	}

	for _, tt := range tests {
		if got := Stringify(tt.in); got != tt.want {
			t.Errorf("Stringify(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

package config

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/senvtool/senv/pkg/tracker"
)

// fakeHost records imports and refuses to import its own profile.
type fakeHost struct {
	*tracker.Env
	profile string
	imports []string
	onImport func(env *tracker.Env, name string)
}

func newFakeHost(profile string, initial map[string]string) *fakeHost {
	return &fakeHost{Env: tracker.FromMap(initial), profile: profile}
}

func (h *fakeHost) Profile() string { return h.profile }

func (h *fakeHost) ImportProfile(_ context.Context, name string) (bool, error) {
	if name == h.profile {
		return false, nil
	}
	if name == "broken" {
		return false, errors.New("broken profile")
	}
	h.imports = append(h.imports, name)
	if h.onImport != nil {
		h.onImport(h.Env, name)
	}
	return true, nil
}

func TestStarlarkEvaluator_Exec(t *testing.T) {
	evaluator := NewStarlarkEvaluator(zerolog.Nop(), 0)

	tests := []struct {
		name    string
		script  string
		initial map[string]string
		want    map[string]string
		wantErr string
	}{
		{
			name:   "set and unset",
			script: "set('A', 'one')\nset('N', 42)\nset('F', True)\nunset('OLD')\n",
			initial: map[string]string{"OLD": "x"},
			want:    map[string]string{"A": "one", "N": "42", "F": "true"},
		},
		{
			name:    "set None unsets",
			script:  "set('OLD', None)\n",
			initial: map[string]string{"OLD": "x", "KEEP": "k"},
			want:    map[string]string{"KEEP": "k"},
		},
		{
			name:    "get with default",
			script:  "set('PORT', get('PORT', '8080'))\nset('HOST', get('HOST', 'localhost'))\n",
			initial: map[string]string{"HOST": "example.com"},
			want:    map[string]string{"HOST": "example.com", "PORT": "8080"},
		},
		{
			name:   "profile and structures",
			script: "set('WHO', profile)\nset('LIST', [1, 'a'])\nset('MAP', {'k': 'v'})\n",
			want:   map[string]string{"WHO": "development", "LIST": `[1,"a"]`, "MAP": `{"k":"v"}`},
		},
		{
			name:    "environ snapshot",
			script:  "e = environ()\nset('COUNT', len(e))\nset('COPY', e['A'])\n",
			initial: map[string]string{"A": "a"},
			want:    map[string]string{"A": "a", "COUNT": "1", "COPY": "a"},
		},
		{
			name:    "environ is frozen",
			script:  "environ()['X'] = 'y'\n",
			wantErr: "frozen",
		},
		{
			name:    "load statements are rejected",
			script:  "load('os.star', 'system')\n",
			wantErr: "not available",
		},
		{
			name:    "fail aborts",
			script:  "fail('nope')\n",
			wantErr: "nope",
		},
		{
			name:    "import errors propagate",
			script:  "import_profile('broken')\n",
			wantErr: "broken profile",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := newFakeHost("development", tt.initial)
			err := evaluator.Exec(context.Background(), "development.star", []byte(tt.script), host)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Exec() error = %v", err)
			}
			if !reflect.DeepEqual(host.Map(), tt.want) {
				t.Errorf("env = %v, want %v", host.Map(), tt.want)
			}
		})
	}
}

func TestStarlarkEvaluator_ImportProfile(t *testing.T) {
	evaluator := NewStarlarkEvaluator(zerolog.Nop(), 0)
	host := newFakeHost("development", nil)
	host.onImport = func(env *tracker.Env, name string) {
		env.Set("B", "two")
	}

	script := `
got = import_profile("all")
set("IMPORTED", got)
set("B", get("B") + " (via development)")
if import_profile("development") != None:
    fail("self import must be refused")
`
	if err := evaluator.Exec(context.Background(), "development.star", []byte(script), host); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if !reflect.DeepEqual(host.imports, []string{"all"}) {
		t.Errorf("imports = %v", host.imports)
	}
	if host.Get("IMPORTED") != "all" || host.Get("B") != "two (via development)" {
		t.Errorf("env = %v", host.Map())
	}
}

func TestStarlarkEvaluator_StepBudgetAndCancel(t *testing.T) {
	script := []byte("x = 0\nfor i in range(10000000):\n    x += i\n")

	evaluator := NewStarlarkEvaluator(zerolog.Nop(), 1000)
	if err := evaluator.Exec(context.Background(), "loop.star", script, newFakeHost("p", nil)); err == nil {
		t.Errorf("expected step budget error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	evaluator = NewStarlarkEvaluator(zerolog.Nop(), 0)
	if err := evaluator.Exec(ctx, "loop.star", script, newFakeHost("p", nil)); err == nil {
		t.Errorf("expected cancellation error")
	}
}

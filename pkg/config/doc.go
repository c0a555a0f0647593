// Package config evaluates senv configuration fragments.
//
// # Overview
//
// A fragment is either executable or data. Executable fragments are Starlark
// scripts that mutate the environment through a narrow host interface; data
// fragments are templated key/value documents.
//
// # Executable fragments
//
// Scripts named <profile>.star (or <profile>.enc.star) run in a sandbox with
// these predeclared names and nothing else from the host:
//
//	set("DATABASE_URL", "postgres://localhost/" + profile)
//	unset("LEGACY_FLAG")
//	port = get("PORT", "8080")
//	if import_profile("all") == None:
//	    fail("all is already loading")
//	keys = environ().keys()
//
// load statements fail, print goes to the debug log, and execution is
// cancelled when the context is done. Fragments cannot run host code, read
// files or open connections.
//
// # Data fragments
//
// Data fragments are rendered with text/template against the environment as
// it stands after every executable fragment ran, then parsed by extension:
//
//   - yml, yaml: YAML (gopkg.in/yaml.v3)
//   - json, jsonc: JSON, comments and trailing commas allowed (tidwall/jsonc)
//   - toml: TOML (BurntSushi/toml)
//   - cue: CUE (cuelang.org/go), must evaluate to a concrete struct
//
// Example:
//
//	DATABASE_URL: postgres://{{ .DB_HOST }}/app
//	CACHE_URL: {{ default "redis://localhost" .CACHE_URL }}
//	WEIRD: {{ env "A-B" }}
//
// Every top-level key is set in the environment with its value stringified:
// strings verbatim, numbers and booleans in canonical text, null as empty,
// lists and maps as compact JSON.
//
// # Errors
//
// ErrUnknownFormat is returned for an unrecognized data extension and
// ErrInvalidFragment when the document is not a mapping.
package config

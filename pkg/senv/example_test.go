package senv_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/senvtool/senv/pkg/senv"
	"github.com/senvtool/senv/pkg/telemetry"
)

// Example_load composes a profile that layers a shared profile under its own
// settings.
func Example_load() {
	root, err := os.MkdirTemp("", "senv-example")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer os.RemoveAll(root)

	files := map[string]string{
		"all.yml":          "LOG_LEVEL: info\n",
		"development.star": "import_profile(\"all\")\nset(\"LOG_LEVEL\", \"debug\")\n",
		"development.yml":  "DATABASE_URL: postgres://localhost/app_{{ .SENV_APP }}\n",
	}
	if err := os.MkdirAll(filepath.Join(root, ".senv"), 0o755); err != nil {
		fmt.Println(err)
		return
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, ".senv", name), []byte(content), 0o644); err != nil {
			fmt.Println(err)
			return
		}
	}

	engine, err := senv.New(senv.Options{
		Root:      root,
		Environ:   []string{"SENV_APP=shop"},
		Telemetry: telemetry.Nop(),
	})
	if err != nil {
		fmt.Println(err)
		return
	}

	profile, err := engine.Load(context.Background(), "", senv.LoadOptions{})
	if err != nil {
		fmt.Println(err)
		return
	}

	env := engine.Environment()
	fmt.Println(profile)
	fmt.Println(env.Get("LOG_LEVEL"))
	fmt.Println(env.Get("DATABASE_URL"))
	// Output:
	// development
	// debug
	// postgres://localhost/app_shop
}

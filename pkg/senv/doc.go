// Package senv composes named profiles of environment variables from
// configuration fragments kept under a project's .senv directory.
//
// An Engine finds the configuration root, loads every fragment of a profile
// in order (executable fragments first, then data fragments), records what
// each fragment changed in a ledger and merges those changes into the
// profile's environment. Fragments whose names carry the enc marker are
// decrypted with the project key.
//
// After a top-level load the engine writes SENV, SENV_LOADED and
// SENV_ENVIRONMENT into its ambient environment. A child process started
// with that environment restores the composition without touching disk:
//
//	engine, err := senv.New(senv.Options{})
//	if err != nil {
//		return err
//	}
//	if _, err := engine.Load(ctx, "production", senv.LoadOptions{}); err != nil {
//		return err
//	}
//	cmd := exec.CommandContext(ctx, "server")
//	cmd.Env = engine.Ambient().Environ()
//
// A fragment may import another profile. Importing the profile that is being
// loaded at top level is refused and is a no-op.
package senv

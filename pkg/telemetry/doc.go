// Package telemetry provides the observability plumbing for senv.
//
// It integrates structured logging (zerolog), tracing (OpenTelemetry) and
// metrics (Prometheus) behind one Config.
//
// # Usage
//
//	cfg := telemetry.ConfigFromEnviron(os.LookupEnv)
//	tel, err := telemetry.NewTelemetry(cfg, os.Stderr)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// # Logging
//
// Logs go to stderr in console format at warn level by default. SENV_DEBUG
// lowers the level to debug, which logs every fragment load with its diff.
// LOG_LEVEL and LOG_FORMAT override level and format.
//
// # Tracing
//
// SENV_TRACE=stdout installs an SDK tracer provider exporting spans to the
// log writer. Otherwise spans go to the global OpenTelemetry provider, which
// is a no-op unless the host program installs one.
//
// # Metrics
//
// Counters live on a private registry per Metrics instance so that separate
// engines in one process never share state:
//
//   - senv_loads_total{result}
//   - senv_load_duration_seconds{result}
//   - senv_fragment_reads_total{kind}
//   - senv_decrypt_failures_total
//   - senv_fragments_skipped_total
package telemetry

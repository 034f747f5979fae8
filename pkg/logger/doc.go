// Package logger provides a structured logging interface for flico.
//
// It wraps zerolog with a small interface so components can be handed a
// logger (or a TestLogger in tests) instead of reaching for a global:
//   - Pretty console output on stderr
//   - Optional JSON file output alongside the console
//   - Immutable field chaining with WithField/WithFields/WithError
//
// Basic Usage:
//
//	err := logger.Initialize(&cfg.Logging)
//
//	log := logger.GetLogger().WithField("run_id", runID)
//	log.InfoWithFields("Institution complete", map[string]interface{}{
//	    "institution": inst.Name,
//	    "added":       result.Added,
//	})
package logger

// Package storage implements the per-institution metadata stores.
//
// Each institution owns one CSV file in the metadata directory, named after
// the sanitized institution name. A store always starts with the header row
// from models.Columns and is only ever appended to:
//   - EnsureHeader creates the file atomically (temporary file plus rename)
//   - LoadIDs rebuilds the identifier set used for deduplication
//   - Append writes one batch per page and fsyncs before returning
//
// Usage:
//
//	manager, err := storage.NewManager("metadata")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store, err := manager.Store(institution)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := store.EnsureHeader(); err != nil {
//	    log.Fatal(err)
//	}
//	ids, err := store.LoadIDs()
package storage

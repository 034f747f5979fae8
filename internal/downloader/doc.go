// Package downloader collects one institution's photo metadata into its
// store, page by page.
//
// The store is the only state: on start the downloader reads the set of
// identifiers already present, walks the institution's public photos from
// page 1 and appends only unseen photos, one synced write per page. Killing
// the process at any point and running again picks up where the store left
// off without duplicating rows.
//
// Rate-limited pages are retried after a cooldown for as long as it takes.
// Any other failure ends the institution with a PARTIAL result and keeps
// every row already written.
package downloader

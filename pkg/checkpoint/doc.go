// Package checkpoint keeps a small progress journal per institution.
//
// A checkpoint records the last page processed, how many records the store
// held and how the last crawl ended. It is written atomically after every
// page so `flico status` can show what an interrupted run was doing.
//
// Checkpoints never drive resumption. The institution's store is the only
// source of truth for what has been collected; a deleted or stale
// checkpoint costs nothing but the status display.
//
// Checkpoints live in a hidden directory inside the metadata directory:
//
//	metadata/
//	    The Library of Congress.csv
//	    .checkpoints/8623220_at_N02.json
package checkpoint

// Package coverage decides which institutions need work.
//
// For every Flickr Commons institution the Assessor compares the remote
// photo total with the number of unique identifiers already in its store,
// then orders institutions least covered first, breaking ties by the
// smaller catalogue.
package coverage

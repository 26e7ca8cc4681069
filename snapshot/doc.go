// Package snapshot writes point-in-time depth views of every company book,
// tagged with the journal sequence they were taken at.
//
// The ledger in pebble is the source of truth; books are rebuilt from it on
// startup. A snapshot records the sequence up to which the journal is
// covered by committed state, so older journal segments can be dropped.
package snapshot

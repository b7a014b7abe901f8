// Package storage keeps the booth's history: photos accepted or rejected
// and notifications shown, with when and why they closed.
//
// Drivers:
//   - file: JSON Lines, no dependencies
//   - sqlite: a single SQLite database file (pure Go driver)
//   - bolt: a bbolt key/value file, keys ordered by time
package storage

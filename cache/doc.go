// Package cache stores recorded inference responses keyed by fingerprint.
//
// It provides a Store interface with a durable file implementation, an
// in-memory implementation, a Redis implementation for sharing entries
// across instances, and a tiered store combining two of them.
//
// Entries are never modified in place. A second Put for a fingerprint
// replaces the whole entry in every implementation. A FileStore writes each entry to a temporary
// file in the destination directory and renames it into place, so a crash
// mid-write leaves at worst an orphaned *.tmp file and never a partial
// entry. Nothing in this package evicts or expires entries on disk.
package cache

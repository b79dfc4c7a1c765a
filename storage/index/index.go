// Package index implements the in-memory B+ tree that maps field values
// to the locators of the rows holding them. A table keeps one tree per
// indexed field and persists it as a snapshot after every mutation.
package index

// Compare orders two keys. It must return a negative number when a < b,
// zero when they are equal and a positive number when a > b, and it must
// be a total order over every key stored in one tree.
type Compare func(a, b any) int

// Bucket holds the values stored under one key, oldest first. A nil
// Bucket is a tombstone: the key was deleted but stays in the tree.
type Bucket []any

// IsTombstone reports whether b marks a deleted key.
func (b Bucket) IsTombstone() bool {
	return b == nil
}

package core

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// dedupPunctuation is replaced by spaces when building a dedup key.
var dedupPunctuation = strings.NewReplacer(
	".", " ",
	",", " ",
	";", " ",
	":", " ",
	"(", " ",
	")", " ",
)

// DedupKey normalizes address text for duplicate comparison:
// NFKC, lowercase, punctuation from ".,;:()" replaced by spaces,
// whitespace runs collapsed, trimmed.
func DedupKey(address string) string {
	s := norm.NFKC.String(address)
	s = strings.ToLower(s)
	s = dedupPunctuation.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// DuplicateChecker answers "was this address seen already?" for one import.
//
// Keys of the records that existed before the import are held separately
// from keys added during it, so the snapshot is never mutated and repeats
// across files of the same batch are still caught.
//
// Not safe for concurrent use; the importer drives it from a single goroutine.
type DuplicateChecker struct {
	existing map[string]struct{}
	batch    map[string]struct{}
}

// NewDuplicateChecker indexes the addresses of existing records.
func NewDuplicateChecker(existing []Record) *DuplicateChecker {
	d := &DuplicateChecker{
		existing: make(map[string]struct{}, len(existing)),
		batch:    make(map[string]struct{}),
	}
	for _, r := range existing {
		if key := DedupKey(r.Address); key != "" {
			d.existing[key] = struct{}{}
		}
	}
	return d
}

// IsDuplicate reports whether address normalizes to a key already seen.
// Addresses with an empty key are never duplicates.
func (d *DuplicateChecker) IsDuplicate(address string) bool {
	key := DedupKey(address)
	if key == "" {
		return false
	}
	if _, ok := d.existing[key]; ok {
		return true
	}
	_, ok := d.batch[key]
	return ok
}

// Add registers address as seen in the current batch. Empty keys are ignored.
func (d *DuplicateChecker) Add(address string) {
	if key := DedupKey(address); key != "" {
		d.batch[key] = struct{}{}
	}
}

// ExistingCount returns the number of keys in the pre-import snapshot.
func (d *DuplicateChecker) ExistingCount() int {
	return len(d.existing)
}

// BatchCount returns the number of keys added during this import.
func (d *DuplicateChecker) BatchCount() int {
	return len(d.batch)
}

package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ErrRecordNotFound is returned when no record has the requested id.
var ErrRecordNotFound = errors.New("record not found")

// ErrDuplicateID is returned by Merge when an incoming id is already taken.
var ErrDuplicateID = errors.New("duplicate record id")

// Collection is the in-memory record set owned by the application.
// The importer never mutates it; callers merge import results explicitly.
type Collection struct {
	mu      sync.RWMutex
	records []Record
	byID    map[int64]int
	keys    map[string]struct{}
}

// NewCollection creates a collection holding records.
func NewCollection(records []Record) (*Collection, error) {
	c := &Collection{}
	if err := c.Replace(records); err != nil {
		return nil, err
	}
	return c, nil
}

// Len returns the number of records.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Records returns a copy of all records in insertion order.
func (c *Collection) Records() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.records)
}

// Get returns the record with the given id.
func (c *Collection) Get(id int64) (Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	return c.records[i], nil
}

// Merge appends records and returns how many were added. Records whose
// address is already present are skipped, which covers two imports that ran
// against the same snapshot. An id collision rejects the whole merge.
func (c *Collection) Merge(records []Record) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		if _, taken := c.byID[r.ID]; taken {
			return 0, fmt.Errorf("%w: %d", ErrDuplicateID, r.ID)
		}
	}

	added := 0
	for _, r := range records {
		key := DedupKey(r.Address)
		if _, dup := c.keys[key]; dup {
			continue
		}
		if _, taken := c.byID[r.ID]; taken {
			continue
		}
		if key != "" {
			c.keys[key] = struct{}{}
		}
		c.byID[r.ID] = len(c.records)
		c.records = append(c.records, r)
		added++
	}
	return added, nil
}

// Replace swaps the whole collection. Ids must be unique.
func (c *Collection) Replace(records []Record) error {
	byID := make(map[int64]int, len(records))
	keys := make(map[string]struct{}, len(records))
	for i, r := range records {
		if _, taken := byID[r.ID]; taken {
			return fmt.Errorf("%w: %d", ErrDuplicateID, r.ID)
		}
		byID[r.ID] = i
		if key := DedupKey(r.Address); key != "" {
			keys[key] = struct{}{}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = slices.Clone(records)
	c.byID = byID
	c.keys = keys
	return nil
}

// Clear removes every record.
func (c *Collection) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
	c.byID = map[int64]int{}
	c.keys = map[string]struct{}{}
}

// Patch updates the user-editable fields of one record.
func (c *Collection) Patch(id int64, patch RecordPatch) (Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.byID[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	r := &c.records[i]
	if patch.Notes != nil {
		r.Notes = strings.TrimSpace(*patch.Notes)
	}
	if patch.CompletionDone != nil {
		r.CompletionDone = *patch.CompletionDone
	}
	return *r, nil
}

// Query searches, filters, sorts and pages the collection.
func (c *Collection) Query(opts QueryOptions) QueryResult {
	return query(c.Records(), opts)
}

// Group is one display bucket of records.
type Group struct {
	Key          string   `json:"key"`
	Count        int      `json:"count"`
	Homes        int      `json:"homes"`
	WithContract int      `json:"withContract"`
	Records      []Record `json:"records"`
}

// Groups buckets records by GroupKey. Groups are sorted by key with
// UnknownGroup last.
func (c *Collection) Groups() []Group {
	records := c.Records()

	index := map[string]int{}
	var groups []Group
	for _, r := range records {
		key := r.GroupKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		g := &groups[i]
		g.Count++
		g.Homes += r.Homes
		if r.HasContract() {
			g.WithContract++
		}
		g.Records = append(g.Records, r)
	}

	col := collate.New(language.German, collate.Numeric)
	slices.SortFunc(groups, func(a, b Group) int {
		switch {
		case a.Key == b.Key:
			return 0
		case a.Key == UnknownGroup:
			return 1
		case b.Key == UnknownGroup:
			return -1
		}
		return col.CompareString(a.Key, b.Key)
	})
	return groups
}

// KPIs summarizes the collection.
type KPIs struct {
	Records      int            `json:"records"`
	Homes        int            `json:"homes"`
	TotalPrice   float64        `json:"totalPrice"`
	WithContract int            `json:"withContract"`
	Completed    int            `json:"completed"`
	Imported     int            `json:"imported"`
	Groups       map[string]int `json:"groups"`
}

// KPIs computes counters over all records.
func (c *Collection) KPIs() KPIs {
	c.mu.RLock()
	defer c.mu.RUnlock()

	k := KPIs{Records: len(c.records), Groups: map[string]int{}}
	for _, r := range c.records {
		k.Homes += r.Homes
		k.TotalPrice += r.Price
		if r.HasContract() {
			k.WithContract++
		}
		if r.CompletionDone {
			k.Completed++
		}
		if r.Imported {
			k.Imported++
		}
		k.Groups[r.GroupKey()]++
	}
	return k
}

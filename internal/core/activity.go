package core

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActivityAction is the kind of change recorded in the activity log.
type ActivityAction string

const (
	ActionImport     ActivityAction = "import"
	ActionRecordEdit ActivityAction = "record_edit"
	ActionReset      ActivityAction = "reset"
	ActionExport     ActivityAction = "export"
)

// ActivitySeverity ranks entries for display.
type ActivitySeverity string

const (
	SeverityLow      ActivitySeverity = "low"
	SeverityMedium   ActivitySeverity = "medium"
	SeverityHigh     ActivitySeverity = "high"
	SeverityCritical ActivitySeverity = "critical"
)

// DefaultActivityCapacity is the number of entries kept when no capacity is given.
const DefaultActivityCapacity = 1000

// DefaultActivityLimit is the page size of List when the filter has none.
const DefaultActivityLimit = 50

// ActivityEntry is one recorded change.
type ActivityEntry struct {
	ID           string           `json:"id"`
	Action       ActivityAction   `json:"action"`
	Severity     ActivitySeverity `json:"severity"`
	BatchID      string           `json:"batchId,omitempty"`
	RecordID     int64            `json:"recordId,omitempty"`
	Field        string           `json:"field,omitempty"`
	OldValue     string           `json:"oldValue,omitempty"`
	NewValue     string           `json:"newValue,omitempty"`
	Files        []string         `json:"files,omitempty"`
	RowsAffected int              `json:"rowsAffected"`
	IPAddress    string           `json:"ipAddress,omitempty"`
	UserAgent    string           `json:"userAgent,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// ActivityParams describes an entry to record. ID, severity and timestamp
// are filled in by the log.
type ActivityParams struct {
	Action       ActivityAction
	BatchID      string
	RecordID     int64
	Field        string
	OldValue     string
	NewValue     string
	Files        []string
	RowsAffected int
	IPAddress    string
	UserAgent    string
}

// determineSeverity returns the severity for an action.
func determineSeverity(action ActivityAction) ActivitySeverity {
	switch action {
	case ActionImport:
		return SeverityHigh
	case ActionReset:
		return SeverityCritical
	case ActionExport:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// ActivityLog keeps the most recent entries in memory. Once full, the oldest
// entry is dropped for each new one.
type ActivityLog struct {
	mu       sync.RWMutex
	entries  []ActivityEntry
	next     int
	full     bool
	capacity int
	now      func() time.Time
}

// NewActivityLog creates a log holding at most capacity entries.
func NewActivityLog(capacity int) *ActivityLog {
	if capacity <= 0 {
		capacity = DefaultActivityCapacity
	}
	return &ActivityLog{
		entries:  make([]ActivityEntry, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Log records an entry and returns it.
func (l *ActivityLog) Log(p ActivityParams) ActivityEntry {
	e := ActivityEntry{
		ID:           uuid.NewString(),
		Action:       p.Action,
		Severity:     determineSeverity(p.Action),
		BatchID:      p.BatchID,
		RecordID:     p.RecordID,
		Field:        p.Field,
		OldValue:     p.OldValue,
		NewValue:     p.NewValue,
		Files:        slices.Clone(p.Files),
		RowsAffected: p.RowsAffected,
		IPAddress:    p.IPAddress,
		UserAgent:    p.UserAgent,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	e.CreatedAt = l.now()
	l.entries[l.next] = e
	l.next = (l.next + 1) % l.capacity
	if l.next == 0 {
		l.full = true
	}
	return e
}

// Len returns the number of retained entries.
func (l *ActivityLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.full {
		return l.capacity
	}
	return l.next
}

// ActivityFilter selects entries from the log.
type ActivityFilter struct {
	Action    ActivityAction
	BatchID   string
	RecordID  int64
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

func (f ActivityFilter) matches(e ActivityEntry) bool {
	switch {
	case f.Action != "" && e.Action != f.Action:
		return false
	case f.BatchID != "" && e.BatchID != f.BatchID:
		return false
	case f.RecordID != 0 && e.RecordID != f.RecordID:
		return false
	case !f.StartTime.IsZero() && e.CreatedAt.Before(f.StartTime):
		return false
	case !f.EndTime.IsZero() && !e.CreatedAt.Before(f.EndTime):
		return false
	}
	return true
}

// ActivityPage is one page of entries, newest first.
type ActivityPage struct {
	Entries []ActivityEntry `json:"entries"`
	Total   int             `json:"total"`
	Offset  int             `json:"offset"`
	Limit   int             `json:"limit"`
}

// List returns matching entries, newest first.
func (l *ActivityLog) List(f ActivityFilter) ActivityPage {
	if f.Limit <= 0 {
		f.Limit = DefaultActivityLimit
	}
	f.Offset = max(f.Offset, 0)

	l.mu.RLock()
	defer l.mu.RUnlock()

	n := l.next
	if l.full {
		n = l.capacity
	}
	var matched []ActivityEntry
	for i := 1; i <= n; i++ {
		e := l.entries[(l.next-i+l.capacity)%l.capacity]
		if f.matches(e) {
			matched = append(matched, e)
		}
	}

	page := ActivityPage{Total: len(matched), Offset: f.Offset, Limit: f.Limit, Entries: []ActivityEntry{}}
	if f.Offset < len(matched) {
		page.Entries = matched[f.Offset:min(f.Offset+f.Limit, len(matched))]
	}
	return page
}

// Get returns the entry with the given id.
func (l *ActivityLog) Get(id string) (ActivityEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.ID != "" && e.ID == id {
			return e, true
		}
	}
	return ActivityEntry{}, false
}

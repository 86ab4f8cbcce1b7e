// Package members accumulates struct/union member usage across a whole
// translation unit. Usage is type-wide, not instance-wide: a read of s.x
// in one function marks member x used for every instance of the type.
package members

import (
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/varflow/varflow/pkg/ir"
)

// AccessKind distinguishes reads from writes. Writes alone do not make a
// member used.
type AccessKind uint8

const (
	AccessRead AccessKind = iota
	AccessWrite
)

// Verdict is the finalized usage of one member.
type Verdict struct {
	Record string
	Member string
	Used   bool
	At     ir.Position
}

// Tracker is the shared accumulator. All methods are safe for concurrent
// use by walker goroutines; contention is bounded by source size, so a
// mutex-guarded map suffices.
type Tracker struct {
	mu      sync.Mutex
	ids     map[string]uint32 // "record\x00member" -> dense id
	next    uint32
	read    *roaring.Bitmap
	written *roaring.Bitmap
	exempt  map[string]bool // record name -> excluded from reporting
}

// NewTracker creates an empty tracker for one translation unit.
func NewTracker() *Tracker {
	return &Tracker{
		ids:     make(map[string]uint32),
		read:    roaring.New(),
		written: roaring.New(),
		exempt:  make(map[string]bool),
	}
}

func memberKey(record, member string) string {
	return record + "\x00" + member
}

func (t *Tracker) idLocked(record, member string) uint32 {
	key := memberKey(record, member)
	id, ok := t.ids[key]
	if !ok {
		id = t.next
		t.next++
		t.ids[key] = id
	}
	return id
}

// RecordAccess notes a read or write of a member on any instance.
func (t *Tracker) RecordAccess(record, member string, kind AccessKind) {
	if record == "" || member == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.idLocked(record, member)
	if kind == AccessRead {
		t.read.Add(id)
	} else {
		t.written.Add(id)
	}
}

// MarkAllRead conservatively marks every listed member read. Used when a
// whole object's address escapes through a cast: pointer arithmetic can
// reach any member from there.
func (t *Tracker) MarkAllRead(record string, members []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range members {
		t.read.Add(t.idLocked(record, m))
	}
}

// Exempt excludes a record from the unused-member diagnostic entirely.
// Applied for fixed-layout obligations and externally visible instances,
// where the memory layout is load-bearing without a textual read.
func (t *Tracker) Exempt(record string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exempt[record] = true
}

// Exempted reports whether a record was excluded.
func (t *Tracker) Exempted(record string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exempt[record]
}

// Finalize produces a verdict per declared member of every known record.
// Members of exempt records are skipped. The record definitions come from
// the scope model; a member access recorded for a type the scope model
// never saw is a host defect and is skipped, not fatal.
func (t *Tracker) Finalize(records map[string]*ir.RecordType) []Verdict {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Verdict
	for name, rec := range records {
		if t.exempt[name] || rec.FixedLayout || rec.ExternalInstances {
			continue
		}
		for _, m := range rec.Members {
			id, seen := t.ids[memberKey(name, m.Name)]
			used := seen && t.read.Contains(id)
			out = append(out, Verdict{
				Record: name,
				Member: m.Name,
				Used:   used,
				At:     m.At,
			})
		}
	}
	return out
}

// Stats returns accumulated counters, for verbose reporting.
func (t *Tracker) Stats() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("%d members tracked, %d read, %d written",
		len(t.ids), t.read.GetCardinality(), t.written.GetCardinality())
}

package prune

import (
	"sync"
)

// Ledger accumulates the three disjoint outcome buckets of a run.
// Appends are atomic; no ordering is guaranteed across appenders.
type Ledger struct {
	lock            *sync.Mutex
	deleted         []string
	failed          []string
	needsAssistance []string
}

func NewLedger() *Ledger {
	return &Ledger{
		lock:            new(sync.Mutex),
		deleted:         make([]string, 0),
		failed:          make([]string, 0),
		needsAssistance: make([]string, 0),
	}
}

func (l *Ledger) RecordDeleted(entry string) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.deleted = append(l.deleted, entry)
}

func (l *Ledger) RecordFailed(entry string) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.failed = append(l.failed, entry)
}

func (l *Ledger) RecordNeedsAssistance(entry string) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.needsAssistance = append(l.needsAssistance, entry)
}

func (l *Ledger) Deleted() []string {
	l.lock.Lock()
	defer l.lock.Unlock()

	return append([]string{}, l.deleted...)
}

func (l *Ledger) Failed() []string {
	l.lock.Lock()
	defer l.lock.Unlock()

	return append([]string{}, l.failed...)
}

func (l *Ledger) NeedsAssistance() []string {
	l.lock.Lock()
	defer l.lock.Unlock()

	return append([]string{}, l.needsAssistance...)
}

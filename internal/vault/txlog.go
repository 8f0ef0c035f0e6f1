package vault

// txLog records the inverses of an optimistic local update so a failed
// authoritative write can be rolled back exactly, instead of each handler
// maintaining hand-written revert branches.
//
// Usage: apply each tentative change, record its inverse, then either
// Commit (discard the inverses) on a successful write or Rollback (apply
// them newest-first) on failure.
type txLog struct {
	inverses []func()
}

// Record registers the inverse of a change that was just applied.
func (l *txLog) Record(inverse func()) {
	l.inverses = append(l.inverses, inverse)
}

// Rollback applies the recorded inverses in reverse order and clears the
// log.
func (l *txLog) Rollback() {
	for i := len(l.inverses) - 1; i >= 0; i-- {
		l.inverses[i]()
	}

	l.inverses = nil
}

// Commit discards the recorded inverses, making the tentative changes
// permanent.
func (l *txLog) Commit() {
	l.inverses = nil
}

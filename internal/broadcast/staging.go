package broadcast

import "sync"

// Staging holds at most one pending creative per admin. A new submission
// overwrites the previous one; confirm and cancel clear the slot.
type Staging struct {
	mu    sync.Mutex
	slots map[int64]Creative
}

func NewStaging() *Staging {
	return &Staging{slots: make(map[int64]Creative)}
}

func (st *Staging) Stage(adminID int64, c Creative) {
	st.mu.Lock()
	st.slots[adminID] = c
	st.mu.Unlock()
}

func (st *Staging) Peek(adminID int64) (Creative, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	c, ok := st.slots[adminID]
	return c, ok
}

// Take reads and clears the slot in one step, so two near-simultaneous
// confirms can never both see the same creative.
func (st *Staging) Take(adminID int64) (Creative, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	c, ok := st.slots[adminID]
	if ok {
		delete(st.slots, adminID)
	}
	return c, ok
}

// Clear removes the pending creative. Idempotent.
func (st *Staging) Clear(adminID int64) {
	st.mu.Lock()
	delete(st.slots, adminID)
	st.mu.Unlock()
}

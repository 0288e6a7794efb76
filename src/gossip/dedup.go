package gossip

// DedupWindow remembers the most recently seen message ids, bounded to a
// fixed capacity, the same fixed-size-ring shape as babble's
// common.RollingIndex. Capacity here is small (protocol.GossipDedupWindow)
// so a plain slice-with-eviction is simpler than porting RollingIndex's
// skip/diff bookkeeping, which exists to serve much larger event caches.
// Like ValidatorSet, it is owned exclusively by the node's event loop and
// carries no lock of its own.
type DedupWindow struct {
	capacity int
	ids      []string
	seen     map[string]struct{}
}

// NewDedupWindow returns an empty window capped at capacity ids.
func NewDedupWindow(capacity int) *DedupWindow {
	return &DedupWindow{
		capacity: capacity,
		ids:      make([]string, 0, capacity),
		seen:     make(map[string]struct{}, capacity),
	}
}

// Seen reports whether id has already been recorded, without recording it.
// spec.md §4.4 step 1's reject gates (missing fields, duplicate id, bad
// signature) must all clear before step 2 records the id, so checking
// membership can never by itself consume a window slot — only Record does
// that, and only once an envelope has passed every step 1 gate including
// signature verification.
func (d *DedupWindow) Seen(id string) bool {
	_, ok := d.seen[id]
	return ok
}

// Record adds id to the window, evicting the oldest id once the window is
// over capacity. Callers must have already checked Seen; Record does not
// re-check.
func (d *DedupWindow) Record(id string) {
	if len(d.ids) >= d.capacity {
		oldest := d.ids[0]
		d.ids = d.ids[1:]
		delete(d.seen, oldest)
	}

	d.ids = append(d.ids, id)
	d.seen[id] = struct{}{}
}

// SeenOrRecord reports whether id has already been recorded. If it has not,
// it is recorded and the oldest id is evicted once the window is over
// capacity. Kept for callers that have no reason to delay recording past
// the membership check (e.g. tests exercising the window in isolation);
// handleFrame does not use it, since it must verify the envelope's
// signature between the check and the record.
func (d *DedupWindow) SeenOrRecord(id string) bool {
	if d.Seen(id) {
		return true
	}
	d.Record(id)
	return false
}

// Len reports how many ids are currently retained, for tests asserting the
// dedup-bound property (spec P3).
func (d *DedupWindow) Len() int {
	return len(d.ids)
}

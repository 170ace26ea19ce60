package breaker

import "github.com/TemamAb/ainex-sub004/internal/domain"

// eventRing is a fixed-capacity ring of error events. Appends never allocate
// past the capacity and never block; once full, the oldest event is evicted.
// Callers synchronize access (the breaker holds its mutex).
type eventRing struct {
	buf   []domain.ErrorEvent
	next  int
	count int
}

func newEventRing(capacity int) *eventRing {
	return &eventRing{buf: make([]domain.ErrorEvent, capacity)}
}

func (r *eventRing) append(ev domain.ErrorEvent) {
	r.buf[r.next] = ev
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// recent returns up to limit of the newest events in chronological order.
// limit <= 0 returns all retained events.
func (r *eventRing) recent(limit int) []domain.ErrorEvent {
	if limit <= 0 || limit > r.count {
		limit = r.count
	}
	out := make([]domain.ErrorEvent, 0, limit)
	start := r.next - limit
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < limit; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

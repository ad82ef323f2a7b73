package rockgate

import (
	"sync"

	"github.com/neogan74/rockgate/internal/logger"
	"github.com/neogan74/rockgate/internal/metrics"
)

// resource is anything with an engine-side counterpart that must be closed
// before the owning database releases its handle. forceClose is invoked by
// the database's close sweep; it must be idempotent and must tolerate
// concurrent use of the resource by its owner.
type resource interface {
	forceClose()
}

type trackedResource struct {
	res  resource
	kind string
}

// resourceTracker registers the live dependent resources of one database
// handle. Attach is refused once the close sweep has started; detach is
// callable from a resource's own close path because the sweep never holds
// the lock while closing.
type resourceTracker struct {
	mu        sync.Mutex
	resources map[uint64]trackedResource
	nextID    uint64
	closing   bool
}

func newResourceTracker() *resourceTracker {
	return &resourceTracker{
		resources: make(map[uint64]trackedResource),
	}
}

func (t *resourceTracker) attach(kind string, r resource) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closing {
		return 0, ErrNotOpen
	}
	t.nextID++
	id := t.nextID
	t.resources[id] = trackedResource{res: r, kind: kind}
	metrics.ActiveResources.WithLabelValues(kind).Inc()
	return id, nil
}

func (t *resourceTracker) detach(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tracked, ok := t.resources[id]
	if !ok {
		return
	}
	delete(t.resources, id)
	metrics.ActiveResources.WithLabelValues(tracked.kind).Dec()
}

// count returns the number of live resources.
func (t *resourceTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.resources)
}

// closeAll marks the tracker closing and force-closes every resource still
// attached. Resources detach themselves while this runs; the snapshot taken
// under the lock guarantees each is closed exactly once and none is missed.
func (t *resourceTracker) closeAll(log logger.Logger) {
	t.mu.Lock()
	t.closing = true
	snapshot := make([]trackedResource, 0, len(t.resources))
	for _, tracked := range t.resources {
		snapshot = append(snapshot, tracked)
	}
	t.mu.Unlock()

	for _, tracked := range snapshot {
		log.Debug("force closing resource", logger.String("kind", tracked.kind))
		tracked.res.forceClose()
	}
}

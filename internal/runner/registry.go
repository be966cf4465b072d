package runner

import (
	"sync"

	"github.com/cormorantdev/preflight/internal/procexec"
)

// Registry tracks the process handles of currently running steps so that
// fail-fast and shutdown paths can terminate them as a group. Its
// lifetime is scoped to one validation run; only the schedulers mutate
// it.
type Registry struct {
	mu      sync.Mutex
	nextID  int
	handles map[int]*procexec.Handle
	// terminated latches once TerminateAll has fired. A handle whose
	// Spawn raced the trigger and registers afterwards is killed on
	// arrival instead of escaping the sweep.
	terminated bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[int]*procexec.Handle)}
}

// Add tracks a live handle and returns a token for Remove. If the
// registry has already been terminated, the handle is killed before Add
// returns; the caller's Wait then closes promptly.
func (r *Registry) Add(h *procexec.Handle) int {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.handles[id] = h
	late := r.terminated
	r.mu.Unlock()

	if late {
		_ = h.Terminate()
	}
	return id
}

// Remove stops tracking a handle once its process has closed.
func (r *Registry) Remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, id)
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// TerminateAll kills every tracked process group and waits for each to
// acknowledge, then leaves the registry latched: handles added later are
// terminated on registration. Already-exited processes are tolerated.
// The snapshot is taken under the lock but termination runs outside it,
// so steps closing concurrently can still deregister themselves.
func (r *Registry) TerminateAll() {
	r.mu.Lock()
	r.terminated = true
	snapshot := make([]*procexec.Handle, 0, len(r.handles))
	for _, h := range r.handles {
		snapshot = append(snapshot, h)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, h := range snapshot {
		wg.Add(1)
		go func(h *procexec.Handle) {
			defer wg.Done()
			_ = h.Terminate()
		}(h)
	}
	wg.Wait()
}

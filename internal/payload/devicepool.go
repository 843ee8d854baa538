package payload

import "sync"

// DevicePool is the run-scoped registry of device ids handed out so far.
// It only grows; every method is safe for concurrent use.
type DevicePool struct {
	mu   sync.Mutex
	ids  []string
	seen map[string]struct{}
}

func NewDevicePool() *DevicePool {
	return &DevicePool{seen: make(map[string]struct{})}
}

// Add inserts id and reports whether it was new. Duplicates are ignored.
func (p *DevicePool) Add(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.seen[id]; ok {
		return false
	}
	p.seen[id] = struct{}{}
	p.ids = append(p.ids, id)
	return true
}

// Sample returns the id at intn(len) under the lock, or false when empty.
func (p *DevicePool) Sample(intn func(n int) int) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.ids) == 0 {
		return "", false
	}
	return p.ids[intn(len(p.ids))], true
}

func (p *DevicePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}

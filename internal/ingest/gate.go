package ingest

import "sync"

// keyGate serializes flushes that share variant keys. A batch is admitted
// only when none of its keys is held, and admission claims all of them at
// once, so in-flight flushes always write disjoint variant nodes.
type keyGate struct {
	mu   sync.Mutex
	cond *sync.Cond
	held map[string]struct{}
}

func newKeyGate() *keyGate {
	g := &keyGate{held: make(map[string]struct{})}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *keyGate) acquire(keys []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.conflicts(keys) {
		g.cond.Wait()
	}
	for _, k := range keys {
		g.held[k] = struct{}{}
	}
}

func (g *keyGate) release(keys []string) {
	g.mu.Lock()
	for _, k := range keys {
		delete(g.held, k)
	}
	g.mu.Unlock()
	g.cond.Broadcast()
}

func (g *keyGate) conflicts(keys []string) bool {
	for _, k := range keys {
		if _, ok := g.held[k]; ok {
			return true
		}
	}
	return false
}

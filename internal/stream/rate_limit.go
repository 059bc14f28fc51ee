package stream

import (
	"errors"
	"sync"
)

var (
	errPerIPLimit  = errors.New("too many concurrent streams from this address")
	errGlobalLimit = errors.New("stream capacity reached")
)

// connGate admits SSE connections up to a per-address and a global cap.
type connGate struct {
	mu       sync.Mutex
	perIP    map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newConnGate(maxPerIP, maxTotal int) *connGate {
	if maxPerIP <= 0 {
		maxPerIP = 10
	}
	if maxTotal <= 0 {
		maxTotal = 1000
	}
	return &connGate{perIP: make(map[string]int), maxPerIP: maxPerIP, maxTotal: maxTotal}
}

// admit reserves a slot for ip. The returned release must be called exactly
// once when the stream ends.
func (g *connGate) admit(ip string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case g.total >= g.maxTotal:
		return nil, errGlobalLimit
	case g.perIP[ip] >= g.maxPerIP:
		return nil, errPerIPLimit
	}
	g.perIP[ip]++
	g.total++

	var once sync.Once
	return func() { once.Do(func() { g.leave(ip) }) }, nil
}

func (g *connGate) leave(ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.total--
	if g.perIP[ip]--; g.perIP[ip] <= 0 {
		delete(g.perIP, ip)
	}
}

// inUse reports the open streams for ip and overall.
func (g *connGate) inUse(ip string) (forIP, total int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.perIP[ip], g.total
}

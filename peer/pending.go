package peer

import (
	"sort"
	"sync"
	"time"
)

type pendingCall struct {
	deferred  *Deferred
	fn        string
	timestamp time.Time
}

// pendingTable tracks outstanding calls by correlation ID. Once closed, no new
// calls can be added.
type pendingTable struct {
	mu     sync.Mutex
	calls  map[string]pendingCall
	closed bool
}

func (p *pendingTable) add(id string, fn string) (*Deferred, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrDestroyed
	}
	if p.calls == nil {
		p.calls = map[string]pendingCall{}
	}
	d := NewDeferred()
	p.calls[id] = pendingCall{
		deferred:  d,
		fn:        fn,
		timestamp: time.Now(),
	}
	return d, nil
}

// take removes and returns the pending call for id.
func (p *pendingTable) take(id string) (pendingCall, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	call, ok := p.calls[id]
	if ok {
		delete(p.calls, id)
	}
	return call, ok
}

func (p *pendingTable) remove(id string) {
	p.mu.Lock()
	delete(p.calls, id)
	p.mu.Unlock()
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// drain closes the table and returns every outstanding call, oldest first.
func (p *pendingTable) drain() []pendingCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	calls := make([]pendingCall, 0, len(p.calls))
	for _, item := range pendingOldest(p.calls, len(p.calls)) {
		calls = append(calls, p.calls[item.key])
	}
	p.calls = nil
	return calls
}

type pendingItem struct {
	key       string
	timestamp time.Time
}

type pendingQueue []pendingItem

func (p pendingQueue) Len() int {
	return len(p)
}

func (p pendingQueue) Less(i, j int) bool {
	return p[i].timestamp.Before(p[j].timestamp)
}

func (p pendingQueue) Swap(i, j int) {
	p[i], p[j] = p[j], p[i]
}

func pendingOldest(pending map[string]pendingCall, num int) pendingQueue {
	if num > len(pending) {
		num = len(pending)
	}
	queue := make(pendingQueue, 0, len(pending))
	for key, p := range pending {
		queue = append(queue, pendingItem{
			key, p.timestamp,
		})
	}
	sort.Sort(queue)
	return queue[:num]
}

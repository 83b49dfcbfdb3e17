package worker

import "sync"

// ClientPool holds one Client per worker id, all sharing one Sender.
type ClientPool struct {
	sender Sender

	mu      sync.Mutex
	clients map[string]*Client
}

// NewClientPool creates an empty pool over sender.
func NewClientPool(sender Sender) *ClientPool {
	return &ClientPool{sender: sender, clients: make(map[string]*Client)}
}

// Client returns the client for workerID, creating it on first use.
func (p *ClientPool) Client(workerID string) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.clients[workerID]
	if !ok {
		c = NewClient(workerID, p.sender)
		p.clients[workerID] = c
	}
	return c
}

// Stats returns per-client statistics keyed by worker id.
func (p *ClientPool) Stats() map[string]ClientStats {
	p.mu.Lock()
	clients := make(map[string]*Client, len(p.clients))
	for id, c := range p.clients {
		clients[id] = c
	}
	p.mu.Unlock()

	out := make(map[string]ClientStats, len(clients))
	for id, c := range clients {
		out[id] = c.Stats()
	}
	return out
}

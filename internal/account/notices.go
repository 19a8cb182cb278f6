package account

import "sync"

// NoticeKind styles a notice on the page.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient message for one session, shown once.
type Notice struct {
	Kind NoticeKind `json:"type"`
	Text string     `json:"text"`
}

// Notices holds undelivered notices per session.
type Notices struct {
	mu      sync.Mutex
	pending map[string][]Notice
}

// NewNotices returns an empty notice box.
func NewNotices() *Notices {
	return &Notices{pending: make(map[string][]Notice)}
}

// Push queues a notice for the session key.
func (n *Notices) Push(key string, notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending[key] = append(n.pending[key], notice)
}

// Evict discards undelivered notices for a session that ended.
func (n *Notices) Evict(key string) {
	n.mu.Lock()
	delete(n.pending, key)
	n.mu.Unlock()
}

// Pop returns and clears the session's queued notices.
func (n *Notices) Pop(key string) []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.pending[key]
	delete(n.pending, key)
	return out
}

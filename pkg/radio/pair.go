package radio

import "sync"

// Endpoint is one side of an in-memory radio link.
// MaxFrameSize of 0 means unlimited.
type Endpoint struct {
	MaxFrameSize int

	inbox *Inbox
	peer  *Endpoint
	sent  int
	lock  sync.Mutex
}

// Pair creates two endpoints linked to each other.
func Pair(maxFrameSize int) (*Endpoint, *Endpoint) {
	a := &Endpoint{MaxFrameSize: maxFrameSize, inbox: NewInbox(0)}
	b := &Endpoint{MaxFrameSize: maxFrameSize, inbox: NewInbox(0)}
	a.peer, b.peer = b, a
	return a, b
}

// Loopback creates an endpoint without a peer, sent packets are discarded.
func Loopback(maxFrameSize int) *Endpoint {
	return &Endpoint{MaxFrameSize: maxFrameSize, inbox: NewInbox(0)}
}

// Receive implements Radio.
func (e *Endpoint) Receive() ([]byte, error) {
	return e.inbox.Pop(), nil
}

// Send implements Radio.
func (e *Endpoint) Send(pkt []byte) error {
	if e.MaxFrameSize > 0 {
		if err := CheckFrameSize(pkt, e.MaxFrameSize); err != nil {
			return err
		}
	}
	e.lock.Lock()
	e.sent++
	e.lock.Unlock()
	if e.peer != nil {
		e.peer.inbox.Push(append([]byte(nil), pkt...))
	}
	return nil
}

// Sent returns the number of packets sent successfully.
func (e *Endpoint) Sent() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.sent
}

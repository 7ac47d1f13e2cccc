package radio

import "github.com/golang/glog"

// DefaultInboxSize is the number of packets buffered by an Inbox.
const DefaultInboxSize = 8

// Inbox buffers packets received asynchronously by a transport until the
// radio task polls them. When full, the oldest packet is dropped.
type Inbox struct {
	ch chan []byte
}

// NewInbox creates an Inbox.
func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Inbox{ch: make(chan []byte, size)}
}

// Push enqueues a packet without blocking.
func (b *Inbox) Push(pkt []byte) {
	for {
		select {
		case b.ch <- pkt:
			return
		default:
		}
		select {
		case <-b.ch:
			glog.V(2).Info("inbox full, oldest packet dropped")
		default:
		}
	}
}

// Pop dequeues a packet, or returns nil if empty.
func (b *Inbox) Pop() []byte {
	select {
	case pkt := <-b.ch:
		return pkt
	default:
		return nil
	}
}

// Len returns the number of buffered packets.
func (b *Inbox) Len() int {
	return len(b.ch)
}

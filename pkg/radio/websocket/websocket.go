// Package websocket shares a simulated air channel through a websocket hub.
package websocket

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/robotalks/spinbot/pkg/framework"
	"github.com/robotalks/spinbot/pkg/radio"
)

// DefaultMTU matches the link payload limit.
const DefaultMTU = 64

// Radio implements radio.Radio as a websocket client of a Hub.
type Radio struct {
	MTU int

	conn  *websocket.Conn
	inbox *radio.Inbox
}

// New wraps websocket.Conn.
func New(conn *websocket.Conn, mtu int) *Radio {
	return &Radio{MTU: mtu, conn: conn, inbox: radio.NewInbox(0)}
}

// Dial connects to a Hub, e.g. ws://localhost:8069/air?mtu=64
func Dial(rawURL string) (*Radio, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid radio URL: %w", err)
	}
	mtu := DefaultMTU
	if val := u.Query().Get("mtu"); val != "" {
		if mtu, err = strconv.Atoi(val); err != nil {
			return nil, fmt.Errorf("invalid mtu %q: %w", val, err)
		}
	}
	origin := "http://" + u.Host + "/"
	conn, err := websocket.Dial(rawURL, "", origin)
	if err != nil {
		return nil, err
	}
	return New(conn, mtu), nil
}

// Receive implements radio.Radio.
func (r *Radio) Receive() ([]byte, error) {
	return r.inbox.Pop(), nil
}

// Send implements radio.Radio.
func (r *Radio) Send(pkt []byte) error {
	if r.MTU > 0 {
		if err := radio.CheckFrameSize(pkt, r.MTU); err != nil {
			return err
		}
	}
	return websocket.Message.Send(r.conn, pkt)
}

// Run implements framework.Runnable.
func (r *Radio) Run(ctx context.Context) error {
	return framework.RunWithContextCloser(ctx, r.conn, func() error {
		for {
			var pkt []byte
			if err := websocket.Message.Receive(r.conn, &pkt); err != nil {
				return err
			}
			r.inbox.Push(pkt)
		}
	})
}

// Hub relays every frame received from one peer to all the other peers.
type Hub struct {
	// OnFrame is invoked with every relayed frame if set.
	OnFrame func(pkt []byte)

	lock  sync.RWMutex
	peers map[*websocket.Conn]struct{}
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{peers: make(map[*websocket.Conn]struct{})}
}

// Peers returns the number of connected peers.
func (h *Hub) Peers() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.peers)
}

// Handler returns the websocket handler serving peers.
func (h *Hub) Handler() websocket.Handler {
	return websocket.Handler(h.serve)
}

func (h *Hub) serve(conn *websocket.Conn) {
	h.lock.Lock()
	h.peers[conn] = struct{}{}
	h.lock.Unlock()
	defer func() {
		h.lock.Lock()
		delete(h.peers, conn)
		h.lock.Unlock()
	}()
	for {
		var pkt []byte
		if err := websocket.Message.Receive(conn, &pkt); err != nil {
			return
		}
		if fn := h.OnFrame; fn != nil {
			fn(pkt)
		}
		h.lock.RLock()
		for peer := range h.peers {
			if peer != conn {
				websocket.Message.Send(peer, pkt)
			}
		}
		h.lock.RUnlock()
	}
}

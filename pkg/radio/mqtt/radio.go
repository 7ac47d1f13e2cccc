package mqtt

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	"github.com/robotalks/spinbot/pkg/radio"
)

// Defaults of the simulated air channel.
const (
	DefaultChannel = "915"
	DefaultMTU     = 64
	// DefaultTimeout bounds waiting for the broker on Send.
	DefaultTimeout = 5 * time.Second
)

// Radio implements radio.Radio on an MQTT air channel. Every radio on the
// same channel receives what the others send.
type Radio struct {
	Queue   *Queue
	Channel string
	Tag     string
	MTU     int
	Timeout time.Duration

	inbox *radio.Inbox
}

// DefaultTag derives a stable tag identifying this machine.
func DefaultTag() string {
	id, err := machineid.ProtectedID("spinbot")
	if err != nil || len(id) < 8 {
		glog.V(2).Infof("machine id unavailable: %v", err)
		return "pid" + strconv.Itoa(os.Getpid())
	}
	return id[:8]
}

// Open creates a Radio from URL, e.g.
// mqtt://localhost:1883/spinbot/air/?channel=915&mtu=64&tag=bot
// It doesn't connect.
func Open(rawURL string) (*Radio, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid radio URL: %w", err)
	}
	r := &Radio{
		Channel: DefaultChannel,
		Tag:     DefaultTag(),
		MTU:     DefaultMTU,
		Timeout: DefaultTimeout,
		inbox:   radio.NewInbox(0),
	}
	query := u.Query()
	if val := query.Get("channel"); val != "" {
		r.Channel = val
	}
	if val := query.Get("tag"); val != "" {
		r.Tag = val
	}
	if val := query.Get("mtu"); val != "" {
		if r.MTU, err = strconv.Atoi(val); err != nil {
			return nil, fmt.Errorf("invalid mtu %q: %w", val, err)
		}
	}
	if strings.Contains(r.Tag, "/") || strings.Contains(r.Channel, "/") {
		return nil, fmt.Errorf("channel and tag must not contain '/'")
	}
	opts, prefix, err := ClientOptionsFromURL(rawURL)
	if err != nil {
		return nil, err
	}
	if opts.ClientID == "" {
		opts.SetClientID("spinbot-" + r.Tag)
	}
	r.Queue = NewQueue(opts, prefix)
	r.Queue.Sub(r.Channel+"/+", r.handle)
	return r, nil
}

// Connect connects to the broker.
func (r *Radio) Connect(timeout time.Duration) error {
	token := r.Queue.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt connect: %w", radio.ErrTimeout)
	}
	return token.Error()
}

// Close disconnects from the broker.
func (r *Radio) Close() error {
	return r.Queue.Close()
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
	token := r.Queue.Pub(r.Channel+"/"+r.Tag, pkt)
	if !token.WaitTimeout(r.Timeout) {
		return fmt.Errorf("mqtt publish: %w", radio.ErrTimeout)
	}
	return token.Error()
}

func (r *Radio) handle(topic string, payload []byte) {
	if strings.HasSuffix(topic, "/"+r.Tag) {
		return
	}
	if r.MTU > 0 && len(payload) > r.MTU {
		glog.V(2).Infof("oversized frame of %d bytes from %s dropped", len(payload), topic)
		return
	}
	r.inbox.Push(payload)
}

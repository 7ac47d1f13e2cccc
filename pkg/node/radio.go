package node

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/robotalks/spinbot/pkg/link"
	"github.com/robotalks/spinbot/pkg/radio"
	"github.com/robotalks/spinbot/pkg/radio/mqtt"
	"github.com/robotalks/spinbot/pkg/radio/rfm69"
	"github.com/robotalks/spinbot/pkg/radio/stream"
	"github.com/robotalks/spinbot/pkg/radio/websocket"
)

// ConnectTimeout bounds connecting to network transports.
const ConnectTimeout = 5 * time.Second

// OpenRadio opens the radio transport selected by the URL scheme.
// The returned radio may also implement framework.Runnable, which must run
// to receive packets, and io.Closer.
func OpenRadio(radioURL string) (radio.Radio, error) {
	u, err := url.Parse(radioURL)
	if err != nil {
		return nil, fmt.Errorf("invalid radio URL: %w", err)
	}
	switch u.Scheme {
	case "rfm69":
		return openRFM69(u)
	case "mqtt", "tcp", "ssl":
		r, err := mqtt.Open(radioURL)
		if err != nil {
			return nil, err
		}
		if err := r.Connect(ConnectTimeout); err != nil {
			return nil, err
		}
		return r, nil
	case "serial":
		return stream.Open(radioURL)
	case "ws", "wss":
		return websocket.Dial(radioURL)
	case "loop":
		return radio.Loopback(link.MaxPayloadSize), nil
	default:
		return nil, fmt.Errorf("unknown radio URL scheme: %q", u.Scheme)
	}
}

type rfm69Radio struct {
	*rfm69.Dev
	port spi.PortCloser
}

func (r *rfm69Radio) Close() error {
	r.Dev.Close()
	return r.port.Close()
}

// openRFM69 opens rfm69://<spi-port>?reset=<gpio>&freq=<MHz>&power=<dBm>&node=<addr>
func openRFM69(u *url.URL) (radio.Radio, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	opts := rfm69.DefaultOpts
	query := u.Query()
	if val := query.Get("freq"); val != "" {
		freq, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid freq %q: %w", val, err)
		}
		opts.FrequencyMHz = freq
	}
	if val := query.Get("power"); val != "" {
		power, err := strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("invalid power %q: %w", val, err)
		}
		opts.TxPower = power
	}
	if val := query.Get("node"); val != "" {
		node, err := strconv.ParseUint(val, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid node %q: %w", val, err)
		}
		opts.Node = byte(node)
	}
	if query.Get("highpower") == "false" {
		opts.HighPower = false
	}

	var reset gpio.PinOut
	if name := query.Get("reset"); name != "" {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("unknown reset pin %q", name)
		}
		reset = pin
	}

	name := u.Host
	if name == "" {
		name = u.Path
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open SPI %q: %w", name, err)
	}
	c, err := port.Connect(5*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("connect SPI %q: %w", name, err)
	}
	dev, err := rfm69.New(c, reset, &opts)
	if err != nil {
		port.Close()
		return nil, err
	}
	glog.Infof("SPI device RFM69HCW present: %s", dev)
	return &rfm69Radio{Dev: dev, port: port}, nil
}

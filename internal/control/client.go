// Package control speaks to the mixer's runtime command endpoint. ffmpeg's
// azmq filter exposes a ZeroMQ REP socket; each command is one text frame
// ("<filterTag> <parameter> <value>") answered by exactly one reply.
package control

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/soundloop/camduck/internal/logging"
)

var (
	ErrNotConnected = errors.New("control: not connected")
	// ErrBusy is returned when a command is already awaiting its reply. REQ
	// sockets are strictly lockstep; overlapping requests would wedge the
	// channel.
	ErrBusy = errors.New("control: request already in flight")
)

type Config struct {
	Endpoint  string
	FilterTag string
	Timeout   time.Duration
}

// reqSocket is the slice of zmq4.Socket the client uses.
type reqSocket interface {
	Dial(endpoint string) error
	Send(msg zmq4.Msg) error
	Recv() (zmq4.Msg, error)
	Close() error
}

type Client struct {
	cfg  Config
	sock reqSocket

	inFlight  atomic.Bool
	connected atomic.Bool

	newSocket func(ctx context.Context) reqSocket
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}
	return &Client{
		cfg: cfg,
		newSocket: func(ctx context.Context) reqSocket {
			return zmq4.NewReq(ctx, zmq4.WithTimeout(cfg.Timeout))
		},
	}
}

// Connect dials the control endpoint. The caller owns retry policy; a
// refused dial comes back as an error and the client stays unconnected.
func (c *Client) Connect(ctx context.Context) error {
	if c.connected.Load() {
		return nil
	}
	sock := c.newSocket(ctx)
	if err := sock.Dial(c.cfg.Endpoint); err != nil {
		_ = sock.Close()
		return fmt.Errorf("dial control endpoint %s: %w", c.cfg.Endpoint, err)
	}
	c.sock = sock
	c.connected.Store(true)
	logging.Infof("control channel connected: %s", c.cfg.Endpoint)
	return nil
}

// SetParameter sends one "<filterTag> <name> <value>" command and waits for
// the reply. The reply body only completes the REQ/REP handshake; it is
// logged at debug level and otherwise discarded.
func (c *Client) SetParameter(name string, value float64) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.inFlight.Store(false)

	cmd := fmt.Sprintf("%s %s %s", c.cfg.FilterTag, name, strconv.FormatFloat(value, 'f', -1, 64))
	if err := c.sock.Send(zmq4.NewMsgString(cmd)); err != nil {
		return fmt.Errorf("send %q: %w", cmd, err)
	}

	reply, err := c.sock.Recv()
	if err != nil {
		return fmt.Errorf("reply for %q: %w", cmd, err)
	}
	if len(reply.Frames) > 0 {
		logging.Debugf("control reply: %s", string(reply.Frames[0]))
	}
	return nil
}

func (c *Client) Close() error {
	if !c.connected.CompareAndSwap(true, false) {
		return nil
	}
	return c.sock.Close()
}

// Package upstream implements the client side of the forwarder: one shared
// UDP socket to a fixed upstream resolver, with a transaction-id slot table
// that demultiplexes asynchronous replies back to their in-flight queries.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"fwdns/internal/dns/common/log"
	"fwdns/internal/dns/domain"
	"fwdns/internal/dns/gateways/wire"
	"fwdns/internal/dns/services/resolver"
)

// ErrTimeout is returned when the upstream does not answer within the
// client's timeout.
var ErrTimeout = errors.New("upstream query timed out")

const (
	// maxPacketSize is the largest datagram accepted from the upstream.
	maxPacketSize = 4096

	// defaultTimeout bounds how long a caller waits for a reply.
	defaultTimeout = 30 * time.Second

	// recvRetryDelay is the pause after a socket-level receive error before
	// the loop tries again.
	recvRetryDelay = 100 * time.Millisecond
)

// DialFunc establishes a network connection. Injectable for tests.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Options configures a Client.
type Options struct {
	// Addr is the upstream resolver address in ip:port form. Required.
	Addr string

	// Codec encodes and decodes wire messages. Required.
	Codec wire.Codec

	// Timeout bounds each query's wait for a reply. Defaults to 30s.
	Timeout time.Duration

	Logger log.Logger
	Dial   DialFunc
}

// Client forwards DNS queries to one fixed upstream resolver over a shared
// UDP socket. Concurrent callers are multiplexed by rewriting each outgoing
// transaction id to a slot id; a single background receive loop routes
// replies back by that id.
type Client struct {
	conn    net.Conn
	codec   wire.Codec
	logger  log.Logger
	timeout time.Duration
	slots   *slotTable

	closeOnce sync.Once
	done      chan struct{}
}

// NewClient connects to the upstream resolver and starts the receive loop.
func NewClient(opts Options) (*Client, error) {
	if opts.Addr == "" {
		return nil, errors.New("upstream address is required")
	}
	if opts.Codec == nil {
		return nil, errors.New("DNS codec is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Dial == nil {
		opts.Dial = (&net.Dialer{}).DialContext
	}

	conn, err := opts.Dial(context.Background(), "udp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to upstream %s: %w", opts.Addr, err)
	}

	c := &Client{
		conn:    conn,
		codec:   opts.Codec,
		logger:  opts.Logger,
		timeout: opts.Timeout,
		slots:   newSlotTable(),
		done:    make(chan struct{}),
	}
	go c.recvLoop()
	return c, nil
}

// Query forwards msg upstream and waits for the matching reply. The outgoing
// transaction id is rewritten to a slot id so a slow or duplicated response
// can never collide with a newer query that reused the client's id; the
// original id is restored on the reply before it is returned. Every exit
// path releases the slot.
func (c *Client) Query(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	id, reply, err := c.slots.create(msg.Header.ID)
	if err != nil {
		return nil, err
	}

	out := msg.Clone()
	out.Header.ID = id
	packet, err := c.codec.Encode(out)
	if err != nil {
		c.slots.remove(id)
		return nil, fmt.Errorf("failed to encode upstream query: %w", err)
	}

	if _, err := c.conn.Write(packet); err != nil {
		c.slots.remove(id)
		return nil, fmt.Errorf("failed to send upstream query: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-reply:
		return resp, nil
	case <-timer.C:
		c.slots.remove(id)
		return nil, fmt.Errorf("%w after %v", ErrTimeout, c.timeout)
	case <-ctx.Done():
		c.slots.remove(id)
		return nil, ctx.Err()
	}
}

// InFlight returns the number of queries currently awaiting a reply.
func (c *Client) InFlight() int {
	return c.slots.size()
}

// Close stops the receive loop and closes the upstream socket.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// recvLoop owns the read side of the socket. It routes each decoded reply to
// the slot matching its transaction id, restoring the caller's original id
// before delivery. Nothing a remote peer sends can stop the loop: orphaned
// ids and undecodable datagrams are logged and dropped, and socket-level
// errors back off briefly and retry.
func (c *Client) recvLoop() {
	buf := make([]byte, maxPacketSize)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn(map[string]any{
				"error": err.Error(),
			}, "upstream receive failed")
			time.Sleep(recvRetryDelay)
			continue
		}

		packet := make([]byte, n)
		copy(packet, buf[:n])

		msg, err := c.codec.Decode(packet)
		if err != nil {
			c.logger.Warn(map[string]any{
				"error": err.Error(),
				"size":  n,
			}, "failed to decode upstream response")
			continue
		}

		s, ok := c.slots.remove(msg.Header.ID)
		if !ok {
			// Already timed out, or a spoofed/duplicate datagram.
			c.logger.Warn(map[string]any{
				"id": msg.Header.ID,
			}, "dropping upstream response with no matching slot")
			continue
		}

		msg.Header.ID = s.origID
		s.reply <- msg
	}
}

var _ resolver.UpstreamClient = (*Client)(nil)

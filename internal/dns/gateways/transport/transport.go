// Package transport implements the client-facing listener for the resolver.
// It owns socket management and wire conversion, delegating all DNS logic to
// the service layer.
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"fwdns/internal/dns/common/log"
	"fwdns/internal/dns/gateways/wire"
	"fwdns/internal/dns/services/resolver"
)

// maxPacketSize is the largest query datagram accepted from a client.
const maxPacketSize = 4096

// UDPTransport implements resolver.ServerTransport for DNS over UDP
// (RFC 1035). One goroutine is spawned per inbound datagram so a slow
// upstream round-trip never blocks other clients.
type UDPTransport struct {
	addr   string
	conn   *net.UDPConn
	codec  wire.Codec
	logger log.Logger

	// Synchronization for graceful shutdown.
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
}

// NewUDPTransport creates a UDP transport that will bind to addr.
func NewUDPTransport(addr string, codec wire.Codec, logger log.Logger) *UDPTransport {
	return &UDPTransport{
		addr:   addr,
		codec:  codec,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start binds the UDP socket and starts the packet handling loop. A bind
// failure is returned to the caller; it is the one error that justifies
// taking the process down, since no queries can be served at all.
func (t *UDPTransport) Start(ctx context.Context, handler resolver.Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("UDP transport already running")
	}

	udpAddr, err := net.ResolveUDPAddr("udp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s: %w", t.addr, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to bind UDP socket on %s: %w", t.addr, err)
	}

	t.conn = conn
	t.running = true

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   conn.LocalAddr().String(),
	}, "DNS transport started")

	go t.listenLoop(ctx, handler)

	return nil
}

// Stop gracefully shuts down the UDP transport.
func (t *UDPTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}

	close(t.stopCh)

	var closeErr error
	if t.conn != nil {
		closeErr = t.conn.Close()
	}
	t.running = false

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   t.addr,
	}, "DNS transport stopped")

	return closeErr
}

// Address returns the bound address while running, otherwise the configured
// one. The distinction matters when binding port 0.
func (t *UDPTransport) Address() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.conn != nil {
		return t.conn.LocalAddr().String()
	}
	return t.addr
}

// listenLoop receives datagrams and dispatches a handler goroutine per
// packet. Transient read errors are logged and the loop continues; it only
// exits on shutdown or context cancellation.
func (t *UDPTransport) listenLoop(ctx context.Context, handler resolver.Handler) {
	buffer := make([]byte, maxPacketSize)

	for {
		select {
		case <-ctx.Done():
			t.logger.Debug(nil, "UDP transport stopping due to context cancellation")
			return
		case <-t.stopCh:
			t.logger.Debug(nil, "UDP transport stopping due to stop signal")
			return
		default:
			n, clientAddr, err := t.conn.ReadFromUDP(buffer)
			if err != nil {
				t.mu.RLock()
				running := t.running
				t.mu.RUnlock()
				if !running {
					return // normal shutdown
				}

				t.logger.Warn(map[string]any{
					"error": err.Error(),
				}, "failed to read UDP packet")
				continue
			}

			packet := make([]byte, n)
			copy(packet, buffer[:n])
			go t.handlePacket(ctx, packet, clientAddr, handler)
		}
	}
}

// handlePacket processes a single client datagram end to end. A datagram that
// fails to decode is dropped without a reply: there is no trustworthy
// transaction id to answer with.
func (t *UDPTransport) handlePacket(ctx context.Context, data []byte, clientAddr *net.UDPAddr, handler resolver.Handler) {
	query, err := t.codec.Decode(data)
	if err != nil {
		t.logger.Warn(map[string]any{
			"client": clientAddr.String(),
			"error":  err.Error(),
			"size":   len(data),
		}, "failed to decode DNS query")
		return
	}

	t.logger.Debug(map[string]any{
		"client":    clientAddr.String(),
		"query_id":  query.Header.ID,
		"questions": len(query.Questions),
	}, "received DNS query")

	response, err := handler.HandleQuery(ctx, query, clientAddr)
	if err != nil {
		t.logger.Error(map[string]any{
			"client":   clientAddr.String(),
			"query_id": query.Header.ID,
			"error":    err.Error(),
		}, "failed to handle DNS query")
		return
	}

	responseData, err := t.codec.Encode(response)
	if err != nil {
		// Invariant violation for internally built messages; abort this
		// query, keep serving.
		t.logger.Error(map[string]any{
			"client":   clientAddr.String(),
			"query_id": query.Header.ID,
			"error":    err.Error(),
		}, "failed to encode DNS response")
		return
	}

	if _, err := t.conn.WriteToUDP(responseData, clientAddr); err != nil {
		t.logger.Error(map[string]any{
			"client":   clientAddr.String(),
			"query_id": response.Header.ID,
			"error":    err.Error(),
		}, "failed to send DNS response")
		return
	}

	t.logger.Debug(map[string]any{
		"client":   clientAddr.String(),
		"query_id": response.Header.ID,
		"rcode":    response.Header.Flags.RCode().String(),
		"answers":  len(response.Answers),
		"size":     len(responseData),
	}, "sent DNS response")
}

var _ resolver.ServerTransport = (*UDPTransport)(nil)

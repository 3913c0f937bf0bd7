package resolver

import (
	"context"
	"net"

	"fwdns/internal/dns/domain"
)

// UpstreamClient forwards a query to the configured upstream resolver and
// returns the matching response.
type UpstreamClient interface {
	Query(ctx context.Context, msg *domain.Message) (*domain.Message, error)
}

// Cache stores upstream answers keyed by question. Get returns a copy with
// decayed TTLs; Set with an empty record slice is a no-op.
type Cache interface {
	Get(q domain.Question) ([]domain.ResourceRecord, bool)
	Set(q domain.Question, records []domain.ResourceRecord)
}

// Handler processes one decoded DNS query and produces the response to send.
// The transport handles all network protocol details; the handler only sees
// domain objects.
type Handler interface {
	HandleQuery(ctx context.Context, query *domain.Message, clientAddr net.Addr) (*domain.Message, error)
}

// ServerTransport is the client-facing listener. Different transports (UDP
// today, DoT/DoH conceivably) provide the same contract to the service layer.
type ServerTransport interface {
	// Start begins listening and dispatching queries to the handler.
	Start(ctx context.Context, handler Handler) error

	// Stop gracefully shuts down the transport.
	Stop() error

	// Address returns the network address the transport is bound to.
	Address() string
}

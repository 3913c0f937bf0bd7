// Package resolver orchestrates query handling: cache lookup, upstream
// forwarding, cache population, and failure synthesis.
package resolver

import (
	"context"
	"net"

	"fwdns/internal/dns/common/log"
	"fwdns/internal/dns/domain"
)

// Resolver is the query processor. Per query it walks
// decode → cache check → (upstream) → encode, with each inbound query running
// in its own goroutine courtesy of the transport.
type Resolver struct {
	cache    Cache
	upstream UpstreamClient
	logger   log.Logger
}

// Options configures a Resolver.
type Options struct {
	Cache    Cache
	Upstream UpstreamClient
	Logger   log.Logger
}

// New constructs a Resolver.
func New(opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Resolver{
		cache:    opts.Cache,
		upstream: opts.Upstream,
		logger:   logger,
	}
}

// HandleQuery resolves one decoded client query. Single-question queries go
// through the cache; anything else is relayed verbatim. A query that decoded
// successfully always gets an answer: upstream failure (timeout, IO, slot
// exhaustion) yields a SERVFAIL synthesis rather than silence.
func (r *Resolver) HandleQuery(ctx context.Context, query *domain.Message, clientAddr net.Addr) (*domain.Message, error) {
	q, single := query.SoleQuestion()
	if !single {
		// Zero or multiple questions: pass through, never cached.
		resp, err := r.upstream.Query(ctx, query)
		if err != nil {
			r.logger.Warn(map[string]any{
				"client":    addrString(clientAddr),
				"questions": len(query.Questions),
				"error":     err.Error(),
			}, "upstream failed for passthrough query")
			return serverFailure(query), nil
		}
		return resp, nil
	}

	if answers, hit := r.cache.Get(q); hit {
		r.logger.Debug(map[string]any{
			"client": addrString(clientAddr),
			"name":   q.Name,
			"type":   q.Type.String(),
		}, "cache hit")
		resp := query.Clone()
		resp.Header.Flags.SetQR(true)
		resp.Answers = answers
		resp.SyncCounts()
		return resp, nil
	}

	resp, err := r.upstream.Query(ctx, query)
	if err != nil {
		r.logger.Warn(map[string]any{
			"client": addrString(clientAddr),
			"name":   q.Name,
			"type":   q.Type.String(),
			"error":  err.Error(),
		}, "upstream query failed")
		return serverFailure(query), nil
	}

	r.cache.Set(q, resp.Answers)
	return resp, nil
}

// serverFailure synthesizes a SERVFAIL response by cloning the query, so the
// client sees its own transaction id and question echoed back.
func serverFailure(query *domain.Message) *domain.Message {
	resp := query.Clone()
	resp.Header.Flags.SetQR(true)
	resp.Header.Flags.SetRCode(domain.RCodeServFail)
	resp.SyncCounts()
	return resp
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}

var _ Handler = (*Resolver)(nil)

package upstream

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwdns/internal/dns/common/log"
	"fwdns/internal/dns/domain"
	"fwdns/internal/dns/gateways/wire"
)

// startFakeUpstream runs a UDP server on loopback that answers each decodable
// query with respond(req). A nil response means stay silent.
func startFakeUpstream(t *testing.T, respond func(req *domain.Message) *domain.Message) (string, net.PacketConn) {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	codec := wire.NewCodec(log.NewNoopLogger())
	go func() {
		buf := make([]byte, 4096)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			req, err := codec.Decode(buf[:n])
			if err != nil {
				continue
			}
			resp := respond(req)
			if resp == nil {
				continue
			}
			out, err := codec.Encode(resp)
			if err != nil {
				continue
			}
			_, _ = conn.WriteTo(out, addr)
		}
	}()
	return conn.LocalAddr().String(), conn
}

func testQuery(id uint16) *domain.Message {
	msg := &domain.Message{
		Header: domain.Header{ID: id},
		Questions: []domain.Question{
			{Name: "www.google.com", Type: domain.RRTypeA, Class: domain.RRClassIN},
		},
	}
	msg.Header.Flags.SetRD(true)
	msg.SyncCounts()
	return msg
}

// answered clones req into a one-answer response, echoing the wire id.
func answered(req *domain.Message) *domain.Message {
	resp := req.Clone()
	resp.Header.Flags.SetQR(true)
	resp.Answers = []domain.ResourceRecord{{
		Name:  req.Questions[0].Name,
		Type:  domain.RRTypeA,
		Class: domain.RRClassIN,
		TTL:   18,
		Data:  []byte{192, 0, 2, 1},
	}}
	resp.SyncCounts()
	return resp
}

func newTestClient(t *testing.T, addr string, timeout time.Duration) *Client {
	t.Helper()
	client, err := NewClient(Options{
		Addr:    addr,
		Codec:   wire.NewCodec(log.NewNoopLogger()),
		Timeout: timeout,
		Logger:  log.NewNoopLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClient_QueryRestoresOriginalID(t *testing.T) {
	var wireID atomic.Uint32
	addr, _ := startFakeUpstream(t, func(req *domain.Message) *domain.Message {
		wireID.Store(uint32(req.Header.ID))
		return answered(req)
	})
	client := newTestClient(t, addr, 5*time.Second)

	const origID = 0x701B
	resp, err := client.Query(context.Background(), testQuery(origID))
	require.NoError(t, err)

	assert.Equal(t, uint16(origID), resp.Header.ID, "caller's id must be restored on the reply")
	assert.NotEqual(t, uint32(origID), wireID.Load(), "the wire id must be a slot id, not the caller's")
	require.Len(t, resp.Answers, 1)
	assert.Equal(t, uint32(18), resp.Answers[0].TTL)
	assert.Equal(t, 0, client.InFlight(), "slot must be released after a reply")
}

func TestClient_QueryDoesNotMutateCallerMessage(t *testing.T) {
	addr, _ := startFakeUpstream(t, answered)
	client := newTestClient(t, addr, 5*time.Second)

	query := testQuery(0x1234)
	_, err := client.Query(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), query.Header.ID, "slot rewrite must happen on a clone")
}

func TestClient_TimeoutFreesSlot(t *testing.T) {
	addr, _ := startFakeUpstream(t, func(*domain.Message) *domain.Message {
		return nil // never answer
	})
	client := newTestClient(t, addr, 50*time.Millisecond)

	_, err := client.Query(context.Background(), testQuery(1))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 0, client.InFlight(), "timed-out query must leave no residual slot")
}

func TestClient_ContextCancellationFreesSlot(t *testing.T) {
	addr, _ := startFakeUpstream(t, func(*domain.Message) *domain.Message {
		return nil
	})
	client := newTestClient(t, addr, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Query(ctx, testQuery(1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, client.InFlight())
}

func TestClient_LateReplyIsDroppedNotFatal(t *testing.T) {
	release := make(chan struct{})
	addr, _ := startFakeUpstream(t, func(req *domain.Message) *domain.Message {
		select {
		case <-release:
			return answered(req)
		case <-time.After(2 * time.Second):
			return nil
		}
	})
	client := newTestClient(t, addr, 50*time.Millisecond)

	_, err := client.Query(context.Background(), testQuery(1))
	require.ErrorIs(t, err, ErrTimeout)

	// Let the stale reply arrive; the receive loop must drop it and keep
	// serving subsequent queries.
	close(release)
	time.Sleep(50 * time.Millisecond)

	addr2, _ := startFakeUpstream(t, answered)
	client2 := newTestClient(t, addr2, 5*time.Second)
	resp, err := client2.Query(context.Background(), testQuery(2))
	require.NoError(t, err)
	assert.True(t, resp.Header.Flags.QR())
}

func TestClient_SurvivesUndecodableDatagrams(t *testing.T) {
	codec := wire.NewCodec(log.NewNoopLogger())
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buf := make([]byte, 4096)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			// Garbage first, then the real answer.
			_, _ = conn.WriteTo([]byte{0xDE, 0xAD}, addr)
			if req, err := codec.Decode(buf[:n]); err == nil {
				if out, err := codec.Encode(answered(req)); err == nil {
					_, _ = conn.WriteTo(out, addr)
				}
			}
		}
	}()

	client := newTestClient(t, conn.LocalAddr().String(), 5*time.Second)
	resp, err := client.Query(context.Background(), testQuery(0xBEEF))
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), resp.Header.ID)
}

func TestClient_ConcurrentQueriesDemultiplex(t *testing.T) {
	addr, _ := startFakeUpstream(t, answered)
	client := newTestClient(t, addr, 5*time.Second)

	const n = 50
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(id uint16) {
			resp, err := client.Query(context.Background(), testQuery(id))
			if err == nil && resp.Header.ID != id {
				t.Errorf("query %d got reply for id %d", id, resp.Header.ID)
			}
			errs <- err
		}(uint16(i + 1))
	}
	for i := 0; i < n; i++ {
		assert.NoError(t, <-errs)
	}
	assert.Equal(t, 0, client.InFlight())
}

func TestNewClient_Validation(t *testing.T) {
	codec := wire.NewCodec(log.NewNoopLogger())

	_, err := NewClient(Options{Codec: codec})
	assert.Error(t, err, "address is required")

	_, err = NewClient(Options{Addr: "127.0.0.1:53"})
	assert.Error(t, err, "codec is required")
}

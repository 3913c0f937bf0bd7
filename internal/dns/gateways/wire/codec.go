package wire

import "fwdns/internal/dns/domain"

// Codec translates between raw UDP payloads and domain messages.
// Decode and Encode are symmetric: the forwarder relays whole messages in
// both directions, so there are no query/response-specific entry points.
type Codec interface {
	Decode(data []byte) (*domain.Message, error)
	Encode(msg *domain.Message) ([]byte, error)
}

package domain

import "fwdns/internal/dns/common/utils"

// Question is the (name, type, class) tuple a DNS message asks about.
// Name keeps the label case exactly as it appeared on the wire; case
// normalization happens only inside CacheKey, so a re-encoded message is
// byte-identical to its input.
type Question struct {
	Name  string
	Type  RRType
	Class RRClass
}

// CacheKey returns a zone-aware cache key derived from the question's name,
// type, and class.
// Format: "apex|name|type|class" (e.g. "example.com|www.example.com|A|IN").
// Uses pipe (|) separator to avoid conflicts with colons in IPv6 addresses.
func (q Question) CacheKey() string {
	name := utils.CanonicalDNSName(q.Name)
	return utils.ApexDomain(name) + "|" + name + "|" + q.Type.String() + "|" + q.Class.String()
}

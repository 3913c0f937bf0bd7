package utils

import "golang.org/x/net/publicsuffix"

// ApexDomain returns the registrable apex (eTLD+1) of a DNS name, used as the
// leading component of cache keys so related names group together.
func ApexDomain(name string) string {
	name = CanonicalDNSName(name)
	apex, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		// Not registrable (bare TLD, empty name, reverse zones); key on the
		// name itself.
		return name
	}
	return apex
}

package domain

import "strconv"

// RRClass represents a DNS class (usually IN for Internet).
// OPT pseudo-records reuse this field for the requestor's UDP payload size,
// so unknown values are preserved rather than rejected.
type RRClass uint16

// DNS resource record class constants.
const (
	RRClassIN  RRClass = 1   // IN - Internet
	RRClassCH  RRClass = 3   // CH - Chaos
	RRClassHS  RRClass = 4   // HS - Hesiod
	RRClassANY RRClass = 255 // ANY - Any class (query only)
)

// String returns the textual representation of the RRClass.
func (c RRClass) String() string {
	switch c {
	case RRClassIN:
		return "IN"
	case RRClassCH:
		return "CH"
	case RRClassHS:
		return "HS"
	case RRClassANY:
		return "ANY"
	default:
		return "CLASS" + strconv.Itoa(int(c))
	}
}

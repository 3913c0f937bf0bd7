package domain

import "fmt"

// RCode represents a DNS response code indicating the result of a query.
type RCode uint8

// DNS response code constants (RFC 1035 §4.1.1, RFC 2136).
const (
	RCodeNoError  RCode = 0  // NOERROR - No error condition
	RCodeFormErr  RCode = 1  // FORMERR - Format error
	RCodeServFail RCode = 2  // SERVFAIL - Server failure
	RCodeNXDomain RCode = 3  // NXDOMAIN - Name does not exist
	RCodeNotImp   RCode = 4  // NOTIMP - Not implemented
	RCodeRefused  RCode = 5  // REFUSED - Query refused
)

// String returns the textual representation of the RCode.
func (r RCode) String() string {
	switch r {
	case RCodeNoError:
		return "NOERROR"
	case RCodeFormErr:
		return "FORMERR"
	case RCodeServFail:
		return "SERVFAIL"
	case RCodeNXDomain:
		return "NXDOMAIN"
	case RCodeNotImp:
		return "NOTIMP"
	case RCodeRefused:
		return "REFUSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(r))
	}
}

package domain

// Header is the fixed 12-byte DNS message header (RFC 1035 §4.1.1).
// The four counts mirror the section lengths of the owning Message; they are
// reconciled by Message.SyncCounts before serialization.
type Header struct {
	ID      uint16
	Flags   Flags
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

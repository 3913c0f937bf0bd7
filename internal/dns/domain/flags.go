package domain

// Flags is the packed 16-bit flag word from the DNS header (RFC 1035 §4.1.1).
//
//	 0  1  2  3  4  5  6  7  8  9  0  1  2  3  4  5
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|QR|   Opcode  |AA|TC|RD|RA| Z|AD|CD|   RCODE   |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//
// The word is carried verbatim between decode and encode so that bits this
// server does not interpret (including the reserved Z bit) survive a
// passthrough untouched. Each mutator only writes its own bit range.
type Flags uint16

const (
	maskQR     Flags = 0x8000
	maskOpcode Flags = 0x7800
	maskAA     Flags = 0x0400
	maskTC     Flags = 0x0200
	maskRD     Flags = 0x0100
	maskRA     Flags = 0x0080
	maskZ      Flags = 0x0040
	maskAD     Flags = 0x0020
	maskCD     Flags = 0x0010
	maskRCode  Flags = 0x000F
)

// QR reports whether the message is a response (true) or a query (false).
func (f Flags) QR() bool { return f&maskQR != 0 }

// SetQR marks the message as a response (true) or a query (false).
func (f *Flags) SetQR(v bool) { f.setBit(maskQR, v) }

// Opcode returns the 4-bit operation code.
func (f Flags) Opcode() uint8 { return uint8((f & maskOpcode) >> 11) }

// SetOpcode replaces the 4-bit operation code.
func (f *Flags) SetOpcode(op uint8) {
	*f = (*f &^ maskOpcode) | (Flags(op&0x0F) << 11)
}

// AA reports the authoritative answer bit.
func (f Flags) AA() bool { return f&maskAA != 0 }

// SetAA sets the authoritative answer bit.
func (f *Flags) SetAA(v bool) { f.setBit(maskAA, v) }

// TC reports the truncation bit.
func (f Flags) TC() bool { return f&maskTC != 0 }

// SetTC sets the truncation bit.
func (f *Flags) SetTC(v bool) { f.setBit(maskTC, v) }

// RD reports the recursion desired bit.
func (f Flags) RD() bool { return f&maskRD != 0 }

// SetRD sets the recursion desired bit.
func (f *Flags) SetRD(v bool) { f.setBit(maskRD, v) }

// RA reports the recursion available bit.
func (f Flags) RA() bool { return f&maskRA != 0 }

// SetRA sets the recursion available bit.
func (f *Flags) SetRA(v bool) { f.setBit(maskRA, v) }

// Z reports the reserved bit, which must be zero in conforming messages.
func (f Flags) Z() bool { return f&maskZ != 0 }

// AD reports the authentic data bit (RFC 4035).
func (f Flags) AD() bool { return f&maskAD != 0 }

// SetAD sets the authentic data bit.
func (f *Flags) SetAD(v bool) { f.setBit(maskAD, v) }

// CD reports the checking disabled bit (RFC 4035).
func (f Flags) CD() bool { return f&maskCD != 0 }

// SetCD sets the checking disabled bit.
func (f *Flags) SetCD(v bool) { f.setBit(maskCD, v) }

// RCode returns the 4-bit response code.
func (f Flags) RCode() RCode { return RCode(f & maskRCode) }

// SetRCode replaces the 4-bit response code.
func (f *Flags) SetRCode(rc RCode) {
	*f = (*f &^ maskRCode) | (Flags(rc) & maskRCode)
}

func (f *Flags) setBit(mask Flags, v bool) {
	if v {
		*f |= mask
	} else {
		*f &^= mask
	}
}

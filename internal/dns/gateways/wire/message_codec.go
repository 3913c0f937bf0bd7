// Package wire provides encoding and decoding of DNS messages for UDP
// transport. It handles the DNS wire format as specified in RFC 1035,
// including name compression pointers (§4.1.4).
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"fwdns/internal/dns/common/log"
	"fwdns/internal/dns/domain"
)

var (
	errMessageTooShort  = errors.New("message shorter than header")
	errNameOutOfBounds  = errors.New("name extends past end of message")
	errLabelOutOfBounds = errors.New("label extends past end of message")
	errBadLabelEncoding = errors.New("invalid label length byte")
	errBadLabelUTF8     = errors.New("label is not valid utf-8")
	errPointerTruncated = errors.New("truncated compression pointer")
	errPointerTooDeep   = errors.New("compression pointer chain too deep")
	errRecordTruncated  = errors.New("truncated resource record")
)

// maxPointerDepth bounds compression-pointer dereferences per name. Legitimate
// messages chain at most a handful of pointers; anything deeper is a crafted
// loop.
const maxPointerDepth = 16

// maxLabelLength is the RFC 1035 §2.3.4 limit on a single label.
const maxLabelLength = 63

// maxPointerOffset is the largest offset a 14-bit compression pointer can
// address.
const maxPointerOffset = 0x3FFF

// messageCodec implements Codec for standard DNS over UDP messages.
type messageCodec struct {
	logger log.Logger
}

// NewCodec creates a message codec using the provided logger.
func NewCodec(logger log.Logger) *messageCodec {
	return &messageCodec{logger: logger}
}

// Decode parses a raw DNS message. Any truncated or malformed input returns
// an error rather than panicking.
func (c *messageCodec) Decode(data []byte) (*domain.Message, error) {
	if len(data) < 12 {
		return nil, errMessageTooShort
	}

	hdr := domain.Header{
		ID:      binary.BigEndian.Uint16(data[0:2]),
		Flags:   domain.Flags(binary.BigEndian.Uint16(data[2:4])),
		QDCount: binary.BigEndian.Uint16(data[4:6]),
		ANCount: binary.BigEndian.Uint16(data[6:8]),
		NSCount: binary.BigEndian.Uint16(data[8:10]),
		ARCount: binary.BigEndian.Uint16(data[10:12]),
	}
	msg := &domain.Message{Header: hdr}
	offset := 12
	var err error

	for i := 0; i < int(hdr.QDCount); i++ {
		var q domain.Question
		q, offset, err = decodeQuestion(data, offset)
		if err != nil {
			return nil, fmt.Errorf("question: %w", err)
		}
		msg.Questions = append(msg.Questions, q)
	}

	if msg.Answers, offset, err = decodeRecords(data, offset, hdr.ANCount); err != nil {
		return nil, fmt.Errorf("answer section: %w", err)
	}
	if msg.Authority, offset, err = decodeRecords(data, offset, hdr.NSCount); err != nil {
		return nil, fmt.Errorf("authority section: %w", err)
	}
	if msg.Additionals, _, err = decodeRecords(data, offset, hdr.ARCount); err != nil {
		return nil, fmt.Errorf("additional section: %w", err)
	}

	return msg, nil
}

// decodeQuestion reads one question entry at offset.
func decodeQuestion(data []byte, offset int) (domain.Question, int, error) {
	name, offset, err := decodeName(data, offset)
	if err != nil {
		return domain.Question{}, 0, err
	}
	if offset+4 > len(data) {
		return domain.Question{}, 0, errRecordTruncated
	}
	q := domain.Question{
		Name:  name,
		Type:  domain.RRType(binary.BigEndian.Uint16(data[offset : offset+2])),
		Class: domain.RRClass(binary.BigEndian.Uint16(data[offset+2 : offset+4])),
	}
	return q, offset + 4, nil
}

// decodeRecords reads count resource records starting at offset.
func decodeRecords(data []byte, offset int, count uint16) ([]domain.ResourceRecord, int, error) {
	var records []domain.ResourceRecord
	for i := 0; i < int(count); i++ {
		rr, next, err := decodeRecord(data, offset)
		if err != nil {
			return nil, 0, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rr)
		offset = next
	}
	return records, offset, nil
}

// decodeRecord reads one resource record at offset. The rdata is copied out
// as opaque bytes; no type-specific parsing happens here.
func decodeRecord(data []byte, offset int) (domain.ResourceRecord, int, error) {
	name, offset, err := decodeName(data, offset)
	if err != nil {
		return domain.ResourceRecord{}, 0, err
	}
	if offset+10 > len(data) {
		return domain.ResourceRecord{}, 0, errRecordTruncated
	}

	rr := domain.ResourceRecord{
		Name:  name,
		Type:  domain.RRType(binary.BigEndian.Uint16(data[offset : offset+2])),
		Class: domain.RRClass(binary.BigEndian.Uint16(data[offset+2 : offset+4])),
		TTL:   binary.BigEndian.Uint32(data[offset+4 : offset+8]),
	}
	rdLen := int(binary.BigEndian.Uint16(data[offset+8 : offset+10]))
	offset += 10

	if offset+rdLen > len(data) {
		return domain.ResourceRecord{}, 0, errRecordTruncated
	}
	rr.Data = make([]byte, rdLen)
	copy(rr.Data, data[offset:offset+rdLen])

	return rr, offset + rdLen, nil
}

// decodeName reads a domain name at offset, following RFC 1035 §4.1.4
// compression pointers. The read position is saved at the first pointer and
// restored once the name is complete; pointer chains are depth-bounded so a
// crafted pointer loop cannot spin the decoder.
func decodeName(data []byte, offset int) (string, int, error) {
	var labels []string
	pos := offset
	resume := -1 // position after the first pointer, -1 until one is seen
	depth := 0

	for {
		if pos >= len(data) {
			return "", 0, errNameOutOfBounds
		}
		length := int(data[pos])
		switch {
		case length == 0:
			pos++
			if resume < 0 {
				resume = pos
			}
			return strings.Join(labels, "."), resume, nil

		case length&0xC0 == 0xC0:
			if pos+1 >= len(data) {
				return "", 0, errPointerTruncated
			}
			depth++
			if depth > maxPointerDepth {
				return "", 0, errPointerTooDeep
			}
			if resume < 0 {
				resume = pos + 2
			}
			pos = int(binary.BigEndian.Uint16(data[pos:pos+2]) & maxPointerOffset)

		case length&0xC0 != 0:
			// 0x40 and 0x80 prefixes are reserved by RFC 1035.
			return "", 0, errBadLabelEncoding

		default:
			pos++
			if pos+length > len(data) {
				return "", 0, errLabelOutOfBounds
			}
			if !utf8.Valid(data[pos : pos+length]) {
				return "", 0, errBadLabelUTF8
			}
			labels = append(labels, string(data[pos:pos+length]))
			pos += length
		}
	}
}

// Encode serializes a message, compressing names against earlier occurrences
// in the same packet. Header counts are derived from the sections, never
// trusted from the caller.
func (c *messageCodec) Encode(msg *domain.Message) ([]byte, error) {
	var buf bytes.Buffer

	hdr := msg.Header
	hdr.QDCount = uint16(len(msg.Questions))
	hdr.ANCount = uint16(len(msg.Answers))
	hdr.NSCount = uint16(len(msg.Authority))
	hdr.ARCount = uint16(len(msg.Additionals))

	_ = binary.Write(&buf, binary.BigEndian, hdr.ID)
	_ = binary.Write(&buf, binary.BigEndian, uint16(hdr.Flags))
	_ = binary.Write(&buf, binary.BigEndian, hdr.QDCount)
	_ = binary.Write(&buf, binary.BigEndian, hdr.ANCount)
	_ = binary.Write(&buf, binary.BigEndian, hdr.NSCount)
	_ = binary.Write(&buf, binary.BigEndian, hdr.ARCount)

	// Offsets of every name suffix already written, for compression.
	offsets := make(map[string]int)

	for _, q := range msg.Questions {
		if err := writeName(&buf, q.Name, offsets); err != nil {
			return nil, err
		}
		_ = binary.Write(&buf, binary.BigEndian, uint16(q.Type))
		_ = binary.Write(&buf, binary.BigEndian, uint16(q.Class))
	}

	for _, section := range [][]domain.ResourceRecord{msg.Answers, msg.Authority, msg.Additionals} {
		for _, rr := range section {
			if err := writeRecord(&buf, rr, offsets); err != nil {
				return nil, err
			}
		}
	}

	c.logger.Debug(map[string]any{
		"id":   hdr.ID,
		"size": buf.Len(),
	}, "encoded DNS message")

	return buf.Bytes(), nil
}

// writeRecord serializes one resource record.
func writeRecord(buf *bytes.Buffer, rr domain.ResourceRecord, offsets map[string]int) error {
	if err := writeName(buf, rr.Name, offsets); err != nil {
		return err
	}
	if len(rr.Data) > 0xFFFF {
		return fmt.Errorf("resource record data too large: %d bytes", len(rr.Data))
	}
	_ = binary.Write(buf, binary.BigEndian, uint16(rr.Type))
	_ = binary.Write(buf, binary.BigEndian, uint16(rr.Class))
	_ = binary.Write(buf, binary.BigEndian, rr.TTL)
	_ = binary.Write(buf, binary.BigEndian, uint16(len(rr.Data)))
	buf.Write(rr.Data)
	return nil
}

// writeName writes a domain name, emitting a compression pointer whenever the
// name or one of its dotted suffixes has already appeared in this packet.
// First occurrences are always written literally, so re-encoding a capture
// that used first-occurrence compression reproduces it byte for byte.
func writeName(buf *bytes.Buffer, name string, offsets map[string]int) error {
	if name == "" {
		buf.WriteByte(0) // root name: single terminator
		return nil
	}
	labels := strings.Split(name, ".")
	for i, label := range labels {
		suffix := strings.Join(labels[i:], ".")
		if off, ok := offsets[suffix]; ok {
			buf.WriteByte(0xC0 | byte(off>>8))
			buf.WriteByte(byte(off))
			return nil
		}
		if len(label) == 0 {
			return fmt.Errorf("empty label in name %q", name)
		}
		if len(label) > maxLabelLength {
			return fmt.Errorf("label too long: %s", label)
		}
		// Offsets past the 14-bit pointer range can never be referenced.
		if buf.Len() <= maxPointerOffset {
			offsets[suffix] = buf.Len()
		}
		buf.WriteByte(byte(len(label)))
		buf.WriteString(label)
	}
	buf.WriteByte(0)
	return nil
}

var _ Codec = (*messageCodec)(nil)

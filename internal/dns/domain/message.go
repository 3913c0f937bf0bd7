package domain

// Message is a complete DNS message: header plus question, answer, authority,
// and additional sections (RFC 1035 §4.1). Messages live for the handling of
// a single datagram; only answer records outlive them, as cache snapshots.
type Message struct {
	Header      Header
	Questions   []Question
	Answers     []ResourceRecord
	Authority   []ResourceRecord
	Additionals []ResourceRecord
}

// SoleQuestion returns the question when the message carries exactly one.
// Messages with zero or multiple questions bypass the cache and are relayed
// verbatim, so callers use this to pick the path.
func (m *Message) SoleQuestion() (Question, bool) {
	if len(m.Questions) != 1 {
		return Question{}, false
	}
	return m.Questions[0], true
}

// SyncCounts aligns the header counts with the actual section lengths.
// Called before serialization so the wire header can never disagree with the
// sections that follow it.
func (m *Message) SyncCounts() {
	m.Header.QDCount = uint16(len(m.Questions))
	m.Header.ANCount = uint16(len(m.Answers))
	m.Header.NSCount = uint16(len(m.Authority))
	m.Header.ARCount = uint16(len(m.Additionals))
}

// Clone returns a deep copy of the message, including record data, so
// response synthesis can start from the client's query without aliasing it
// or any cached state.
func (m *Message) Clone() *Message {
	out := &Message{Header: m.Header}
	if m.Questions != nil {
		out.Questions = make([]Question, len(m.Questions))
		copy(out.Questions, m.Questions)
	}
	out.Answers = CloneRecords(m.Answers)
	out.Authority = CloneRecords(m.Authority)
	out.Additionals = CloneRecords(m.Additionals)
	return out
}

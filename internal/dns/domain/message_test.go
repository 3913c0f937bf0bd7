package domain

import "testing"

func TestMessage_SoleQuestion(t *testing.T) {
	tests := []struct {
		name      string
		questions []Question
		want      bool
	}{
		{"no questions", nil, false},
		{"one question", []Question{{Name: "example.com", Type: RRTypeA, Class: RRClassIN}}, true},
		{"two questions", []Question{{Name: "a.com"}, {Name: "b.com"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Message{Questions: tt.questions}
			q, ok := m.SoleQuestion()
			if ok != tt.want {
				t.Fatalf("expected ok=%v, got %v", tt.want, ok)
			}
			if ok && q.Name != tt.questions[0].Name {
				t.Errorf("expected question %q, got %q", tt.questions[0].Name, q.Name)
			}
		})
	}
}

func TestMessage_SyncCounts(t *testing.T) {
	m := &Message{
		Header: Header{QDCount: 99, ANCount: 99, NSCount: 99, ARCount: 99},
		Questions: []Question{
			{Name: "example.com", Type: RRTypeA, Class: RRClassIN},
		},
		Answers: []ResourceRecord{
			{Name: "example.com", Type: RRTypeA, Class: RRClassIN, TTL: 60, Data: []byte{1, 2, 3, 4}},
			{Name: "example.com", Type: RRTypeA, Class: RRClassIN, TTL: 60, Data: []byte{5, 6, 7, 8}},
		},
	}
	m.SyncCounts()
	if m.Header.QDCount != 1 || m.Header.ANCount != 2 || m.Header.NSCount != 0 || m.Header.ARCount != 0 {
		t.Errorf("counts out of sync with sections: %+v", m.Header)
	}
}

func TestMessage_CloneIsDeep(t *testing.T) {
	orig := &Message{
		Header: Header{ID: 42},
		Questions: []Question{
			{Name: "example.com", Type: RRTypeA, Class: RRClassIN},
		},
		Answers: []ResourceRecord{
			{Name: "example.com", Type: RRTypeA, Class: RRClassIN, TTL: 300, Data: []byte{192, 0, 2, 1}},
		},
	}

	cp := orig.Clone()
	cp.Header.ID = 7
	cp.Answers[0].TTL = 1
	cp.Answers[0].Data[0] = 0
	cp.Questions[0].Name = "mutated.com"

	if orig.Header.ID != 42 {
		t.Error("clone shares header with original")
	}
	if orig.Answers[0].TTL != 300 {
		t.Error("clone shares answer TTL with original")
	}
	if orig.Answers[0].Data[0] != 192 {
		t.Error("clone shares rdata backing array with original")
	}
	if orig.Questions[0].Name != "example.com" {
		t.Error("clone shares question slice with original")
	}
}

func TestCloneRecords_NilStaysNil(t *testing.T) {
	if CloneRecords(nil) != nil {
		t.Error("expected nil clone of nil slice")
	}
}

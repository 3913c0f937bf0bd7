package domain

import "testing"

func TestFlags_BitIsolation(t *testing.T) {
	tests := []struct {
		name string
		set  func(f *Flags)
		mask Flags
	}{
		{"QR", func(f *Flags) { f.SetQR(true) }, 0x8000},
		{"AA", func(f *Flags) { f.SetAA(true) }, 0x0400},
		{"TC", func(f *Flags) { f.SetTC(true) }, 0x0200},
		{"RD", func(f *Flags) { f.SetRD(true) }, 0x0100},
		{"RA", func(f *Flags) { f.SetRA(true) }, 0x0080},
		{"AD", func(f *Flags) { f.SetAD(true) }, 0x0020},
		{"CD", func(f *Flags) { f.SetCD(true) }, 0x0010},
		{"Opcode", func(f *Flags) { f.SetOpcode(0x0F) }, 0x7800},
		{"RCode", func(f *Flags) { f.SetRCode(0x0F) }, 0x000F},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/set on zero", func(t *testing.T) {
			var f Flags
			tt.set(&f)
			if f != tt.mask {
				t.Errorf("expected only bits %#04x set, got %#04x", tt.mask, f)
			}
		})
		t.Run(tt.name+"/preserves other bits", func(t *testing.T) {
			f := ^Flags(0) &^ tt.mask // everything except our own range
			before := f
			tt.set(&f)
			if f&^tt.mask != before {
				t.Errorf("setter for %s disturbed other bits: %#04x -> %#04x", tt.name, before, f)
			}
		})
	}
}

func TestFlags_ClearBits(t *testing.T) {
	f := ^Flags(0)
	f.SetQR(false)
	if f.QR() {
		t.Error("QR still set after clearing")
	}
	if f != ^Flags(0)&^0x8000 {
		t.Errorf("clearing QR disturbed other bits: %#04x", f)
	}
}

func TestFlags_OpcodeRoundTrip(t *testing.T) {
	var f Flags
	f.SetRD(true)
	f.SetOpcode(4) // NOTIFY
	if f.Opcode() != 4 {
		t.Errorf("expected opcode 4, got %d", f.Opcode())
	}
	if !f.RD() {
		t.Error("SetOpcode cleared RD")
	}
	f.SetOpcode(0)
	if f.Opcode() != 0 || !f.RD() {
		t.Errorf("resetting opcode broke neighboring bits: %#04x", f)
	}
}

func TestFlags_RCodeRoundTrip(t *testing.T) {
	var f Flags
	f.SetCD(true)
	f.SetRCode(RCodeServFail)
	if f.RCode() != RCodeServFail {
		t.Errorf("expected SERVFAIL, got %v", f.RCode())
	}
	if !f.CD() {
		t.Error("SetRCode cleared CD")
	}
	f.SetRCode(RCodeNoError)
	if f.RCode() != RCodeNoError || !f.CD() {
		t.Errorf("resetting rcode broke neighboring bits: %#04x", f)
	}
}

func TestFlags_QueryWordFromWire(t *testing.T) {
	// 0x0120: standard query, RD=1, AD=1 (the literal flag word from the
	// www.google.com MX sample).
	f := Flags(0x0120)
	if f.QR() || f.AA() || f.TC() || f.RA() || f.CD() || f.Z() {
		t.Errorf("unexpected bits set in %#04x", f)
	}
	if !f.RD() || !f.AD() {
		t.Errorf("expected RD and AD set in %#04x", f)
	}
	if f.Opcode() != 0 {
		t.Errorf("expected opcode 0, got %d", f.Opcode())
	}
	if f.RCode() != RCodeNoError {
		t.Errorf("expected NOERROR, got %v", f.RCode())
	}
}

package pump

import (
	"bytes"
	"testing"
)

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		width   int
		signed  bool
		want    int64
		wantErr bool
	}{
		{"one byte unsigned", []byte{0xE1}, 1, false, 225, false},
		{"one byte signed positive", []byte{0x7F}, 1, true, 127, false},
		{"one byte signed negative", []byte{0xEC}, 1, true, -20, false},
		{"one byte signed minimum", []byte{0x80}, 1, true, -128, false},
		{"two byte unsigned", []byte{0x01, 0x00}, 2, false, 256, false},
		{"two byte signed positive", []byte{0x00, 0xE1}, 2, true, 225, false},
		{"two byte signed negative", []byte{0xFF, 0x38}, 2, true, -200, false},
		{"two byte signed minimum", []byte{0x80, 0x00}, 2, true, -32768, false},
		{"zero", []byte{0x00}, 1, true, 0, false},
		{"width zero", []byte{0x01}, 0, false, 0, true},
		{"width three", []byte{0x01, 0x02, 0x03}, 3, false, 0, true},
		{"length mismatch", []byte{0x01, 0x02}, 1, false, 0, true},
		{"empty data", []byte{}, 1, false, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeValue(tt.data, tt.width, tt.signed)
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeValue() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("DecodeValue(%v, %d, %v) = %d, want %d", tt.data, tt.width, tt.signed, got, tt.want)
			}
		})
	}
}

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		name    string
		value   int64
		width   int
		signed  bool
		want    []byte
		wantErr bool
	}{
		{"one byte unsigned", 225, 1, false, []byte{0xE1}, false},
		{"one byte signed negative", -20, 1, true, []byte{0xEC}, false},
		{"two byte signed 225", 225, 2, true, []byte{0x00, 0xE1}, false},
		{"two byte signed negative", -200, 2, true, []byte{0xFF, 0x38}, false},
		{"two byte unsigned max", 65535, 2, false, []byte{0xFF, 0xFF}, false},
		{"unsigned negative rejected", -1, 1, false, nil, true},
		{"unsigned overflow", 256, 1, false, nil, true},
		{"signed overflow", 128, 1, true, nil, true},
		{"signed underflow", -129, 1, true, nil, true},
		{"width three rejected", 1, 3, false, nil, true},
		{"width zero rejected", 1, 0, false, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeValue(tt.value, tt.width, tt.signed)
			if (err != nil) != tt.wantErr {
				t.Errorf("EncodeValue() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeValue(%d, %d, %v) = %v, want %v", tt.value, tt.width, tt.signed, got, tt.want)
			}
		})
	}
}

// TestCodecRoundTrip exercises decode(encode(v)) == v across the full range
// of every width/signedness combination.
func TestCodecRoundTrip(t *testing.T) {
	cases := []struct {
		width  int
		signed bool
		min    int64
		max    int64
		step   int64
	}{
		{1, false, 0, 255, 1},
		{1, true, -128, 127, 1},
		{2, false, 0, 65535, 257},
		{2, true, -32768, 32767, 251},
	}

	for _, c := range cases {
		for v := c.min; v <= c.max; v += c.step {
			encoded, err := EncodeValue(v, c.width, c.signed)
			if err != nil {
				t.Fatalf("EncodeValue(%d, %d, %v) error: %v", v, c.width, c.signed, err)
			}
			decoded, err := DecodeValue(encoded, c.width, c.signed)
			if err != nil {
				t.Fatalf("DecodeValue(%v, %d, %v) error: %v", encoded, c.width, c.signed, err)
			}
			if decoded != v {
				t.Fatalf("round trip width=%d signed=%v: %d -> %v -> %d", c.width, c.signed, v, encoded, decoded)
			}
		}
	}
}

func TestStringPassthrough(t *testing.T) {
	in := "WPL 25 AC"
	encoded := EncodeString(in)
	if len(encoded) < 3 {
		t.Fatalf("expected 3+ bytes for string field, got %d", len(encoded))
	}
	if got := DecodeString(encoded); got != in {
		t.Errorf("DecodeString(EncodeString(%q)) = %q", in, got)
	}
}

package pump

import (
	"errors"
	"testing"
)

func TestParsePropertyAddress(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    PropertyAddress
		wantErr bool
	}{
		{
			name: "canonical path",
			path: "29/1/10",
			want: PropertyAddress{X: 29, Y: 1, Z: 10, Sub: -1},
		},
		{
			name: "zero segments allowed",
			path: "0/0/0",
			want: PropertyAddress{X: 0, Y: 0, Z: 0, Sub: -1},
		},
		{
			name:    "too few segments",
			path:    "29/1",
			wantErr: true,
		},
		{
			name:    "too many segments",
			path:    "29/1/10/4",
			wantErr: true,
		},
		{
			name:    "non-numeric segment",
			path:    "29/one/10",
			wantErr: true,
		},
		{
			name:    "negative segment",
			path:    "29/-1/10",
			wantErr: true,
		},
		{
			name:    "empty path",
			path:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePropertyAddress(tt.path)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParsePropertyAddress(%q) error = %v, want ErrValidation", tt.path, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePropertyAddress(%q): %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("ParsePropertyAddress(%q) = %+v, want %+v", tt.path, got, tt.want)
			}
		})
	}
}

func TestPropertyAddressKey(t *testing.T) {
	addr := PropertyAddress{X: 29, Y: 1, Z: 10, Sub: -1}
	if got := addr.String(); got != "29/1/10" {
		t.Errorf("String() = %q, want %q", got, "29/1/10")
	}
	if got := addr.Key(); got != "29/1/10" {
		t.Errorf("Key() without sub = %q, want %q", got, "29/1/10")
	}

	addr.Sub = 2
	if got := addr.Key(); got != "29/1/10.2" {
		t.Errorf("Key() with sub = %q, want %q", got, "29/1/10.2")
	}
	// Sub never appears in the wire path.
	if got := addr.String(); got != "29/1/10" {
		t.Errorf("String() with sub = %q, want %q", got, "29/1/10")
	}
}

func TestTelemetryID(t *testing.T) {
	if got := TelemetryID(107); got != TelemetryAddress("107") {
		t.Errorf("TelemetryID(107) = %q, want %q", got, "107")
	}
}

func TestNewScaledReading(t *testing.T) {
	r, err := NewScaledReading("hp-1", "107", 225, 0.1, true, 2)
	if err != nil {
		t.Fatalf("NewScaledReading: %v", err)
	}
	if got := r.Value(); got != 22.5 {
		t.Errorf("Value() = %v, want 22.5", got)
	}

	neg, err := NewScaledReading("hp-1", "107", -20, 0.5, true, 2)
	if err != nil {
		t.Fatalf("NewScaledReading: %v", err)
	}
	if got := neg.Value(); got != -10 {
		t.Errorf("Value() = %v, want -10", got)
	}

	for _, factor := range []float64{0, -0.1} {
		if _, err := NewScaledReading("hp-1", "107", 1, factor, false, 1); !errors.Is(err, ErrValidation) {
			t.Errorf("NewScaledReading(factor=%v) error = %v, want ErrValidation", factor, err)
		}
	}
}

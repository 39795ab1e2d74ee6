package pump

import (
	"fmt"
	"strconv"
	"strings"
)

// propertyPathSegments is the number of segments in a property path.
const propertyPathSegments = 3

// PropertyAddress identifies a readable/writable control point on a connected
// device as a three-segment path "X/Y/Z", plus an optional sub-index.
//
// On the wire, X and Y become URL segments and Z becomes the first data byte
// of a write payload (the sub-property selector). This layout must be
// preserved exactly for device compatibility.
//
// PropertyAddress is immutable and usable as part of cache and registration
// keys.
type PropertyAddress struct {
	X, Y, Z int

	// Sub is an optional sub-index within the property. Negative means unset.
	Sub int
}

// ParsePropertyAddress parses a path of the form "X/Y/Z" where each segment
// is a non-negative integer.
//
// Returns:
//   - PropertyAddress: Parsed address with Sub unset
//   - error: ErrValidation for malformed paths, before any network call
func ParsePropertyAddress(path string) (PropertyAddress, error) {
	parts := strings.Split(path, "/")
	if len(parts) != propertyPathSegments {
		return PropertyAddress{}, fmt.Errorf("%w: property path %q must have 3 segments", ErrValidation, path)
	}

	seg := make([]int, propertyPathSegments)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return PropertyAddress{}, fmt.Errorf("%w: property path segment %q must be a non-negative integer", ErrValidation, p)
		}
		seg[i] = n
	}

	return PropertyAddress{X: seg[0], Y: seg[1], Z: seg[2], Sub: -1}, nil
}

// String returns the canonical "X/Y/Z" form.
func (a PropertyAddress) String() string {
	return fmt.Sprintf("%d/%d/%d", a.X, a.Y, a.Z)
}

// Key returns the cache/registration key form of the address, including the
// sub-index when set.
func (a PropertyAddress) Key() string {
	if a.Sub >= 0 {
		return fmt.Sprintf("%d/%d/%d.%d", a.X, a.Y, a.Z, a.Sub)
	}
	return a.String()
}

// TelemetryAddress identifies a read-only sensor channel on a connected
// device. The gateway accepts numeric and string channel identifiers; both
// are carried as their string form.
type TelemetryAddress string

// TelemetryID builds a TelemetryAddress from a numeric channel id.
func TelemetryID(id int) TelemetryAddress {
	return TelemetryAddress(strconv.Itoa(id))
}

// ScaledReading is a decoded value from a telemetry channel or property.
//
// The scaled value is derived, not stored: Value() recomputes it from the
// raw integer and factor, so a reading is never partially mutated.
type ScaledReading struct {
	// DeviceID is the UUID of the connected device that owns the value.
	DeviceID string

	// Address is the channel id or property path the value was read from.
	Address string

	// Raw is the sign-interpreted integer as decoded from the byte run.
	Raw int64

	// Factor is the scale factor applied to Raw. Always > 0.
	Factor float64

	// Signed records the interpretation the raw value was decoded with.
	Signed bool

	// Width is the byte width of the source field.
	Width int
}

// NewScaledReading constructs a reading, rejecting non-positive factors.
func NewScaledReading(deviceID, address string, raw int64, factor float64, signed bool, width int) (*ScaledReading, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("%w: scale factor must be > 0, got %v", ErrValidation, factor)
	}
	return &ScaledReading{
		DeviceID: deviceID,
		Address:  address,
		Raw:      raw,
		Factor:   factor,
		Signed:   signed,
		Width:    width,
	}, nil
}

// Value returns the scaled reading: raw × factor.
func (r *ScaledReading) Value() float64 {
	return float64(r.Raw) * r.Factor
}

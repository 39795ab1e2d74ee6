package pump

import "fmt"

// Byte codec constants.
const (
	// maxNumericWidth is the widest field decoded as an integer.
	// Fields of three or more bytes are treated as strings.
	maxNumericWidth = 2

	// bitsPerByte is the shift applied per byte of width.
	bitsPerByte = 8
)

// DecodeValue converts a raw byte run from the gateway's micro-protocol into
// an integer.
//
// Numeric fields are big-endian and one or two bytes wide. When signed is
// true the value is interpreted as two's complement: if the high bit of the
// most significant byte is set, 2^(8*width) is subtracted from the unsigned
// interpretation.
//
// Parameters:
//   - data: Raw bytes, length must equal width
//   - width: Field width in bytes (1 or 2)
//   - signed: Two's-complement interpretation
//
// Returns:
//   - int64: Decoded value
//   - error: ErrValidation if width or data length is invalid
func DecodeValue(data []byte, width int, signed bool) (int64, error) {
	if width < 1 || width > maxNumericWidth {
		return 0, fmt.Errorf("%w: numeric width must be 1 or 2, got %d", ErrValidation, width)
	}
	if len(data) != width {
		return 0, fmt.Errorf("%w: expected %d bytes, got %d", ErrValidation, width, len(data))
	}

	var v int64
	for _, b := range data {
		v = v<<bitsPerByte | int64(b)
	}

	if signed && data[0]&0x80 != 0 {
		v -= int64(1) << (bitsPerByte * width)
	}

	return v, nil
}

// EncodeValue is the exact inverse of DecodeValue: it converts an integer
// into the big-endian byte run the gateway expects.
//
// Negative values with signed=true have 2^(8*width) added before the value
// is split into bytes, matching the two's-complement decode.
//
// Returns:
//   - []byte: Encoded bytes, length equals width
//   - error: ErrValidation if width is invalid or v does not fit
func EncodeValue(v int64, width int, signed bool) ([]byte, error) {
	if width < 1 || width > maxNumericWidth {
		return nil, fmt.Errorf("%w: numeric width must be 1 or 2, got %d", ErrValidation, width)
	}

	limit := int64(1) << (bitsPerByte * width)
	if signed {
		if v < -limit/2 || v > limit/2-1 {
			return nil, fmt.Errorf("%w: value %d does not fit in %d signed byte(s)", ErrValidation, v, width)
		}
	} else {
		if v < 0 || v > limit-1 {
			return nil, fmt.Errorf("%w: value %d does not fit in %d unsigned byte(s)", ErrValidation, v, width)
		}
	}

	if v < 0 {
		v += limit
	}

	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(v & 0xFF)
		v >>= bitsPerByte
	}
	return out, nil
}

// DecodeString converts a byte run of three or more bytes into a string.
// No sign interpretation is applied; the bytes are passed through as UTF-8.
func DecodeString(data []byte) string {
	return string(data)
}

// EncodeString converts a string into the byte run sent to the gateway.
func EncodeString(s string) []byte {
	return []byte(s)
}

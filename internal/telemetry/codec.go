// Package telemetry persists fixed-layout data streams. A stream is
// declared once with a field list and a layout string of format
// characters; every record packs to the same little-endian byte layout,
// which keeps downlink framing trivial and storage compact.
package telemetry

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kestrel-flight/kestrel/internal/domain"
)

// Format characters and their encoded widths. The alphabet mirrors the
// downlink framing contract: signed/unsigned 8, 16, 32, and 64 bit
// integers plus 32 and 64 bit floats.
var formatSizes = map[byte]int{
	'b': 1, 'B': 1,
	'h': 2, 'H': 2,
	'i': 4, 'I': 4,
	'l': 4, 'L': 4,
	'q': 8, 'Q': 8,
	'f': 4, 'd': 8,
}

// LayoutSize returns the encoded byte width of one record, or an error
// for an unknown format character.
func LayoutSize(layout string) (int, error) {
	if layout == "" {
		return 0, fmt.Errorf("empty layout: %w", domain.ErrLayoutMismatch)
	}
	total := 0
	for i := 0; i < len(layout); i++ {
		n, ok := formatSizes[layout[i]]
		if !ok {
			return 0, fmt.Errorf("layout char %q: %w", layout[i], domain.ErrLayoutMismatch)
		}
		total += n
	}
	return total, nil
}

// Encode packs values against the layout. Integer format characters
// truncate toward zero; values outside the target range wrap, matching
// raw register semantics.
func Encode(layout string, values []float64) ([]byte, error) {
	if len(values) != len(layout) {
		return nil, fmt.Errorf("%d values for %d-char layout: %w", len(values), len(layout), domain.ErrLayoutMismatch)
	}
	size, err := LayoutSize(layout)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, size)
	for i := 0; i < len(layout); i++ {
		v := values[i]
		switch layout[i] {
		case 'b', 'B':
			buf = append(buf, byte(int64(v)))
		case 'h', 'H':
			buf = binary.LittleEndian.AppendUint16(buf, uint16(int64(v)))
		case 'i', 'I', 'l', 'L':
			buf = binary.LittleEndian.AppendUint32(buf, uint32(int64(v)))
		case 'q', 'Q':
			buf = binary.LittleEndian.AppendUint64(buf, uint64(int64(v)))
		case 'f':
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v)))
		case 'd':
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
		}
	}
	return buf, nil
}

// Decode unpacks a record encoded with the layout.
func Decode(layout string, data []byte) ([]float64, error) {
	size, err := LayoutSize(layout)
	if err != nil {
		return nil, err
	}
	if len(data) != size {
		return nil, fmt.Errorf("%d bytes for %d-byte layout: %w", len(data), size, domain.ErrLayoutMismatch)
	}

	out := make([]float64, 0, len(layout))
	off := 0
	for i := 0; i < len(layout); i++ {
		switch layout[i] {
		case 'b':
			out = append(out, float64(int8(data[off])))
			off++
		case 'B':
			out = append(out, float64(data[off]))
			off++
		case 'h':
			out = append(out, float64(int16(binary.LittleEndian.Uint16(data[off:]))))
			off += 2
		case 'H':
			out = append(out, float64(binary.LittleEndian.Uint16(data[off:])))
			off += 2
		case 'i', 'l':
			out = append(out, float64(int32(binary.LittleEndian.Uint32(data[off:]))))
			off += 4
		case 'I', 'L':
			out = append(out, float64(binary.LittleEndian.Uint32(data[off:])))
			off += 4
		case 'q':
			out = append(out, float64(int64(binary.LittleEndian.Uint64(data[off:]))))
			off += 8
		case 'Q':
			out = append(out, float64(binary.LittleEndian.Uint64(data[off:])))
			off += 8
		case 'f':
			out = append(out, float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))))
			off += 4
		case 'd':
			out = append(out, math.Float64frombits(binary.LittleEndian.Uint64(data[off:])))
			off += 8
		}
	}
	return out, nil
}

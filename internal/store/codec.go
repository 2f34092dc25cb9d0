package store

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/golang/snappy"
	"github.com/google/uuid"
)

func newID() string {
	return uuid.New().String()
}

// encodeFloats packs values as little-endian float64 and snappy-compresses
// the result. Long trajectories are mostly repeated values and compress well.
func encodeFloats(values []float64) []byte {
	raw := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(v))
	}
	return snappy.Encode(nil, raw)
}

func decodeFloats(blob []byte) ([]float64, error) {
	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress values: %w", err)
	}
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("corrupt value blob: %d bytes is not a multiple of 8", len(raw))
	}
	values := make([]float64, len(raw)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	return values, nil
}

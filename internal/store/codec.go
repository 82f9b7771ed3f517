package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

const drawsEncoding = "zstd+f64le"

var zstdDecoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd decoder for pool: %v", err))
		}
		return decoder
	},
}

var zstdEncoderPool = sync.Pool{
	New: func() any {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd encoder for pool: %v", err))
		}
		return encoder
	},
}

// encodeDraws packs equal-length draw vectors, in names order, as
// little-endian float64 and compresses them. The checksum covers the
// uncompressed bytes.
func encodeDraws(names []string, draws map[string][]float64) (blob []byte, checksum uint64, err error) {
	if len(names) == 0 {
		return nil, 0, fmt.Errorf("no draw variables")
	}
	n := len(draws[names[0]])
	raw := make([]byte, 0, len(names)*n*8)
	for _, name := range names {
		v, ok := draws[name]
		if !ok {
			return nil, 0, fmt.Errorf("missing draws for %q", name)
		}
		if len(v) != n {
			return nil, 0, fmt.Errorf("draws for %q have length %d, want %d", name, len(v), n)
		}
		for _, f := range v {
			raw = binary.LittleEndian.AppendUint64(raw, math.Float64bits(f))
		}
	}

	encoder := zstdEncoderPool.Get().(*zstd.Encoder)
	defer zstdEncoderPool.Put(encoder)
	return encoder.EncodeAll(raw, nil), xxhash.Sum64(raw), nil
}

// decodeDraws reverses encodeDraws and verifies the checksum.
func decodeDraws(names []string, blob []byte, checksum uint64) (map[string][]float64, error) {
	decoder := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(decoder)

	raw, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	if got := xxhash.Sum64(raw); got != checksum {
		return nil, fmt.Errorf("draws checksum %016x, want %016x", got, checksum)
	}
	if len(names) == 0 || len(raw)%(8*len(names)) != 0 {
		return nil, fmt.Errorf("draws blob of %d bytes does not hold %d variables", len(raw), len(names))
	}

	n := len(raw) / 8 / len(names)
	out := make(map[string][]float64, len(names))
	for j, name := range names {
		v := make([]float64, n)
		for i := range v {
			off := (j*n + i) * 8
			v[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[off:]))
		}
		out[name] = v
	}
	return out, nil
}

package segment

import (
	"github.com/flowlog/partitionstore/internal/perrors"
	"github.com/klauspost/compress/zstd"
)

// CompressionCodec identifies the (currently unused) body compression
// algorithm a future on-disk format revision would tag each batch with.
// The fixed §4.2 record layout has no codec byte today — the engine
// always stores uncompressed bodies (see spec Non-goals) — but the
// format is specified to "carry an algorithm tag", so the codec
// registry exists and is exercised by tests even though no code path
// currently persists a non-None value.
type CompressionCodec uint8

const (
	CodecNone CompressionCodec = iota
	CodecZstd
)

func (c CompressionCodec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// compressBody compresses payload with the given codec. CodecNone is a
// no-op passthrough. The append path does not call compressBody at all;
// records are encoded with their payloads uncompressed.
func compressBody(codec CompressionCodec, payload []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return payload, nil
	case CodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(payload, nil), nil
	default:
		return nil, perrors.ErrUnknownCompressor
	}
}

// decompressBody reverses compressBody. Kept symmetric with
// compressBody so the codec registry round-trips under test even though
// nothing on the append path currently produces CodecZstd bodies.
func decompressBody(codec CompressionCodec, body []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return body, nil
	case CodecZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(body, nil)
	default:
		return nil, perrors.ErrUnknownCompressor
	}
}

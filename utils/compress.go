package utils

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

type zstdCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	err     error
}

// codec is shared by every caller; EncodeAll and DecodeAll are safe for
// concurrent use
var codec = sync.OnceValue(func() zstdCodec {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		zstd.WithZeroFrames(true))
	if err != nil {
		return zstdCodec{err: fmt.Errorf("failed to create zstd encoder: %w", err)}
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return zstdCodec{err: fmt.Errorf("failed to create zstd decoder: %w", err)}
	}
	return zstdCodec{encoder: enc, decoder: dec}
})

// Compress zstd-encodes the payload. Empty input still yields a full frame.
func Compress(input []byte) ([]byte, error) {
	c := codec()
	if c.err != nil {
		return nil, c.err
	}
	return c.encoder.EncodeAll(input, make([]byte, 0, len(input)/2)), nil
}

// Decompress reverses Compress.
func Decompress(input []byte) ([]byte, error) {
	c := codec()
	if c.err != nil {
		return nil, c.err
	}
	out, err := c.decoder.DecodeAll(input, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

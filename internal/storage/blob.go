package storage

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Symbol previews are stored zstd-compressed. Encoders and decoders are
// stateless here (no dictionary), so package-level instances are safe for
// concurrent use.
var (
	blobEncoder *zstd.Encoder
	blobDecoder *zstd.Decoder
)

func init() {
	var err error
	blobEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("storage: zstd encoder init: %v", err))
	}
	blobDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("storage: zstd decoder init: %v", err))
	}
}

// CompressBlob compresses text for storage. Empty input stays empty.
func CompressBlob(text string) []byte {
	if text == "" {
		return nil
	}
	return blobEncoder.EncodeAll([]byte(text), nil)
}

// DecompressBlob reverses CompressBlob.
func DecompressBlob(blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}
	out, err := blobDecoder.DecodeAll(blob, nil)
	if err != nil {
		return "", fmt.Errorf("decompress blob: %w", err)
	}
	return string(out), nil
}

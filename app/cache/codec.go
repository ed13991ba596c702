package cache

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

func initCodec() error {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
	})
	return codecErr
}

// Encode marshals v to JSON, compresses it and returns base64 text safe for any string store.
func Encode(v any) (string, error) {
	if err := initCodec(); err != nil {
		return "", fmt.Errorf("failed to init zstd codec: %w", err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return base64.StdEncoding.EncodeToString(encoder.EncodeAll(data, nil)), nil
}

// Decode reverses Encode into v.
func Decode(value string, v any) error {
	if err := initCodec(); err != nil {
		return fmt.Errorf("failed to init zstd codec: %w", err)
	}

	compressed, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return fmt.Errorf("failed to decode cache value: %w", err)
	}

	data, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return fmt.Errorf("failed to decompress cache value: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}

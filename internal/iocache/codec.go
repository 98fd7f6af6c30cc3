package iocache

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/huangsam/stablelint/schema"
	"github.com/klauspost/compress/zstd"
)

// codecVersion is stored next to every snapshot blob.
// Version 1 is zstd-compressed JSON of []schema.TrackedFinding.
const codecVersion = 1

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

// initCodec creates the shared zstd encoder and decoder. Both are safe for
// concurrent use through EncodeAll and DecodeAll.
func initCodec() error {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return codecErr
}

// encodeFindings serializes a snapshot into a storable blob.
func encodeFindings(findings []schema.TrackedFinding) ([]byte, error) {
	if err := initCodec(); err != nil {
		return nil, fmt.Errorf("failed to initialize codec: %w", err)
	}
	if findings == nil {
		findings = []schema.TrackedFinding{}
	}
	raw, err := json.Marshal(findings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal findings: %w", err)
	}
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// decodeFindings restores a snapshot written by encodeFindings.
func decodeFindings(blob []byte, version int) ([]schema.TrackedFinding, error) {
	if version != codecVersion {
		return nil, fmt.Errorf("unsupported snapshot codec version %d", version)
	}
	if err := initCodec(); err != nil {
		return nil, fmt.Errorf("failed to initialize codec: %w", err)
	}
	raw, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}
	var findings []schema.TrackedFinding
	if err := json.Unmarshal(raw, &findings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal findings: %w", err)
	}
	if findings == nil {
		findings = []schema.TrackedFinding{}
	}
	return findings, nil
}

// Package compression implements the threshold-gated, auto-selecting
// compress/decompress pipeline fronting the durable store and the
// transport layer.
package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/memexlabs/memex/internal/errs"
)

// Algorithm identifies which codec produced a Payload.
type Algorithm string

const (
	None Algorithm = "none"
	LZ4  Algorithm = "lz4"
	Zstd Algorithm = "zstd"
	Gzip Algorithm = "gzip"
)

// Payload is the result of a compress call.
type Payload struct {
	Algorithm       Algorithm
	OriginalSize    int
	CompressedSize  int
	Data            []byte
}

// CompressionRatio returns compressed_size / original_size.
func (p Payload) CompressionRatio() float64 {
	if p.OriginalSize == 0 {
		return 1
	}
	return float64(p.CompressedSize) / float64(p.OriginalSize)
}

// Config controls threshold gating and auto-selection.
type Config struct {
	// CompressionThreshold: inputs smaller than this are stored as None.
	CompressionThreshold int
	// MaxCompressedSize: a produced Payload larger than this is rejected.
	MaxCompressedSize int
	// MinAcceptableRatio: if the selected algorithm's ratio exceeds this,
	// an LZ4 fallback is attempted and the smaller result kept.
	MinAcceptableRatio float64
	// AutoSelect enables size-based algorithm selection.
	AutoSelect bool
}

// DefaultConfig holds the pipeline's default thresholds.
func DefaultConfig() Config {
	return Config{
		CompressionThreshold: 256,
		MaxCompressedSize:    64 * 1024 * 1024,
		MinAcceptableRatio:   0.9,
		AutoSelect:           true,
	}
}

const oneMiB = 1024 * 1024

// selectAlgorithm implements the auto-selection rule from §4.7.
func selectAlgorithm(size int, cfg Config) Algorithm {
	if size < cfg.CompressionThreshold {
		return None
	}
	if size > oneMiB {
		return LZ4
	}
	return Zstd
}

// Compress runs the pipeline over data using cfg.
func Compress(data []byte, cfg Config) (Payload, error) {
	algo := None
	if cfg.AutoSelect {
		algo = selectAlgorithm(len(data), cfg)
	} else {
		algo = Zstd
	}

	payload, err := compressWith(algo, data)
	if err != nil {
		return Payload{}, err
	}

	if algo != None && algo != LZ4 && payload.CompressionRatio() > cfg.MinAcceptableRatio {
		fallback, ferr := compressWith(LZ4, data)
		if ferr == nil && fallback.CompressionRatio() < payload.CompressionRatio() {
			payload = fallback
		}
	}

	if cfg.MaxCompressedSize > 0 && payload.CompressedSize > cfg.MaxCompressedSize {
		return Payload{}, errs.Wrap("compression.compress", errs.KindCompression, errs.ErrThresholdExceeded)
	}
	return payload, nil
}

func compressWith(algo Algorithm, data []byte) (Payload, error) {
	switch algo {
	case None:
		return Payload{Algorithm: None, OriginalSize: len(data), CompressedSize: len(data), Data: data}, nil
	case LZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return Payload{}, errs.Wrap("compression.lz4", errs.KindCompression, err)
		}
		if err := w.Close(); err != nil {
			return Payload{}, errs.Wrap("compression.lz4", errs.KindCompression, err)
		}
		return Payload{Algorithm: LZ4, OriginalSize: len(data), CompressedSize: buf.Len(), Data: buf.Bytes()}, nil
	case Zstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return Payload{}, errs.Wrap("compression.zstd", errs.KindCompression, err)
		}
		out := enc.EncodeAll(data, nil)
		_ = enc.Close()
		return Payload{Algorithm: Zstd, OriginalSize: len(data), CompressedSize: len(out), Data: out}, nil
	case Gzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return Payload{}, errs.Wrap("compression.gzip", errs.KindCompression, err)
		}
		if err := w.Close(); err != nil {
			return Payload{}, errs.Wrap("compression.gzip", errs.KindCompression, err)
		}
		return Payload{Algorithm: Gzip, OriginalSize: len(data), CompressedSize: buf.Len(), Data: buf.Bytes()}, nil
	default:
		return Payload{}, errs.New("compression.compress", errs.KindInvalidArgument, string(algo), fmt.Errorf("unknown algorithm %q", algo))
	}
}

// Decompress reverses Compress.
func Decompress(p Payload) ([]byte, error) {
	switch p.Algorithm {
	case None:
		return p.Data, nil
	case LZ4:
		r := lz4.NewReader(bytes.NewReader(p.Data))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errs.Wrap("compression.lz4", errs.KindCompression, err)
		}
		return out, nil
	case Zstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errs.Wrap("compression.zstd", errs.KindCompression, err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(p.Data, nil)
		if err != nil {
			return nil, errs.Wrap("compression.zstd", errs.KindCompression, err)
		}
		return out, nil
	case Gzip:
		r, err := gzip.NewReader(bytes.NewReader(p.Data))
		if err != nil {
			return nil, errs.Wrap("compression.gzip", errs.KindCompression, err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errs.Wrap("compression.gzip", errs.KindCompression, err)
		}
		return out, nil
	default:
		return nil, errs.New("compression.decompress", errs.KindInvalidArgument, string(p.Algorithm), fmt.Errorf("unknown algorithm %q", p.Algorithm))
	}
}

package compression

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/memexlabs/memex/internal/errs"
)

// headerSize is the fixed little-endian (original_size uint64, compressed_size
// uint64) header, followed by a 1-byte algorithm tag so the decoder
// never has to guess which algorithm produced a given payload.
const headerSize = 16

var algoTag = map[Algorithm]byte{None: 0, LZ4: 1, Zstd: 2, Gzip: 3}
var tagAlgo = map[byte]Algorithm{0: None, 1: LZ4, 2: Zstd, 3: Gzip}

// CompressStream compresses data and writes the framed wire payload:
// header + 1-byte algorithm tag + compressed bytes.
func CompressStream(w io.Writer, data []byte, cfg Config) error {
	p, err := Compress(data, cfg)
	if err != nil {
		return err
	}
	var header [headerSize]byte
	binary.LittleEndian.PutUint64(header[0:8], uint64(p.OriginalSize))
	binary.LittleEndian.PutUint64(header[8:16], uint64(p.CompressedSize))
	if _, err := w.Write(header[:]); err != nil {
		return errs.Wrap("compression.stream_write", errs.KindCompression, err)
	}
	tag, ok := algoTag[p.Algorithm]
	if !ok {
		return errs.New("compression.stream_write", errs.KindInvalidArgument, string(p.Algorithm), fmt.Errorf("unknown algorithm %q", p.Algorithm))
	}
	if _, err := w.Write([]byte{tag}); err != nil {
		return errs.Wrap("compression.stream_write", errs.KindCompression, err)
	}
	if _, err := w.Write(p.Data); err != nil {
		return errs.Wrap("compression.stream_write", errs.KindCompression, err)
	}
	return nil
}

// DecompressStream reads a framed payload written by CompressStream and
// returns the original bytes.
func DecompressStream(r io.Reader) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, errs.Wrap("compression.stream_read", errs.KindCompression, err)
	}
	originalSize := binary.LittleEndian.Uint64(header[0:8])
	compressedSize := binary.LittleEndian.Uint64(header[8:16])

	var tagBuf [1]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		return nil, errs.Wrap("compression.stream_read", errs.KindCompression, err)
	}
	algo, ok := tagAlgo[tagBuf[0]]
	if !ok {
		return nil, errs.New("compression.stream_read", errs.KindCompression, "", fmt.Errorf("unknown algorithm tag %d", tagBuf[0]))
	}

	buf := make([]byte, compressedSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errs.Wrap("compression.stream_read", errs.KindCompression, err)
	}

	out, err := Decompress(Payload{Algorithm: algo, OriginalSize: int(originalSize), CompressedSize: int(compressedSize), Data: buf})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HeaderSize exposes the fixed header length for tests/docs.
const HeaderSize = headerSize

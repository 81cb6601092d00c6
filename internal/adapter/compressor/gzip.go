package compressor

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
)

// GzipCompressor wraps archive streams. Dump output is compressed on the way
// into the store; restores sniff the gzip magic so uncompressed archives
// still restore.
type GzipCompressor struct{}

func NewGzip() *GzipCompressor {
	return &GzipCompressor{}
}

func (g *GzipCompressor) Compress(w io.Writer) io.WriteCloser {
	zw, _ := gzip.NewWriterLevel(w, gzip.BestCompression)
	return zw
}

func (g *GzipCompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)

	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read archive stream: %w", err)
	}

	if len(magic) < 2 || magic[0] != 0x1f || magic[1] != 0x8b {
		return io.NopCloser(br), nil
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	return zr, nil
}

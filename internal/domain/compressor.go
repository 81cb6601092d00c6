package domain

import "io"

type Compressor interface {
	Compress(w io.Writer) io.WriteCloser
	Decompress(r io.Reader) (io.ReadCloser, error)
}

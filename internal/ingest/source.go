package ingest

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/go-git/go-billy/v6"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/lewtec/imagesprite/internal/domain"
)

// DefaultBatches are the CIFAR-10 training batches in the order that fixes
// identifier assignment.
var DefaultBatches = []string{
	"data_batch_1.bin",
	"data_batch_2.bin",
	"data_batch_3.bin",
	"data_batch_4.bin",
	"data_batch_5.bin",
}

// Format is the record layout of a batch.
type Format int

const (
	// FormatRaw batches are a plain concatenation of channel-first images.
	FormatRaw Format = iota
	// FormatCIFAR batches prefix every image with a one byte label, as in
	// the CIFAR-10 binary distribution. The label is dropped.
	FormatCIFAR
)

// ParseFormat parses the configuration name of a format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "cifar", "cifar-binary":
		return FormatCIFAR, nil
	case "raw":
		return FormatRaw, nil
	default:
		return 0, fmt.Errorf("unknown batch format %q", s)
	}
}

func (f Format) String() string {
	if f == FormatRaw {
		return "raw"
	}
	return "cifar"
}

// headerSize is the number of bytes preceding the pixels of each record.
func (f Format) headerSize() int {
	if f == FormatCIFAR {
		return 1
	}
	return 0
}

// RecordSize is the number of bytes per image in a batch.
func (f Format) RecordSize() int {
	return f.headerSize() + domain.ImageSize
}

// BatchSource is one named batch of channel-first images.
type BatchSource interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// FileSources returns sources for the named files of fs, in order.
func FileSources(fs billy.Filesystem, names []string) []BatchSource {
	sources := make([]BatchSource, len(names))
	for i, name := range names {
		sources[i] = &fileSource{fs: fs, name: name}
	}
	return sources
}

type fileSource struct {
	fs   billy.Filesystem
	name string
}

func (s *fileSource) Name() string {
	return s.name
}

// Open opens the file and transparently decompresses .gz, .zst and .lz4
// files.
func (s *fileSource) Open() (io.ReadCloser, error) {
	f, err := s.fs.Open(s.name)
	if err != nil {
		return nil, fmt.Errorf("while opening batch %s: %w", s.name, err)
	}
	rc, err := decompress(s.name, f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("while opening batch %s: %w", s.name, err)
	}
	return rc, nil
}

func decompress(name string, f io.ReadCloser) (io.ReadCloser, error) {
	switch path.Ext(name) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{zr, f}}, nil
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{zr.IOReadCloser(), f}}, nil
	case ".lz4":
		return &stackedReader{Reader: lz4.NewReader(f), closers: []io.Closer{f}}, nil
	default:
		return f, nil
	}
}

// stackedReader reads from a decompressor and closes it together with the
// underlying file.
type stackedReader struct {
	io.Reader
	closers []io.Closer
}

func (r *stackedReader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// BytesSource returns a source serving data from memory.
func BytesSource(name string, data []byte) BatchSource {
	return &bytesSource{name: name, data: data}
}

type bytesSource struct {
	name string
	data []byte
}

func (s *bytesSource) Name() string {
	return s.name
}

func (s *bytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

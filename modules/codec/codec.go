// Package codec implements the store's streaming compression layer: a
// small set of named, leveled algorithms identified by a single
// config-file string (e.g. "zlib+1", "zstd:3", "none"), each exposed as a
// plain byte-stream wrapper with no per-object framing of its own.
package codec

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/unkcpz/rsdos/modules/streamio"
)

// Name identifies a supported compression algorithm.
type Name string

const (
	None Name = "none"
	Zlib Name = "zlib"
	Zstd Name = "zstd"
)

const (
	DefaultZlibLevel = 1
	DefaultZstdLevel = 3
)

// Algo is a parsed compression identifier: the algorithm name plus its
// level, in the form written to config.json's compression_algorithm field.
type Algo struct {
	Name  Name
	Level int
}

// NoneAlgo performs no compression; wrap_reader/wrap_writer return the
// inner stream unchanged.
var NoneAlgo = Algo{Name: None}

func (a Algo) String() string {
	switch a.Name {
	case Zlib:
		return fmt.Sprintf("zlib+%d", a.Level)
	case Zstd:
		return fmt.Sprintf("zstd:%d", a.Level)
	default:
		return "none"
	}
}

// Parse decodes an identification string of the form "<name>[:+][level]",
// e.g. "zlib+1", "zstd:3", "zstd", "none". A name with no level takes the
// algorithm's default level.
func Parse(s string) (Algo, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == string(None) {
		return NoneAlgo, nil
	}
	name, levelStr, hasLevel := cutLevel(s)
	switch Name(name) {
	case Zlib:
		level := DefaultZlibLevel
		if hasLevel {
			v, err := strconv.Atoi(levelStr)
			if err != nil {
				return Algo{}, fmt.Errorf("codec: bad zlib level %q: %w", levelStr, err)
			}
			level = v
		}
		if level < 0 || level > 9 {
			return Algo{}, fmt.Errorf("codec: zlib level %d out of range [0,9]", level)
		}
		return Algo{Name: Zlib, Level: level}, nil
	case Zstd:
		level := DefaultZstdLevel
		if hasLevel {
			v, err := strconv.Atoi(levelStr)
			if err != nil {
				return Algo{}, fmt.Errorf("codec: bad zstd level %q: %w", levelStr, err)
			}
			level = v
		}
		return Algo{Name: Zstd, Level: level}, nil
	default:
		return Algo{}, fmt.Errorf("codec: unsupported compression_algorithm %q", s)
	}
}

// cutLevel splits "name+level" or "name:level" into its parts.
func cutLevel(s string) (name, level string, ok bool) {
	if i := strings.IndexAny(s, "+:"); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}

// WrapWriter returns a streaming compressor for algo writing to inner, or
// inner itself (wrapped in a no-op closer) when algo is None. The returned
// writer must be closed to flush trailing compressed bytes; closing never
// closes inner.
func WrapWriter(algo Algo, inner io.Writer) (io.WriteCloser, error) {
	switch algo.Name {
	case Zlib, "":
		level := algo.Level
		if level == 0 && algo.Name == "" {
			level = DefaultZlibLevel
		}
		return &pooledZlibWriter{streamio.GetZlibWriter(inner, level)}, nil
	case Zstd:
		return &pooledZstdWriter{streamio.GetZstdWriter(inner, algo.Level)}, nil
	case None:
		return nopWriteCloser{inner}, nil
	default:
		return nil, fmt.Errorf("codec: unsupported algorithm %q", algo.Name)
	}
}

// pooledZlibWriter and pooledZstdWriter return their underlying encoder to
// streamio's level-keyed sync.Pool on Close instead of discarding it.
type pooledZlibWriter struct{ *streamio.ZlibEncoder }

func (p *pooledZlibWriter) Close() error { return streamio.PutZlibWriter(p.ZlibEncoder) }

type pooledZstdWriter struct{ *streamio.ZstdEncoder }

func (p *pooledZstdWriter) Close() error { return streamio.PutZstdWriter(p.ZstdEncoder) }

// WrapReader returns a streaming decompressor for algo reading from inner.
// It tolerates streams that end exactly at the logical end of the
// compressed data, with no trailing padding expected or required. Close
// releases decoder resources but never closes inner.
func WrapReader(algo Algo, inner io.Reader) (io.ReadCloser, error) {
	switch algo.Name {
	case Zlib, "":
		zr, err := streamio.GetZlibReader(inner)
		if err != nil {
			return nil, fmt.Errorf("codec: zlib reader: %w", err)
		}
		return &pooledZlibReader{zr}, nil
	case Zstd:
		zr, err := streamio.GetZstdReader(inner)
		if err != nil {
			return nil, fmt.Errorf("codec: zstd reader: %w", err)
		}
		return &pooledZstdReader{zr}, nil
	case None:
		return io.NopCloser(inner), nil
	default:
		return nil, fmt.Errorf("codec: unsupported algorithm %q", algo.Name)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// pooledZlibReader and pooledZstdReader return their underlying decoder to
// streamio's sync.Pool on Close instead of discarding it.
type pooledZlibReader struct{ *streamio.ZlibDecoder }

func (p *pooledZlibReader) Close() error {
	streamio.PutZlibReader(p.ZlibDecoder)
	return nil
}

type pooledZstdReader struct{ *streamio.ZstdDecoder }

func (p *pooledZstdReader) Close() error {
	streamio.PutZstdReader(p.ZstdDecoder)
	return nil
}

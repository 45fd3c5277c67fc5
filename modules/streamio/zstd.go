package streamio

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// DefaultZstdLevel is used by callers that have no opinion on level.
const DefaultZstdLevel = int(zstd.SpeedDefault)

var (
	zstdReader     sync.Pool
	zstdWriterPool sync.Map // int level -> *sync.Pool
)

func init() {
	zstdReader = sync.Pool{
		New: func() any {
			d, _ := zstd.NewReader(nil)
			return &ZstdDecoder{
				Decoder: d,
			}
		},
	}
}

type ZstdDecoder struct {
	*zstd.Decoder
}

// GetZstdReader returns a ZstdDecoder that is managed by a sync.Pool.
//
// After use, the ZstdDecoder should be put back into the sync.Pool
// by calling PutZstdReader.
func GetZstdReader(r io.Reader) (*ZstdDecoder, error) {
	z := zstdReader.Get().(*ZstdDecoder)

	err := z.Reset(r)

	return z, err
}

// PutZstdReader puts z back into its sync.Pool.
func PutZstdReader(z *ZstdDecoder) {
	zstdReader.Put(z)
}

type ZstdEncoder struct {
	*zstd.Encoder
	level int
}

func zstdPoolForLevel(level int) *sync.Pool {
	if p, ok := zstdWriterPool.Load(level); ok {
		return p.(*sync.Pool)
	}
	p := &sync.Pool{
		New: func() any {
			e, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
			return &ZstdEncoder{Encoder: e, level: level}
		},
	}
	actual, _ := zstdWriterPool.LoadOrStore(level, p)
	return actual.(*sync.Pool)
}

// GetZstdWriter returns a ZstdEncoder (a *zstd.Encoder) managed by a per-level sync.Pool,
// reset to write to w at the given compression level.
//
// After use, the ZstdEncoder should be put back into the sync.Pool
// by calling PutZstdWriter.
func GetZstdWriter(w io.Writer, level int) *ZstdEncoder {
	z := zstdPoolForLevel(level).Get().(*ZstdEncoder)
	z.Encoder.Reset(w)
	return z
}

// PutZstdWriter flushes and puts w back into its sync.Pool.
func PutZstdWriter(w *ZstdEncoder) error {
	err := w.Encoder.Close() // close flush writer
	zstdPoolForLevel(w.level).Put(w)
	return err
}

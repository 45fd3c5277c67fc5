package streamio

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// DefaultZlibLevel is used by callers that have no opinion on level.
const DefaultZlibLevel = zlib.DefaultCompression

// zlibWriterPool holds one sync.Pool per compression level, since a
// zlib.Writer's level is fixed at construction and Reset only rebinds the
// destination.
var (
	zlibReader     sync.Pool
	zlibWriterPool sync.Map // int level -> *sync.Pool
)

func init() {
	zlibReader = sync.Pool{
		New: func() any {
			return &ZlibDecoder{}
		},
	}
}

type ZlibDecoder struct {
	io.ReadCloser
}

// GetZlibReader returns a ZlibDecoder that is managed by a sync.Pool.
//
// After use, the ZlibDecoder should be put back into the sync.Pool by
// calling PutZlibReader.
func GetZlibReader(r io.Reader) (*ZlibDecoder, error) {
	rc, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}
	z := zlibReader.Get().(*ZlibDecoder)
	z.ReadCloser = rc
	return z, nil
}

// PutZlibReader puts z back into its sync.Pool, first closing the reader.
func PutZlibReader(z *ZlibDecoder) {
	if z == nil {
		return
	}
	if z.ReadCloser != nil {
		_ = z.ReadCloser.Close()
	}
	zlibReader.Put(z)
}

type ZlibEncoder struct {
	*zlib.Writer
	level int
}

func zlibPoolForLevel(level int) *sync.Pool {
	if p, ok := zlibWriterPool.Load(level); ok {
		return p.(*sync.Pool)
	}
	p := &sync.Pool{
		New: func() any {
			w, _ := zlib.NewWriterLevel(nil, level)
			return &ZlibEncoder{Writer: w, level: level}
		},
	}
	actual, _ := zlibWriterPool.LoadOrStore(level, p)
	return actual.(*sync.Pool)
}

// GetZlibWriter returns a ZlibEncoder (a *zlib.Writer) managed by a per-level sync.Pool,
// reset to write to w at the given compression level.
//
// After use, the ZlibEncoder should be put back into the sync.Pool by
// calling PutZlibWriter.
func GetZlibWriter(w io.Writer, level int) *ZlibEncoder {
	z := zlibPoolForLevel(level).Get().(*ZlibEncoder)
	z.Writer.Reset(w)
	return z
}

// PutZlibWriter flushes trailing bytes and puts w back into its sync.Pool.
func PutZlibWriter(w *ZlibEncoder) error {
	err := w.Writer.Close() // flush trailing bytes
	zlibPoolForLevel(w.level).Put(w)
	return err
}

// Package classify implements the "worth compressing" heuristic the store
// runs before packing an object: a cheap inspection of the leading bytes
// (plus the known total size, if any) that decides whether spending CPU on
// compression is likely to pay for itself.
package classify

import "bytes"

// PeekSize is the number of leading bytes the classifier inspects. Callers
// must supply at least this many bytes when available; fewer is fine at
// end-of-stream.
const PeekSize = 512

// smallContentThreshold: below this size, compression overhead (headers,
// dictionary reset) tends to exceed any savings.
const smallContentThreshold = 850

var (
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	// zlib streams begin with a CMF/FLG byte pair; these are the four
	// values zlib's default compressor ever emits as CMF=0x78.
	zlibMagics = [][]byte{
		{0x78, 0x01},
		{0x78, 0x5E},
		{0x78, 0x9C},
		{0x78, 0xDA},
	}
)

// Tag names the classifier's verdict and the reason behind it.
type Tag int

const (
	// MaybeLargeText: none of the other rules matched; compress if the
	// caller has compression enabled.
	MaybeLargeText Tag = iota
	// SmallContent: total size is known and below smallContentThreshold.
	SmallContent
	// ZFile: the leading bytes already look like a zlib or zstd stream.
	ZFile
	// MaybeBinary: a null byte appears in the first PeekSize bytes.
	MaybeBinary
)

func (t Tag) String() string {
	switch t {
	case SmallContent:
		return "small_content"
	case ZFile:
		return "zfile"
	case MaybeBinary:
		return "maybe_binary"
	default:
		return "maybe_large_text"
	}
}

// Classify inspects peek (the first up-to-PeekSize bytes of the content,
// left undisturbed in the caller's stream) and the total size if known, and
// returns a verdict. Classify never mutates or consumes peek.
func Classify(peek []byte, size int64, sizeKnown bool) Tag {
	if sizeKnown && size < smallContentThreshold {
		return SmallContent
	}
	if isZFile(peek) {
		return ZFile
	}
	if len(peek) > PeekSize {
		peek = peek[:PeekSize]
	}
	if bytes.IndexByte(peek, 0) >= 0 {
		return MaybeBinary
	}
	return MaybeLargeText
}

func isZFile(peek []byte) bool {
	if len(peek) >= 4 && bytes.Equal(peek[:4], zstdMagic) {
		return true
	}
	if len(peek) >= 2 {
		for _, magic := range zlibMagics {
			if bytes.Equal(peek[:2], magic) {
				return true
			}
		}
	}
	return false
}

// ShouldCompress turns a Tag (plus whether compression is enabled at all,
// and whether the caller forces recompression of already-compressed
// streams) into the compress/don't-compress decision.
func ShouldCompress(tag Tag, compressionEnabled, recompress bool) bool {
	if !compressionEnabled {
		return false
	}
	switch tag {
	case SmallContent:
		return false
	case ZFile:
		return recompress
	case MaybeBinary:
		return false
	default: // MaybeLargeText
		return true
	}
}

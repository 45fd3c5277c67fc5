package strengthen

import (
	"errors"
	"strconv"
	"strings"
)

const (
	Byte = 1 << (iota * 10) // Byte
	KiByte
	MiByte
	GiByte
	TiByte
	PiByte
	EiByte
)

var sizeRatio = map[string]int64{
	"k": KiByte,
	"m": MiByte,
	"g": GiByte,
	"t": TiByte,
	"p": PiByte,
	"e": EiByte,
}

var ErrSyntaxSize = errors.New("size syntax error")

// ParseSize parses a human size like "4g" or "4294967296" into bytes, for
// the --pack-size flag and pack_size_target overrides.
func ParseSize(text string) (int64, error) {
	text = strings.TrimSuffix(strings.ToLower(text), "b")
	for rs, ratio := range sizeRatio {
		if prefix, ok := strings.CutSuffix(text, rs); ok {
			v, err := strconv.ParseInt(strings.TrimSpace(prefix), 10, 64)
			if err != nil {
				return 0, ErrSyntaxSize
			}
			return v * ratio, nil
		}
	}
	v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, ErrSyntaxSize
	}
	return v, nil
}

// Package compress provides the codecs used for persisted networks and
// exported predictions.
package compress

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownCodec = errors.New("compress: unknown codec")

type Codec interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// Type identifies a codec on disk; the values are part of the network file format.
type Type byte

const (
	TypeNone Type = 0
	TypeZstd Type = 1
	TypeLZ4  Type = 2
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeZstd:
		return "zstd"
	case TypeLZ4:
		return "lz4"
	}
	return fmt.Sprintf("codec(%d)", byte(t))
}

// Extension is the file suffix used for exports written with this codec.
func (t Type) Extension() string {
	switch t {
	case TypeZstd:
		return ".zst"
	case TypeLZ4:
		return ".lz4"
	}
	return ""
}

func ParseType(name string) (Type, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return TypeNone, nil
	case "zstd":
		return TypeZstd, nil
	case "lz4":
		return TypeLZ4, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

func Get(t Type) (Codec, error) {
	switch t {
	case TypeNone:
		return NoopCodec{}, nil
	case TypeZstd:
		return ZstdCodec{}, nil
	case TypeLZ4:
		return LZ4Codec{}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownCodec, t)
}

type NoopCodec struct{}

var _ Codec = NoopCodec{}

func (NoopCodec) Compress(data []byte) ([]byte, error)   { return data, nil }
func (NoopCodec) Decompress(data []byte) ([]byte, error) { return data, nil }

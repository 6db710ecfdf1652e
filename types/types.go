package types

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Error kinds.  Errors from reading, decoding, patching and writing a save
// wrap one of these.  Usage mistakes (bad arguments, calling editor methods
// out of order) do not.
var (
	ErrFormat   = errors.New("format error")
	ErrCodec    = errors.New("codec error")
	ErrRange    = errors.New("range error")
	ErrNotFound = errors.New("not found")
	ErrIO       = errors.New("io error")
)

// Magic is the signature every save starts its header with.
const Magic = "VASby"

// Frame is the outer container of a save file:
//
//	header (magic + opaque bytes) | compressed size (4) | uncompressed size (4) | zlib body | trailer
//
// Sizes are little-endian uint32.  The header length varies between saves, so
// nothing outside the two size fields and the body is interpreted.
type Frame struct {
	Header           []byte // everything before the size fields, magic included
	MagicOffset      int
	CompressedSize   uint32
	UncompressedSize uint32
	Body             []byte
	Trailer          []byte // bytes after the body.  Empty for every save seen so far
}

// SizeOffset is where the compressed size field starts in the file.
func (f *Frame) SizeOffset() int {
	return len(f.Header)
}

// BodyOffset is where the zlib stream starts in the file.
func (f *Frame) BodyOffset() int {
	return len(f.Header) + 8
}

// Encoding is the on-disk encoding of a scalar value.
type Encoding int

const (
	ENC_INT32 Encoding = iota
	ENC_FLOAT32
)

func (e Encoding) Width() int {
	return 4
}

func (e Encoding) String() string {
	switch e {
	case ENC_INT32:
		return "int32"
	case ENC_FLOAT32:
		return "float32"
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "int32", "int", "":
		return ENC_INT32, nil
	case "float32", "float":
		return ENC_FLOAT32, nil
	}
	return 0, fmt.Errorf("unknown encoding %q (expected int32 or float32)", s)
}

// Kind is the shape of a property record, which decides how its value is found.
type Kind int

const (
	KIND_ITEM Kind = iota
	KIND_WEAPON
	KIND_HEALTH
)

func (k Kind) String() string {
	switch k {
	case KIND_ITEM:
		return "item"
	case KIND_WEAPON:
		return "weapon"
	case KIND_HEALTH:
		return "health"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func ParseKind(s string) (Kind, error) {
	for k := KIND_ITEM; k <= KIND_HEALTH; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown kind %q (expected item, weapon or health)", s)
}

// Signature says how to find one scalar inside a decompressed payload.
//
// The locator searches for Name followed by a NUL.  If Anchor is set, it then
// searches for Anchor (again NUL terminated) no further than Window bytes past
// the start of Name.  The value starts Skip bytes after the end of the last
// matched string (not counting its NUL).
type Signature struct {
	Kind     Kind
	Name     string
	Anchor   string
	Window   int
	Skip     int
	Encoding Encoding
}

func (s Signature) Width() int {
	return s.Encoding.Width()
}

// Key identifies a signature within one run; two edits with the same key
// target the same bytes.
func (s Signature) Key() string {
	if s.Kind == KIND_HEALTH {
		return "health"
	}
	return s.Kind.String() + ":" + s.Name
}

func (s Signature) String() string {
	if s.Kind == KIND_HEALTH {
		return "Health"
	}
	return s.Name
}

// Scalar is a fixed-width value together with its encoding.
type Scalar struct {
	Encoding Encoding
	Bits     uint32
}

func Int(v int32) Scalar {
	return Scalar{ENC_INT32, uint32(v)}
}

func Float(v float32) Scalar {
	return Scalar{ENC_FLOAT32, math.Float32bits(v)}
}

func (s Scalar) Width() int {
	return s.Encoding.Width()
}

func (s Scalar) Int() int32 {
	return int32(s.Bits)
}

func (s Scalar) Float() float32 {
	return math.Float32frombits(s.Bits)
}

// Number returns the value as a float64, whatever the encoding.
func (s Scalar) Number() float64 {
	if s.Encoding == ENC_FLOAT32 {
		return float64(s.Float())
	}
	return float64(s.Int())
}

func (s Scalar) String() string {
	if s.Encoding == ENC_FLOAT32 {
		return strconv.FormatFloat(float64(s.Float()), 'f', 2, 32)
	}
	return strconv.Itoa(int(s.Int()))
}

// ParseScalar parses a command line value into the given encoding.
func ParseScalar(enc Encoding, str string) (Scalar, error) {
	switch enc {
	case ENC_FLOAT32:
		f, err := strconv.ParseFloat(str, 32)
		if err != nil {
			return Scalar{}, fmt.Errorf("%q is not a number", str)
		}
		return Float(float32(f)), nil
	default:
		n, err := strconv.ParseInt(str, 10, 32)
		if err != nil {
			return Scalar{}, fmt.Errorf("%q is not a 32-bit integer", str)
		}
		return Int(int32(n)), nil
	}
}

package writers

// Functions for putting a save back together.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"sh2edit/types"
)

// DEFAULT_LEVEL is used unless the config says otherwise.  Any level loads in
// the game.
const DEFAULT_LEVEL = zlib.BestCompression

// Deflate compresses a payload into a zlib body.
func Deflate(payload []byte, level int) ([]byte, error) {
	buf := bytes.Buffer{}
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCodec, err)
	}
	if _, err := zw.Write(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCodec, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCodec, err)
	}
	return buf.Bytes(), nil
}

// WriteFrame writes a frame out.  The header and trailer are written back
// untouched; the compressed size comes from the body itself, the uncompressed
// size from the frame.
func WriteFrame(out io.Writer, frame *types.Frame) (int, error) {
	sizes := make([]byte, 8)
	binary.LittleEndian.PutUint32(sizes[0:], uint32(len(frame.Body)))
	binary.LittleEndian.PutUint32(sizes[4:], frame.UncompressedSize)

	total := 0
	for _, part := range [][]byte{frame.Header, sizes, frame.Body, frame.Trailer} {
		n, err := out.Write(part)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// FrameBytes is WriteFrame into memory.
func FrameBytes(frame *types.Frame) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, len(frame.Header)+8+len(frame.Body)+len(frame.Trailer)))
	WriteFrame(buf, frame) // bytes.Buffer writes don't fail
	return buf.Bytes()
}

// WriteScalar overwrites width bytes of payload at offset with value.
// The payload never changes length, which is what keeps the uncompressed
// size in the header valid.
func WriteScalar(payload []byte, offset int, width int, value types.Scalar) error {
	if value.Width() != width {
		return fmt.Errorf("%w: %v value is %v bytes wide, field is %v", types.ErrRange, value.Encoding, value.Width(), width)
	}
	if width != 4 {
		return fmt.Errorf("%w: unsupported field width %v", types.ErrRange, width)
	}
	if offset < 0 || offset > len(payload)-width {
		return fmt.Errorf("%w: %v bytes at offset 0x%x, payload is only %v bytes", types.ErrRange, width, offset, len(payload))
	}

	binary.LittleEndian.PutUint32(payload[offset:], value.Bits)
	return nil
}

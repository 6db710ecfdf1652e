package readers

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"sh2edit/types"
)

// HEADER_WINDOW is how far into the file the zlib stream may start.
// Observed headers are 137-155 bytes long, so this is generous.
const HEADER_WINDOW = 300

// INITIAL_BUFFER caps what Inflate reserves before it has seen any data.
const INITIAL_BUFFER = 1 << 20

// is_zlib_header reports whether b starts with one of the zlib headers a
// deflate encoder writes with a 32K window: 78 01, 78 5e, 78 9c or 78 da.
func is_zlib_header(b []byte) bool {
	if len(b) < 2 || b[0] != 0x78 {
		return false
	}
	switch b[1] {
	case 0x01, 0x5e, 0x9c, 0xda:
		return true
	}
	return false
}

// ReadFrame splits a save file into its container parts.
//
// Save format:
//
// "VASby" somewhere near the start of the file, followed by header bytes we do
// not understand (version stamps and such), then:
//
//	bytes n..n+3:   compressed size (LE uint32)
//	bytes n+4..n+7: uncompressed size (LE uint32)
//	bytes n+8..:    zlib stream, compressed size bytes long
//
// n is not fixed, because the header length varies between saves.  We look
// for the n where the compressed size accounts for exactly the rest of the
// file.  Failing that, we take the first zlib header in the window and keep
// whatever follows the body as a trailer.
func ReadFrame(data []byte) (*types.Frame, error) {
	magic := bytes.Index(data, []byte(types.Magic))
	if magic < 0 {
		return nil, fmt.Errorf("%w: no %q signature", types.ErrFormat, types.Magic)
	}

	limit := min(HEADER_WINDOW, len(data))
	first := magic + len(types.Magic)

	// Pass 1: the sizes accounting for the whole file
	for n := first; n+8 <= limit; n++ {
		compressed := binary.LittleEndian.Uint32(data[n:])
		if uint64(n)+8+uint64(compressed) != uint64(len(data)) {
			continue
		}
		if !is_zlib_header(data[n+8:]) {
			continue
		}
		return make_frame(data, magic, n, int(compressed)), nil
	}

	// Pass 2: first zlib header whose size fits in the file
	var oversize error
	for i := first + 8; i+2 <= limit; i++ {
		if !is_zlib_header(data[i:]) {
			continue
		}
		n := i - 8
		compressed := binary.LittleEndian.Uint32(data[n:])
		if compressed == 0 {
			continue
		}
		if uint64(compressed) > uint64(len(data)-i) {
			if oversize == nil {
				oversize = fmt.Errorf("%w: compressed size %v at offset 0x%x exceeds the %v bytes left in the file",
					types.ErrFormat, compressed, n, len(data)-i)
			}
			continue
		}
		return make_frame(data, magic, n, int(compressed)), nil
	}

	if oversize != nil {
		return nil, oversize
	}
	return nil, fmt.Errorf("%w: no size fields found within %v bytes of the start", types.ErrFormat, HEADER_WINDOW)
}

// make_frame copies the parts out of data, so the frame does not alias the file buffer.
func make_frame(data []byte, magic int, n int, compressed int) *types.Frame {
	body_start := n + 8
	body_end := body_start + compressed
	return &types.Frame{
		Header:           bytes.Clone(data[:n]),
		MagicOffset:      magic,
		CompressedSize:   uint32(compressed),
		UncompressedSize: binary.LittleEndian.Uint32(data[n+4:]),
		Body:             bytes.Clone(data[body_start:body_end]),
		Trailer:          bytes.Clone(data[body_end:]),
	}
}

// Inflate decompresses a zlib body, which must come out exactly size bytes long.
func Inflate(body []byte, size uint32) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCodec, err)
	}
	defer zr.Close()

	// size is only as good as the header, so it bounds the read but not the
	// first allocation.  One byte more than expected is enough to know the
	// size is wrong.
	buf := bytes.NewBuffer(make([]byte, 0, min(int64(size), INITIAL_BUFFER)))
	_, err = io.Copy(buf, io.LimitReader(zr, int64(size)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCodec, err)
	}
	if buf.Len() != int(size) {
		if buf.Len() > int(size) {
			return nil, fmt.Errorf("%w: payload is larger than the declared %v bytes", types.ErrCodec, size)
		}
		return nil, fmt.Errorf("%w: payload is %v bytes, header says %v", types.ErrCodec, buf.Len(), size)
	}

	return buf.Bytes(), nil
}

func terminated(s string) []byte {
	return append([]byte(s), 0)
}

// Find returns the offset of the value described by sig.
//
// This is a pattern search, not a parse.  The first occurrence of the name
// always wins, even when the same name turns up in more than one record or
// inside an unrelated string.
func Find(payload []byte, sig types.Signature) (int, bool) {
	pos := bytes.Index(payload, terminated(sig.Name))
	if pos < 0 {
		return 0, false
	}
	end := pos + len(sig.Name)

	if sig.Anchor != "" {
		window_end := min(pos+sig.Window, len(payload))
		rel := bytes.Index(payload[pos:window_end], terminated(sig.Anchor))
		if rel < 0 {
			return 0, false
		}
		end = pos + rel + len(sig.Anchor)
	}

	return end + sig.Skip, true
}

// Occurrences counts how many times the name of sig appears in the payload.
// More than one means Find may have picked the wrong record.
func Occurrences(payload []byte, sig types.Signature) int {
	return bytes.Count(payload, terminated(sig.Name))
}

// ReadScalar decodes the value at offset.
func ReadScalar(payload []byte, offset int, enc types.Encoding) (types.Scalar, error) {
	width := enc.Width()
	if offset < 0 || offset > len(payload)-width {
		return types.Scalar{}, fmt.Errorf("%w: %v bytes at offset 0x%x, payload is only %v bytes",
			types.ErrRange, width, offset, len(payload))
	}
	return types.Scalar{Encoding: enc, Bits: binary.LittleEndian.Uint32(payload[offset:])}, nil
}

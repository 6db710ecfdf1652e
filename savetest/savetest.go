// Package savetest builds small synthetic saves for tests.  The layouts match
// what the real game writes, minus everything the editor never looks at.
package savetest

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/klauspost/compress/zlib"

	"sh2edit/types"
)

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func cat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func cstr(s string) []byte {
	return append([]byte(s), 0)
}

// Filler stands in for records the editor does not care about.
func Filler(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(0x41 + i%17) // never a NUL, so never ends a name
	}
	return out
}

// Health: "HealthValue" 00 "FloatProperty" 00 size metadata value
func Health(v float32) []byte {
	return cat(cstr("HealthValue"), cstr("FloatProperty"), le32(4), make([]byte, 8), le32(math.Float32bits(v)))
}

// Weapon: "<name>" 00 value
func Weapon(name string, ammo int32) []byte {
	return cat(cstr(name), le32(uint32(ammo)))
}

// Item: "<name>" 00 (struct noise) "Quantity" 00 "IntProperty" 00 size metadata flag value
func Item(name string, quantity int32) []byte {
	return cat(cstr(name), []byte{0x0e, 0, 0, 0, 0x01, 0x02}, cstr("Quantity"), cstr("IntProperty"), le32(4), make([]byte, 8), []byte{0}, le32(uint32(quantity)))
}

// Payload strings records together with filler in between.
func Payload(records ...[]byte) []byte {
	parts := [][]byte{Filler(23)}
	for _, r := range records {
		parts = append(parts, r, Filler(11))
	}
	return cat(parts...)
}

// Compress is plain zlib at the default level.
func Compress(payload []byte) []byte {
	buf := bytes.Buffer{}
	zw := zlib.NewWriter(&buf)
	zw.Write(payload)
	zw.Close()
	return buf.Bytes()
}

// Header is a header of total length n (size fields included), starting with the magic.
func Header(n int) []byte {
	filler := make([]byte, n-8-len(types.Magic))
	for i := range filler {
		filler[i] = 0xAB
	}
	return cat([]byte(types.Magic), filler)
}

// File builds a whole save, with a header of headerLen bytes including the size fields.
func File(headerLen int, payload []byte) []byte {
	body := Compress(payload)
	return cat(Header(headerLen), le32(uint32(len(body))), le32(uint32(len(payload))), body)
}

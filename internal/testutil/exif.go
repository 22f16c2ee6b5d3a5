package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

// DMS is a degrees/minutes/seconds triple of numerator/denominator pairs.
type DMS [3][2]uint32

// GPSTIFF returns a little-endian TIFF block whose IFD0 points at a GPS IFD
// carrying latitude, longitude and their references.
func GPSTIFF(latRef string, lat DMS, lonRef string, lon DMS) []byte {
	le := binary.LittleEndian
	buf := make([]byte, 128)
	copy(buf, "II")
	le.PutUint16(buf[2:], 42)
	le.PutUint32(buf[4:], 8)

	// IFD0 at 8: GPSInfoIFDPointer -> 26
	le.PutUint16(buf[8:], 1)
	putEntry(buf[10:], 0x8825, 4, 1, 26)
	le.PutUint32(buf[22:], 0)

	// GPS IFD at 26, values at 80 and 104
	le.PutUint16(buf[26:], 4)
	putASCII(buf[28:], 0x0001, latRef)
	putEntry(buf[40:], 0x0002, 5, 3, 80)
	putASCII(buf[52:], 0x0003, lonRef)
	putEntry(buf[64:], 0x0004, 5, 3, 104)
	le.PutUint32(buf[76:], 0)

	putRationals(buf[80:], lat)
	putRationals(buf[104:], lon)
	return buf
}

// PlainTIFF returns a TIFF block with an Orientation tag and no GPS IFD.
func PlainTIFF() []byte {
	le := binary.LittleEndian
	buf := make([]byte, 26)
	copy(buf, "II")
	le.PutUint16(buf[2:], 42)
	le.PutUint32(buf[4:], 8)
	le.PutUint16(buf[8:], 1)
	putEntry(buf[10:], 0x0112, 3, 1, 1)
	le.PutUint32(buf[22:], 0)
	return buf
}

// JPEG wraps a TIFF block in a minimal JPEG with an APP1 Exif segment.
// A nil block produces a JPEG without metadata.
func JPEG(tiffData []byte) []byte {
	var b bytes.Buffer
	b.Write([]byte{0xFF, 0xD8})
	if tiffData != nil {
		b.Write([]byte{0xFF, 0xE1})
		_ = binary.Write(&b, binary.BigEndian, uint16(2+6+len(tiffData)))
		b.WriteString("Exif\x00\x00")
		b.Write(tiffData)
	}
	b.Write([]byte{0xFF, 0xD9})
	return b.Bytes()
}

// PNG wraps a TIFF block in a PNG eXIf chunk. A nil block produces a PNG
// without metadata.
func PNG(tiffData []byte) []byte {
	var b bytes.Buffer
	b.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	writeChunk(&b, "IHDR", []byte{0, 0, 0, 1, 0, 0, 0, 1, 8, 2, 0, 0, 0})
	if tiffData != nil {
		writeChunk(&b, "eXIf", tiffData)
	}
	writeChunk(&b, "IEND", nil)
	return b.Bytes()
}

func writeChunk(b *bytes.Buffer, typ string, data []byte) {
	_ = binary.Write(b, binary.BigEndian, uint32(len(data)))
	b.WriteString(typ)
	b.Write(data)
	crc := crc32.ChecksumIEEE(append([]byte(typ), data...))
	_ = binary.Write(b, binary.BigEndian, crc)
}

func putEntry(b []byte, tag, typ uint16, count, value uint32) {
	le := binary.LittleEndian
	le.PutUint16(b[0:], tag)
	le.PutUint16(b[2:], typ)
	le.PutUint32(b[4:], count)
	le.PutUint32(b[8:], value)
}

func putASCII(b []byte, tag uint16, s string) {
	le := binary.LittleEndian
	le.PutUint16(b[0:], tag)
	le.PutUint16(b[2:], 2)
	le.PutUint32(b[4:], 2)
	if s != "" {
		b[8] = s[0]
	}
	b[9] = 0
}

func putRationals(b []byte, v DMS) {
	le := binary.LittleEndian
	for i, r := range v {
		le.PutUint32(b[i*8:], r[0])
		le.PutUint32(b[i*8+4:], r[1])
	}
}

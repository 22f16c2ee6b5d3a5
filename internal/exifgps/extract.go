package exifgps

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"roadsurvey/internal/models"
	"roadsurvey/pkg/geo"
)

var (
	ErrUnsupportedFormat = errors.New("exifgps: unsupported image format")
	ErrNoExif            = errors.New("exifgps: no exif metadata")
	ErrNoGPS             = errors.New("exifgps: no gps tags")
	ErrMalformed         = errors.New("exifgps: gps tags could not be converted")
)

// maxExifChunk caps the eXIf payload read from a PNG. It matches the
// largest EXIF block a JPEG APP1 segment can carry.
const maxExifChunk = 1 << 16

var (
	pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpegSOI      = []byte{0xFF, 0xD8}
)

// Extract reads the GPS tags of a JPEG or PNG image.
func Extract(r io.Reader) (Tags, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(pngSignature))
	if err != nil && len(head) < len(jpegSOI) {
		return Tags{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	var x *exif.Exif
	switch {
	case bytes.HasPrefix(head, pngSignature):
		raw, err := pngExifChunk(br)
		if err != nil {
			return Tags{}, err
		}
		x, err = exif.Decode(bytes.NewReader(raw))
		if err != nil {
			return Tags{}, fmt.Errorf("%w: %v", ErrNoExif, err)
		}
	case bytes.HasPrefix(head, jpegSOI):
		x, err = exif.Decode(br)
		if err != nil {
			return Tags{}, fmt.Errorf("%w: %v", ErrNoExif, err)
		}
	default:
		return Tags{}, ErrUnsupportedFormat
	}

	var t Tags
	if t.Lat, err = dmsTag(x, exif.GPSLatitude); err != nil {
		return Tags{}, err
	}
	if t.LatRef, err = stringTag(x, exif.GPSLatitudeRef); err != nil {
		return Tags{}, err
	}
	if t.Lon, err = dmsTag(x, exif.GPSLongitude); err != nil {
		return Tags{}, err
	}
	if t.LonRef, err = stringTag(x, exif.GPSLongitudeRef); err != nil {
		return Tags{}, err
	}
	return t, nil
}

// Resolve extracts and converts the photo's position. Missing metadata
// wraps ErrNoExif or ErrNoGPS; tags that do not convert or point off the
// globe wrap ErrMalformed.
// A panic inside the decoder is returned as an error.
func Resolve(r io.Reader) (c models.Coordinates, err error) {
	defer func() {
		if p := recover(); p != nil {
			c, err = models.Coordinates{}, fmt.Errorf("%w: decoder panic: %v", ErrNoExif, p)
		}
	}()

	tags, err := Extract(r)
	if err != nil {
		return models.Coordinates{}, err
	}
	slog.Debug("raw gps tags", "lat", tags.Lat, "lat_ref", tags.LatRef, "lon", tags.Lon, "lon_ref", tags.LonRef)
	c, ok := FromTags(tags)
	if !ok {
		return models.Coordinates{}, ErrMalformed
	}
	if !geo.Valid(c.Lat, c.Lon) {
		return models.Coordinates{}, fmt.Errorf("%w: %f, %f is off the globe", ErrMalformed, c.Lat, c.Lon)
	}
	return c, nil
}

// Locate is Resolve with every failure logged and reported as ok == false.
func Locate(r io.Reader) (models.Coordinates, bool) {
	c, err := Resolve(r)
	if err != nil {
		slog.Warn("no gps data could be extracted from the image", "error", err)
		return models.Coordinates{}, false
	}
	return c, true
}

func dmsTag(x *exif.Exif, name exif.FieldName) (DMS, error) {
	tag, err := x.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoGPS, name, err)
	}
	if tag.Format() != tiff.RatVal {
		return nil, fmt.Errorf("%w: %s is not rational", ErrNoGPS, name)
	}
	dms := make(DMS, 0, tag.Count)
	for i := 0; i < int(tag.Count); i++ {
		num, den, err := tag.Rat2(i)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		dms = append(dms, Rational{Num: num, Den: den})
	}
	return dms, nil
}

func stringTag(x *exif.Exif, name exif.FieldName) (string, error) {
	tag, err := x.Get(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNoGPS, name, err)
	}
	s, err := tag.StringVal()
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}

// pngExifChunk walks the PNG chunk list and returns the eXIf payload.
func pngExifChunk(r io.Reader) ([]byte, error) {
	if _, err := io.CopyN(io.Discard, r, int64(len(pngSignature))); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	var hdr [8]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, ErrNoExif
		}
		length := binary.BigEndian.Uint32(hdr[:4])
		chunkType := string(hdr[4:8])
		switch chunkType {
		case "eXIf":
			if length > maxExifChunk {
				return nil, fmt.Errorf("%w: eXIf chunk of %d bytes exceeds %d", ErrNoExif, length, maxExifChunk)
			}
			data := make([]byte, length)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, fmt.Errorf("%w: truncated eXIf chunk", ErrNoExif)
			}
			return data, nil
		case "IEND":
			return nil, ErrNoExif
		}
		// data + crc
		if _, err := io.CopyN(io.Discard, r, int64(length)+4); err != nil {
			return nil, ErrNoExif
		}
	}
}

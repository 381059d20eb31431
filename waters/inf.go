package waters

import (
	"bytes"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/gogs/chardet"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Acquisition holds the stage geometry recovered from a Waters _extern.inf
// file. Lengths are in the stage unit (usually mm), steps in the same unit
// per pixel.
type Acquisition struct {
	XLength float64
	XStep   float64
	YLength float64
	YStep   float64

	// Polarity is "positive", "negative", or "" when the file doesn't say
	Polarity string
}

// Raster converts stage geometry to pixel counts.
func (a Acquisition) Raster() (x int, y int, err error) {
	if a.XStep <= 0 || a.YStep <= 0 {
		return 0, 0, errors.Errorf("non-positive step size (x %g, y %g)", a.XStep, a.YStep)
	}

	x = int(math.Round(a.XLength / a.XStep))
	y = int(math.Round(a.YLength / a.YStep))
	if x < 1 || y < 1 {
		return 0, 0, errors.Errorf("degenerate raster %d by %d (lengths %g/%g, steps %g/%g)", x, y, a.XLength, a.YLength, a.XStep, a.YStep)
	}
	return x, y, nil
}

// Coord is a 1-based pixel position.
type Coord struct {
	X int
	Y int
	Z int
}

// Coords generates pixel coordinates in acquisition order: x outer, y inner,
// both 1-based, z always 1. Spectrum i of the intermediate file belongs to
// Coords(x, y)[i].
func Coords(x, y int) []Coord {
	coords := make([]Coord, 0, x*y)
	for i := 0; i < x; i++ {
		for j := 0; j < y; j++ {
			coords = append(coords, Coord{X: i + 1, Y: j + 1, Z: 1})
		}
	}
	return coords
}

// The value of interest sits in the 6th tab-separated field, after the
// parameter name and padding fields.
const infValueField = 5

// ParseInf reads a Waters _extern.inf acquisition metadata file.
// These files come in UTF-16 (with or without BOM), latin-1 or plain
// ASCII depending on instrument software vintage, so the bytes go
// through encoding detection first.
func ParseInf(path string) (*Acquisition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading acquisition metadata %s", path)
	}

	text, err := decodeInf(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding acquisition metadata %s", path)
	}

	acq := &Acquisition{}
	seen := map[string]bool{}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")

		switch {
		case strings.HasPrefix(line, "DesiXLength"):
			acq.XLength, err = infValue(line)
			seen["DesiXLength"] = true
		case strings.HasPrefix(line, "DesiXStep"):
			acq.XStep, err = infValue(line)
			seen["DesiXStep"] = true
		case strings.HasPrefix(line, "DesiYLength"):
			acq.YLength, err = infValue(line)
			seen["DesiYLength"] = true
		case strings.HasPrefix(line, "DesiYStep"):
			acq.YStep, err = infValue(line)
			seen["DesiYStep"] = true
		case strings.HasPrefix(line, "Polarity"):
			acq.Polarity = infPolarity(line)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", path)
		}
	}

	for _, name := range []string{"DesiXLength", "DesiXStep", "DesiYLength", "DesiYStep"} {
		if !seen[name] {
			return nil, errors.Errorf("%s: no %s line: not a DESI imaging acquisition?", path, name)
		}
	}

	return acq, nil
}

func infValue(line string) (float64, error) {
	fields := strings.Split(line, "\t")
	if len(fields) <= infValueField {
		return 0, errors.Errorf("malformed line (want at least %d tab-separated fields): %q", infValueField+1, line)
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(fields[infValueField]), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "malformed value in line %q", line)
	}
	return value, nil
}

func infPolarity(line string) string {
	value := strings.ToUpper(strings.TrimSpace(line[len("Polarity"):]))
	value = strings.TrimSpace(strings.ReplaceAll(value, "\t", " "))
	switch {
	case strings.Contains(value, "ES+"), strings.Contains(value, "POSITIVE"):
		return "positive"
	case strings.Contains(value, "ES-"), strings.Contains(value, "NEGATIVE"):
		return "negative"
	}
	return ""
}

const detectionConfidenceFloor = 70

// decodeInf turns raw .inf bytes into UTF-8 text. BOMs win, then chardet,
// then a latin-1 fallback (which can't fail, every byte sequence is valid).
func decodeInf(raw []byte) (string, error) {
	switch {
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}):
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), raw)
	case bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		return decodeWith(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), raw)
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}):
		return string(raw[3:]), nil
	}

	var enc encoding.Encoding = charmap.Windows1252

	detector := chardet.NewTextDetector()
	res, err := detector.DetectBest(raw)
	if err == nil && res.Confidence > detectionConfidenceFloor {
		switch res.Charset {
		case "UTF-16LE":
			enc = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
		case "UTF-16BE":
			enc = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
		case "UTF-8":
			return string(raw), nil
		case "ISO-8859-1":
			enc = charmap.ISO8859_1
		}
	}

	return decodeWith(enc, raw)
}

func decodeWith(enc encoding.Encoding, raw []byte) (string, error) {
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", errors.Wrap(err, "decoding text")
	}
	return string(decoded), nil
}

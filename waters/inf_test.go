package waters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleInf = "Acquisition Device\t\t\t\t\tXevo G2-XS\r\n" +
	"Polarity\t\t\t\t\tES+\r\n" +
	"DesiXLength\t\t\t\t\t90.0\r\n" +
	"DesiXStep\t\t\t\t\t0.1\r\n" +
	"DesiYLength\t\t\t\t\t45.0\r\n" +
	"DesiYStep\t\t\t\t\t0.1\r\n"

func writeInf(t *testing.T, contents []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "_extern.inf")
	require.NoError(t, os.WriteFile(path, contents, 0o644))
	return path
}

func utf16le(t *testing.T, s string, bom bool) []byte {
	t.Helper()
	var out []byte
	if bom {
		out = append(out, 0xFF, 0xFE)
	}
	for _, r := range s {
		require.Less(t, int(r), 0x10000, "test strings stay in the BMP")
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}

func TestParseInfASCII(t *testing.T) {
	acq, err := ParseInf(writeInf(t, []byte(sampleInf)))
	require.NoError(t, err)

	assert.Equal(t, 90.0, acq.XLength)
	assert.Equal(t, 0.1, acq.XStep)
	assert.Equal(t, 45.0, acq.YLength)
	assert.Equal(t, 0.1, acq.YStep)
	assert.Equal(t, "positive", acq.Polarity)

	x, y, err := acq.Raster()
	require.NoError(t, err)
	assert.Equal(t, 900, x)
	assert.Equal(t, 450, y)
}

func TestParseInfUTF16BOM(t *testing.T) {
	acq, err := ParseInf(writeInf(t, utf16le(t, sampleInf, true)))
	require.NoError(t, err)
	assert.Equal(t, 90.0, acq.XLength)
	assert.Equal(t, 0.1, acq.YStep)
}

func TestParseInfUTF16NoBOM(t *testing.T) {
	acq, err := ParseInf(writeInf(t, utf16le(t, sampleInf, false)))
	require.NoError(t, err)
	assert.Equal(t, 45.0, acq.YLength)
}

func TestParseInfLatin1(t *testing.T) {
	// micrometer sign in a comment line, latin-1 encoded (0xB5)
	contents := []byte("Comment\t\t\t\t\tstep in \xB5m\r\n" + sampleInf)
	acq, err := ParseInf(writeInf(t, contents))
	require.NoError(t, err)
	assert.Equal(t, 0.1, acq.XStep)
}

func TestParseInfNegativePolarity(t *testing.T) {
	contents := []byte("Polarity\t\t\t\t\tES-\r\n" +
		"DesiXLength\t\t\t\t\t10.0\r\n" +
		"DesiXStep\t\t\t\t\t1.0\r\n" +
		"DesiYLength\t\t\t\t\t10.0\r\n" +
		"DesiYStep\t\t\t\t\t1.0\r\n")
	acq, err := ParseInf(writeInf(t, contents))
	require.NoError(t, err)
	assert.Equal(t, "negative", acq.Polarity)
}

func TestParseInfMissingGeometry(t *testing.T) {
	contents := []byte("DesiXLength\t\t\t\t\t90.0\r\n" +
		"DesiXStep\t\t\t\t\t0.1\r\n")
	_, err := ParseInf(writeInf(t, contents))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DesiYLength")
}

func TestParseInfMalformedLine(t *testing.T) {
	contents := []byte("DesiXLength\t90.0\r\n")
	_, err := ParseInf(writeInf(t, contents))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed line")
}

func TestRasterRounds(t *testing.T) {
	acq := Acquisition{XLength: 9.95, XStep: 0.1, YLength: 10.04, YStep: 0.1}
	x, y, err := acq.Raster()
	require.NoError(t, err)
	// round() semantics, not truncation
	assert.Equal(t, 100, x)
	assert.Equal(t, 100, y)
}

func TestRasterRejectsZeroStep(t *testing.T) {
	acq := Acquisition{XLength: 10, XStep: 0, YLength: 10, YStep: 1}
	_, _, err := acq.Raster()
	assert.Error(t, err)
}

func TestCoordsOrder(t *testing.T) {
	coords := Coords(2, 3)
	require.Len(t, coords, 6)

	// x outer, y inner, 1-based, z fixed at 1
	assert.Equal(t, Coord{1, 1, 1}, coords[0])
	assert.Equal(t, Coord{1, 2, 1}, coords[1])
	assert.Equal(t, Coord{1, 3, 1}, coords[2])
	assert.Equal(t, Coord{2, 1, 1}, coords[3])
	assert.Equal(t, Coord{2, 3, 1}, coords[5])
}

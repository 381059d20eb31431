package imzml

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"encoding/xml"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// enough of the document to check what the writer produced
type testDoc struct {
	FileContent struct {
		CvPar []testCvParam `xml:"cvParam"`
	} `xml:"fileDescription>fileContent"`
	ScanSettings []struct {
		CvPar []testCvParam `xml:"cvParam"`
	} `xml:"scanSettingsList>scanSettings"`
	Spectra []testSpectrum `xml:"run>spectrumList>spectrum"`
}

type testSpectrum struct {
	Index              int           `xml:"index,attr"`
	ID                 string        `xml:"id,attr"`
	DefaultArrayLength int64         `xml:"defaultArrayLength,attr"`
	CvPar              []testCvParam `xml:"cvParam"`
	ScanCvPar          []testCvParam `xml:"scanList>scan>cvParam"`
	Arrays             []struct {
		GroupRef struct {
			Ref string `xml:"ref,attr"`
		} `xml:"referenceableParamGroupRef"`
		CvPar []testCvParam `xml:"cvParam"`
	} `xml:"binaryDataArrayList>binaryDataArray"`
}

type testCvParam struct {
	Accession string `xml:"accession,attr"`
	Value     string `xml:"value,attr"`
}

func findCv(params []testCvParam, accession string) (string, bool) {
	for _, p := range params {
		if p.Accession == accession {
			return p.Value, true
		}
	}
	return "", false
}

func readDoc(t *testing.T, path string) *testDoc {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc testDoc
	require.NoError(t, xml.Unmarshal(data, &doc))
	return &doc
}

func intCv(t *testing.T, params []testCvParam, accession string) int64 {
	t.Helper()
	value, ok := findCv(params, accession)
	require.True(t, ok, "missing cvParam %s", accession)
	n, err := strconv.ParseInt(value, 10, 64)
	require.NoError(t, err)
	return n
}

func readFloat64s(t *testing.T, ibd []byte, offset, count int64) []float64 {
	t.Helper()
	values := make([]float64, count)
	for i := range values {
		bits := binary.LittleEndian.Uint64(ibd[offset+int64(i)*8:])
		values[i] = math.Float64frombits(bits)
	}
	return values
}

func readFloat32s(t *testing.T, ibd []byte, offset, count int64) []float64 {
	t.Helper()
	values := make([]float64, count)
	for i := range values {
		bits := binary.LittleEndian.Uint32(ibd[offset+int64(i)*4:])
		values[i] = float64(math.Float32frombits(bits))
	}
	return values
}

func TestWriterProcessed(t *testing.T) {
	base := filepath.Join(t.TempDir(), "out")

	w, err := NewWriter(base, Options{
		Mode:         ModeProcessed,
		Polarity:     "positive",
		SpectrumType: "profile",
		PixelsX:      2,
		PixelsY:      1,
	})
	require.NoError(t, err)

	require.NoError(t, w.AddSpectrum([]float64{100, 200}, []float64{1, 2}, 1, 1, 1))
	require.NoError(t, w.AddSpectrum([]float64{150, 250, 350}, []float64{3, 4, 5}, 2, 1, 1))
	require.NoError(t, w.Close())

	ibd, err := os.ReadFile(base + ".ibd")
	require.NoError(t, err)

	// leads with the raw uuid bytes
	wantUUID := w.UUID()
	assert.Equal(t, wantUUID[:], ibd[:16])

	doc := readDoc(t, base+".imzML")

	uuidValue, ok := findCv(doc.FileContent.CvPar, "IMS:1000080")
	require.True(t, ok)
	assert.Equal(t, w.UUID().String(), uuidValue)

	_, ok = findCv(doc.FileContent.CvPar, "IMS:1000031")
	assert.True(t, ok, "expected processed accession")
	_, ok = findCv(doc.FileContent.CvPar, "IMS:1000030")
	assert.False(t, ok, "continuous accession must be absent")

	shaValue, ok := findCv(doc.FileContent.CvPar, "IMS:1000091")
	require.True(t, ok)
	sum := sha1.Sum(ibd)
	assert.Equal(t, hex.EncodeToString(sum[:]), shaValue)

	require.Len(t, doc.Spectra, 2)
	spec := doc.Spectra[1]
	assert.Equal(t, "spectrum=2", spec.ID)
	assert.Equal(t, int64(3), spec.DefaultArrayLength)

	x := intCv(t, spec.ScanCvPar, "IMS:1000050")
	y := intCv(t, spec.ScanCvPar, "IMS:1000051")
	z := intCv(t, spec.ScanCvPar, "IMS:1000052")
	assert.Equal(t, int64(2), x)
	assert.Equal(t, int64(1), y)
	assert.Equal(t, int64(1), z)

	require.Len(t, spec.Arrays, 2)
	require.Equal(t, "mzArray", spec.Arrays[0].GroupRef.Ref)
	require.Equal(t, "intensityArray", spec.Arrays[1].GroupRef.Ref)

	mzOffset := intCv(t, spec.Arrays[0].CvPar, "IMS:1000102")
	mzLength := intCv(t, spec.Arrays[0].CvPar, "IMS:1000103")
	assert.Equal(t, []float64{150, 250, 350}, readFloat64s(t, ibd, mzOffset, mzLength))

	intOffset := intCv(t, spec.Arrays[1].CvPar, "IMS:1000102")
	intLength := intCv(t, spec.Arrays[1].CvPar, "IMS:1000103")
	assert.Equal(t, []float64{3, 4, 5}, readFloat32s(t, ibd, intOffset, intLength))

	// raster size makes it into scanSettings
	require.Len(t, doc.ScanSettings, 1)
	assert.Equal(t, int64(2), intCv(t, doc.ScanSettings[0].CvPar, "IMS:1000042"))
	assert.Equal(t, int64(1), intCv(t, doc.ScanSettings[0].CvPar, "IMS:1000043"))
}

func TestWriterContinuous(t *testing.T) {
	base := filepath.Join(t.TempDir(), "out")

	w, err := NewWriter(base, Options{Mode: ModeContinuous})
	require.NoError(t, err)

	axis := []float64{100, 200, 300}
	require.NoError(t, w.AddSpectrum(axis, []float64{1, 2, 3}, 1, 1, 1))
	require.NoError(t, w.AddSpectrum(axis, []float64{4, 5, 6}, 1, 2, 1))

	// axis length is pinned after the first spectrum
	err = w.AddSpectrum([]float64{100, 200}, []float64{1, 2}, 1, 3, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fixed m/z axis")

	require.NoError(t, w.Close())

	doc := readDoc(t, base+".imzML")
	_, ok := findCv(doc.FileContent.CvPar, "IMS:1000030")
	assert.True(t, ok, "expected continuous accession")

	require.Len(t, doc.Spectra, 2)
	offset0 := intCv(t, doc.Spectra[0].Arrays[0].CvPar, "IMS:1000102")
	offset1 := intCv(t, doc.Spectra[1].Arrays[0].CvPar, "IMS:1000102")
	assert.Equal(t, offset0, offset1, "continuous spectra share the m/z array")

	// the shared axis sits right after the uuid
	assert.Equal(t, int64(16), offset0)

	ibd, err := os.ReadFile(base + ".ibd")
	require.NoError(t, err)
	assert.Equal(t, axis, readFloat64s(t, ibd, offset0, 3))
}

func TestWriterAutoPicksContinuous(t *testing.T) {
	base := filepath.Join(t.TempDir(), "out")

	w, err := NewWriter(base, Options{Mode: ModeAuto})
	require.NoError(t, err)

	axis := []float64{10, 20}
	require.NoError(t, w.AddSpectrum(axis, []float64{1, 2}, 1, 1, 1))
	require.NoError(t, w.AddSpectrum(axis, []float64{3, 4}, 1, 2, 1))
	require.NoError(t, w.Close())

	doc := readDoc(t, base+".imzML")
	_, ok := findCv(doc.FileContent.CvPar, "IMS:1000030")
	assert.True(t, ok, "identical axes should resolve to continuous")
}

func TestWriterAutoPicksProcessed(t *testing.T) {
	base := filepath.Join(t.TempDir(), "out")

	w, err := NewWriter(base, Options{Mode: ModeAuto})
	require.NoError(t, err)

	require.NoError(t, w.AddSpectrum([]float64{10, 20}, []float64{1, 2}, 1, 1, 1))
	require.NoError(t, w.AddSpectrum([]float64{11, 21}, []float64{3, 4}, 1, 2, 1))
	require.NoError(t, w.Close())

	doc := readDoc(t, base+".imzML")
	_, ok := findCv(doc.FileContent.CvPar, "IMS:1000031")
	assert.True(t, ok, "different axes should resolve to processed")
}

func TestWriterValidation(t *testing.T) {
	base := filepath.Join(t.TempDir(), "out")

	_, err := NewWriter(base, Options{Polarity: "sideways"})
	assert.Error(t, err)

	_, err = NewWriter(base, Options{SpectrumType: "wavy"})
	assert.Error(t, err)

	w, err := NewWriter(base, Options{})
	require.NoError(t, err)

	err = w.AddSpectrum([]float64{1}, []float64{1, 2}, 1, 1, 1)
	assert.Error(t, err)

	err = w.AddSpectrum([]float64{1}, []float64{1}, 0, 1, 1)
	assert.Error(t, err)

	require.NoError(t, w.Close())
	// closing twice is fine
	require.NoError(t, w.Close())

	err = w.AddSpectrum([]float64{1}, []float64{1}, 1, 1, 1)
	assert.Error(t, err)
}

func TestWriterPathHandling(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(filepath.Join(dir, "sample.imzML"), Options{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.True(t, strings.HasSuffix(w.XMLPath(), "sample.imzML"))
	assert.True(t, strings.HasSuffix(w.IbdPath(), "sample.ibd"))

	_, err = os.Stat(filepath.Join(dir, "sample.imzML"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "sample.ibd"))
	assert.NoError(t, err)
}

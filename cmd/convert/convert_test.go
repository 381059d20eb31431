package convert

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/desilab/imzconv/bench"
	"github.com/desilab/imzconv/comm"
	"github.com/desilab/imzconv/imzml"
)

func TestMain(m *testing.M) {
	comm.Configure(true, true, false, false, false, true)
	os.Exit(m.Run())
}

func testContext() *bench.Context {
	return bench.NewContext(kingpin.New("imzconv", "test"))
}

func encode64(t *testing.T, values []float64) string {
	t.Helper()
	buf := new(bytes.Buffer)
	for _, v := range values {
		require.NoError(t, binary.Write(buf, binary.LittleEndian, math.Float64bits(v)))
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func spectrumXML(t *testing.T, index int, mzs, intens []float64) string {
	t.Helper()
	array := func(accession, payload string) string {
		return fmt.Sprintf(`<binaryDataArray encodedLength="%d">
<cvParam accession="%s"/>
<cvParam accession="MS:1000523"/>
<cvParam accession="MS:1000576" name="no compression"/>
<binary>%s</binary>
</binaryDataArray>`, len(payload), accession, payload)
	}
	return fmt.Sprintf(`<spectrum index="%d" id="scan=%d" defaultArrayLength="%d">
<cvParam accession="MS:1000128" name="profile spectrum"/>
<cvParam accession="MS:1000130" name="positive scan"/>
<binaryDataArrayList count="2">
%s
%s
</binaryDataArrayList>
</spectrum>`, index, index+1, len(mzs),
		array("MS:1000514", encode64(t, mzs)),
		array("MS:1000515", encode64(t, intens)))
}

func writeMzML(t *testing.T, path string, spectra ...string) {
	t.Helper()
	document := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<mzML xmlns="http://psi.hupo.org/ms/mzml" version="1.1.0">
  <cvList count="2"/>
  <fileDescription/>
  <run id="r1">
    <spectrumList count="%d">
%s
    </spectrumList>
  </run>
</mzML>`, len(spectra), strings.Join(spectra, "\n"))
	require.NoError(t, os.WriteFile(path, []byte(document), 0o644))
}

const testInf = "Polarity\t\t\t\t\tES+\r\n" +
	"DesiXLength\t\t\t\t\t2.0\r\n" +
	"DesiXStep\t\t\t\t\t1.0\r\n" +
	"DesiYLength\t\t\t\t\t2.0\r\n" +
	"DesiYStep\t\t\t\t\t1.0\r\n"

// writeDataset lays out one fake raw dataset plus its pre-converted
// mzML intermediate, as if msconvert had already run.
func writeDataset(t *testing.T, folder string, rawName string, spectra int) {
	t.Helper()
	rawDir := filepath.Join(folder, rawName)
	require.NoError(t, os.MkdirAll(rawDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(rawDir, "_extern.inf"), []byte(testInf), 0o644))

	mzmlDir := filepath.Join(folder, "mzml")
	require.NoError(t, os.MkdirAll(mzmlDir, 0o755))

	var docs []string
	for i := 0; i < spectra; i++ {
		mzs := []float64{100.5, 200.5}
		intens := []float64{float64(i), float64(i * 10)}
		docs = append(docs, spectrumXML(t, i, mzs, intens))
	}
	base := strings.TrimSuffix(rawName, filepath.Ext(rawName))
	writeMzML(t, filepath.Join(mzmlDir, base+".mzML"), docs...)
}

func testParams(folder string) Params {
	return Params{
		Folder:           folder,
		Polarity:         "positive",
		IDPos:            1,
		Mode:             imzml.ModeAuto,
		Docker:           "docker",
		Image:            "test-image",
		SkipMsconvert:    true,
		KeepIntermediate: true,
		Jobs:             1,
	}
}

func TestDoSkipMsconvert(t *testing.T) {
	folder := t.TempDir()
	writeDataset(t, folder, "SAMPLE_7_slide.raw", 4)

	err := Do(testContext(), testParams(folder))
	require.NoError(t, err)

	outXML := filepath.Join(folder, "imzml", "7.imzML")
	outIbd := filepath.Join(folder, "imzml", "7.ibd")

	xmlBytes, err := os.ReadFile(outXML)
	require.NoError(t, err)
	ibdStats, err := os.Stat(outIbd)
	require.NoError(t, err)

	// uuid header plus shared axis plus four intensity arrays
	assert.Greater(t, ibdStats.Size(), int64(16))

	contents := string(xmlBytes)
	assert.Contains(t, contents, "IMS:1000030", "same axis everywhere resolves to continuous")
	assert.Contains(t, contents, `id="spectrum=4"`)
	assert.Contains(t, contents, "positive scan")

	// intermediate kept on request
	_, err = os.Stat(filepath.Join(folder, "mzml"))
	require.NoError(t, err)
}

func TestDoRemovesIntermediate(t *testing.T) {
	folder := t.TempDir()
	writeDataset(t, folder, "SAMPLE_3_slide.raw", 4)

	params := testParams(folder)
	params.KeepIntermediate = false

	// SkipMsconvert with the intermediate wiped afterwards is a weird
	// combination, but it exercises the cleanup path without docker
	require.NoError(t, Do(testContext(), params))

	_, err := os.Stat(filepath.Join(folder, "mzml"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(folder, "imzml", "3.imzML"))
	require.NoError(t, err)
}

func TestDoCollectsFailures(t *testing.T) {
	folder := t.TempDir()
	writeDataset(t, folder, "SAMPLE_1_ok.raw", 4)

	// second dataset has no mzML intermediate, so it fails
	brokenDir := filepath.Join(folder, "SAMPLE_2_broken.raw")
	require.NoError(t, os.MkdirAll(brokenDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(brokenDir, "_extern.inf"), []byte(testInf), 0o644))

	err := Do(testContext(), testParams(folder))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")

	// the healthy dataset still converted
	_, statErr := os.Stat(filepath.Join(folder, "imzml", "1.imzML"))
	require.NoError(t, statErr)
}

func TestDoParallel(t *testing.T) {
	folder := t.TempDir()
	writeDataset(t, folder, "SAMPLE_1_a.raw", 4)
	writeDataset(t, folder, "SAMPLE_2_b.raw", 4)

	params := testParams(folder)
	params.Jobs = 2

	require.NoError(t, Do(testContext(), params))

	for _, id := range []string{"1", "2"} {
		_, err := os.Stat(filepath.Join(folder, "imzml", id+".imzML"))
		require.NoError(t, err)
	}
}

func TestDoSkipsDatasetsWithSpaces(t *testing.T) {
	folder := t.TempDir()
	writeDataset(t, folder, "SAMPLE_9_good.raw", 4)

	spacedDir := filepath.Join(folder, "SAMPLE 8 bad.raw")
	require.NoError(t, os.MkdirAll(spacedDir, 0o755))

	require.NoError(t, Do(testContext(), testParams(folder)))

	_, err := os.Stat(filepath.Join(folder, "imzml", "9.imzML"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(folder, "imzml", "8.imzML"))
	assert.True(t, os.IsNotExist(err))
}

func TestDoNoDatasets(t *testing.T) {
	err := Do(testContext(), testParams(t.TempDir()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .raw datasets")
}

func TestDryRun(t *testing.T) {
	folder := t.TempDir()
	writeDataset(t, folder, "SAMPLE_5_dry.raw", 1)

	params := testParams(folder)
	params.DryRun = true
	params.SkipMsconvert = false

	require.NoError(t, Do(testContext(), params))

	// dry runs never create output folders
	_, err := os.Stat(filepath.Join(folder, "imzml"))
	assert.True(t, os.IsNotExist(err))
}

func TestSpectraRasterMismatch(t *testing.T) {
	folder := t.TempDir()
	// 2x2 raster but only 3 spectra
	writeDataset(t, folder, "SAMPLE_4_short.raw", 3)

	require.NoError(t, Do(testContext(), testParams(folder)))

	xmlBytes, err := os.ReadFile(filepath.Join(folder, "imzml", "4.imzML"))
	require.NoError(t, err)
	assert.Contains(t, string(xmlBytes), `id="spectrum=3"`)
	assert.NotContains(t, string(xmlBytes), `id="spectrum=4"`)
}

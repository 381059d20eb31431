package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Read parses an mzML document in full. Spectrum binary data stays
// base64-encoded until ReadScan asks for it.
func Read(reader io.Reader) (*MzML, error) {
	var mzML MzML

	decoder := xml.NewDecoder(reader)
	if err := decoder.Decode(&mzML.content); err != nil {
		return nil, errors.Wrap(err, "parsing mzML document")
	}

	if err := mzML.traverseScan(); err != nil {
		return nil, err
	}
	return &mzML, nil
}

// traverseScan builds the index <-> id maps
func (f *MzML) traverseScan() error {
	f.index2id = make([]string, f.NumSpecs())
	f.id2Index = make(map[string]int, f.NumSpecs())
	for i, spec := range f.content.Run.SpectrumList.Spectrum {
		f.index2id[i] = spec.ID
		f.id2Index[spec.ID] = i
	}
	return nil
}

// NumSpecs returns the number of spectra
func (f *MzML) NumSpecs() int {
	return len(f.content.Run.SpectrumList.Spectrum)
}

// ScanID returns the native id of a spectrum
func (f *MzML) ScanID(scanIndex int) (string, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return "", ErrInvalidScanIndex
	}
	return f.index2id[scanIndex], nil
}

// ScanIndex resolves a native id back to an index
func (f *MzML) ScanIndex(scanID string) (int, error) {
	index, ok := f.id2Index[scanID]
	if !ok {
		return 0, errors.Errorf("mzml: unknown scan id %q", scanID)
	}
	return index, nil
}

// ReadScan decodes the peaks of spectrum scanIndex
func (f *MzML) ReadScan(scanIndex int) ([]Peak, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return nil, ErrInvalidScanIndex
	}

	spec := &f.content.Run.SpectrumList.Spectrum[scanIndex]

	var mzs, intens []float64
	for i := range spec.BinaryDataArrayList.BinaryDataArray {
		bda := &spec.BinaryDataArrayList.BinaryDataArray[i]

		values, err := decodeBinaryDataArray(bda)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding binary data array %d of scan %d", i, scanIndex)
		}

		switch {
		case hasCVParam(bda.CvPar, cvMzArray):
			mzs = values
		case hasCVParam(bda.CvPar, cvIntensityArray):
			intens = values
		}
	}

	if len(mzs) != len(intens) {
		return nil, errors.Errorf("mzml: scan %d has %d m/z values but %d intensities", scanIndex, len(mzs), len(intens))
	}

	peaks := make([]Peak, len(mzs))
	for i := range mzs {
		peaks[i].Mz = mzs[i]
		peaks[i].Intens = intens[i]
	}
	return peaks, nil
}

// Centroid returns true if the spectrum is centroided
func (f *MzML) Centroid(scanIndex int) (bool, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return false, ErrInvalidScanIndex
	}
	return hasCVParam(f.content.Run.SpectrumList.Spectrum[scanIndex].CvPar, cvCentroidSpectrum), nil
}

// Polarity returns "positive", "negative" or "" for a spectrum
func (f *MzML) Polarity(scanIndex int) (string, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return "", ErrInvalidScanIndex
	}
	cvPar := f.content.Run.SpectrumList.Spectrum[scanIndex].CvPar
	switch {
	case hasCVParam(cvPar, cvPositiveScan):
		return "positive", nil
	case hasCVParam(cvPar, cvNegativeScan):
		return "negative", nil
	}
	return "", nil
}

// MSLevel returns the ms level of a spectrum, 0 if absent
func (f *MzML) MSLevel(scanIndex int) (int, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return 0, ErrInvalidScanIndex
	}
	for _, cv := range f.content.Run.SpectrumList.Spectrum[scanIndex].CvPar {
		if cv.Accession == cvMSLevel {
			level := 0
			for _, c := range cv.Value {
				if c < '0' || c > '9' {
					return 0, errors.Errorf("mzml: malformed ms level %q", cv.Value)
				}
				level = level*10 + int(c-'0')
			}
			return level, nil
		}
	}
	return 0, nil
}

func hasCVParam(cvPar []CVParam, accession string) bool {
	for _, cv := range cvPar {
		if cv.Accession == accession {
			return true
		}
	}
	return false
}

func decodeBinaryDataArray(bda *binaryDataArray) ([]float64, error) {
	data, err := base64.StdEncoding.DecodeString(bda.Binary)
	if err != nil {
		return nil, errors.Wrap(err, "base64 decode")
	}

	if hasCVParam(bda.CvPar, cvZlibCompression) {
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "zlib init")
		}
		data, err = io.ReadAll(zr)
		if err != nil {
			return nil, errors.Wrap(err, "zlib inflate")
		}
		if err := zr.Close(); err != nil {
			return nil, errors.Wrap(err, "zlib close")
		}
	}

	switch {
	case hasCVParam(bda.CvPar, cv64Bit):
		if len(data)%8 != 0 {
			return nil, errors.Errorf("64-bit array has odd byte count %d", len(data))
		}
		values := make([]float64, len(data)/8)
		for i := range values {
			bits := binary.LittleEndian.Uint64(data[i*8:])
			values[i] = math.Float64frombits(bits)
		}
		return values, nil
	case hasCVParam(bda.CvPar, cv32Bit):
		if len(data)%4 != 0 {
			return nil, errors.Errorf("32-bit array has odd byte count %d", len(data))
		}
		values := make([]float64, len(data)/4)
		for i := range values {
			bits := binary.LittleEndian.Uint32(data[i*4:])
			values[i] = float64(math.Float32frombits(bits))
		}
		return values, nil
	}

	return nil, ErrUnknownBinaryFormat
}

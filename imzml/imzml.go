// Package imzml writes imzML files: an XML metadata document (.imzML)
// paired with a raw binary blob (.ibd) holding the spectral arrays.
// The two are tied together by a UUID stored in both.
package imzml

import "github.com/pkg/errors"

// Mode selects the .ibd layout.
type Mode int

const (
	// ModeAuto buffers spectra and picks Continuous when every spectrum
	// shares the first one's m/z axis, Processed otherwise.
	ModeAuto Mode = iota
	// ModeContinuous stores the m/z axis once; every spectrum must then
	// present an identical axis.
	ModeContinuous
	// ModeProcessed stores an m/z array per spectrum.
	ModeProcessed
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeContinuous:
		return "continuous"
	case ModeProcessed:
		return "processed"
	}
	return "unknown"
}

// ParseMode converts a command-line mode string.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "auto":
		return ModeAuto, nil
	case "continuous":
		return ModeContinuous, nil
	case "processed":
		return ModeProcessed, nil
	}
	return ModeAuto, errors.Errorf("unknown imzML mode %q (want auto, continuous or processed)", s)
}

// Precision is the on-disk float width of a binary array.
type Precision int

const (
	Float64 Precision = 64
	Float32 Precision = 32
)

// Options configures a Writer.
type Options struct {
	Mode Mode

	// Polarity is "positive", "negative" or "" (omitted)
	Polarity string

	// SpectrumType is "profile", "centroid" or "" (omitted)
	SpectrumType string

	// PixelsX and PixelsY are the raster dimensions, recorded in
	// scanSettings as max count of pixels
	PixelsX int
	PixelsY int

	// MzPrecision defaults to Float64, IntensityPrecision to Float32
	MzPrecision        Precision
	IntensityPrecision Precision

	// Software version recorded in the XML
	SoftwareVersion string
}

// CV accessions written into the document
const (
	cvMzArray         = "MS:1000514"
	cvIntensityArray  = "MS:1000515"
	cv32Bit           = "MS:1000521"
	cv64Bit           = "MS:1000523"
	cvNoCompression   = "MS:1000576"
	cvCentroid        = "MS:1000127"
	cvProfile         = "MS:1000128"
	cvNegativeScan    = "MS:1000129"
	cvPositiveScan    = "MS:1000130"
	cvMSLevel         = "MS:1000511"
	cvMS1Spectrum     = "MS:1000579"
	cvNoCombination   = "MS:1000795"
	cvConversion      = "MS:1000530"
	cvUUID            = "IMS:1000080"
	cvIbdSHA1         = "IMS:1000091"
	cvContinuous      = "IMS:1000030"
	cvProcessed       = "IMS:1000031"
	cvMaxPixelX       = "IMS:1000042"
	cvMaxPixelY       = "IMS:1000043"
	cvPositionX       = "IMS:1000050"
	cvPositionY       = "IMS:1000051"
	cvPositionZ       = "IMS:1000052"
	cvExternalData        = "IMS:1000101"
	cvExternalOffset      = "IMS:1000102"
	cvExternalArrayLength = "IMS:1000103"
	cvExternalEncoded     = "IMS:1000104"
)

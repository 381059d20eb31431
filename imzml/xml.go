package imzml

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// The XML side of the pair. Like the mzML writer this package is modeled
// on, a dedicated set of write structs carries the namespace attributes
// that encoding/xml can't infer.

type imzMLDoc struct {
	XMLName        xml.Name `xml:"mzML"`
	Xmlns          string   `xml:"xmlns,attr"`
	XmlnsXsi       string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`
	Version        string   `xml:"version,attr"`

	CvList                      cvListDoc        `xml:"cvList"`
	FileDescription             fileDescription  `xml:"fileDescription"`
	ReferenceableParamGroupList paramGroupList   `xml:"referenceableParamGroupList"`
	SoftwareList                softwareList     `xml:"softwareList"`
	ScanSettingsList            scanSettingsList `xml:"scanSettingsList"`
	InstrumentConfigurationList instrConfList    `xml:"instrumentConfigurationList"`
	DataProcessingList          dataProcList     `xml:"dataProcessingList"`
	Run                         runDoc           `xml:"run"`
}

type cvListDoc struct {
	Count int    `xml:"count,attr"`
	Cv    []cvTy `xml:"cv"`
}

type cvTy struct {
	ID       string `xml:"id,attr"`
	FullName string `xml:"fullName,attr"`
	Version  string `xml:"version,attr,omitempty"`
	URI      string `xml:"URI,attr"`
}

type fileDescription struct {
	FileContent fileContent `xml:"fileContent"`
}

type fileContent struct {
	CvPar []cvParam `xml:"cvParam"`
}

type paramGroupList struct {
	Count  int          `xml:"count,attr"`
	Groups []paramGroup `xml:"referenceableParamGroup"`
}

type paramGroup struct {
	ID    string    `xml:"id,attr"`
	CvPar []cvParam `xml:"cvParam"`
}

type softwareList struct {
	Count    int           `xml:"count,attr"`
	Software []softwareDoc `xml:"software"`
}

type softwareDoc struct {
	ID      string `xml:"id,attr"`
	Version string `xml:"version,attr"`
}

type scanSettingsList struct {
	Count        int            `xml:"count,attr"`
	ScanSettings []scanSettings `xml:"scanSettings"`
}

type scanSettings struct {
	ID    string    `xml:"id,attr"`
	CvPar []cvParam `xml:"cvParam"`
}

type instrConfList struct {
	Count                  int          `xml:"count,attr"`
	InstrumentConfiguration []instrConf `xml:"instrumentConfiguration"`
}

type instrConf struct {
	ID string `xml:"id,attr"`
}

type dataProcList struct {
	Count          int           `xml:"count,attr"`
	DataProcessing []dataProcDoc `xml:"dataProcessing"`
}

type dataProcDoc struct {
	ID             string          `xml:"id,attr"`
	ProcessingMeth []procMethodDoc `xml:"processingMethod"`
}

type procMethodDoc struct {
	Order       int       `xml:"order,attr"`
	SoftwareRef string    `xml:"softwareRef,attr"`
	CvPar       []cvParam `xml:"cvParam"`
}

type runDoc struct {
	ID                                string          `xml:"id,attr"`
	DefaultInstrumentConfigurationRef string          `xml:"defaultInstrumentConfigurationRef,attr"`
	SpectrumList                      spectrumListDoc `xml:"spectrumList"`
}

type spectrumListDoc struct {
	Count                    int           `xml:"count,attr"`
	DefaultDataProcessingRef string        `xml:"defaultDataProcessingRef,attr"`
	Spectrum                 []spectrumDoc `xml:"spectrum"`
}

type spectrumDoc struct {
	Index              int             `xml:"index,attr"`
	ID                 string          `xml:"id,attr"`
	DefaultArrayLength int64           `xml:"defaultArrayLength,attr"`
	CvPar              []cvParam       `xml:"cvParam"`
	ScanList           scanListDoc     `xml:"scanList"`
	BinaryDataArrays   binaryArrayList `xml:"binaryDataArrayList"`
}

type scanListDoc struct {
	Count int       `xml:"count,attr"`
	CvPar []cvParam `xml:"cvParam"`
	Scan  []scanDoc `xml:"scan"`
}

type scanDoc struct {
	CvPar []cvParam `xml:"cvParam"`
}

type binaryArrayList struct {
	Count           int              `xml:"count,attr"`
	BinaryDataArray []binaryArrayDoc `xml:"binaryDataArray"`
}

type binaryArrayDoc struct {
	EncodedLength int           `xml:"encodedLength,attr"`
	GroupRef      paramGroupRef `xml:"referenceableParamGroupRef"`
	CvPar         []cvParam     `xml:"cvParam"`
	Binary        string        `xml:"binary"`
}

type paramGroupRef struct {
	Ref string `xml:"ref,attr"`
}

type cvParam struct {
	CvRef         string `xml:"cvRef,attr"`
	Accession     string `xml:"accession,attr"`
	Name          string `xml:"name,attr"`
	Value         string `xml:"value,attr,omitempty"`
	UnitCvRef     string `xml:"unitCvRef,attr,omitempty"`
	UnitAccession string `xml:"unitAccession,attr,omitempty"`
	UnitName      string `xml:"unitName,attr,omitempty"`
}

func cv(accession, name string) cvParam {
	return cvParam{CvRef: cvRef(accession), Accession: accession, Name: name}
}

func cvValue(accession, name, value string) cvParam {
	p := cv(accession, name)
	p.Value = value
	return p
}

func cvRef(accession string) string {
	return strings.SplitN(accession, ":", 2)[0]
}

func (w *Writer) writeXML(checksum string) error {
	doc := w.buildDoc(checksum)

	out, err := os.Create(w.xmlPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", w.xmlPath)
	}
	defer out.Close()

	if _, err := out.WriteString(xml.Header); err != nil {
		return errors.Wrapf(err, "writing %s", w.xmlPath)
	}

	encoder := xml.NewEncoder(out)
	encoder.Indent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return errors.Wrapf(err, "writing %s", w.xmlPath)
	}
	if _, err := out.WriteString("\n"); err != nil {
		return errors.Wrapf(err, "writing %s", w.xmlPath)
	}

	return nil
}

func (w *Writer) buildDoc(checksum string) *imzMLDoc {
	version := w.opts.SoftwareVersion
	if version == "" {
		version = "head"
	}

	doc := &imzMLDoc{
		Xmlns:          "http://psi.hupo.org/ms/mzml",
		XmlnsXsi:       "http://www.w3.org/2001/XMLSchema-instance",
		SchemaLocation: "http://psi.hupo.org/ms/mzml http://psidev.info/files/ms/mzML/xsd/mzML1.1.0_idx.xsd",
		Version:        "1.1",
		CvList: cvListDoc{
			Count: 3,
			Cv: []cvTy{
				{ID: "MS", FullName: "Proteomics Standards Initiative Mass Spectrometry Ontology", Version: "4.1.12", URI: "https://raw.githubusercontent.com/HUPO-PSI/psi-ms-CV/master/psi-ms.obo"},
				{ID: "UO", FullName: "Unit Ontology", URI: "https://raw.githubusercontent.com/bio-ontology-research-group/unit-ontology/master/unit.obo"},
				{ID: "IMS", FullName: "Imaging MS Ontology", Version: "1.1.0", URI: "https://raw.githubusercontent.com/imzML/imzML/master/imagingMS.obo"},
			},
		},
		SoftwareList: softwareList{
			Count:    1,
			Software: []softwareDoc{{ID: "imzconv", Version: version}},
		},
		InstrumentConfigurationList: instrConfList{
			Count:                   1,
			InstrumentConfiguration: []instrConf{{ID: "IC1"}},
		},
		DataProcessingList: dataProcList{
			Count: 1,
			DataProcessing: []dataProcDoc{{
				ID: "imzconv-export",
				ProcessingMeth: []procMethodDoc{{
					Order:       0,
					SoftwareRef: "imzconv",
					CvPar:       []cvParam{cv(cvConversion, "file format conversion")},
				}},
			}},
		},
	}

	doc.FileDescription.FileContent.CvPar = w.fileContentParams(checksum)
	doc.ReferenceableParamGroupList = w.paramGroups()
	doc.ScanSettingsList = w.scanSettings()
	doc.Run = w.runSection()

	return doc
}

func (w *Writer) fileContentParams(checksum string) []cvParam {
	params := []cvParam{
		cv(cvMS1Spectrum, "MS1 spectrum"),
		cvValue(cvUUID, "universally unique identifier", w.id.String()),
		cvValue(cvIbdSHA1, "ibd SHA-1", checksum),
	}

	if w.mode == ModeContinuous {
		params = append(params, cv(cvContinuous, "continuous"))
	} else {
		params = append(params, cv(cvProcessed, "processed"))
	}

	switch w.opts.SpectrumType {
	case "profile":
		params = append(params, cv(cvProfile, "profile spectrum"))
	case "centroid":
		params = append(params, cv(cvCentroid, "centroid spectrum"))
	}

	return params
}

func (w *Writer) paramGroups() paramGroupList {
	return paramGroupList{
		Count: 2,
		Groups: []paramGroup{
			{
				ID: "mzArray",
				CvPar: []cvParam{
					cv(cvNoCompression, "no compression"),
					{CvRef: "MS", Accession: cvMzArray, Name: "m/z array", UnitCvRef: "MS", UnitAccession: "MS:1000040", UnitName: "m/z"},
					cv(precisionAccession(w.opts.MzPrecision), precisionName(w.opts.MzPrecision)),
					cvValue(cvExternalData, "external data", "true"),
				},
			},
			{
				ID: "intensityArray",
				CvPar: []cvParam{
					cv(cvNoCompression, "no compression"),
					{CvRef: "MS", Accession: cvIntensityArray, Name: "intensity array", UnitCvRef: "MS", UnitAccession: "MS:1000131", UnitName: "number of detector counts"},
					cv(precisionAccession(w.opts.IntensityPrecision), precisionName(w.opts.IntensityPrecision)),
					cvValue(cvExternalData, "external data", "true"),
				},
			},
		},
	}
}

func (w *Writer) scanSettings() scanSettingsList {
	params := []cvParam{}
	if w.opts.PixelsX > 0 {
		params = append(params, cvValue(cvMaxPixelX, "max count of pixels x", strconv.Itoa(w.opts.PixelsX)))
	}
	if w.opts.PixelsY > 0 {
		params = append(params, cvValue(cvMaxPixelY, "max count of pixels y", strconv.Itoa(w.opts.PixelsY)))
	}

	return scanSettingsList{
		Count:        1,
		ScanSettings: []scanSettings{{ID: "scanSettings1", CvPar: params}},
	}
}

func (w *Writer) runSection() runDoc {
	spectra := make([]spectrumDoc, len(w.recs))
	for i, rec := range w.recs {
		spectra[i] = w.spectrumDoc(i, rec)
	}

	return runDoc{
		ID:                                "imzconv-run",
		DefaultInstrumentConfigurationRef: "IC1",
		SpectrumList: spectrumListDoc{
			Count:                    len(spectra),
			DefaultDataProcessingRef: "imzconv-export",
			Spectrum:                 spectra,
		},
	}
}

func (w *Writer) spectrumDoc(index int, rec record) spectrumDoc {
	cvPar := []cvParam{
		cv(cvMS1Spectrum, "MS1 spectrum"),
		cvValue(cvMSLevel, "ms level", "1"),
	}
	switch w.opts.SpectrumType {
	case "profile":
		cvPar = append(cvPar, cv(cvProfile, "profile spectrum"))
	case "centroid":
		cvPar = append(cvPar, cv(cvCentroid, "centroid spectrum"))
	}
	switch w.opts.Polarity {
	case "positive":
		cvPar = append(cvPar, cv(cvPositiveScan, "positive scan"))
	case "negative":
		cvPar = append(cvPar, cv(cvNegativeScan, "negative scan"))
	}

	return spectrumDoc{
		Index:              index,
		ID:                 fmt.Sprintf("spectrum=%d", index+1),
		DefaultArrayLength: rec.intLength,
		CvPar:              cvPar,
		ScanList: scanListDoc{
			Count: 1,
			CvPar: []cvParam{cv(cvNoCombination, "no combination")},
			Scan: []scanDoc{{
				CvPar: []cvParam{
					cvValue(cvPositionX, "position x", strconv.Itoa(rec.x)),
					cvValue(cvPositionY, "position y", strconv.Itoa(rec.y)),
					cvValue(cvPositionZ, "position z", strconv.Itoa(rec.z)),
				},
			}},
		},
		BinaryDataArrays: binaryArrayList{
			Count: 2,
			BinaryDataArray: []binaryArrayDoc{
				{
					EncodedLength: 0,
					GroupRef:      paramGroupRef{Ref: "mzArray"},
					CvPar: []cvParam{
						cvValue(cvExternalArrayLength, "external array length", strconv.FormatInt(rec.mzLength, 10)),
						cvValue(cvExternalEncoded, "external encoded length", strconv.FormatInt(rec.mzEncoded, 10)),
						cvValue(cvExternalOffset, "external offset", strconv.FormatInt(rec.mzOffset, 10)),
					},
				},
				{
					EncodedLength: 0,
					GroupRef:      paramGroupRef{Ref: "intensityArray"},
					CvPar: []cvParam{
						cvValue(cvExternalArrayLength, "external array length", strconv.FormatInt(rec.intLength, 10)),
						cvValue(cvExternalEncoded, "external encoded length", strconv.FormatInt(rec.intEncoded, 10)),
						cvValue(cvExternalOffset, "external offset", strconv.FormatInt(rec.intOffset, 10)),
					},
				},
			},
		},
	}
}

func precisionAccession(p Precision) string {
	if p == Float32 {
		return cv32Bit
	}
	return cv64Bit
}

func precisionName(p Precision) string {
	if p == Float32 {
		return "32-bit float"
	}
	return "64-bit float"
}

package imzml

import (
	"bufio"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Writer streams spectra into an .imzML/.ibd pair. Binary data goes to
// the .ibd as spectra arrive (except in auto mode, which has to see all
// spectra before it can commit to a layout); the XML document is written
// on Close, once offsets and the checksum are known.
type Writer struct {
	opts Options
	mode Mode

	xmlPath string
	ibdPath string

	id   uuid.UUID
	ibd  *os.File
	buf  *bufio.Writer
	sha  hash.Hash
	out  io.Writer
	off  int64
	recs []record

	// continuous bookkeeping
	sharedMz record

	// auto-mode buffer
	pending []pendingSpectrum

	closed bool
}

type record struct {
	x, y, z int

	mzOffset  int64
	mzLength  int64
	mzEncoded int64

	intOffset  int64
	intLength  int64
	intEncoded int64
}

type pendingSpectrum struct {
	mzs    []float64
	intens []float64
	x, y   int
	z      int
}

// NewWriter creates <base>.imzML and <base>.ibd. path may carry either
// extension or none.
func NewWriter(path string, opts Options) (*Writer, error) {
	if opts.MzPrecision == 0 {
		opts.MzPrecision = Float64
	}
	if opts.IntensityPrecision == 0 {
		opts.IntensityPrecision = Float32
	}
	switch opts.Polarity {
	case "", "positive", "negative":
	default:
		return nil, errors.Errorf("unknown polarity %q (want positive or negative)", opts.Polarity)
	}
	switch opts.SpectrumType {
	case "", "profile", "centroid":
	default:
		return nil, errors.Errorf("unknown spectrum type %q (want profile or centroid)", opts.SpectrumType)
	}

	base := strings.TrimSuffix(path, filepath.Ext(path))
	w := &Writer{
		opts:    opts,
		mode:    opts.Mode,
		xmlPath: base + ".imzML",
		ibdPath: base + ".ibd",
		id:      uuid.New(),
		sha:     sha1.New(),
	}

	ibd, err := os.Create(w.ibdPath)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", w.ibdPath)
	}
	w.ibd = ibd
	w.buf = bufio.NewWriterSize(ibd, 1<<20)
	w.out = io.MultiWriter(w.buf, w.sha)

	// the .ibd leads with the raw UUID bytes
	if _, err := w.out.Write(w.id[:]); err != nil {
		ibd.Close()
		return nil, errors.Wrapf(err, "writing uuid to %s", w.ibdPath)
	}
	w.off = int64(len(w.id))

	return w, nil
}

// UUID returns the identifier shared by the XML and the binary file.
func (w *Writer) UUID() uuid.UUID {
	return w.id
}

// XMLPath returns the path of the .imzML document.
func (w *Writer) XMLPath() string {
	return w.xmlPath
}

// IbdPath returns the path of the binary file.
func (w *Writer) IbdPath() string {
	return w.ibdPath
}

// AddSpectrum appends one pixel's spectrum. Coordinates are 1-based.
func (w *Writer) AddSpectrum(mzs, intens []float64, x, y, z int) error {
	if w.closed {
		return errors.New("imzml: writer is closed")
	}
	if len(mzs) != len(intens) {
		return errors.Errorf("imzml: %d m/z values but %d intensities", len(mzs), len(intens))
	}
	if x < 1 || y < 1 || z < 1 {
		return errors.Errorf("imzml: coordinates are 1-based, got (%d, %d, %d)", x, y, z)
	}

	switch w.mode {
	case ModeAuto:
		w.pending = append(w.pending, pendingSpectrum{
			mzs:    append([]float64(nil), mzs...),
			intens: append([]float64(nil), intens...),
			x:      x, y: y, z: z,
		})
		return nil
	case ModeContinuous:
		if len(w.recs) == 0 {
			if err := w.writeSharedMz(mzs); err != nil {
				return err
			}
		} else if int64(len(mzs)) != w.sharedMz.mzLength {
			return errors.Errorf("imzml: continuous mode needs a fixed m/z axis: got %d values, axis has %d", len(mzs), w.sharedMz.mzLength)
		}
		return w.writeIntensities(mzs, intens, x, y, z)
	case ModeProcessed:
		rec := record{x: x, y: y, z: z}
		var err error
		rec.mzOffset, rec.mzLength, rec.mzEncoded, err = w.writeArray(mzs, w.opts.MzPrecision)
		if err != nil {
			return err
		}
		rec.intOffset, rec.intLength, rec.intEncoded, err = w.writeArray(intens, w.opts.IntensityPrecision)
		if err != nil {
			return err
		}
		w.recs = append(w.recs, rec)
		return nil
	}
	return errors.Errorf("imzml: unknown mode %d", w.mode)
}

func (w *Writer) writeSharedMz(mzs []float64) error {
	offset, length, encoded, err := w.writeArray(mzs, w.opts.MzPrecision)
	if err != nil {
		return err
	}
	w.sharedMz = record{mzOffset: offset, mzLength: length, mzEncoded: encoded}
	return nil
}

func (w *Writer) writeIntensities(mzs, intens []float64, x, y, z int) error {
	rec := record{
		x: x, y: y, z: z,
		mzOffset:  w.sharedMz.mzOffset,
		mzLength:  w.sharedMz.mzLength,
		mzEncoded: w.sharedMz.mzEncoded,
	}
	var err error
	rec.intOffset, rec.intLength, rec.intEncoded, err = w.writeArray(intens, w.opts.IntensityPrecision)
	if err != nil {
		return err
	}
	w.recs = append(w.recs, rec)
	return nil
}

func (w *Writer) writeArray(values []float64, precision Precision) (offset, length, encoded int64, err error) {
	offset = w.off

	switch precision {
	case Float64:
		var scratch [8]byte
		for _, v := range values {
			binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(v))
			if _, err := w.out.Write(scratch[:]); err != nil {
				return 0, 0, 0, errors.Wrapf(err, "writing to %s", w.ibdPath)
			}
		}
		encoded = int64(len(values) * 8)
	case Float32:
		var scratch [4]byte
		for _, v := range values {
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(float32(v)))
			if _, err := w.out.Write(scratch[:]); err != nil {
				return 0, 0, 0, errors.Wrapf(err, "writing to %s", w.ibdPath)
			}
		}
		encoded = int64(len(values) * 4)
	default:
		return 0, 0, 0, errors.Errorf("imzml: unsupported precision %d", precision)
	}

	w.off += encoded
	return offset, int64(len(values)), encoded, nil
}

// flushPending resolves auto mode: continuous when every buffered
// spectrum shares the first one's m/z axis, value for value.
func (w *Writer) flushPending() error {
	if w.mode != ModeAuto {
		return nil
	}

	if len(w.pending) == 0 {
		w.mode = ModeProcessed
		return nil
	}

	w.mode = ModeContinuous
	for _, p := range w.pending[1:] {
		if !equalAxes(w.pending[0].mzs, p.mzs) {
			w.mode = ModeProcessed
			break
		}
	}

	pending := w.pending
	w.pending = nil
	for _, p := range pending {
		if err := w.AddSpectrum(p.mzs, p.intens, p.x, p.y, p.z); err != nil {
			return err
		}
	}
	return nil
}

func equalAxes(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Close finalizes the .ibd, computes its checksum, and writes the XML
// document. Calling it twice is an error-free no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}

	if err := w.flushPending(); err != nil {
		return err
	}
	w.closed = true

	if err := w.buf.Flush(); err != nil {
		w.ibd.Close()
		return errors.Wrapf(err, "flushing %s", w.ibdPath)
	}
	if err := w.ibd.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", w.ibdPath)
	}

	checksum := hex.EncodeToString(w.sha.Sum(nil))
	return w.writeXML(checksum)
}

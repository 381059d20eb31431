package convert

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/itchio/headway/state"
	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/desilab/imzconv/bench"
	"github.com/desilab/imzconv/buildinfo"
	"github.com/desilab/imzconv/comm"
	"github.com/desilab/imzconv/imzml"
	"github.com/desilab/imzconv/mzml"
	"github.com/desilab/imzconv/pwiz"
	"github.com/desilab/imzconv/waters"
)

var args = struct {
	folder        *string
	polarity      *string
	idPos         *int
	mode          *string
	image         *string
	docker        *string
	keep          *bool
	jobs          *int
	skipMsconvert *bool
	dryRun        *bool
}{}

func Register(ctx *bench.Context) {
	cmd := ctx.App.Command("convert", "Convert a folder of raw Waters datasets to imzML")
	args.folder = cmd.Arg("folder", "Folder containing raw Waters datasets").Required().ExistingDir()
	args.polarity = cmd.Flag("polarity", "Scan polarity (positive or negative); prompted when absent").Enum("", "positive", "negative")
	args.idPos = cmd.Flag("id-pos", "Position of the sample id among the underscore-separated fields of the file name; prompted when absent").Default("-1").Int()
	args.mode = cmd.Flag("mode", "imzML binary mode").Default("auto").Enum("auto", "continuous", "processed")
	args.image = cmd.Flag("image", "ProteoWizard docker image").String()
	args.docker = cmd.Flag("docker", "Docker client binary").String()
	args.keep = cmd.Flag("keep-intermediate", "Keep the mzml/ intermediate folder around").Bool()
	args.jobs = cmd.Flag("jobs", "Number of datasets to convert in parallel").Short('j').Default("0").Int()
	args.skipMsconvert = cmd.Flag("skip-msconvert", "Reuse an existing mzml/ folder instead of running msconvert").Bool()
	args.dryRun = cmd.Flag("dry-run", "Print the msconvert invocations without running anything").Bool()
	ctx.Register(cmd, do)
}

// Params collects everything a conversion run needs, after flags,
// config and prompts are reconciled.
type Params struct {
	Folder   string
	Polarity string
	IDPos    int
	Mode     imzml.Mode

	Docker    string
	Image     string
	ExtraArgs []string

	KeepIntermediate bool
	SkipMsconvert    bool
	DryRun           bool
	Jobs             int
}

func do(ctx *bench.Context) {
	params, err := resolveParams(ctx)
	ctx.Must(err)
	ctx.Must(Do(ctx, params))
}

func resolveParams(ctx *bench.Context) (Params, error) {
	cfg := ctx.Config

	polarity := *args.polarity
	if polarity == "" {
		polarity = cfg.Polarity
	}
	if polarity == "" {
		polarity = comm.Ask("Input polarity positive/negative:", "positive")
	}
	if polarity != "positive" && polarity != "negative" {
		return Params{}, errors.Errorf("unknown polarity %q (want positive or negative)", polarity)
	}

	idPos := *args.idPos
	if idPos < 0 {
		answer := comm.Ask("Position of id in file name:", "0")
		parsed, err := strconv.Atoi(answer)
		if err != nil || parsed < 0 {
			return Params{}, errors.Errorf("id position must be a non-negative number, got %q", answer)
		}
		idPos = parsed
	}

	mode, err := imzml.ParseMode(*args.mode)
	if err != nil {
		return Params{}, err
	}

	docker := *args.docker
	if docker == "" {
		docker = cfg.Docker
	}
	image := *args.image
	if image == "" {
		image = cfg.Image
	}

	var extraArgs []string
	if cfg.MsconvertArgs != "" {
		extraArgs, err = shellquote.Split(cfg.MsconvertArgs)
		if err != nil {
			return Params{}, errors.Wrap(err, "parsing msconvert_args from config")
		}
	}

	jobs := *args.jobs
	if jobs <= 0 {
		jobs = cfg.Jobs
	}

	return Params{
		Folder:           *args.folder,
		Polarity:         polarity,
		IDPos:            idPos,
		Mode:             mode,
		Docker:           docker,
		Image:            image,
		ExtraArgs:        extraArgs,
		KeepIntermediate: *args.keep,
		SkipMsconvert:    *args.skipMsconvert,
		DryRun:           *args.dryRun,
		Jobs:             jobs,
	}, nil
}

func Do(ctx *bench.Context, params Params) error {
	datasets, err := waters.FindDatasets(params.Folder)
	if err != nil {
		return err
	}
	if len(datasets) == 0 {
		return errors.Errorf("no .raw datasets found in %s", params.Folder)
	}

	var usable []waters.Dataset
	for _, d := range datasets {
		if d.HasSpaces() {
			comm.Warnf("Skipping %s: spaces in dataset names don't survive the docker command line, rename with underscores", d.Name)
			continue
		}
		usable = append(usable, d)
	}
	if len(usable) == 0 {
		return errors.Errorf("all %d datasets in %s have spaces in their names", len(datasets), params.Folder)
	}

	mzmlDir := filepath.Join(params.Folder, "mzml")
	imzmlDir := filepath.Join(params.Folder, "imzml")

	if params.DryRun {
		return dryRun(params, usable)
	}

	for _, dir := range []string{mzmlDir, imzmlDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating %s", dir)
		}
	}

	cctx := context.Background()

	if !params.SkipMsconvert {
		if err := pwiz.Check(cctx, params.Docker); err != nil {
			return err
		}
	}

	comm.Opf("Converting %d dataset(s) from %s", len(usable), params.Folder)

	startTime := time.Now()
	failures := runBatch(ctx, cctx, params, usable, mzmlDir, imzmlDir)

	if !params.KeepIntermediate {
		if err := os.RemoveAll(mzmlDir); err != nil {
			comm.Warnf("Could not remove intermediate folder %s: %s", mzmlDir, err.Error())
		}
	}

	converted := len(usable) - len(failures)
	comm.Statf("Converted %d of %d dataset(s) in %s", converted, len(usable), time.Since(startTime).Round(time.Second))

	if len(failures) > 0 {
		for _, f := range failures {
			comm.Warnf("%s: %s", f.dataset, f.err.Error())
		}
		return errors.Errorf("%d of %d dataset(s) failed", len(failures), len(usable))
	}
	return nil
}

type failure struct {
	dataset string
	err     error
}

func runBatch(ctx *bench.Context, cctx context.Context, params Params, datasets []waters.Dataset, mzmlDir, imzmlDir string) []failure {
	var mu sync.Mutex
	var failures []failure

	record := func(name string, err error) {
		mu.Lock()
		failures = append(failures, failure{dataset: name, err: err})
		mu.Unlock()
	}

	if params.Jobs > 1 {
		// no progress bar with concurrent datasets, messages only
		consumer := &state.Consumer{OnMessage: comm.Logl}

		g, gctx := errgroup.WithContext(cctx)
		g.SetLimit(params.Jobs)
		for _, d := range datasets {
			d := d
			g.Go(func() error {
				if err := convertOne(gctx, ctx, params, d, mzmlDir, imzmlDir, consumer); err != nil {
					record(d.Name, err)
				}
				// batch keeps going, errors are collected
				return nil
			})
		}
		g.Wait()
		return failures
	}

	consumer := comm.NewStateConsumer()
	for _, d := range datasets {
		if err := convertOne(cctx, ctx, params, d, mzmlDir, imzmlDir, consumer); err != nil {
			comm.EndProgress()
			record(d.Name, err)
		}
	}
	return failures
}

func dryRun(params Params, datasets []waters.Dataset) error {
	for _, d := range datasets {
		line, err := pwiz.CommandLine(pwiz.ConvertParams{
			DataFolder: params.Folder,
			RawName:    d.Name,
			OutDirName: "mzml",
			Docker:     params.Docker,
			Image:      params.Image,
			ExtraArgs:  params.ExtraArgs,
		})
		if err != nil {
			return err
		}
		comm.Logf("%s", line)
	}
	return nil
}

func convertOne(cctx context.Context, ctx *bench.Context, params Params, dataset waters.Dataset, mzmlDir, imzmlDir string, consumer *state.Consumer) error {
	consumer.Opf("Processing %s", dataset.Name)

	sampleID, err := dataset.SampleID(params.IDPos)
	if err != nil {
		return err
	}

	if !params.SkipMsconvert {
		consumer.Infof("Running ProteoWizard for conversion to mzML...")
		err := pwiz.Convert(cctx, pwiz.ConvertParams{
			DataFolder: params.Folder,
			RawName:    dataset.Name,
			OutDirName: "mzml",
			Docker:     params.Docker,
			Image:      params.Image,
			ExtraArgs:  params.ExtraArgs,
			Consumer:   consumer,
			Logger:     ctx.Logger,
		})
		if err != nil {
			return err
		}
	}

	mzmlPath, err := pwiz.FindOutput(mzmlDir, dataset.Name, sampleID)
	if err != nil {
		return err
	}

	infPath, err := waters.FindInf(dataset)
	if err != nil {
		return err
	}
	consumer.Debugf("Accessing %s for coordinate extraction", infPath)

	acq, err := waters.ParseInf(infPath)
	if err != nil {
		return err
	}

	x, y, err := acq.Raster()
	if err != nil {
		return err
	}
	consumer.Infof("Image size: %d by %d", x, y)

	if acq.Polarity != "" && acq.Polarity != params.Polarity {
		consumer.Warnf("Acquisition metadata says %s polarity, converting as %s anyway", acq.Polarity, params.Polarity)
	}

	outPath := filepath.Join(imzmlDir, sampleID+".imzML")
	err = repackage(mzmlPath, outPath, x, y, params, consumer)
	if err != nil {
		return err
	}

	return nil
}

// repackage reads the intermediate mzML and streams its spectra, paired
// with generated pixel coordinates, into an imzML file.
func repackage(mzmlPath string, outPath string, x, y int, params Params, consumer *state.Consumer) error {
	reader, err := os.Open(mzmlPath)
	if err != nil {
		return errors.Wrapf(err, "opening %s", mzmlPath)
	}
	defer reader.Close()

	f, err := mzml.Read(reader)
	if err != nil {
		return errors.Wrapf(err, "parsing %s", mzmlPath)
	}

	coords := waters.Coords(x, y)
	numSpecs := f.NumSpecs()

	count := numSpecs
	if numSpecs != len(coords) {
		consumer.Warnf("Raster wants %d pixels but %s has %d spectra, converting the overlap", len(coords), filepath.Base(mzmlPath), numSpecs)
		if len(coords) < count {
			count = len(coords)
		}
	}
	if count == 0 {
		return errors.Errorf("%s has no spectra", mzmlPath)
	}

	spectrumType := "profile"
	if centroid, err := f.Centroid(0); err == nil && centroid {
		spectrumType = "centroid"
	}

	w, err := imzml.NewWriter(outPath, imzml.Options{
		Mode:            params.Mode,
		Polarity:        params.Polarity,
		SpectrumType:    spectrumType,
		PixelsX:         x,
		PixelsY:         y,
		SoftwareVersion: buildinfo.Version,
	})
	if err != nil {
		return err
	}

	// the progress bar is global state, only one dataset may own it
	showBar := params.Jobs <= 1
	if showBar {
		comm.StartProgress()
	}
	endBar := func() {
		if showBar {
			comm.EndProgress()
		}
	}

	consumer.Infof("Converting to imzML...")
	for i := 0; i < count; i++ {
		peaks, err := f.ReadScan(i)
		if err != nil {
			endBar()
			return errors.Wrapf(err, "reading scan %d of %s", i, mzmlPath)
		}

		mzs := make([]float64, len(peaks))
		intens := make([]float64, len(peaks))
		for j, p := range peaks {
			mzs[j] = p.Mz
			intens[j] = p.Intens
		}

		coord := coords[i]
		if err := w.AddSpectrum(mzs, intens, coord.X, coord.Y, coord.Z); err != nil {
			endBar()
			return errors.Wrapf(err, "writing spectrum %d", i)
		}
		consumer.Progress(float64(i+1) / float64(count))
	}
	endBar()

	if err := w.Close(); err != nil {
		return err
	}

	ibdStats, err := os.Stat(w.IbdPath())
	if err != nil {
		return errors.Wrapf(err, "stat'ing %s", w.IbdPath())
	}

	consumer.Statf("%s: %d spectra, %s of spectral data (uuid %s)",
		filepath.Base(outPath), count, humanize.IBytes(uint64(ibdStats.Size())), w.UUID())

	return nil
}

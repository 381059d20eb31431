package probe

import (
	"os"

	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/desilab/imzconv/bench"
	"github.com/desilab/imzconv/comm"
	"github.com/desilab/imzconv/mzml"
)

var args = struct {
	file *string
}{}

func Register(ctx *bench.Context) {
	cmd := ctx.App.Command("probe", "Show statistics about an intermediate mzML file").Hidden()
	args.file = cmd.Arg("file", "Path of the mzML file to analyze").Required().ExistingFile()
	ctx.Register(cmd, do)
}

func do(ctx *bench.Context) {
	ctx.Must(Do(ctx, *args.file))
}

type ProbeData struct {
	Spectra   int    `json:"spectra"`
	Peaks     int    `json:"peaks"`
	Polarity  string `json:"polarity,omitempty"`
	Centroid  bool   `json:"centroid"`
	SizeBytes int64  `json:"sizeBytes"`
}

func Do(ctx *bench.Context, path string) error {
	stats, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "stat'ing %s", path)
	}

	reader, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer reader.Close()

	comm.Opf("Probing %s (%s)", path, humanize.IBytes(uint64(stats.Size())))

	f, err := mzml.Read(reader)
	if err != nil {
		return errors.Wrap(err, "parsing mzML")
	}

	numSpecs := f.NumSpecs()
	data := ProbeData{
		Spectra:   numSpecs,
		SizeBytes: stats.Size(),
	}

	if numSpecs > 0 {
		data.Polarity, err = f.Polarity(0)
		if err != nil {
			return err
		}
		data.Centroid, err = f.Centroid(0)
		if err != nil {
			return err
		}

		comm.StartProgress()
		for i := 0; i < numSpecs; i++ {
			peaks, err := f.ReadScan(i)
			if err != nil {
				comm.EndProgress()
				return errors.Wrapf(err, "reading scan %d", i)
			}
			data.Peaks += len(peaks)
			comm.Progress(float64(i+1) / float64(numSpecs))
		}
		comm.EndProgress()
	}

	comm.ResultOrPrint(data, func() {
		comm.Statf("%d spectra, %d peaks total", data.Spectra, data.Peaks)
		spectrumType := "profile"
		if data.Centroid {
			spectrumType = "centroid"
		}
		if data.Polarity != "" {
			comm.Logf("%s, %s polarity", spectrumType, data.Polarity)
		} else {
			comm.Logf("%s, polarity not recorded", spectrumType)
		}
	})

	return nil
}

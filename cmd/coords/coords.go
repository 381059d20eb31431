package coords

import (
	"github.com/pkg/errors"

	"github.com/desilab/imzconv/bench"
	"github.com/desilab/imzconv/comm"
	"github.com/desilab/imzconv/waters"
)

var args = struct {
	inf *string
}{}

func Register(ctx *bench.Context) {
	cmd := ctx.App.Command("coords", "Show the image raster recorded in a Waters _extern.inf file")
	args.inf = cmd.Arg("inf", "Path of the .inf acquisition metadata file").Required().ExistingFile()
	ctx.Register(cmd, do)
}

func do(ctx *bench.Context) {
	ctx.Must(Do(ctx, *args.inf))
}

type RasterData struct {
	PixelsX  int     `json:"pixelsX"`
	PixelsY  int     `json:"pixelsY"`
	XLength  float64 `json:"xLength"`
	XStep    float64 `json:"xStep"`
	YLength  float64 `json:"yLength"`
	YStep    float64 `json:"yStep"`
	Polarity string  `json:"polarity,omitempty"`
}

func Do(ctx *bench.Context, infPath string) error {
	acq, err := waters.ParseInf(infPath)
	if err != nil {
		return errors.Wrap(err, "parsing acquisition metadata")
	}

	x, y, err := acq.Raster()
	if err != nil {
		return errors.Wrap(err, "computing raster")
	}

	comm.ResultOrPrint(RasterData{
		PixelsX:  x,
		PixelsY:  y,
		XLength:  acq.XLength,
		XStep:    acq.XStep,
		YLength:  acq.YLength,
		YStep:    acq.YStep,
		Polarity: acq.Polarity,
	}, func() {
		comm.Statf("Image size: %d by %d pixels", x, y)
		comm.Logf("x: %g over %g per pixel", acq.XLength, acq.XStep)
		comm.Logf("y: %g over %g per pixel", acq.YLength, acq.YStep)
		if acq.Polarity != "" {
			comm.Logf("polarity: %s", acq.Polarity)
		}
	})

	return nil
}

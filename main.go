package main

import (
	"log"
	"os"

	"github.com/desilab/imzconv/bench"
	"github.com/desilab/imzconv/buildinfo"
	"github.com/desilab/imzconv/comm"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var app = kingpin.New("imzconv", "Converts raw Waters mass spectrometry imaging datasets to imzML")

var appArgs = struct {
	json       *bool
	quiet      *bool
	verbose    *bool
	timestamps *bool
	noProgress *bool
	panic      *bool
	assumeYes  *bool
	config     *string
}{
	app.Flag("json", "Enable machine-readable JSON-lines output").Short('j').Bool(),
	app.Flag("quiet", "Hide progress indicators & other extra info").Short('q').Bool(),
	app.Flag("verbose", "Display as much extra info as possible").Short('v').Bool(),
	app.Flag("timestamps", "Prefix all output by timestamps (for logging purposes)").Bool(),
	app.Flag("no-progress", "Doesn't show progress bars").Bool(),
	app.Flag("panic", "Panic on error").Hidden().Bool(),
	app.Flag("assume-yes", "Don't ask questions, just proceed").Bool(),
	app.Flag("config", "Path of the TOML configuration file").PlaceHolder("PATH").String(),
}

func main() {
	app.HelpFlag.Short('h')
	app.Version(buildinfo.VersionString)
	app.VersionFlag.Short('V')
	app.Author("the desilab authors")

	ctx := bench.NewContext(app)
	ctx.VersionString = buildinfo.VersionString
	ctx.Version = buildinfo.Version
	ctx.Commit = buildinfo.Commit

	registerCommands(ctx)

	cmd, err := app.Parse(os.Args[1:])
	if err != nil {
		pctx, _ := app.ParseContext(os.Args[1:])
		app.FatalUsageContext(pctx, "%s\n", err.Error())
	}

	if *appArgs.timestamps {
		log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	} else {
		log.SetFlags(0)
	}

	ctx.Quiet = *appArgs.quiet
	ctx.Verbose = *appArgs.verbose
	ctx.JSON = *appArgs.json
	ctx.AssumeYes = *appArgs.assumeYes
	comm.Configure(*appArgs.noProgress, ctx.Quiet, ctx.Verbose, ctx.JSON, *appArgs.panic, ctx.AssumeYes)

	cfg, err := bench.LoadConfig(*appArgs.config)
	ctx.Must(err)
	ctx.Config = cfg

	do, ok := ctx.Commands[cmd]
	if !ok {
		comm.Dief("unknown command %s", cmd)
	}
	do(ctx)
}

package version

import (
	"log"
	"time"

	"github.com/desilab/imzconv/bench"
	"github.com/desilab/imzconv/buildinfo"
	"github.com/desilab/imzconv/comm"
)

func Register(ctx *bench.Context) {
	cmd := ctx.App.Command("version", "Prints the current version of imzconv")
	ctx.Register(cmd, do)
}

type VersionData struct {
	Version       string     `json:"version"`
	BuiltAt       *time.Time `json:"builtAt"`
	Commit        string     `json:"commit"`
	VersionString string     `json:"versionString"`
}

func do(ctx *bench.Context) {
	if ctx.JSON {
		comm.Result(VersionData{
			Version:       buildinfo.Version,
			BuiltAt:       buildinfo.BuildTime(),
			Commit:        buildinfo.Commit,
			VersionString: buildinfo.VersionString,
		})
	} else {
		log.Println(buildinfo.VersionString)
	}
}

package main

import (
	"github.com/desilab/imzconv/bench"
	"github.com/desilab/imzconv/cmd/clean"
	"github.com/desilab/imzconv/cmd/convert"
	"github.com/desilab/imzconv/cmd/coords"
	"github.com/desilab/imzconv/cmd/probe"
	"github.com/desilab/imzconv/cmd/sizeof"
	"github.com/desilab/imzconv/cmd/version"
)

// Each of these specify their own arguments and flags in
// their own package.
func registerCommands(ctx *bench.Context) {
	// documented commands

	convert.Register(ctx)
	coords.Register(ctx)
	clean.Register(ctx)
	version.Register(ctx)

	// hidden commands

	probe.Register(ctx)
	sizeof.Register(ctx)
}

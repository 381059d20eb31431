package clean

import (
	"os"
	"path/filepath"
	"time"

	"github.com/itchio/headway/state"
	"github.com/pkg/errors"

	"github.com/desilab/imzconv/bench"
	"github.com/desilab/imzconv/comm"
)

var args = struct {
	folder *string
	all    *bool
}{}

func Register(ctx *bench.Context) {
	cmd := ctx.App.Command("clean", "Remove the mzml/ intermediate folder left behind by convert")
	args.folder = cmd.Arg("folder", "Folder containing raw Waters datasets").Required().String()
	args.all = cmd.Flag("all", "Also remove the imzml/ output folder").Bool()
	ctx.Register(cmd, do)
}

func do(ctx *bench.Context) {
	ctx.Must(Do(comm.NewStateConsumer(), *args.folder, *args.all))
}

func Do(consumer *state.Consumer, folder string, all bool) error {
	targets := []string{filepath.Join(folder, "mzml")}
	if all {
		targets = append(targets, filepath.Join(folder, "imzml"))
	}

	for _, target := range targets {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			consumer.Debugf("nothing to clean at %s", target)
			continue
		}

		consumer.Opf("Removing %s", target)
		if err := wipe(consumer, target); err != nil {
			return err
		}
	}

	return nil
}

// wipe retries removal a few times: on some platforms the OS returns
// transient I/O errors while the folder is still being scanned.
func wipe(consumer *state.Consumer, path string) error {
	sleepPatterns := []time.Duration{
		time.Millisecond * 200,
		time.Millisecond * 400,
		time.Millisecond * 800,
	}

	for attempt := 0; ; attempt++ {
		err := os.RemoveAll(path)
		if err == nil {
			return nil
		}

		if attempt == len(sleepPatterns) {
			return errors.Wrapf(err, "could not remove %s", path)
		}
		consumer.Warnf("Could not remove %s, will retry: %s", path, err.Error())
		time.Sleep(sleepPatterns[attempt])
	}
}

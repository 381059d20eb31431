// Package pwiz drives ProteoWizard's msconvert through its public
// Docker image. The image is Windows software run under wine, so the
// invocation carries some wine-specific environment along.
package pwiz

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/itchio/headway/state"
	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
)

// WINEDEBUG channels that would otherwise flood the output
const wineDebugEnv = "WINEDEBUG=fixme-all+msgbox+relay"

// Check verifies that the docker client can reach a running daemon.
func Check(ctx context.Context, docker string) error {
	cmd := exec.CommandContext(ctx, docker, "version")
	output := new(bytes.Buffer)
	cmd.Stdout = output
	cmd.Stderr = output

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(output.String())
		if detail != "" {
			return errors.Wrapf(err, "docker is not reachable (make sure Docker is running): %s", detail)
		}
		return errors.Wrap(err, "docker is not reachable (make sure Docker is running)")
	}
	return nil
}

// ConvertParams describes one msconvert run.
type ConvertParams struct {
	// DataFolder is the host folder holding the .raw datasets. It gets
	// bind-mounted into the container under its own base name.
	DataFolder string

	// RawName is the dataset entry inside DataFolder
	RawName string

	// OutDirName is the subdirectory of DataFolder that receives the
	// intermediate file (created by msconvert if missing)
	OutDirName string

	// Docker is the docker client binary, Image the ProteoWizard image
	Docker string
	Image  string

	// ExtraArgs are appended to the msconvert command line
	ExtraArgs []string

	Consumer *state.Consumer
	Logger   *slog.Logger
}

// Convert runs msconvert on one dataset, producing mzML in OutDirName.
func Convert(ctx context.Context, params ConvertParams) error {
	consumer := params.Consumer

	abs, err := filepath.Abs(params.DataFolder)
	if err != nil {
		return errors.Wrapf(err, "resolving %s", params.DataFolder)
	}

	// paths inside the container always use forward slashes
	containerRoot := "/" + filepath.Base(abs)
	input := path.Join(containerRoot, params.RawName)
	outDir := path.Join(containerRoot, params.OutDirName)

	args := []string{
		"run", "--rm",
		"-e", wineDebugEnv,
		"-v", abs + ":" + containerRoot,
		params.Image,
		"wine", "msconvert",
		input,
		"--mzML",
		"-o", outDir,
	}
	args = append(args, params.ExtraArgs...)

	consumer.Debugf("$ %s %s", params.Docker, shellquote.Join(args...))

	startTime := time.Now()

	cmd := exec.CommandContext(ctx, params.Docker, args...)
	cmd.Stdout = newLineWriter(consumer)
	cmd.Stderr = newLineWriter(consumer)

	if err := cmd.Run(); err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return errors.Errorf("msconvert failed with exit code %d for %s", exitError.ExitCode(), params.RawName)
		}
		return errors.Wrapf(err, "running msconvert for %s", params.RawName)
	}

	if params.Logger != nil {
		params.Logger.Debug("msconvert run",
			slog.String("dataset", params.RawName),
			slog.String("image", params.Image),
			slog.Duration("duration", time.Since(startTime)),
		)
	}

	return nil
}

// FindOutput locates the intermediate file msconvert produced for a
// dataset. msconvert names its output after the input, so that's tried
// first; the sample-id globs cover output renamed by converter filters.
func FindOutput(outDir string, rawName string, sampleID string) (string, error) {
	base := strings.TrimSuffix(rawName, filepath.Ext(rawName))

	direct := filepath.Join(outDir, base+".mzML")
	if matches, _ := filepath.Glob(direct); len(matches) == 1 {
		return matches[0], nil
	}

	for _, pattern := range []string{
		"*SAMPLE_" + sampleID + "*.mzML",
		"*" + sampleID + "*.mzML",
	} {
		matches, err := filepath.Glob(filepath.Join(outDir, pattern))
		if err != nil {
			return "", errors.Wrapf(err, "globbing for %s in %s", pattern, outDir)
		}
		if len(matches) > 0 {
			return matches[0], nil
		}
	}

	return "", errors.Errorf("no intermediate file for sample %s in %s (did msconvert succeed?)", sampleID, outDir)
}

// CommandLine renders the docker invocation for a dry run.
func CommandLine(params ConvertParams) (string, error) {
	abs, err := filepath.Abs(params.DataFolder)
	if err != nil {
		return "", errors.Wrapf(err, "resolving %s", params.DataFolder)
	}

	containerRoot := "/" + filepath.Base(abs)
	args := []string{
		params.Docker,
		"run", "--rm",
		"-e", wineDebugEnv,
		"-v", abs + ":" + containerRoot,
		params.Image,
		"wine", "msconvert",
		path.Join(containerRoot, params.RawName),
		"--mzML",
		"-o", path.Join(containerRoot, params.OutDirName),
	}
	args = append(args, params.ExtraArgs...)
	return shellquote.Join(args...), nil
}

// lineWriter forwards subprocess output to the consumer line by line,
// at debug level (msconvert is chatty).
type lineWriter struct {
	consumer *state.Consumer
	buf      bytes.Buffer
}

func newLineWriter(consumer *state.Consumer) *lineWriter {
	return &lineWriter{consumer: consumer}
}

func (lw *lineWriter) Write(p []byte) (int, error) {
	lw.buf.Write(p)

	for {
		line, err := lw.buf.ReadString('\n')
		if err != nil {
			// partial line, put it back
			lw.buf.WriteString(line)
			break
		}
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			lw.consumer.Debugf("msconvert: %s", line)
		}
	}

	return len(p), nil
}

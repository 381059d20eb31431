package waters

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Dataset is a single Waters .raw entry found in an acquisition folder.
// Waters "files" are actually directories holding the channel data and
// the acquisition metadata (_extern.inf and friends).
type Dataset struct {
	// Path is the absolute or folder-relative path to the .raw entry
	Path string

	// Name is the base name, including the .raw suffix
	Name string

	// IsDir is true for well-formed Waters datasets
	IsDir bool
}

// HasSpaces reports whether the dataset name contains spaces, which the
// docker bind-mount command line does not survive.
func (d Dataset) HasSpaces() bool {
	return strings.ContainsAny(d.Name, " \t")
}

// SampleID returns the idPos'th underscore-separated field of the dataset
// name, with the .raw suffix stripped first.
func (d Dataset) SampleID(idPos int) (string, error) {
	base := strings.TrimSuffix(d.Name, filepath.Ext(d.Name))
	fields := strings.Split(base, "_")
	if idPos < 0 || idPos >= len(fields) {
		return "", errors.Errorf("id position %d out of range: %s has %d underscore-separated fields", idPos, d.Name, len(fields))
	}

	id := fields[idPos]
	if id == "" {
		return "", errors.Errorf("id position %d of %s is empty", idPos, d.Name)
	}
	return id, nil
}

// FindDatasets lists the *.raw entries directly under folder, sorted by name.
func FindDatasets(folder string) ([]Dataset, error) {
	matches, err := filepath.Glob(filepath.Join(folder, "*.raw"))
	if err != nil {
		return nil, errors.Wrapf(err, "listing raw datasets in %s", folder)
	}

	var datasets []Dataset
	for _, match := range matches {
		stat, err := os.Stat(match)
		if err != nil {
			return nil, errors.Wrapf(err, "stat'ing %s", match)
		}

		datasets = append(datasets, Dataset{
			Path:  match,
			Name:  filepath.Base(match),
			IsDir: stat.IsDir(),
		})
	}

	sort.Slice(datasets, func(i, j int) bool {
		return datasets[i].Name < datasets[j].Name
	})

	return datasets, nil
}

// FindInf locates the acquisition metadata file inside a .raw directory.
// _extern.inf is preferred, otherwise the first _*.inf in lexical order.
func FindInf(d Dataset) (string, error) {
	if !d.IsDir {
		return "", errors.Errorf("%s is not a directory: can't look for acquisition metadata inside it", d.Path)
	}

	extern := filepath.Join(d.Path, "_extern.inf")
	if _, err := os.Stat(extern); err == nil {
		return extern, nil
	}

	matches, err := filepath.Glob(filepath.Join(d.Path, "_*.inf"))
	if err != nil {
		return "", errors.Wrapf(err, "listing .inf files in %s", d.Path)
	}
	if len(matches) == 0 {
		return "", errors.Errorf("no _*.inf acquisition metadata found in %s", d.Path)
	}

	sort.Strings(matches)
	return matches[0], nil
}

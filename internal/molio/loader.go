package molio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/23skdu/gridscreen/internal/core"
	gserrors "github.com/23skdu/gridscreen/internal/errors"
	"github.com/23skdu/gridscreen/internal/metrics"
	"github.com/23skdu/gridscreen/internal/molecule"
	"github.com/rs/zerolog"
)

// Set selects which structure format a directory holds.
type Set string

const (
	Proteins Set = "proteins"
	Ligands  Set = "ligands"
)

// Extensions returns the file extensions read for the set.
func (s Set) Extensions() []string {
	switch s {
	case Proteins:
		return []string{".pdb"}
	case Ligands:
		return []string{".sdf", ".mol"}
	}
	return nil
}

// LoadDir reads every structure file of the set in dir in file-name order.
// Files that fail to parse and molecules without atoms are logged and skipped.
// It fails when nothing with at least one atom was loaded.
func LoadDir(logger zerolog.Logger, dir string, set Set) ([]molecule.Molecule, error) {
	exts := set.Extensions()
	if exts == nil {
		return nil, gserrors.NewInputError("load", fmt.Sprintf("unknown molecule set %q", set))
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, gserrors.WrapInputError(err, "load", fmt.Sprintf("read %s directory", set)).
			WithContext("dir", dir)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range exts {
			if ext == want {
				names = append(names, e.Name())
				break
			}
		}
	}
	sort.Strings(names)

	log := logger.With().Str("set", string(set)).Str("dir", dir).Logger()
	var out []molecule.Molecule
	for _, fn := range names {
		path := filepath.Join(dir, fn)
		mols, err := readFile(path, set)
		if err != nil {
			log.Warn().Err(err).Str("file", fn).Msg("Skipping unreadable structure file")
			metrics.FilesSkippedTotal.WithLabelValues(string(set)).Inc()
			continue
		}
		for _, m := range mols {
			if m.Empty() {
				log.Warn().Str("file", fn).Str("molecule", m.Name).Msg("Skipping molecule without atoms")
				continue
			}
			out = append(out, m)
			metrics.MoleculesLoadedTotal.WithLabelValues(string(set)).Inc()
			metrics.AtomsLoadedTotal.WithLabelValues(string(set)).Add(float64(m.Len()))
		}
	}

	if len(out) == 0 {
		return nil, gserrors.WrapInputError(core.ErrEmptyInput, "load", fmt.Sprintf("no %s in %s", set, dir)).
			WithContext("files", len(names))
	}
	log.Info().Int("files", len(names)).Int("molecules", len(out)).Msg("Loaded molecules")
	return out, nil
}

func readFile(path string, set Set) ([]molecule.Molecule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if set == Proteins {
		m, err := ReadPDB(f, stem)
		if err != nil {
			return nil, err
		}
		return []molecule.Molecule{m}, nil
	}
	return ReadSDF(f, stem)
}

package molio

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/23skdu/gridscreen/internal/molecule"
)

// Ligand elements drawn by the generator.
var ligandElements = []string{"C", "N", "O", "H", "S"}

// DatasetConfig describes a synthetic screening dataset.
type DatasetConfig struct {
	ProteinDir    string
	LigandDir     string
	NumProteins   int
	NumLigands    int
	ProteinAtoms  int
	LigandAtoms   int
	ProteinExtent float64 // coordinates uniform in [-extent, extent]
	LigandExtent  float64
	Seed          int64
}

// DefaultDatasetConfig mirrors the reference dataset: 100 proteins of 1000
// atoms in [-100,100] and 100 ligands of 100 atoms in [-50,50].
func DefaultDatasetConfig() DatasetConfig {
	return DatasetConfig{
		ProteinDir:    "data/proteins",
		LigandDir:     "data/ligands",
		NumProteins:   100,
		NumLigands:    100,
		ProteinAtoms:  1000,
		LigandAtoms:   100,
		ProteinExtent: 100,
		LigandExtent:  50,
		Seed:          1,
	}
}

// Validate rejects negative counts and non-positive atom counts.
func (c DatasetConfig) Validate() error {
	if c.NumProteins < 0 || c.NumLigands < 0 {
		return fmt.Errorf("molecule counts must be >= 0")
	}
	if c.ProteinAtoms <= 0 || c.LigandAtoms <= 0 {
		return fmt.Errorf("atoms per molecule must be > 0")
	}
	if c.ProteinDir == "" || c.LigandDir == "" {
		return fmt.Errorf("output directories are required")
	}
	return nil
}

// Generate writes protein_NNN.pdb and ligand_NNN.sdf files. The same seed
// always produces the same files.
func Generate(cfg DatasetConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	if err := os.MkdirAll(cfg.ProteinDir, 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.LigandDir, 0o755); err != nil {
		return err
	}

	for i := 0; i < cfg.NumProteins; i++ {
		name := fmt.Sprintf("protein_%03d", i)
		m := randomMolecule(rng, name, cfg.ProteinAtoms, cfg.ProteinExtent, []string{"C"})
		if err := writeFile(filepath.Join(cfg.ProteinDir, name+".pdb"), func(f *os.File) error {
			return WritePDB(f, m)
		}); err != nil {
			return err
		}
	}
	for i := 0; i < cfg.NumLigands; i++ {
		name := fmt.Sprintf("ligand_%03d", i)
		m := randomMolecule(rng, name, cfg.LigandAtoms, cfg.LigandExtent, ligandElements)
		if err := writeFile(filepath.Join(cfg.LigandDir, name+".sdf"), func(f *os.File) error {
			return WriteSDF(f, m)
		}); err != nil {
			return err
		}
	}
	return nil
}

func randomMolecule(rng *rand.Rand, name string, n int, extent float64, elements []string) molecule.Molecule {
	atoms := make([]molecule.Atom, n)
	for i := range atoms {
		atoms[i] = molecule.Atom{
			X:       (rng.Float64()*2 - 1) * extent,
			Y:       (rng.Float64()*2 - 1) * extent,
			Z:       (rng.Float64()*2 - 1) * extent,
			Element: elements[rng.Intn(len(elements))],
		}
	}
	return molecule.New(name, atoms)
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

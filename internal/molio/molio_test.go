package molio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/23skdu/gridscreen/internal/core"
	gserrors "github.com/23skdu/gridscreen/internal/errors"
	"github.com/23skdu/gridscreen/internal/molecule"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePDB = `HEADER    TEST
ATOM      1  N   ALA A   1      11.104   6.134  -6.504  1.00  0.00           N
ATOM      2  CA  ALA A   1      11.639   6.071  -5.147  1.00  0.00           C
HETATM    3 FE   HEM A   2       1.000   2.000   3.000  1.00  0.00
TER
END
`

const sampleSDF = `first
  test

  2  1  0  0  0  0  0  0  0  0999 V2000
    0.0000    1.0000    2.0000 C   0  0  0  0  0  0  0  0  0  0  0  0
   -1.5000    0.2500    3.0000 O   0  0  0  0  0  0  0  0  0  0  0  0
  1  2  1  0
M  END
$$$$
second
  test

  1  0  0  0  0  0  0  0  0  0999 V2000
    5.0000    5.0000    5.0000 N   0  0  0  0  0  0  0  0  0  0  0  0
M  END
$$$$
`

func TestReadPDB(t *testing.T) {
	m, err := ReadPDB(strings.NewReader(samplePDB), "prot")
	require.NoError(t, err)
	require.Equal(t, 3, m.Len())
	assert.Equal(t, "prot", m.Name)

	a := m.Atoms()
	assert.Equal(t, molecule.Atom{X: 11.104, Y: 6.134, Z: -6.504, Element: "N"}, a[0])
	assert.Equal(t, "C", a[1].Element)
	// no element column: falls back to the atom name
	assert.Equal(t, "FE", a[2].Element)
	assert.Equal(t, 3.0, a[2].Z)
}

func TestReadPDBFirstModelOnly(t *testing.T) {
	src := "MODEL        1\n" +
		"ATOM      1  C   MOL A   1       1.000   1.000   1.000  1.00  0.00           C\n" +
		"ENDMDL\n" +
		"MODEL        2\n" +
		"ATOM      1  C   MOL A   1       9.000   9.000   9.000  1.00  0.00           C\n" +
		"ENDMDL\n"
	m, err := ReadPDB(strings.NewReader(src), "m")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
}

func TestReadPDBErrors(t *testing.T) {
	_, err := ReadPDB(strings.NewReader("ATOM      1  C   MOL A   1       1.000\n"), "short")
	assert.Error(t, err)

	_, err = ReadPDB(strings.NewReader("ATOM      1  C   MOL A   1       abcdefgh   1.000   1.000\n"), "bad")
	assert.Error(t, err)
}

func TestReadSDFMultipleRecords(t *testing.T) {
	mols, err := ReadSDF(strings.NewReader(sampleSDF), "lig")
	require.NoError(t, err)
	require.Len(t, mols, 2)

	assert.Equal(t, "lig", mols[0].Name)
	assert.Equal(t, "lig:2", mols[1].Name)
	assert.Equal(t, []molecule.Atom{
		{X: 0, Y: 1, Z: 2, Element: "C"},
		{X: -1.5, Y: 0.25, Z: 3, Element: "O"},
	}, mols[0].Atoms())
	assert.Equal(t, "N", mols[1].Atoms()[0].Element)
}

func TestReadSDFErrors(t *testing.T) {
	_, err := ReadSDF(strings.NewReader(""), "empty")
	assert.Error(t, err)

	truncated := "t\n\n\n  3  0  0  0  0  0  0  0  0  0999 V2000\n    0.0000    0.0000    0.0000 C\n"
	_, err = ReadSDF(strings.NewReader(truncated), "trunc")
	assert.Error(t, err)

	_, err = ReadSDF(strings.NewReader("t\n\n\nxx\n"), "counts")
	assert.Error(t, err)
}

func TestWriteReadRoundTrip(t *testing.T) {
	m := molecule.New("rt", []molecule.Atom{
		{X: 1.25, Y: -2.5, Z: 3.125, Element: "C"},
		{X: -10, Y: 20, Z: -30, Element: "S"},
	})

	var pdb bytes.Buffer
	require.NoError(t, WritePDB(&pdb, m))
	got, err := ReadPDB(&pdb, "rt")
	require.NoError(t, err)
	assert.Equal(t, m.Atoms(), got.Atoms())

	var sdf bytes.Buffer
	require.NoError(t, WriteSDF(&sdf, m))
	mols, err := ReadSDF(&sdf, "rt")
	require.NoError(t, err)
	require.Len(t, mols, 1)
	assert.Equal(t, m.Atoms(), mols[0].Atoms())
}

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDirSortedAndSkipping(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "b.pdb", samplePDB)
	writeTestFile(t, dir, "a.pdb", "ATOM      1  C   MOL A   1       0.000   0.000   0.000  1.00  0.00           C\n")
	writeTestFile(t, dir, "c.pdb", "ATOM  broken\n")
	writeTestFile(t, dir, "d.pdb", "HEADER only\n")
	writeTestFile(t, dir, "notes.txt", "ignored")

	mols, err := LoadDir(zerolog.Nop(), dir, Proteins)
	require.NoError(t, err)
	require.Len(t, mols, 2)
	assert.Equal(t, "a", mols[0].Name)
	assert.Equal(t, "b", mols[1].Name)
}

func TestLoadDirLigandExtensions(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "x.sdf", sampleSDF)
	writeTestFile(t, dir, "y.MOL", sampleSDF)

	mols, err := LoadDir(zerolog.Nop(), dir, Ligands)
	require.NoError(t, err)
	assert.Len(t, mols, 4)
	assert.Equal(t, "x", mols[0].Name)
	assert.Equal(t, "y:2", mols[3].Name)
}

func TestLoadDirEmpty(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "bad.sdf", "nothing useful\n")

	_, err := LoadDir(zerolog.Nop(), dir, Ligands)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmptyInput)
	kind, ok := gserrors.TypeOf(err)
	require.True(t, ok)
	assert.Equal(t, gserrors.ErrorTypeInput, kind)

	_, err = LoadDir(zerolog.Nop(), filepath.Join(dir, "missing"), Proteins)
	assert.Error(t, err)

	_, err = LoadDir(zerolog.Nop(), dir, Set("other"))
	assert.Error(t, err)
}

func TestGenerateDeterministic(t *testing.T) {
	gen := func(root string) DatasetConfig {
		cfg := DefaultDatasetConfig()
		cfg.ProteinDir = filepath.Join(root, "p")
		cfg.LigandDir = filepath.Join(root, "l")
		cfg.NumProteins, cfg.NumLigands = 2, 3
		cfg.ProteinAtoms, cfg.LigandAtoms = 5, 4
		cfg.Seed = 42
		require.NoError(t, Generate(cfg))
		return cfg
	}
	a := gen(t.TempDir())
	b := gen(t.TempDir())

	pa, err := LoadDir(zerolog.Nop(), a.ProteinDir, Proteins)
	require.NoError(t, err)
	pb, err := LoadDir(zerolog.Nop(), b.ProteinDir, Proteins)
	require.NoError(t, err)
	require.Len(t, pa, 2)
	assert.Equal(t, "protein_000", pa[0].Name)
	assert.Equal(t, pa[1].Atoms(), pb[1].Atoms())

	ligs, err := LoadDir(zerolog.Nop(), a.LigandDir, Ligands)
	require.NoError(t, err)
	require.Len(t, ligs, 3)
	for _, l := range ligs {
		require.Equal(t, 4, l.Len())
		for _, at := range l.Atoms() {
			assert.LessOrEqual(t, at.X, 50.0)
			assert.GreaterOrEqual(t, at.X, -50.0)
			assert.Contains(t, ligandElements, at.Element)
		}
	}
}

func TestGenerateValidate(t *testing.T) {
	cfg := DefaultDatasetConfig()
	cfg.LigandAtoms = 0
	assert.Error(t, Generate(cfg))
}

package molecule

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMolecules() []Molecule {
	return []Molecule{
		New("a", []Atom{{X: 1, Y: 2, Z: 3, Element: "C"}, {X: 4, Y: 5, Z: 6, Element: "N"}}),
		New("empty", nil),
		New("b", []Atom{{X: -1, Y: -2, Z: -3, Element: "O"}}),
	}
}

func TestNewCopiesAtoms(t *testing.T) {
	atoms := []Atom{{X: 1}}
	m := New("m", atoms)
	atoms[0].X = 99
	assert.Equal(t, 1.0, m.Atoms()[0].X)
	assert.Equal(t, 1, m.Len())
	assert.False(t, m.Empty())
	assert.True(t, New("e", nil).Empty())
}

func TestStoreDimensions(t *testing.T) {
	s := NewStore(sampleMolecules(), sampleMolecules()[:2])
	assert.Equal(t, 3, s.NumProteins())
	assert.Equal(t, 2, s.NumLigands())
	assert.Equal(t, 6, s.Total())
	assert.Equal(t, "b", s.Protein(2).Name)
	assert.Equal(t, "empty", s.Ligand(1).Name)
}

func TestFlatten(t *testing.T) {
	f := Flatten(sampleMolecules())
	require.NoError(t, f.Validate())

	assert.Equal(t, []int32{2, 0, 1}, f.Counts)
	assert.Equal(t, []int32{0, 2, 2}, f.Offsets)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, -1, -2, -3}, f.Coords)
	assert.Equal(t, 3, f.NumAtoms())
	assert.Equal(t, []float64{-1, -2, -3}, f.Atoms(2))
	assert.Empty(t, f.Atoms(1))
}

func TestFlattenEmptyCollection(t *testing.T) {
	f := Flatten(nil)
	require.NoError(t, f.Validate())
	assert.Equal(t, 0, f.Len())
	assert.Equal(t, 0, f.NumAtoms())
}

func TestFlatValidateDetectsCorruption(t *testing.T) {
	f := Flatten(sampleMolecules())
	f.Offsets[2] = 1
	assert.Error(t, f.Validate())

	f = Flatten(sampleMolecules())
	f.Coords = f.Coords[:len(f.Coords)-1]
	assert.Error(t, f.Validate())

	f = Flatten(sampleMolecules())
	f.Counts = f.Counts[:2]
	assert.Error(t, f.Validate())
}

func TestFlatRecordRoundTrip(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	f := Flatten(sampleMolecules())
	rec := f.Record(mem)
	assert.Equal(t, int64(3), rec.NumRows())

	got, err := FlatFromRecord(rec)
	rec.Release()
	require.NoError(t, err)
	require.NoError(t, got.Validate())
	assert.Equal(t, f, got)
}

func TestFlatAppend(t *testing.T) {
	mols := sampleMolecules()
	whole := Flatten(mols)

	f := Flatten(mols[:1])
	f.Append(Flatten(mols[1:]))
	require.NoError(t, f.Validate())
	assert.Equal(t, whole, f)
}

func TestStoreFromFlat(t *testing.T) {
	orig := NewStore(sampleMolecules(), sampleMolecules())
	fp, fl := orig.Flat()

	s := NewStoreFromFlat(fp, fl)
	require.Equal(t, orig.NumProteins(), s.NumProteins())
	require.Equal(t, orig.NumLigands(), s.NumLigands())
	for i := 0; i < s.NumProteins(); i++ {
		assert.Equal(t, orig.Protein(i).Len(), s.Protein(i).Len())
		for a, atom := range s.Protein(i).Atoms() {
			want := orig.Protein(i).Atoms()[a]
			assert.Equal(t, [3]float64{want.X, want.Y, want.Z}, [3]float64{atom.X, atom.Y, atom.Z})
		}
	}

	gp, gl := s.Flat()
	assert.Same(t, fp, gp)
	assert.Same(t, fl, gl)
}

func TestFlatChunks(t *testing.T) {
	f := Flatten(sampleMolecules())

	assert.Equal(t, []*Flat{f}, f.Chunks(0))
	assert.Len(t, f.Chunks(3), 1)

	chunks := f.Chunks(1)
	require.Len(t, chunks, 2)
	assert.Equal(t, []int32{2}, chunks[0].Counts)
	assert.Equal(t, []int32{0, 1}, chunks[1].Counts)
	assert.Equal(t, []int32{0, 0}, chunks[1].Offsets)

	joined := &Flat{}
	for _, c := range chunks {
		require.NoError(t, c.Validate())
		joined.Append(c)
	}
	assert.Equal(t, f.Counts, joined.Counts)
	assert.Equal(t, f.Offsets, joined.Offsets)
	assert.Equal(t, f.Coords, joined.Coords)
}

func TestFlatSliceEmpty(t *testing.T) {
	s := Flatten(sampleMolecules()).Slice(1, 1)
	assert.Zero(t, s.Len())
	assert.NoError(t, s.Validate())
}

package molecule

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Flat is a molecule collection laid out as three parallel arrays. Atom a of
// molecule i starts at Coords[3*(Offsets[i]+a)].
type Flat struct {
	Counts  []int32
	Offsets []int32
	Coords  []float64
}

// Flatten lays molecules out contiguously, preserving molecule order so the
// tables line up with canonical grid indices.
func Flatten(mols []Molecule) *Flat {
	f := &Flat{
		Counts:  make([]int32, len(mols)),
		Offsets: make([]int32, len(mols)),
	}
	var total int32
	for i, m := range mols {
		f.Counts[i] = int32(m.Len())
		f.Offsets[i] = total
		total += int32(m.Len())
	}
	f.Coords = make([]float64, 0, 3*int(total))
	for _, m := range mols {
		for _, a := range m.atoms {
			f.Coords = append(f.Coords, a.X, a.Y, a.Z)
		}
	}
	return f
}

// Len is the number of molecules.
func (f *Flat) Len() int { return len(f.Counts) }

// NumAtoms is the sum of all counts.
func (f *Flat) NumAtoms() int { return len(f.Coords) / 3 }

// Atoms returns the coordinate slice of molecule i, 3 values per atom.
func (f *Flat) Atoms(i int) []float64 {
	start := 3 * int(f.Offsets[i])
	return f.Coords[start : start+3*int(f.Counts[i])]
}

// SizeBytes is the host footprint of the three arrays.
func (f *Flat) SizeBytes() int {
	return 4*len(f.Counts) + 4*len(f.Offsets) + 8*len(f.Coords)
}

// Validate checks the offset/count/coordinate invariants.
func (f *Flat) Validate() error {
	if len(f.Counts) != len(f.Offsets) {
		return fmt.Errorf("flat: %d counts but %d offsets", len(f.Counts), len(f.Offsets))
	}
	var sum int32
	for i, c := range f.Counts {
		if c < 0 {
			return fmt.Errorf("flat: negative count %d at molecule %d", c, i)
		}
		if f.Offsets[i] != sum {
			return fmt.Errorf("flat: offset[%d]=%d, want %d", i, f.Offsets[i], sum)
		}
		sum += c
	}
	if len(f.Coords) != 3*int(sum) {
		return fmt.Errorf("flat: %d coordinates for %d atoms", len(f.Coords), sum)
	}
	return nil
}

// Molecules rebuilds molecules from the flattened arrays. Element labels are
// not part of the flat layout and come back empty.
func (f *Flat) Molecules() []Molecule {
	mols := make([]Molecule, f.Len())
	for i := range mols {
		xyz := f.Atoms(i)
		atoms := make([]Atom, len(xyz)/3)
		for a := range atoms {
			atoms[a] = Atom{X: xyz[3*a], Y: xyz[3*a+1], Z: xyz[3*a+2]}
		}
		mols[i] = Molecule{atoms: atoms}
	}
	return mols
}

// FlatSchema is the Arrow layout of a flattened collection: one row per
// molecule, its atom count and a list of xyz triples. The list offsets are the
// atom offsets scaled by three.
var FlatSchema = arrow.NewSchema(
	[]arrow.Field{
		{Name: "count", Type: arrow.PrimitiveTypes.Int32},
		{Name: "coords", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
	},
	nil,
)

// Record encodes the arrays as an Arrow record. The caller owns the result
// and must Release it.
func (f *Flat) Record(mem memory.Allocator) arrow.Record {
	b := array.NewRecordBuilder(mem, FlatSchema)
	defer b.Release()

	b.Field(0).(*array.Int32Builder).AppendValues(f.Counts, nil)

	lb := b.Field(1).(*array.ListBuilder)
	vb := lb.ValueBuilder().(*array.Float64Builder)
	vb.Reserve(len(f.Coords))
	for i := 0; i < f.Len(); i++ {
		lb.Append(true)
		vb.AppendValues(f.Atoms(i), nil)
	}
	return b.NewRecord()
}

// FlatFromRecord decodes a record produced by Record. The returned arrays are
// copies, so the record can be released immediately afterwards.
func FlatFromRecord(rec arrow.Record) (*Flat, error) {
	if !rec.Schema().Equal(FlatSchema) {
		return nil, fmt.Errorf("flat: unexpected schema %s", rec.Schema())
	}
	counts, ok := rec.Column(0).(*array.Int32)
	if !ok {
		return nil, fmt.Errorf("flat: count column is %T", rec.Column(0))
	}
	list, ok := rec.Column(1).(*array.List)
	if !ok {
		return nil, fmt.Errorf("flat: coords column is %T", rec.Column(1))
	}
	values, ok := list.ListValues().(*array.Float64)
	if !ok {
		return nil, fmt.Errorf("flat: coords values are %T", list.ListValues())
	}

	n := int(rec.NumRows())
	f := &Flat{
		Counts:  make([]int32, n),
		Offsets: make([]int32, n),
	}
	var total int32
	for i := 0; i < n; i++ {
		start, end := list.ValueOffsets(i)
		c := counts.Value(i)
		if end-start != 3*int64(c) {
			return nil, fmt.Errorf("flat: molecule %d has %d coordinates for %d atoms", i, end-start, c)
		}
		f.Counts[i] = c
		f.Offsets[i] = total
		total += c
	}
	f.Coords = make([]float64, 0, 3*int(total))
	raw := values.Float64Values()
	for i := 0; i < n; i++ {
		start, end := list.ValueOffsets(i)
		f.Coords = append(f.Coords, raw[start:end]...)
	}
	return f, nil
}

// Append merges record batches of the same collection in order, for streams
// that chunk a large collection across several records.
func (f *Flat) Append(other *Flat) {
	base := int32(f.NumAtoms())
	for i, c := range other.Counts {
		f.Counts = append(f.Counts, c)
		f.Offsets = append(f.Offsets, base+other.Offsets[i])
	}
	f.Coords = append(f.Coords, other.Coords...)
}

// Slice returns molecules [i, j) as a Flat of its own, offsets rebased to 0.
func (f *Flat) Slice(i, j int) *Flat {
	out := &Flat{
		Counts:  append([]int32(nil), f.Counts[i:j]...),
		Offsets: make([]int32, j-i),
	}
	if i == j {
		return out
	}
	base := f.Offsets[i]
	for k := range out.Offsets {
		out.Offsets[k] = f.Offsets[i+k] - base
	}
	end := int(f.Offsets[j-1] + f.Counts[j-1])
	out.Coords = f.Coords[3*int(base) : 3*end]
	return out
}

// Chunks splits f into consecutive pieces of at most maxAtoms atoms each. A
// molecule larger than maxAtoms gets a piece of its own. There is always at
// least one piece.
func (f *Flat) Chunks(maxAtoms int) []*Flat {
	if maxAtoms <= 0 || f.NumAtoms() <= maxAtoms {
		return []*Flat{f}
	}
	var out []*Flat
	start, atoms := 0, 0
	for i, c := range f.Counts {
		if i > start && atoms+int(c) > maxAtoms {
			out = append(out, f.Slice(start, i))
			start, atoms = i, 0
		}
		atoms += int(c)
	}
	return append(out, f.Slice(start, f.Len()))
}

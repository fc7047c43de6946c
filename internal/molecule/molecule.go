package molecule

import "sync"

// Atom is one atom position with its element label.
type Atom struct {
	X, Y, Z float64
	Element string
}

// Molecule is an ordered, read-only sequence of atoms.
type Molecule struct {
	Name  string
	atoms []Atom
}

// New copies atoms into a new molecule so later changes to the caller's slice
// cannot reach the store.
func New(name string, atoms []Atom) Molecule {
	cp := make([]Atom, len(atoms))
	copy(cp, atoms)
	return Molecule{Name: name, atoms: cp}
}

// Atoms returns the atoms in insertion order. Callers must not modify it.
func (m Molecule) Atoms() []Atom { return m.atoms }

// Len returns the atom count.
func (m Molecule) Len() int { return len(m.atoms) }

// Empty reports whether the molecule has no atoms.
func (m Molecule) Empty() bool { return len(m.atoms) == 0 }

// Store is the proteins/ligands pair of a run. It is built once and shared
// read-only by every worker, so it carries no locks on the molecule data.
type Store struct {
	proteins []Molecule
	ligands  []Molecule

	flatOnce     sync.Once
	flatProteins *Flat
	flatLigands  *Flat
}

// NewStore builds a store. The slices are copied.
func NewStore(proteins, ligands []Molecule) *Store {
	p := make([]Molecule, len(proteins))
	copy(p, proteins)
	l := make([]Molecule, len(ligands))
	copy(l, ligands)
	return &Store{proteins: p, ligands: l}
}

// NewStoreFromFlat rebuilds a store from flattened arrays, which is how ranks
// that did not read the structure files obtain their molecules.
func NewStoreFromFlat(proteins, ligands *Flat) *Store {
	s := &Store{
		proteins: proteins.Molecules(),
		ligands:  ligands.Molecules(),
	}
	s.flatOnce.Do(func() {
		s.flatProteins = proteins
		s.flatLigands = ligands
	})
	return s
}

func (s *Store) NumProteins() int { return len(s.proteins) }
func (s *Store) NumLigands() int  { return len(s.ligands) }

// Total is the number of grid cells, NumProteins*NumLigands.
func (s *Store) Total() int { return len(s.proteins) * len(s.ligands) }

func (s *Store) Protein(i int) Molecule { return s.proteins[i] }
func (s *Store) Ligand(j int) Molecule  { return s.ligands[j] }

// Proteins returns the protein set. Callers must not modify it.
func (s *Store) Proteins() []Molecule { return s.proteins }

// Ligands returns the ligand set. Callers must not modify it.
func (s *Store) Ligands() []Molecule { return s.ligands }

// Flat returns the flattened protein and ligand arrays, computing them once.
func (s *Store) Flat() (proteins, ligands *Flat) {
	s.flatOnce.Do(func() {
		s.flatProteins = Flatten(s.proteins)
		s.flatLigands = Flatten(s.ligands)
	})
	return s.flatProteins, s.flatLigands
}

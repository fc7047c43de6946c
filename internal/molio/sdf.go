package molio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/23skdu/gridscreen/internal/molecule"
)

const sdfDelimiter = "$$$$"

// ReadSDF parses every V2000 record in r. A file with one record yields a
// molecule named name; further records are named name:2, name:3, ...
func ReadSDF(r io.Reader, name string) ([]molecule.Molecule, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)

	var (
		out    []molecule.Molecule
		record []string
		first  = 1
		line   int
	)
	flush := func() error {
		if len(strings.TrimSpace(strings.Join(record, ""))) == 0 {
			record = record[:0]
			return nil
		}
		n := len(out)
		molName := name
		if n > 0 {
			molName = fmt.Sprintf("%s:%d", name, n+1)
		}
		m, err := parseMolBlock(record, molName)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", name, first, err)
		}
		out = append(out, m)
		record = record[:0]
		return nil
	}

	for sc.Scan() {
		line++
		text := sc.Text()
		if strings.TrimSpace(text) == sdfDelimiter {
			if err := flush(); err != nil {
				return nil, err
			}
			first = line + 1
			continue
		}
		record = append(record, text)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: no molecule records", name)
	}
	return out, nil
}

// parseMolBlock reads the header, counts line and atom block of one record.
func parseMolBlock(lines []string, name string) (molecule.Molecule, error) {
	if len(lines) < 4 {
		return molecule.Molecule{}, fmt.Errorf("record has %d lines, want at least 4", len(lines))
	}
	counts := lines[3]
	natoms, err := strconv.Atoi(strings.TrimSpace(field(counts, 0, 3)))
	if err != nil {
		return molecule.Molecule{}, fmt.Errorf("counts line: %w", err)
	}
	if natoms < 0 || len(lines) < 4+natoms {
		return molecule.Molecule{}, fmt.Errorf("counts line declares %d atoms, record has %d atom lines", natoms, len(lines)-4)
	}

	atoms := make([]molecule.Atom, 0, natoms)
	for i, text := range lines[4 : 4+natoms] {
		if len(text) < 30 {
			return molecule.Molecule{}, fmt.Errorf("atom %d: line too short", i+1)
		}
		x, err := parseCoord(text[0:10])
		if err != nil {
			return molecule.Molecule{}, fmt.Errorf("atom %d x: %w", i+1, err)
		}
		y, err := parseCoord(text[10:20])
		if err != nil {
			return molecule.Molecule{}, fmt.Errorf("atom %d y: %w", i+1, err)
		}
		z, err := parseCoord(text[20:30])
		if err != nil {
			return molecule.Molecule{}, fmt.Errorf("atom %d z: %w", i+1, err)
		}
		var el string
		if f := strings.Fields(text[30:]); len(f) > 0 {
			el = f[0]
		}
		atoms = append(atoms, molecule.Atom{X: x, Y: y, Z: z, Element: el})
	}
	return molecule.New(name, atoms), nil
}

// WriteSDF writes mols as V2000 records, each terminated by $$$$.
func WriteSDF(w io.Writer, mols ...molecule.Molecule) error {
	bw := bufio.NewWriter(w)
	for _, m := range mols {
		fmt.Fprintf(bw, "%s\n  gridscreen\n\n", m.Name)
		fmt.Fprintf(bw, "%3d%3d  0  0  0  0  0  0  0  0999 V2000\n", m.Len(), 0)
		for _, a := range m.Atoms() {
			fmt.Fprintf(bw, "%10.4f%10.4f%10.4f %-3s 0  0  0  0  0  0  0  0  0  0  0  0\n", a.X, a.Y, a.Z, a.Element)
		}
		fmt.Fprintf(bw, "M  END\n%s\n", sdfDelimiter)
	}
	return bw.Flush()
}

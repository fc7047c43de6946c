package molio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/23skdu/gridscreen/internal/molecule"
)

// ReadPDB parses ATOM and HETATM records of the first model in r.
func ReadPDB(r io.Reader, name string) (molecule.Molecule, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)

	var atoms []molecule.Atom
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		rec := strings.TrimSpace(field(text, 0, 6))
		if rec == "ENDMDL" {
			break
		}
		if rec != "ATOM" && rec != "HETATM" {
			continue
		}
		if len(text) < 54 {
			return molecule.Molecule{}, fmt.Errorf("%s:%d: %s record too short for coordinates", name, line, rec)
		}
		x, err := parseCoord(text[30:38])
		if err != nil {
			return molecule.Molecule{}, fmt.Errorf("%s:%d: x: %w", name, line, err)
		}
		y, err := parseCoord(text[38:46])
		if err != nil {
			return molecule.Molecule{}, fmt.Errorf("%s:%d: y: %w", name, line, err)
		}
		z, err := parseCoord(text[46:54])
		if err != nil {
			return molecule.Molecule{}, fmt.Errorf("%s:%d: z: %w", name, line, err)
		}
		atoms = append(atoms, molecule.Atom{X: x, Y: y, Z: z, Element: pdbElement(text)})
	}
	if err := sc.Err(); err != nil {
		return molecule.Molecule{}, fmt.Errorf("%s: %w", name, err)
	}
	return molecule.New(name, atoms), nil
}

// pdbElement reads columns 77-78, falling back to the letters of the atom name.
func pdbElement(text string) string {
	if el := strings.TrimSpace(field(text, 76, 78)); el != "" {
		return el
	}
	return strings.TrimFunc(field(text, 12, 16), func(r rune) bool {
		return r == ' ' || (r >= '0' && r <= '9')
	})
}

// WritePDB writes m as ATOM records followed by END.
func WritePDB(w io.Writer, m molecule.Molecule) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "HEADER    %-40s\n", "GENERATED PROTEIN")
	fmt.Fprintf(bw, "TITLE     %s\n", m.Name)
	for i, a := range m.Atoms() {
		fmt.Fprintf(bw, "ATOM  %5d  %-3s MOL A%4d    %8.3f%8.3f%8.3f%6.2f%6.2f          %2s\n",
			i+1, a.Element, 1, a.X, a.Y, a.Z, 1.0, 0.0, a.Element)
	}
	fmt.Fprint(bw, "TER\nEND\n")
	return bw.Flush()
}

func parseCoord(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// field returns text[start:end] clipped to the line length.
func field(text string, start, end int) string {
	if start >= len(text) {
		return ""
	}
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}

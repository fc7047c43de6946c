// Package report renders the human-readable result of a screening run.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/23skdu/gridscreen/internal/core"
	"github.com/23skdu/gridscreen/internal/molecule"
	"github.com/23skdu/gridscreen/internal/ranking"
)

// Options control what Write prints.
type Options struct {
	Backend core.Backend
	TopK    int
	Elapsed time.Duration
	// Verbose adds grid statistics.
	Verbose bool
}

// Write prints the best pair and the top-K ranking of grid. Molecule names
// come from store when it has them. An empty grid prints "no results".
func Write(w io.Writer, grid *core.Grid, store *molecule.Store, opts Options) error {
	if grid.Partial() {
		return core.ErrPartialGrid
	}
	names := newNamer(store)

	fmt.Fprintf(w, "Backend: %s\n", opts.Backend)
	fmt.Fprintf(w, "Grid: %d proteins x %d ligands (%d pairs)\n", grid.NumProteins, grid.NumLigands, grid.Total())
	if opts.Elapsed > 0 {
		fmt.Fprintf(w, "Elapsed: %s\n", opts.Elapsed.Round(time.Microsecond))
	}

	best, ok := ranking.Best(grid)
	if !ok {
		_, err := fmt.Fprintln(w, "no results")
		return err
	}
	fmt.Fprintf(w, "Best pair: %s + %s score=%.6g\n", names.protein(best.Protein), names.ligand(best.Ligand), best.Score)

	if opts.Verbose {
		if s, ok := ranking.Summarize(grid); ok {
			fmt.Fprintf(w, "Scores: min=%.6g max=%.6g mean=%.6g\n", s.Min, s.Max, s.Mean)
		}
	}

	top := ranking.TopK(ranking.Rank(grid), opts.TopK)
	fmt.Fprintf(w, "Top %d:\n", len(top))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPROTEIN\tLIGAND\tSCORE")
	for i, r := range top {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.6g\n", i+1, names.protein(r.Protein), names.ligand(r.Ligand), r.Score)
	}
	return tw.Flush()
}

type namer struct {
	store *molecule.Store
}

func newNamer(store *molecule.Store) namer { return namer{store: store} }

func (n namer) protein(i int) string {
	if n.store != nil && i < n.store.NumProteins() {
		if name := n.store.Protein(i).Name; name != "" {
			return name
		}
	}
	return fmt.Sprintf("protein[%d]", i)
}

func (n namer) ligand(i int) string {
	if n.store != nil && i < n.store.NumLigands() {
		if name := n.store.Ligand(i).Name; name != "" {
			return name
		}
	}
	return fmt.Sprintf("ligand[%d]", i)
}

// Names returns the protein and ligand names of store in index order.
func Names(store *molecule.Store) (proteins, ligands []string) {
	n := newNamer(store)
	proteins = make([]string, store.NumProteins())
	for i := range proteins {
		proteins[i] = n.protein(i)
	}
	ligands = make([]string, store.NumLigands())
	for i := range ligands {
		ligands[i] = n.ligand(i)
	}
	return proteins, ligands
}

package executor

import (
	"github.com/23skdu/gridscreen/internal/device"
	"github.com/23skdu/gridscreen/internal/molecule"
	"github.com/23skdu/gridscreen/internal/partition"
	"github.com/23skdu/gridscreen/internal/potential"
)

// ScoreKernel returns the device kernel for cells [start, start+len(out)).
// Lane k scores canonical index start+k into out[k]; it reads only device
// views and writes only its own slot.
func ScoreKernel(proteins, ligands *molecule.Flat, numLigands, start int, out []float64) device.Kernel {
	return func(lane int) {
		p, l := partition.Cell(start+lane, numLigands)
		out[lane] = potential.ScoreFlat(proteins, ligands, p, l)
	}
}

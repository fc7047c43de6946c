package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MoleculesLoadedTotal counts molecules produced by the structure readers
	MoleculesLoadedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridscreen_molecules_loaded_total",
			Help: "Total number of molecules loaded from structure files",
		},
		[]string{"set"}, // "proteins" | "ligands"
	)

	// FilesSkippedTotal counts structure files that failed to parse
	FilesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridscreen_files_skipped_total",
			Help: "Total number of structure files skipped after a parse failure",
		},
		[]string{"set"},
	)

	// AtomsLoadedTotal counts atoms across all loaded molecules
	AtomsLoadedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridscreen_atoms_loaded_total",
			Help: "Total number of atoms loaded from structure files",
		},
		[]string{"set"},
	)
)

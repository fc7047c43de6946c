package main

import (
	"github.com/23skdu/gridscreen/internal/molio"
	"github.com/spf13/cobra"
)

func newGendataCommand(a *app) *cobra.Command {
	ds := molio.DefaultDatasetConfig()
	cmd := &cobra.Command{
		Use:   "gendata",
		Short: "Write a random protein/ligand dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := molio.Generate(ds); err != nil {
				return err
			}
			a.logger.Info().
				Str("proteins", ds.ProteinDir).
				Str("ligands", ds.LigandDir).
				Int("num_proteins", ds.NumProteins).
				Int("num_ligands", ds.NumLigands).
				Msg("Dataset written")
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&ds.ProteinDir, "protein-dir", ds.ProteinDir, "output directory for proteins")
	f.StringVar(&ds.LigandDir, "ligand-dir", ds.LigandDir, "output directory for ligands")
	f.IntVar(&ds.NumProteins, "num-proteins", ds.NumProteins, "number of proteins")
	f.IntVar(&ds.NumLigands, "num-ligands", ds.NumLigands, "number of ligands")
	f.IntVar(&ds.ProteinAtoms, "num-atoms-protein", ds.ProteinAtoms, "atoms per protein")
	f.IntVar(&ds.LigandAtoms, "num-atoms-ligand", ds.LigandAtoms, "atoms per ligand")
	f.Int64Var(&ds.Seed, "seed", ds.Seed, "random seed")
	return cmd
}

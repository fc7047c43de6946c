// Package molio reads and writes the structure files a screening run consumes:
// PDB for proteins and SDF/MOL V2000 for ligands.
package molio

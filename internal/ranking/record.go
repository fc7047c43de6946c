package ranking

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Schema is the Arrow layout of a ranked result list. Names are empty when
// the caller did not supply them.
var Schema = arrow.NewSchema(
	[]arrow.Field{
		{Name: "rank", Type: arrow.PrimitiveTypes.Int32},
		{Name: "protein", Type: arrow.PrimitiveTypes.Int32},
		{Name: "ligand", Type: arrow.PrimitiveTypes.Int32},
		{Name: "protein_name", Type: arrow.BinaryTypes.String},
		{Name: "ligand_name", Type: arrow.BinaryTypes.String},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64},
	},
	nil,
)

// Record encodes results in order with 1-based ranks. The caller owns the
// record and must Release it.
func Record(mem memory.Allocator, results []Result, proteinNames, ligandNames []string) arrow.Record {
	b := array.NewRecordBuilder(mem, Schema)
	defer b.Release()

	rank := b.Field(0).(*array.Int32Builder)
	prot := b.Field(1).(*array.Int32Builder)
	lig := b.Field(2).(*array.Int32Builder)
	pname := b.Field(3).(*array.StringBuilder)
	lname := b.Field(4).(*array.StringBuilder)
	score := b.Field(5).(*array.Float64Builder)
	b.Reserve(len(results))

	for i, r := range results {
		rank.Append(int32(i + 1))
		prot.Append(int32(r.Protein))
		lig.Append(int32(r.Ligand))
		pname.Append(nameAt(proteinNames, r.Protein))
		lname.Append(nameAt(ligandNames, r.Ligand))
		score.Append(r.Score)
	}
	return b.NewRecord()
}

func nameAt(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return ""
}

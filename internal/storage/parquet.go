// Package storage exports ranked screening results to Parquet and reads them
// back as Arrow records.
package storage

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/23skdu/gridscreen/internal/metrics"
	"github.com/23skdu/gridscreen/internal/ranking"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/parquet-go/parquet-go"
)

// ScoreRecord is one Parquet row of a ranked result list.
type ScoreRecord struct {
	Rank        int32   `parquet:"rank"`
	Protein     int32   `parquet:"protein"`
	Ligand      int32   `parquet:"ligand"`
	ProteinName string  `parquet:"protein_name"`
	LigandName  string  `parquet:"ligand_name"`
	Score       float64 `parquet:"score"`
}

// writeParquet writes ranking records to w as a single Zstd-compressed
// Parquet file.
func writeParquet(w io.Writer, records ...arrow.Record) error {
	pw := parquet.NewGenericWriter[ScoreRecord](w, parquet.Compression(&parquet.Zstd))
	defer func() {
		// Best effort close on early return
		_ = pw.Close()
	}()

	for _, rec := range records {
		if !rec.Schema().Equal(ranking.Schema) {
			return fmt.Errorf("unexpected schema %s", rec.Schema())
		}
		rows := int(rec.NumRows())
		if rows == 0 {
			continue
		}
		rank := rec.Column(0).(*array.Int32)
		prot := rec.Column(1).(*array.Int32)
		lig := rec.Column(2).(*array.Int32)
		pname := rec.Column(3).(*array.String)
		lname := rec.Column(4).(*array.String)
		score := rec.Column(5).(*array.Float64)

		out := make([]ScoreRecord, rows)
		for i := range out {
			out[i] = ScoreRecord{
				Rank:        rank.Value(i),
				Protein:     prot.Value(i),
				Ligand:      lig.Value(i),
				ProteinName: pname.Value(i),
				LigandName:  lname.Value(i),
				Score:       score.Value(i),
			}
		}
		if _, err := pw.Write(out); err != nil {
			return err
		}
	}
	return pw.Close()
}

// readParquet reads a results file back into one record with ranking.Schema.
func readParquet(f *os.File, size int64, mem memory.Allocator) (arrow.Record, error) {
	pf, err := parquet.OpenFile(f, size)
	if err != nil {
		return nil, err
	}

	pr := parquet.NewGenericReader[ScoreRecord](pf)
	defer pr.Close()
	rows := make([]ScoreRecord, pr.NumRows())
	n, err := pr.Read(rows)
	if err != nil && err != io.EOF {
		return nil, err
	}
	rows = rows[:n]

	b := array.NewRecordBuilder(mem, ranking.Schema)
	defer b.Release()
	rank := b.Field(0).(*array.Int32Builder)
	prot := b.Field(1).(*array.Int32Builder)
	lig := b.Field(2).(*array.Int32Builder)
	pname := b.Field(3).(*array.StringBuilder)
	lname := b.Field(4).(*array.StringBuilder)
	score := b.Field(5).(*array.Float64Builder)
	for _, row := range rows {
		rank.Append(row.Rank)
		prot.Append(row.Protein)
		lig.Append(row.Ligand)
		pname.Append(row.ProteinName)
		lname.Append(row.LigandName)
		score.Append(row.Score)
	}
	return b.NewRecord(), nil
}

// ExportResults writes ranked results to a Parquet file at path.
func ExportResults(path string, records ...arrow.Record) error {
	start := time.Now()
	f, err := os.Create(path)
	if err != nil {
		return NewExportError("create", path, err)
	}
	if err := writeParquet(f, records...); err != nil {
		f.Close()
		return NewExportError("write", path, err)
	}
	if err := f.Close(); err != nil {
		return NewExportError("close", path, err)
	}

	metrics.ExportDurationSeconds.Observe(time.Since(start).Seconds())
	if fi, err := os.Stat(path); err == nil {
		metrics.ExportSizeBytes.Observe(float64(fi.Size()))
	}
	var rows int64
	for _, rec := range records {
		rows += rec.NumRows()
	}
	metrics.ExportRowsTotal.Add(float64(rows))
	return nil
}

// ImportResults reads a file written by ExportResults. The caller must
// Release the record.
func ImportResults(path string, mem memory.Allocator) (arrow.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewExportError("open", path, err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, NewExportError("stat", path, err)
	}
	rec, err := readParquet(f, fi.Size(), mem)
	if err != nil {
		return nil, NewExportError("read", path, err)
	}
	return rec, nil
}

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/23skdu/gridscreen/internal/core"
	"github.com/23skdu/gridscreen/internal/ranking"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportResults(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	grid, err := core.WrapGrid(2, 3, []float64{0.5, -1, 2, -3, 4, -3})
	require.NoError(t, err)
	results := ranking.Rank(grid)
	rec := ranking.Record(mem, results, []string{"p0", "p1"}, []string{"l0", "l1", "l2"})
	defer rec.Release()

	path := filepath.Join(t.TempDir(), "scores.parquet")
	require.NoError(t, ExportResults(path, rec))

	back, err := ImportResults(path, mem)
	require.NoError(t, err)
	defer back.Release()

	require.Equal(t, int64(6), back.NumRows())
	assert.True(t, back.Schema().Equal(ranking.Schema))
	assert.Equal(t, []int32{1, 2, 3, 4, 5, 6}, back.Column(0).(*array.Int32).Int32Values())
	assert.Equal(t, []int32{1, 1, 0, 0, 0, 1}, back.Column(1).(*array.Int32).Int32Values())
	assert.Equal(t, []int32{0, 2, 1, 0, 2, 1}, back.Column(2).(*array.Int32).Int32Values())
	assert.Equal(t, "p1", back.Column(3).(*array.String).Value(0))
	assert.Equal(t, "l2", back.Column(4).(*array.String).Value(1))
	assert.Equal(t, []float64{-3, -3, -1, 0.5, 2, 4}, back.Column(5).(*array.Float64).Float64Values())
}

func TestExportEmpty(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := ranking.Record(mem, nil, nil, nil)
	defer rec.Release()
	path := filepath.Join(t.TempDir(), "empty.parquet")
	require.NoError(t, ExportResults(path, rec))

	back, err := ImportResults(path, mem)
	require.NoError(t, err)
	defer back.Release()
	assert.Zero(t, back.NumRows())
}

func TestImportErrors(t *testing.T) {
	_, err := ImportResults(filepath.Join(t.TempDir(), "missing.parquet"), memory.DefaultAllocator)
	var exportErr *ExportError
	require.True(t, errors.As(err, &exportErr))
	assert.Equal(t, "open", exportErr.Op)
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.parquet")
	require.NoError(t, os.WriteFile(bad, []byte("not parquet"), 0o644))
	_, err = ImportResults(bad, memory.DefaultAllocator)
	assert.Error(t, err)
}

func TestExportCreateError(t *testing.T) {
	err := ExportResults(filepath.Join(t.TempDir(), "no", "such", "dir.parquet"))
	var exportErr *ExportError
	require.True(t, errors.As(err, &exportErr))
	assert.Equal(t, "create", exportErr.Op)
}

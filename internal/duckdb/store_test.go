package duckdb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/bcfscan/internal/bcf"
	"github.com/inodb/bcfscan/internal/extract"
	"github.com/inodb/bcfscan/internal/testutil"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func standardRows(t *testing.T, sel extract.Selection) (string, []string, []*extract.Row) {
	t.Helper()
	path := testutil.Standard().WriteTemp(t, testutil.BGZF)
	r, err := bcf.Open(path)
	require.NoError(t, err)
	defer r.Close()

	ex := extract.NewExtractor(r.Header(), sel)
	var rows []*extract.Row
	_, err = ex.ExtractAll(r, extract.Options{Workers: 2, MaxInvalid: -1}, func(row *extract.Row) error {
		rows = append(rows, row)
		return nil
	})
	require.NoError(t, err)
	return path, r.Header().Samples(), rows
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
	assert.Empty(t, s.Path())
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "variants.duckdb")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}

func TestWriteRowsAndLookup(t *testing.T) {
	s := openInMemory(t)
	sel := extract.ParseSelection("DP,SGB", "GT,PL")
	path, samples, rows := standardRows(t, sel)

	err := s.WriteRows(Batch{Source: path, Selection: sel, Samples: samples, Rows: rows})
	require.NoError(t, err)

	n, err := s.CountVariants()
	require.NoError(t, err)
	assert.Equal(t, int64(60), n)

	vs, err := s.LookupPosition("1", 10081)
	require.NoError(t, err)
	require.Len(t, vs, 1)
	v := vs[0]
	assert.Equal(t, int64(59), v.Seq)
	assert.Equal(t, "A", v.Ref)
	assert.Equal(t, "C,G", v.Alt)
	assert.Equal(t, "LowQual", v.Filter)
	assert.True(t, v.Qual.Valid)
	assert.Equal(t, 0.0, v.Qual.Float64)

	info, err := s.InfoValues(path, 59)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"DP": "59", "SGB": "-0.379885"}, info)

	info, err = s.InfoValues(path, 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"DP": "0"}, info, "missing SGB is not stored")

	sv, err := s.SampleValues(path, 59)
	require.NoError(t, err)
	assert.Equal(t, []SampleValue{
		{Sample: "HG00096", Field: "GT", Value: "0|1"},
		{Sample: "HG00096", Field: "PL", Value: "0,3,27,5,30,60"},
	}, sv)

	vs, err = s.LookupPosition("2", 10081)
	require.NoError(t, err)
	assert.Empty(t, vs)
}

func TestWriteRows_Empty(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.WriteRows(Batch{Source: "x.bcf"}))
	n, err := s.CountVariants()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWriteRows_MissingQual(t *testing.T) {
	s := openInMemory(t)
	row := &extract.Row{Contig: "1", Pos: 5, ID: ".", Ref: "A", Alt: []string{"T"}, QualMissing: true}
	require.NoError(t, s.WriteRows(Batch{Source: "a.bcf", Rows: []*extract.Row{row}}))

	vs, err := s.LookupPosition("1", 5)
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.False(t, vs[0].Qual.Valid)
}

func TestLoader(t *testing.T) {
	s := openInMemory(t)
	sel := extract.ParseSelection("DP", "")
	path, samples, rows := standardRows(t, sel)

	l := s.NewLoader(path, sel, samples, 7)
	for _, row := range rows {
		require.NoError(t, l.Add(row))
	}
	require.NoError(t, l.Flush())
	assert.Equal(t, int64(60), l.Written())

	vs, err := s.LookupPosition("1", 10022+20)
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, int64(20), vs[0].Seq, "sequence numbers continue across batches")

	require.NoError(t, s.DeleteSource(path))
	n, err := s.CountVariants()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReplaceSource(t *testing.T) {
	s := openInMemory(t)
	sel := extract.ParseSelection("DP", "GT")
	path, samples, rows := standardRows(t, sel)

	require.NoError(t, s.WriteRows(Batch{Source: path, Selection: sel, Samples: samples, Rows: rows}))
	staging := path + "#loading"
	require.NoError(t, s.WriteRows(Batch{Source: staging, Selection: sel, Samples: samples, Rows: rows[:5]}))

	n, err := s.CountVariants()
	require.NoError(t, err)
	assert.Equal(t, int64(65), n)

	require.NoError(t, s.ReplaceSource(staging, path))
	n, err = s.CountVariants()
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	vs, err := s.LookupPosition("1", 10022)
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, path, vs[0].Source)

	info, err := s.InfoValues(path, 0)
	require.NoError(t, err)
	assert.Equal(t, "0", info["DP"])
	info, err = s.InfoValues(staging, 0)
	require.NoError(t, err)
	assert.Empty(t, info)
}

func TestSources(t *testing.T) {
	s := openInMemory(t)

	now := time.Now().Truncate(time.Second)
	fp := FileFingerprint{Path: "/data/a.bcf", Size: 1000, ModTime: now}

	loaded, err := s.SourceLoaded(fp)
	require.NoError(t, err)
	assert.False(t, loaded)

	require.NoError(t, s.RecordSource(fp, 60))
	loaded, err = s.SourceLoaded(fp)
	require.NoError(t, err)
	assert.True(t, loaded)

	changed := fp
	changed.Size = 1001
	loaded, err = s.SourceLoaded(changed)
	require.NoError(t, err)
	assert.False(t, loaded)

	touched := fp
	touched.ModTime = now.Add(time.Second)
	loaded, err = s.SourceLoaded(touched)
	require.NoError(t, err)
	assert.False(t, loaded)

	require.NoError(t, s.RecordSource(changed, 61))
	srcs, err := s.Sources()
	require.NoError(t, err)
	require.Len(t, srcs, 1)
	assert.Equal(t, int64(1001), srcs[0].Size)
	assert.Equal(t, int64(61), srcs[0].Records)
}

func TestStatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bcf")
	require.NoError(t, os.WriteFile(path, []byte("12345"), 0644))

	fp, err := StatFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, fp.Path)
	assert.Equal(t, int64(5), fp.Size)

	_, err = StatFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

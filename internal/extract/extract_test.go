package extract

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/bcfscan/internal/bcf"
	"github.com/inodb/bcfscan/internal/region"
	"github.com/inodb/bcfscan/internal/testutil"
)

func openReader(t *testing.T, b *testutil.Builder) *bcf.Reader {
	t.Helper()
	r, err := bcf.Open(b.WriteTemp(t, testutil.BGZF))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestParseSelection(t *testing.T) {
	sel := ParseSelection("DP, MQ0F,,DP", "GT,PL")
	assert.Equal(t, []string{"DP", "MQ0F"}, sel.Info)
	assert.Equal(t, []string{"GT", "PL"}, sel.Format)
	assert.False(t, sel.IsEmpty())
	assert.True(t, ParseSelection("", " ").IsEmpty())

	cols := sel.Columns([]string{"S1", "S2"})
	assert.Equal(t, []string{
		"CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER",
		"DP", "MQ0F",
		"S1:GT", "S1:PL", "S2:GT", "S2:PL",
	}, cols)
}

func TestExtract_StandardRecords(t *testing.T) {
	r := openReader(t, testutil.Standard())
	ex := NewExtractor(r.Header(), ParseSelection("DP,MQ0F,INDEL,ANN,SGB,NOSUCH", "GT,PL,GQ"))

	var rows []*Row
	for rec, err := range r.Records() {
		require.NoError(t, err)
		row, err := ex.Extract(rec)
		require.NoError(t, err)
		rows = append(rows, row)
	}
	require.Len(t, rows, 60)

	first := rows[0]
	assert.Equal(t, "1", first.Contig)
	assert.Equal(t, int64(10022), first.Pos, "1-based")
	assert.Equal(t, "rs1000", first.ID)
	assert.Equal(t, "C", first.Ref)
	assert.Equal(t, []string{"T"}, first.Alt)
	assert.Equal(t, []string{"PASS"}, first.Filters)
	assert.Equal(t, []string{"0", "1", "0", "T|missense,T|synonymous", ".", "."}, first.Info)
	assert.Equal(t, [][]string{{"0/1", "0,3,27", "."}}, first.Samples)

	last := rows[59]
	assert.Equal(t, []string{"C", "G"}, last.Alt)
	assert.Equal(t, "59", last.Info[0])
	assert.Equal(t, "1", last.Info[2])
	assert.Equal(t, "-0.379885", last.Info[4])
	assert.Equal(t, [][]string{{"0|1", "0,3,27,5,30,60", "12.5"}}, last.Samples)

	assert.Equal(t, []string{
		"1", "10081", ".", "A", "C,G", "0", "LowQual",
		"59", "1", "1", ".", "-0.379885", ".",
		"0|1", "0,3,27,5,30,60", "12.5",
	}, last.Fields())
}

func TestExtract_MissingAndPadding(t *testing.T) {
	b := testutil.NewBuilder("S1", "S2")
	b.Contig("chr1", 1000)
	b.Info("AF", "A", "Float", "Allele frequency")
	b.Format("AD", "R", "Integer", "Allelic depths")
	b.Format("FT", "1", "String", "Sample filter")
	b.Add(testutil.Variant{
		Pos:     4,
		Qual:    testutil.MissingFloat,
		Alleles: []string{"A", "C", "T"},
		Info: []testutil.Field{
			{Key: "AF", Floats: []float32{0.5, testutil.MissingFloat}},
		},
		Format: []testutil.Field{
			{Key: "AD", Ints: []int32{10, 5, 1, 7, testutil.MissingInt, testutil.VectorEndInt}},
			{Key: "FT", Strings: []string{"PASS", ""}},
		},
	})
	r := openReader(t, b)
	ex := NewExtractor(r.Header(), ParseSelection("AF", "AD,FT"))

	rec := bcf.NewRecord()
	require.NoError(t, r.Read(rec))
	row, err := ex.Extract(rec)
	require.NoError(t, err)

	assert.True(t, row.QualMissing)
	assert.Equal(t, []string{"0.5,."}, row.Info)
	assert.Equal(t, [][]string{{"10,5,1", "PASS"}, {"7,.", "."}}, row.Samples)

	fields := row.Fields()
	assert.Equal(t, ".", fields[5], "missing QUAL")
	assert.Equal(t, ".", fields[6], "no filters")
}

func TestExtract_ClosedReader(t *testing.T) {
	r, err := bcf.Open(testutil.Standard().WriteTemp(t, testutil.BGZF))
	require.NoError(t, err)
	ex := NewExtractor(r.Header(), Selection{})
	rec := bcf.NewRecord()
	require.NoError(t, r.Read(rec))
	require.NoError(t, r.Close())

	_, err = ex.Extract(rec)
	assert.ErrorIs(t, err, bcf.ErrClosed)
}

func TestParallelExtract_OrderPreservation(t *testing.T) {
	r := openReader(t, testutil.Standard())
	ex := NewExtractor(r.Header(), ParseSelection("DP", ""))

	items := make(chan WorkItem, 60)
	seq := 0
	for rec, err := range r.Records() {
		require.NoError(t, err)
		items <- WorkItem{Seq: seq, Record: rec}
		seq++
	}
	close(items)

	var collected []int
	err := OrderedCollect(ex.ParallelExtract(items, 8), func(res WorkResult) error {
		require.NoError(t, res.Err)
		assert.Equal(t, int64(10022+res.Seq), res.Row.Pos)
		collected = append(collected, res.Seq)
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, collected, 60)
	for i, s := range collected {
		assert.Equal(t, i, s, "result %d out of order", i)
	}
}

func TestOrderedCollect_StopsOnError(t *testing.T) {
	results := make(chan WorkResult, 10)
	for i := 9; i >= 0; i-- {
		results <- WorkResult{Seq: i}
	}
	close(results)

	stop := errors.New("stop")
	var seen []int
	err := OrderedCollect(results, func(res WorkResult) error {
		seen = append(seen, res.Seq)
		if res.Seq == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestExtractAll(t *testing.T) {
	r := openReader(t, testutil.Standard())
	ex := NewExtractor(r.Header(), ParseSelection("DP", "GT"))

	var pos []int64
	sum, err := ex.ExtractAll(r, Options{Workers: 4, MaxInvalid: -1}, func(row *Row) error {
		pos = append(pos, row.Pos)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, Summary{Records: 60, Emitted: 60}, sum)
	require.Len(t, pos, 60)
	for i, p := range pos {
		assert.Equal(t, int64(10022+i), p)
	}
}

func TestExtractAll_Limit(t *testing.T) {
	r := openReader(t, testutil.Standard())
	ex := NewExtractor(r.Header(), Selection{})

	n := 0
	sum, err := ex.ExtractAll(r, Options{Workers: 2, Limit: 7, MaxInvalid: -1}, func(*Row) error {
		n++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, int64(7), sum.Records)
}

func TestExtractAll_CallbackError(t *testing.T) {
	r := openReader(t, testutil.Standard())
	ex := NewExtractor(r.Header(), Selection{})

	stop := errors.New("disk full")
	n := 0
	_, err := ex.ExtractAll(r, Options{Workers: 3, MaxInvalid: -1}, func(*Row) error {
		n++
		if n == 10 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 10, n)
}

func corruptTail() []byte {
	tail := binary.LittleEndian.AppendUint32(nil, 64)
	tail = binary.LittleEndian.AppendUint32(tail, 0)
	return append(tail, 1, 2, 3)
}

func TestExtractAll_InvalidLimit(t *testing.T) {
	b := testutil.Standard()
	b.AppendBytes(corruptTail())

	r := openReader(t, b)
	ex := NewExtractor(r.Header(), Selection{})
	sum, err := ex.ExtractAll(r, Options{Workers: 2, MaxInvalid: 0}, func(*Row) error { return nil })
	assert.ErrorIs(t, err, ErrTooManyInvalid)
	assert.ErrorIs(t, err, bcf.ErrInvalid)
	assert.Equal(t, int64(1), sum.Invalid)
	assert.Equal(t, int64(60), sum.Emitted, "rows before the bad tail are kept")

	b = testutil.Standard()
	b.AppendBytes(corruptTail())
	r = openReader(t, b)
	ex = NewExtractor(r.Header(), Selection{})
	sum, err = ex.ExtractAll(r, Options{Workers: 2, MaxInvalid: 1}, func(*Row) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.Invalid)
}

func TestExtractAll_Regions(t *testing.T) {
	r := openReader(t, testutil.Standard())
	ex := NewExtractor(r.Header(), Selection{})

	ivs, err := region.Parse("1:10031-10035,2:1-100000")
	require.NoError(t, err)

	var pos []int64
	sum, err := ex.ExtractAll(r, Options{Workers: 2, MaxInvalid: -1, Regions: region.NewSet(ivs)}, func(row *Row) error {
		pos = append(pos, row.Pos)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{10031, 10032, 10033, 10034, 10035}, pos)
	assert.Equal(t, int64(55), sum.Skipped)
	assert.Equal(t, int64(5), sum.Records)
}

func TestExtractAll_TruncatedContainer(t *testing.T) {
	r, err := bcf.Open(testutil.Many(20000).WriteTruncated(t, testutil.BGZF, 2, 3))
	require.NoError(t, err)
	defer r.Close()
	ex := NewExtractor(r.Header(), ParseSelection("DP", "GT"))

	var last int64
	sum, err := ex.ExtractAll(r, Options{Workers: 4, MaxInvalid: -1}, func(row *Row) error {
		assert.Greater(t, row.Pos, last)
		last = row.Pos
		return nil
	})
	require.NoError(t, err)
	assert.Less(t, sum.Emitted, int64(20000))
	assert.LessOrEqual(t, sum.Invalid, int64(1))
}

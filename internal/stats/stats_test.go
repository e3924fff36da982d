package stats

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/bcfscan/internal/bcf"
	"github.com/inodb/bcfscan/internal/testutil"
)

func collect(t *testing.T, path string) *FileStats {
	t.Helper()
	r, err := bcf.Open(path)
	require.NoError(t, err)
	defer r.Close()
	st, err := Collect(r)
	require.NoError(t, err)
	return st
}

func TestCollect_Standard(t *testing.T) {
	st := collect(t, testutil.Standard().WriteTemp(t, testutil.BGZF))

	assert.Equal(t, int64(60), st.Records)
	assert.Zero(t, st.Invalid)
	assert.Equal(t, 1, st.Samples)
	assert.Equal(t, 6, st.InfoFields)
	assert.Equal(t, 3, st.FmtFields)
	assert.Equal(t, []ContigCount{{Contig: "1", Records: 60}}, st.Contigs)
	assert.Equal(t, int64(1), st.Multiallele)
	assert.Equal(t, int64(1), st.Filtered)
}

func TestCollect_ContigOrder(t *testing.T) {
	b := testutil.NewBuilder()
	b.Contig("chr1", 100).Contig("chr2", 100)
	for _, rid := range []int32{1, 1, 0, 1} {
		b.Add(testutil.Variant{RID: rid, Pos: 1, Alleles: []string{"A", "T"}})
	}
	st := collect(t, b.WriteTemp(t, testutil.Raw))
	assert.Equal(t, []ContigCount{{"chr1", 1}, {"chr2", 3}}, st.Contigs, "header order")
}

func TestCollect_UnknownContig(t *testing.T) {
	b := testutil.NewBuilder()
	b.Contig("chr1", 100)
	for _, rid := range []int32{0, 5, 0} {
		b.Add(testutil.Variant{RID: rid, Pos: 1, Alleles: []string{"A", "T"}})
	}
	st := collect(t, b.WriteTemp(t, testutil.Raw))
	assert.Equal(t, int64(3), st.Records)
	assert.Equal(t, int64(1), st.Unresolved)
	assert.Equal(t, []ContigCount{{"chr1", 2}}, st.Contigs)
}

func TestCollect_TruncatedContainer(t *testing.T) {
	for _, c := range []testutil.Compression{testutil.BGZF, testutil.Gzip} {
		t.Run(c.String(), func(t *testing.T) {
			path := testutil.Many(20000).WriteTruncated(t, c, 2, 3)
			r, err := bcf.Open(path)
			require.NoError(t, err)
			defer r.Close()

			done := make(chan struct{})
			var st *FileStats
			go func() {
				defer close(done)
				st, err = Collect(r)
			}()
			select {
			case <-done:
			case <-time.After(30 * time.Second):
				t.Fatal("Collect did not return on a truncated container")
			}
			require.NoError(t, err)
			assert.Less(t, st.Records, int64(20000))
			assert.LessOrEqual(t, st.Invalid, int64(1))
		})
	}
}

func TestCollect_CountsInvalid(t *testing.T) {
	b := testutil.Standard()
	b.AppendBytes([]byte{0xff, 0xff, 0xff, 0x7f, 0, 0, 0, 0})
	st := collect(t, b.WriteTemp(t, testutil.BGZF))
	assert.Equal(t, int64(60), st.Records)
	assert.Equal(t, int64(1), st.Invalid)
}

func TestCache(t *testing.T) {
	path := testutil.Standard().WriteTemp(t, testutil.BGZF)
	c := NewCache(path)
	assert.False(t, c.Valid(), "nothing cached yet")

	st := collect(t, path)
	require.NoError(t, c.Write(st))
	assert.True(t, c.Valid())

	got, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, st, got)

	// touching the source invalidates the cache
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))
	assert.False(t, c.Valid())

	c.Clear()
	_, err = c.Load()
	assert.Error(t, err)
}

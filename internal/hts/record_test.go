package hts

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/bcfscan/internal/testutil"
)

func openFixture(t *testing.T, b *testutil.Builder, c testutil.Compression) (*File, *Header) {
	t.Helper()
	f, err := Open(b.WriteTemp(t, c), "r")
	require.NoError(t, err)
	t.Cleanup(func() { Close(f) })

	h, err := ReadHeader(f)
	require.NoError(t, err)
	return f, h
}

func TestReadRecord_StandardFixture(t *testing.T) {
	for _, c := range []testutil.Compression{testutil.BGZF, testutil.Gzip, testutil.Raw} {
		f, h := openFixture(t, testutil.Standard(), c)

		count := 0
		for {
			var rec Record
			status := ReadRecord(f, h, &rec)
			if status == StatusEOF {
				break
			}
			require.Equal(t, StatusOK, status, "record %d: %v", count, f.Err())

			assert.Equal(t, int32(0), rec.RID())
			assert.Equal(t, int32(10021+count), rec.Pos())
			assert.Equal(t, float32(0), rec.Qual())
			assert.Equal(t, 1, rec.NSamples())
			count++
		}
		assert.Equal(t, 60, count, "compression %d", c)
		assert.Equal(t, int64(60), f.RecordsRead())
	}
}

func TestOpen_DetectsCompression(t *testing.T) {
	tests := []struct {
		in   testutil.Compression
		want Compression
	}{
		{testutil.BGZF, BGZF},
		{testutil.Gzip, Gzip},
		{testutil.Raw, Uncompressed},
	}
	for _, tt := range tests {
		f, _ := openFixture(t, testutil.Standard(), tt.in)
		assert.Equal(t, tt.want, f.Compression())
		assert.Equal(t, "2.2", f.Version())
	}
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing.bcf"), "r")
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := testutil.Standard().WriteTemp(t, testutil.BGZF)
	_, err = Open(path, "w")
	assert.ErrorIs(t, err, ErrUnsupportedMode)

	vcfPath := filepath.Join(dir, "x.vcf")
	require.NoError(t, os.WriteFile(vcfPath, []byte("##fileformat=VCFv4.2\n#CHROM\n"), 0o644))
	_, err = Open(vcfPath, "r")
	assert.ErrorIs(t, err, ErrTextFormat)

	junkPath := filepath.Join(dir, "junk.bin")
	require.NoError(t, os.WriteFile(junkPath, []byte("not a container at all"), 0o644))
	_, err = Open(junkPath, "r")
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)

	emptyPath := filepath.Join(dir, "empty.bcf")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0o644))
	_, err = Open(emptyPath, "r")
	assert.ErrorIs(t, err, ErrUnrecognizedFormat)
}

func TestReadHeader_OnlyOnce(t *testing.T) {
	f, _ := openFixture(t, testutil.Standard(), testutil.BGZF)
	_, err := ReadHeader(f)
	assert.Error(t, err)
}

func TestReadRecord_EndOfStreamIsSticky(t *testing.T) {
	b := testutil.NewBuilder()
	b.Contig("1", 100)
	b.Add(testutil.Variant{Pos: 5, Alleles: []string{"A"}})
	f, h := openFixture(t, b, testutil.BGZF)

	var rec Record
	require.Equal(t, StatusOK, ReadRecord(f, h, &rec))
	for i := 0; i < 3; i++ {
		assert.Equal(t, StatusEOF, ReadRecord(f, h, &rec))
	}
}

func TestReadRecord_TruncatedTail(t *testing.T) {
	b := testutil.NewBuilder()
	b.Contig("1", 100)
	b.Add(testutil.Variant{Pos: 5, Alleles: []string{"A", "G"}})
	b.AppendBytes([]byte{40, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3})
	f, h := openFixture(t, b, testutil.Raw)

	var rec Record
	require.Equal(t, StatusOK, ReadRecord(f, h, &rec))
	assert.Equal(t, StatusError, ReadRecord(f, h, &rec))
	assert.ErrorIs(t, f.Err(), io.ErrUnexpectedEOF)

	var recErr *RecordError
	require.ErrorAs(t, f.Err(), &recErr)
	assert.Equal(t, int64(1), recErr.Index)

	assert.Equal(t, StatusEOF, ReadRecord(f, h, &rec))
}

func TestReadRecord_TruncatedCompressedStream(t *testing.T) {
	const n = 20000
	for _, c := range []testutil.Compression{testutil.BGZF, testutil.Gzip} {
		t.Run(c.String(), func(t *testing.T) {
			f, err := Open(testutil.Many(n).WriteTruncated(t, c, 2, 3), "r")
			require.NoError(t, err)
			defer Close(f)
			h, err := ReadHeader(f)
			require.NoError(t, err)

			var rec Record
			ok, failed := 0, 0
			for pulls := 0; ; pulls++ {
				require.Less(t, pulls, 2*n, "stream never ended")
				status := ReadRecord(f, h, &rec)
				if status == StatusEOF {
					break
				}
				if status == StatusError {
					failed++
					continue
				}
				ok++
			}
			assert.Greater(t, ok, 0)
			assert.Less(t, ok, n)
			assert.LessOrEqual(t, failed, 1)
			for i := 0; i < 3; i++ {
				assert.Equal(t, StatusEOF, ReadRecord(f, h, &rec))
			}
		})
	}
}

func TestReadRecord_SampleMismatchIsRecoverable(t *testing.T) {
	b := testutil.NewBuilder("S1")
	b.Contig("1", 100)
	b.Add(testutil.Variant{Pos: 1, Alleles: []string{"A"}})

	// A well-framed record that claims two samples.
	bad := testutil.NewBuilder("S1", "S2")
	bad.Contig("1", 100)
	bad.Add(testutil.Variant{Pos: 2, Alleles: []string{"A"}})
	b.AppendBytes(bad.RecordBytes())

	b.Add(testutil.Variant{Pos: 3, Alleles: []string{"A"}})
	f, h := openFixture(t, b, testutil.BGZF)

	var rec Record
	require.Equal(t, StatusOK, ReadRecord(f, h, &rec))
	require.Equal(t, StatusError, ReadRecord(f, h, &rec))
	assert.True(t, errors.Is(f.Err(), ErrSampleMismatch))
	require.Equal(t, StatusOK, ReadRecord(f, h, &rec))
	assert.Equal(t, int32(3), rec.Pos())
}

func TestReadRecord_OversizedBlock(t *testing.T) {
	b := testutil.NewBuilder()
	b.AppendBytes([]byte{0xff, 0xff, 0xff, 0x7f, 0, 0, 0, 0})
	f, h := openFixture(t, b, testutil.Raw)

	var rec Record
	assert.Equal(t, StatusError, ReadRecord(f, h, &rec))
	assert.ErrorIs(t, f.Err(), ErrRecordTooLarge)
}

func TestReadRecord_ShortSharedBlock(t *testing.T) {
	b := testutil.NewBuilder()
	b.AddRaw([]byte{1, 2, 3}, nil)
	f, h := openFixture(t, b, testutil.Raw)

	var rec Record
	assert.Equal(t, StatusError, ReadRecord(f, h, &rec))
	assert.Error(t, f.Err())
}

func TestReadRecord_AfterClose(t *testing.T) {
	path := testutil.Standard().WriteTemp(t, testutil.BGZF)
	f, err := Open(path, "r")
	require.NoError(t, err)
	h, err := ReadHeader(f)
	require.NoError(t, err)

	require.NoError(t, Close(f))
	assert.ErrorIs(t, Close(f), ErrClosed)

	var rec Record
	assert.Equal(t, StatusError, ReadRecord(f, h, &rec))
	assert.ErrorIs(t, f.Err(), ErrClosed)
}

func TestRecord_StringsAndFilters(t *testing.T) {
	f, h := openFixture(t, testutil.Standard(), testutil.BGZF)

	var rec Record
	require.Equal(t, StatusOK, ReadRecord(f, h, &rec))
	assert.Equal(t, "rs1000", rec.ID())
	assert.Equal(t, []string{"C", "T"}, rec.Alleles())
	assert.Equal(t, []int32{0}, rec.FilterIDs())
	assert.Equal(t, int32(1), rec.Rlen())

	require.Equal(t, StatusOK, ReadRecord(f, h, &rec))
	assert.Equal(t, ".", rec.ID())

	dp, _ := h.Tag("DP")
	mq0f, _ := h.Tag("MQ0F")
	dp4, _ := h.Tag("DP4")
	assert.Equal(t, []int{dp.Idx, mq0f.Idx, dp4.Idx}, rec.InfoKeys())
	assert.Len(t, rec.FormatKeys(), 2)
}

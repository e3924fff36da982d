package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/bcfscan/internal/bcf"
	"github.com/inodb/bcfscan/internal/extract"
	"github.com/inodb/bcfscan/internal/testutil"
)

func readRows(t *testing.T, sel extract.Selection) (*bcf.Header, []*extract.Row) {
	t.Helper()
	r, err := bcf.Open(testutil.Standard().WriteTemp(t, testutil.BGZF))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	ex := extract.NewExtractor(r.Header(), sel)
	var rows []*extract.Row
	_, err = ex.ExtractAll(r, extract.Options{Workers: 2, MaxInvalid: -1}, func(row *extract.Row) error {
		rows = append(rows, row)
		return nil
	})
	require.NoError(t, err)
	return r.Header(), rows
}

func TestTabWriter(t *testing.T) {
	sel := extract.ParseSelection("DP,INDEL", "GT")
	h, rows := readRows(t, sel)

	var buf bytes.Buffer
	w := NewTabWriter(&buf, sel.Columns(h.Samples()))
	require.NoError(t, w.WriteHeader())
	for _, row := range rows {
		require.NoError(t, w.Write(row))
	}
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 61)
	assert.Equal(t, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tDP\tINDEL\tHG00096:GT", lines[0])
	assert.Equal(t, "1\t10022\trs1000\tC\tT\t0\tPASS\t0\t0\t0/1", lines[1])
	assert.Equal(t, "1\t10081\t.\tA\tC,G\t0\tLowQual\t59\t1\t0|1", lines[60])
}

func TestVCFWriter(t *testing.T) {
	sel := extract.ParseSelection("DP,INDEL,SGB", "GT,PL")
	h, rows := readRows(t, sel)

	var buf bytes.Buffer
	w := NewVCFWriter(&buf, h, sel)
	require.NoError(t, w.WriteHeader())
	for _, row := range rows {
		require.NoError(t, w.Write(row))
	}
	require.NoError(t, w.Flush())

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "##fileformat=VCFv4.2\n"))
	assert.Contains(t, out, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tHG00096\n")
	assert.Contains(t, out, "1\t10022\trs1000\tC\tT\t0\tPASS\tDP=0\tGT:PL\t0/1:0,3,27\n")
	assert.Contains(t, out, "1\t10081\t.\tA\tC,G\t0\tLowQual\tDP=59;INDEL;SGB=-0.379885\tGT:PL\t0|1:0,3,27,5,30,60\n")
}

func TestVCFWriter_SitesOnly(t *testing.T) {
	sel := extract.ParseSelection("", "")
	h, rows := readRows(t, sel)

	var buf bytes.Buffer
	w := NewVCFWriter(&buf, h, sel)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Write(rows[0]))
	require.NoError(t, w.Flush())

	out := buf.String()
	assert.Contains(t, out, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n")
	assert.True(t, strings.HasSuffix(out, "1\t10022\trs1000\tC\tT\t0\tPASS\t.\n"))
}

package readers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ParseFormat(t *testing.T) {
	var cases = []struct {
		tag    string
		format Format
	}{
		{tag: "pdf", format: Pdf},
		{tag: ".PDF", format: Pdf},
		{tag: "docx", format: Docx},
		{tag: "Txt", format: Txt},
	}

	for _, c := range cases {
		t.Run(c.tag, func(t *testing.T) {
			f, err := ParseFormat(c.tag)
			require.NoError(t, err)
			assert.Equal(t, c.format, f)
		})
	}

	_, err := ParseFormat("odt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func Test_FormatFromFilename(t *testing.T) {
	f, err := FormatFromFilename("some/dir/report.Docx")
	require.NoError(t, err)
	assert.Equal(t, Docx, f)

	_, err = FormatFromFilename("some/dir/README")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = FormatFromFilename("archive.tar.gz")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func Test_NewRegistry_Duplicate(t *testing.T) {
	_, err := NewRegistry(&TxtReader{}, &TxtReader{})
	assert.Error(t, err)
}

func Test_Registry_Extract(t *testing.T) {
	r, err := NewRegistry(&TxtReader{})
	require.NoError(t, err)

	txt, err := r.Extract([]byte("hello"), Txt)
	require.NoError(t, err)
	assert.Equal(t, "hello", txt)

	_, err = r.Extract([]byte("%PDF-1.4"), Pdf)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func Test_Registry_ReadFile(t *testing.T) {
	r := Default()

	txt, err := r.ReadFile("testdata/test.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", txt)

	_, err = r.ReadFile("testdata/invalid.txt")
	assert.ErrorIs(t, err, ErrDecoding)

	_, err = r.ReadFile("testdata/missing.txt")
	assert.Error(t, err)

	_, err = r.ReadFile("testdata/test.odt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

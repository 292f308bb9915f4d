package readers

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_DocxReader_Format(t *testing.T) {
	r := DocxReader{}
	assert.Equal(t, Docx, r.Format())
}

func Test_DocxReader_Extract(t *testing.T) {
	buf, err := os.ReadFile("testdata/test.docx")
	require.NoError(t, err)

	r := DocxReader{}
	txt, err := r.Extract(buf)
	require.NoError(t, err)

	assert.Equal(t, "hello\nworld\n", txt)
}

func Test_DocxReader_EmptyParagraphs(t *testing.T) {
	buf, err := os.ReadFile("testdata/paragraphs.docx")
	require.NoError(t, err)

	r := DocxReader{}
	txt, err := r.Extract(buf)
	require.NoError(t, err)

	assert.Equal(t, "\nfirst\n\nsecond\nthird\n", txt)
}

func Test_DocxReader_Malformed(t *testing.T) {
	r := DocxReader{}

	_, err := r.Extract([]byte("plain text pretending to be docx"))
	assert.ErrorIs(t, err, ErrExtraction)

	_, err = r.Extract([]byte("PK\x03\x04truncated archive"))
	assert.ErrorIs(t, err, ErrExtraction)
}

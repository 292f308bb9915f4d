package readers

import (
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_PdfReader_Format(t *testing.T) {
	r := PdfReader{}
	assert.Equal(t, Pdf, r.Format())
}

func Test_PdfReader_Extract(t *testing.T) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		t.Skip("pdftotext is not installed")
	}

	buf, err := os.ReadFile("testdata/test.pdf")
	require.NoError(t, err)

	r := PdfReader{}
	txt, err := r.Extract(buf)
	require.NoError(t, err)

	assert.Equal(t, "hello world", strings.TrimSpace(txt))
	assert.NotContains(t, txt, "\f")
}

func Test_PdfReader_Malformed(t *testing.T) {
	r := PdfReader{}
	_, err := r.Extract([]byte("this is not a pdf"))
	assert.ErrorIs(t, err, ErrExtraction)
}

package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFromUploadText(t *testing.T) {
	e := NewPDFExtractor()

	text, err := e.ExtractFromUpload("text/plain; charset=utf-8", "invoice.txt", []byte("Description Qty Unit Price\nLabour 1 100.00"))
	require.NoError(t, err)
	assert.Equal(t, "Description Qty Unit Price\nLabour 1 100.00", text)

	text, err = e.ExtractFromUpload("application/octet-stream", "INVOICE.TXT", []byte("Labour 1 100.00"))
	require.NoError(t, err)
	assert.Equal(t, "Labour 1 100.00", text)
}

func TestExtractFromUploadRejects(t *testing.T) {
	e := NewPDFExtractor()

	tests := []struct {
		name        string
		contentType string
		filename    string
		data        []byte
		want        error
	}{
		{"image", "image/png", "scan.png", []byte{0x89, 'P', 'N', 'G'}, ErrUnsupportedType},
		{"invalid utf8", "text/plain", "a.txt", []byte{0xff, 0xfe, 0xfd}, ErrUnsupportedType},
		{"blank text", "text/plain", "a.txt", []byte("  \n "), ErrNoText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ExtractFromUpload(tt.contentType, tt.filename, tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExtractTextCorruptPDF(t *testing.T) {
	e := NewPDFExtractor()

	_, err := e.ExtractFromUpload("application/octet-stream", "upload.bin", []byte("%PDF-1.4\nnot really a pdf"))
	assert.Error(t, err)

	_, err = e.ExtractText(nil)
	assert.Error(t, err)
}

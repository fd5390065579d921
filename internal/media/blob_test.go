package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBlobConcatenatesInOrder(t *testing.T) {
	b := NewBlob([][]byte{[]byte("ab"), {}, []byte("cde")}, "audio/ogg;codecs=opus", MIMEWebM)
	assert.Equal(t, "abcde", string(b.Data))
	assert.Equal(t, 5, b.Size())
	assert.Equal(t, MIMEOggOpus, b.MIMEType)
}

func TestNewBlobFallsBackToDefaultType(t *testing.T) {
	b := NewBlob(nil, "  ", MIMEWebM)
	assert.Equal(t, MIMEWebM, b.MIMEType)
	assert.Equal(t, 0, b.Size())
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".ogg", Extension(MIMEOggOpus))
	assert.Equal(t, ".webm", Extension("audio/webm;codecs=opus"))
	assert.Equal(t, ".wav", Extension("audio/x-wav"))
	assert.Equal(t, ".mp3", Extension(MIMEMPEG))
	assert.Equal(t, ".bin", Extension("application/octet-stream"))
}

func TestSniffType(t *testing.T) {
	assert.Equal(t, MIMEWAV, SniffType([]byte("RIFF\x00\x00\x00\x00WAVEfmt ")))
	assert.Equal(t, MIMEOggOpus, SniffType([]byte("OggS\x00\x02")))
	assert.Equal(t, MIMEMPEG, SniffType([]byte("ID3\x04")))
	assert.Equal(t, "", SniffType([]byte("??")))
}

// Package media holds the binary audio object shared between capture, playback and upload.
package media

import (
	"mime"
	"strings"
)

const (
	MIMEWebM    = "audio/webm"
	MIMEOggOpus = "audio/ogg;codecs=opus"
	MIMEWAV     = "audio/wav"
	MIMEMPEG    = "audio/mpeg"
)

// Blob is an immutable chunk of encoded audio tagged with its MIME type.
type Blob struct {
	Data     []byte
	MIMEType string
}

// NewBlob concatenates chunks in order. An empty mimeType falls back to fallback.
func NewBlob(chunks [][]byte, mimeType, fallback string) Blob {
	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	data := make([]byte, 0, size)
	for _, c := range chunks {
		data = append(data, c...)
	}
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = fallback
	}
	if mimeType == "" {
		mimeType = MIMEWebM
	}
	return Blob{Data: data, MIMEType: mimeType}
}

func (b Blob) Size() int { return len(b.Data) }

// BaseType strips parameters, "audio/ogg;codecs=opus" -> "audio/ogg".
func BaseType(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		if i := strings.IndexByte(mimeType, ';'); i >= 0 {
			mimeType = mimeType[:i]
		}
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mt
}

// Extension returns a file extension (with dot) for an audio MIME type.
func Extension(mimeType string) string {
	switch BaseType(mimeType) {
	case "audio/webm":
		return ".webm"
	case "audio/ogg", "audio/opus":
		return ".ogg"
	case "audio/wav", "audio/wave", "audio/x-wav", "audio/vnd.wave":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/aac":
		return ".m4a"
	default:
		return ".bin"
	}
}

// SniffType guesses a MIME type from the first bytes when a server omits it.
func SniffType(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return MIMEWAV
	case len(data) >= 4 && string(data[0:4]) == "OggS":
		return MIMEOggOpus
	case len(data) >= 4 && data[0] == 0x1A && data[1] == 0x45 && data[2] == 0xDF && data[3] == 0xA3:
		return MIMEWebM
	case len(data) >= 3 && string(data[0:3]) == "ID3", len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return MIMEMPEG
	default:
		return ""
	}
}

package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrNotWAV is returned by DecodeWAV for anything that is not a RIFF/WAVE stream.
var ErrNotWAV = errors.New("audio: not a wav stream")

// PCM is interleaved signed 16-bit audio.
type PCM struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Duration of the clip in seconds.
func (p PCM) Duration() float64 {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return 0
	}
	return float64(len(p.Samples)/p.Channels) / float64(p.SampleRate)
}

// Bytes returns the samples as PCM16LE.
func (p PCM) Bytes() []byte {
	out := make([]byte, len(p.Samples)*2)
	for i, s := range p.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// EncodeWAVPCM16LE wraps raw PCM16LE audio bytes in a WAV container.
func EncodeWAVPCM16LE(pcm []byte, sampleRate, channels int) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteWAVPCM16LETo(&buf, pcm, sampleRate, channels); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAVPCM16LETo writes raw PCM16LE audio bytes to out as a WAV stream.
func WriteWAVPCM16LETo(out io.Writer, pcm []byte, sampleRate, channels int) error {
	const (
		bitsPerSample = 16
		audioFormat   = 1 // PCM
	)
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels <= 0 {
		channels = 1
	}

	dataSize := uint32(len(pcm))
	header := struct {
		Riff       [4]byte
		Size       uint32
		Wave       [4]byte
		Fmt        [4]byte
		FmtSize    uint32
		Format     uint16
		Channels   uint16
		SampleRate uint32
		ByteRate   uint32
		BlockAlign uint16
		Bits       uint16
		Data       [4]byte
		DataSize   uint32
	}{
		Riff:       [4]byte{'R', 'I', 'F', 'F'},
		Size:       36 + dataSize,
		Wave:       [4]byte{'W', 'A', 'V', 'E'},
		Fmt:        [4]byte{'f', 'm', 't', ' '},
		FmtSize:    16,
		Format:     audioFormat,
		Channels:   uint16(channels),
		SampleRate: uint32(sampleRate),
		ByteRate:   uint32(sampleRate * channels * bitsPerSample / 8),
		BlockAlign: uint16(channels * bitsPerSample / 8),
		Bits:       bitsPerSample,
		Data:       [4]byte{'d', 'a', 't', 'a'},
		DataSize:   dataSize,
	}

	w := bufio.NewWriter(out)
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	if _, err := w.Write(pcm); err != nil {
		return err
	}
	return w.Flush()
}

// DecodeWAV reads a PCM WAV clip and normalizes it to 16-bit samples.
func DecodeWAV(data []byte) (PCM, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return PCM{}, ErrNotWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("decode wav: %w", err)
	}
	return fromIntBuffer(buf, int(dec.BitDepth)), nil
}

func fromIntBuffer(buf *goaudio.IntBuffer, bitDepth int) PCM {
	shift := bitDepth - 16
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		switch {
		case bitDepth == 8:
			// 8-bit wav is unsigned.
			samples[i] = int16((v - 128) << 8)
		case shift > 0:
			samples[i] = int16(v >> shift)
		default:
			samples[i] = int16(v)
		}
	}
	pcm := PCM{Samples: samples}
	if buf.Format != nil {
		pcm.SampleRate = buf.Format.SampleRate
		pcm.Channels = buf.Format.NumChannels
	}
	return pcm
}

// Tone synthesizes a mono sine wave, used for canned clips.
func Tone(freqHz float64, seconds float64, sampleRate int) []byte {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	n := int(seconds * float64(sampleRate))
	if n < 0 {
		n = 0
	}
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := 0.3 * math.Sin(2*math.Pi*freqHz*float64(i)/float64(sampleRate))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*math.MaxInt16)))
	}
	return out
}

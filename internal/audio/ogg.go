package audio

import (
	"bytes"
	"errors"
)

const (
	// OpusFrameMillis is the Opus frame length used for capture.
	OpusFrameMillis = 20
	// Ogg Opus granule positions always count 48 kHz samples.
	opusGranuleRate = 48000
)

var ErrNotOggOpus = errors.New("not an ogg opus stream")

// RTPClock stamps Opus packets written through pion's oggwriter. The writer
// derives each page's granule position from the timestamp delta to the
// previous packet and skips the first packet, so the second packet carries
// the first frame as well. After n >= 2 packets the granule covers n frames.
type RTPClock struct {
	step uint32
	ts   uint32
	n    int
}

func NewRTPClock(frameMillis int) *RTPClock {
	if frameMillis <= 0 {
		frameMillis = OpusFrameMillis
	}
	return &RTPClock{step: uint32(opusGranuleRate * frameMillis / 1000)}
}

// Next returns the timestamp for the next packet.
func (c *RTPClock) Next() uint32 {
	c.n++
	switch c.n {
	case 1:
		// Any base other than 1, which the writer treats as "no packet yet".
		c.ts = c.step
	case 2:
		c.ts += 2 * c.step
	default:
		c.ts += c.step
	}
	return c.ts
}

// Step is the granule advance of one frame.
func (c *RTPClock) Step() uint32 { return c.step }

// OpusHeadChannels reads the channel count from the OpusHead packet on the
// first page of an Ogg Opus stream.
func OpusHeadChannels(data []byte) (int, error) {
	const headerLen = 27
	if len(data) < headerLen || !bytes.Equal(data[:4], []byte("OggS")) {
		return 0, ErrNotOggOpus
	}
	segments := int(data[26])
	start := headerLen + segments
	if len(data) < start {
		return 0, ErrNotOggOpus
	}
	size := 0
	for _, s := range data[headerLen:start] {
		size += int(s)
	}
	if size < 19 || len(data) < start+size {
		return 0, ErrNotOggOpus
	}
	head := data[start : start+size]
	if !bytes.Equal(head[:8], []byte("OpusHead")) || head[9] == 0 {
		return 0, ErrNotOggOpus
	}
	return int(head[9]), nil
}

// Package recording implements the capture session: a pure state machine and
// a Controller that executes its effects on a single event loop.
package recording

import (
	"fmt"
	"math"
	"time"
)

type State int

const (
	Idle State = iota
	Requesting
	Recording
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Recording:
		return "recording"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type EffectKind int

const (
	// ShowStatus replaces the status line with Effect.Status.
	ShowStatus EffectKind = iota
	// RequestDevice asks the capture device for a stream.
	RequestDevice
	// StartTicker cancels any running ticker and starts a new one.
	StartTicker
	CancelTicker
	// AppendChunk appends Effect.Data to the buffer.
	AppendChunk
	// FinalizeStream asks the stream to flush and close.
	FinalizeStream
	// AssembleRecording concatenates the buffer into one blob.
	AssembleRecording
	ClearBuffer
	// ReleasePlayback revokes the previous object URL.
	ReleasePlayback
	CreatePlayback
	// Process runs the configured processing step asynchronously.
	Process
	// ReleaseDevice stops the stream and frees the device.
	ReleaseDevice
)

func (k EffectKind) String() string {
	switch k {
	case ShowStatus:
		return "show_status"
	case RequestDevice:
		return "request_device"
	case StartTicker:
		return "start_ticker"
	case CancelTicker:
		return "cancel_ticker"
	case AppendChunk:
		return "append_chunk"
	case FinalizeStream:
		return "finalize_stream"
	case AssembleRecording:
		return "assemble_recording"
	case ClearBuffer:
		return "clear_buffer"
	case ReleasePlayback:
		return "release_playback"
	case CreatePlayback:
		return "create_playback"
	case Process:
		return "process"
	case ReleaseDevice:
		return "release_device"
	default:
		return fmt.Sprintf("effect(%d)", int(k))
	}
}

type Effect struct {
	Kind   EffectKind
	Status string
	Data   []byte
}

// Status lines.
const (
	StatusRequesting  = "Requesting microphone permission..."
	StatusProcessing  = "Processing recording..."
	StatusUnsupported = "Recording is not supported on this device"
)

func status(text string) Effect { return Effect{Kind: ShowStatus, Status: text} }

// RecordingStatus renders elapsed time rounded to a tenth of a second.
func RecordingStatus(elapsed time.Duration) string {
	tenths := math.Round(elapsed.Seconds()*10) / 10
	return fmt.Sprintf("Recording... %.1fs", tenths)
}

// FailureStatus renders "<operation> failed: <message>".
func FailureStatus(operation string, err error) string {
	return fmt.Sprintf("%s failed: %s", operation, err)
}

func DeniedStatus(err error) string {
	return fmt.Sprintf("Microphone permission denied: %s", err)
}

// Start is accepted only from Idle.
func Start(s State) (State, []Effect) {
	if s != Idle {
		return s, nil
	}
	return Requesting, []Effect{status(StatusRequesting), {Kind: RequestDevice}}
}

func OnGranted(s State) (State, []Effect) {
	if s != Requesting {
		return s, nil
	}
	return Recording, []Effect{{Kind: StartTicker}, status(RecordingStatus(0))}
}

func OnDenied(s State, err error) (State, []Effect) {
	if s != Requesting {
		return s, nil
	}
	return Idle, []Effect{status(DeniedStatus(err))}
}

// OnChunk appends non-empty data while the stream is live.
func OnChunk(s State, data []byte) (State, []Effect) {
	if len(data) == 0 || (s != Recording && s != Stopping) {
		return s, nil
	}
	return s, []Effect{{Kind: AppendChunk, Data: data}}
}

func OnTick(s State, elapsed time.Duration) (State, []Effect) {
	if s != Recording {
		return s, nil
	}
	return s, []Effect{status(RecordingStatus(elapsed))}
}

// Stop is accepted only from Recording.
func Stop(s State) (State, []Effect) {
	if s != Recording {
		return s, nil
	}
	return Stopping, []Effect{{Kind: FinalizeStream}}
}

// OnFinalize runs once the stream has delivered its last chunk. The session
// stays in Stopping until processing reports back.
func OnFinalize(s State) (State, []Effect) {
	if s != Stopping && s != Recording {
		return s, nil
	}
	return Stopping, []Effect{
		{Kind: CancelTicker},
		{Kind: AssembleRecording},
		{Kind: ClearBuffer},
		{Kind: ReleasePlayback},
		{Kind: CreatePlayback},
		status(StatusProcessing),
		{Kind: Process},
	}
}

func OnProcessed(s State, outcome string) (State, []Effect) {
	if s != Stopping {
		return s, nil
	}
	return Idle, []Effect{{Kind: ReleaseDevice}, status(outcome)}
}

// OnError tears the session down from any active state.
func OnError(s State, operation string, err error) (State, []Effect) {
	if s == Idle {
		return s, nil
	}
	return Idle, []Effect{
		{Kind: CancelTicker},
		{Kind: ClearBuffer},
		{Kind: ReleaseDevice},
		status(FailureStatus(operation, err)),
	}
}

package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/antoniostano/voicedesk/internal/httpapi"
	"github.com/antoniostano/voicedesk/internal/protocol"
	"github.com/antoniostano/voicedesk/internal/recording"
)

const consoleHelp = `commands:
  hello            ask the backend for its greeting
  health           show backend health
  say <text>       synthesize text and play it
  rec | toggle     start or stop recording
  start | stop     start or stop recording explicitly
  status           print the current status and recording state
  help             show this help
  quit             exit`

// Console is the line-oriented front end: one command per line in, feed
// events out.
type Console struct {
	logger   *zap.Logger
	recorder httpapi.Recorder
	speech   httpapi.Speech
	feed     httpapi.Feed

	mu  sync.Mutex
	out io.Writer
}

func NewConsole(logger *zap.Logger, out io.Writer, recorder httpapi.Recorder, sp httpapi.Speech, feed httpapi.Feed) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{logger: logger, out: out, recorder: recorder, speech: sp, feed: feed}
}

// Run reads commands until in is exhausted, "quit" is entered or ctx ends.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	events, cancel := c.feed.Subscribe(64)
	defer cancel()

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for ev := range events {
			c.printEvent(ev)
		}
	}()
	defer func() {
		cancel()
		<-printed
	}()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	c.println("voicedesk ready. type \"help\" for commands.")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("read console: %w", err)
					}
				default:
				}
				return nil
			}
			if quit := c.exec(ctx, line); quit {
				return nil
			}
		}
	}
}

func (c *Console) exec(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch strings.ToLower(cmd) {
	case "":
	case "quit", "exit":
		return true
	case "help", "?":
		c.println(consoleHelp)
	case "hello":
		c.speech.Hello(ctx)
	case "health":
		c.speech.Health(ctx)
	case "say", "speak":
		c.speech.Speak(ctx, arg)
	case "rec", "toggle":
		c.control(ctx, c.recorder.Toggle)
	case "start":
		c.control(ctx, c.recorder.Start)
	case "stop":
		c.control(ctx, c.recorder.Stop)
	case "status":
		snap := c.recorder.Snapshot()
		c.println(fmt.Sprintf("state=%s supported=%t mode=%s recordings=%d status=%q",
			snap.StateName, snap.Supported, snap.Mode, snap.Recordings, c.feed.Status()))
	default:
		c.println(fmt.Sprintf("unknown command %q, type \"help\"", cmd))
	}
	return false
}

func (c *Console) control(ctx context.Context, fn func(context.Context) (recording.State, error)) {
	if _, err := fn(ctx); err != nil {
		c.logger.Warn("recording control failed", zap.Error(err))
		c.feed.ShowError("console", "control_failed", err.Error())
	}
}

func (c *Console) printEvent(ev any) {
	switch e := ev.(type) {
	case protocol.Status:
		c.println("[status] " + e.Text)
	case protocol.Transcript:
		c.println("[transcript] " + e.Text)
	case protocol.ErrorEvent:
		c.println(fmt.Sprintf("[error] %s: %s", e.Code, e.Detail))
	}
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, s)
}

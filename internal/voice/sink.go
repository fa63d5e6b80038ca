package voice

import (
	"time"

	"github.com/inboxpilot/voicepilot/pkg/core/logging"
)

type nopSink struct{}

func (nopSink) Render(Status)   {}
func (nopSink) Message(Message) {}

type nopCues struct{}

func (nopCues) Cue(Cue) {}

type nopHotword struct{}

func (nopHotword) Pause()                                {}
func (nopHotword) ResumeAfter(time.Duration, func() bool) {}
func (nopHotword) Configure(string, string)              {}

// MultiSink fans out to several sinks in order
type MultiSink []StatusSink

// Render forwards the status to every sink
func (m MultiSink) Render(st Status) {
	for _, s := range m {
		if s != nil {
			s.Render(st)
		}
	}
}

// Message forwards the message to every sink
func (m MultiSink) Message(msg Message) {
	for _, s := range m {
		if s != nil {
			s.Message(msg)
		}
	}
}

// LogSink writes status changes and messages to a logger
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a sink logging under name
func NewLogSink(name string) *LogSink {
	return &LogSink{logger: logging.New(name)}
}

// Render logs the state change
func (l *LogSink) Render(st Status) {
	l.logger.Debug("Status",
		"state", st.State,
		"previous", st.Previous,
		"mode", st.Mode,
		"turn", st.TurnID,
		"busy", st.Busy,
		"queue", st.Queue,
		"reason", st.Reason)
}

// Message logs a user-visible message at its level
func (l *LogSink) Message(msg Message) {
	switch msg.Level {
	case LevelError:
		l.logger.Error(msg.Text, "turn", msg.TurnID)
	case LevelWarn:
		l.logger.Warn(msg.Text, "turn", msg.TurnID)
	default:
		l.logger.Info(msg.Text, "turn", msg.TurnID)
	}
}

package system

import (
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// Scrollback is the console's fixed-capacity line log. A full log is
// emptied before the next line goes in. It is written from the log tee as
// well as the tick goroutine, hence the lock.
type Scrollback struct {
	mu    sync.Mutex
	lines []string
	limit int
}

func NewScrollback(limit int) *Scrollback {
	if limit <= 0 {
		limit = 16
	}
	return &Scrollback{lines: make([]string, 0, limit), limit: limit}
}

// Add appends text, one entry per line.
func (s *Scrollback) Add(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range strings.Split(text, "\n") {
		if len(s.lines) == s.limit {
			s.lines = s.lines[:0]
		}
		s.lines = append(s.lines, line)
	}
}

// Lines returns a copy of the current lines, oldest first.
func (s *Scrollback) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func (s *Scrollback) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

func (s *Scrollback) Clear() {
	s.mu.Lock()
	s.lines = s.lines[:0]
	s.mu.Unlock()
}

// Core returns a zapcore.Core that copies log entries at or above level into
// the scrollback. Tee it with the process core to mirror logs in the console.
func (s *Scrollback) Core(level zapcore.LevelEnabler) zapcore.Core {
	return &scrollCore{
		LevelEnabler: level,
		enc: zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			LevelKey:         "level",
			NameKey:          "logger",
			MessageKey:       "msg",
			EncodeLevel:      zapcore.CapitalLevelEncoder,
			EncodeName:       zapcore.FullNameEncoder,
			EncodeDuration:   zapcore.StringDurationEncoder,
			ConsoleSeparator: " ",
		}),
		sb: s,
	}
}

type scrollCore struct {
	zapcore.LevelEnabler
	enc zapcore.Encoder
	sb  *Scrollback
}

func (c *scrollCore) With(fields []zapcore.Field) zapcore.Core {
	enc := c.enc.Clone()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return &scrollCore{LevelEnabler: c.LevelEnabler, enc: enc, sb: c.sb}
}

func (c *scrollCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *scrollCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	c.sb.Add(strings.TrimRight(buf.String(), "\n"))
	buf.Free()
	return nil
}

func (c *scrollCore) Sync() error { return nil }

// Package logging builds the diagnostics logger shared by the hpc-container
// binaries. Lines are plain and human readable: errors go to stderr prefixed
// with "Error:", informational messages go to stdout unadorned.
package logging

import (
	"bytes"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/writer"
)

// DiagnosticFormatter renders an entry as a single line without fields or
// timestamps.
type DiagnosticFormatter struct{}

func (f *DiagnosticFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := &bytes.Buffer{}
	switch {
	case entry.Level <= logrus.ErrorLevel:
		b.WriteString("Error: ")
	case entry.Level == logrus.WarnLevel:
		b.WriteString("Warning: ")
	}
	b.WriteString(strings.TrimRight(entry.Message, "\r\n"))
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// NewLogger returns a logger writing info and below to stdout and warnings
// and above to stderr. An empty level means "info".
func NewLogger(stdout io.Writer, stderr io.Writer, level string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetFormatter(&DiagnosticFormatter{})
	logger.AddHook(&writer.Hook{
		Writer: stderr,
		LogLevels: []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
			logrus.WarnLevel,
		},
	})
	logger.AddHook(&writer.Hook{
		Writer: stdout,
		LogLevels: []logrus.Level{
			logrus.InfoLevel,
			logrus.DebugLevel,
			logrus.TraceLevel,
		},
	})
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logger, err
	}
	logger.SetLevel(lvl)
	return logger, nil
}

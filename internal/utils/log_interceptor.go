// Package utils provides small helpers shared by the cloudlinks daemon and CLI.
package utils

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// LogTimeFormat is the timestamp layout written in front of every log file line.
const LogTimeFormat = "2006-01-02 15:04:05.000"

// LogInterceptor implements io.Writer and prefixes every complete line with a
// local timestamp before forwarding it to the target writer. Partial lines are
// buffered until their newline arrives or Close is called.
type LogInterceptor struct {
	target io.Writer
	now    func() time.Time

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLogInterceptor creates a LogInterceptor writing to target.
func NewLogInterceptor(target io.Writer) *LogInterceptor {
	return &LogInterceptor{
		target: target,
		now:    time.Now,
	}
}

func (i *LogInterceptor) writeLine(line []byte) error {
	prefix := i.now().Format(LogTimeFormat) + " "
	if _, err := io.WriteString(i.target, prefix); err != nil {
		return err
	}
	if _, err := i.target.Write(line); err != nil {
		return err
	}
	_, err := io.WriteString(i.target, "\n")
	return err
}

// Write implements io.Writer. It reports len(p) on success so slog handlers
// never see a short write caused by the added prefix.
func (i *LogInterceptor) Write(p []byte) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.buf.Write(p)
	for {
		data := i.buf.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimSuffix(data[:idx], []byte("\r"))
		err := i.writeLine(line)
		i.buf.Next(idx + 1)
		if err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Close flushes any buffered partial line and closes the target if it is an io.Closer.
func (i *LogInterceptor) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	var err error
	if i.buf.Len() > 0 {
		err = i.writeLine(i.buf.Bytes())
		i.buf.Reset()
	}
	if c, ok := i.target.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

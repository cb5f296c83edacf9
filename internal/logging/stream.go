package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// StreamWriter is an io.Writer that logs every non-blank line it receives at
// a fixed level. Trailing whitespace is trimmed. A partial last line is held
// until a newline arrives or Flush is called.
type StreamWriter struct {
	logger zerolog.Logger
	level  zerolog.Level

	mu  sync.Mutex
	buf []byte
}

// NewStreamWriter creates a StreamWriter logging to logger at level.
func NewStreamWriter(logger zerolog.Logger, level zerolog.Level) *StreamWriter {
	return &StreamWriter{logger: logger, level: level}
}

func (w *StreamWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush logs any buffered partial line.
func (w *StreamWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *StreamWriter) emit(line []byte) {
	line = bytes.TrimRight(line, " \t\r\n")
	if len(line) == 0 {
		return
	}
	w.logger.WithLevel(w.level).Msg(string(line))
}

// RedirectStd replaces os.Stdout and os.Stderr with pipes whose output is
// logged line by line at stdoutLevel and stderrLevel. The returned function
// restores the original streams and waits until everything written so far
// has been logged.
func RedirectStd(logger zerolog.Logger, stdoutLevel, stderrLevel zerolog.Level) (func(), error) {
	origOut, origErr := os.Stdout, os.Stderr

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("redirecting stdout: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		_ = outR.Close()
		_ = outW.Close()
		return nil, fmt.Errorf("redirecting stderr: %w", err)
	}

	var wg sync.WaitGroup
	pump := func(r *os.File, w *StreamWriter) {
		defer wg.Done()
		_, _ = io.Copy(w, r)
		w.Flush()
		_ = r.Close()
	}
	wg.Add(2)
	go pump(outR, NewStreamWriter(logger, stdoutLevel))
	go pump(errR, NewStreamWriter(logger, stderrLevel))

	os.Stdout, os.Stderr = outW, errW

	var once sync.Once
	restore := func() {
		once.Do(func() {
			os.Stdout, os.Stderr = origOut, origErr
			_ = outW.Close()
			_ = errW.Close()
			wg.Wait()
		})
	}
	return restore, nil
}

package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// asyncWriter provides buffered asynchronous writes to one or more sinks.
type asyncWriter struct {
	queue    chan []byte
	flushReq chan chan error
	done     chan struct{}
	once     sync.Once
	sinks    []*bufio.Writer
	errMu    sync.Mutex
	writeErr error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	sinks := make([]*bufio.Writer, 0, len(writers))
	for _, w := range writers {
		if w == nil {
			continue
		}
		sinks = append(sinks, bufio.NewWriterSize(w, bufSize))
	}
	aw := &asyncWriter{
		queue:    make(chan []byte, 256),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
		sinks:    sinks,
	}
	go aw.loop()
	return aw
}

func (w *asyncWriter) loop() {
	for {
		select {
		case data, ok := <-w.queue:
			if !ok {
				w.flushAll()
				close(w.done)
				return
			}
			if len(data) == 0 {
				continue
			}
			if err := w.writeAll(data); err != nil {
				w.setErr(err)
			}
		case ack := <-w.flushReq:
			ack <- w.flushAll()
		}
	}
}

func (w *asyncWriter) writeAll(data []byte) error {
	var errs []error
	for _, sink := range w.sinks {
		if _, err := sink.Write(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) flushAll() error {
	var errs []error
	for _, sink := range w.sinks {
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) setErr(err error) {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.writeErr == nil {
		w.writeErr = err
	}
}

// Write enqueues one rendered log line. It drops the line instead of
// blocking when the queue is saturated.
func (w *asyncWriter) Write(line []byte) error {
	select {
	case <-w.done:
		return errors.New("logger: writer closed")
	default:
	}
	data := make([]byte, len(line))
	copy(data, line)
	select {
	case w.queue <- data:
		return nil
	default:
		return errors.New("logger: write queue full")
	}
}

// Flush forces buffered data out to all sinks.
func (w *asyncWriter) Flush() error {
	select {
	case <-w.done:
		return w.err()
	default:
	}
	ack := make(chan error, 1)
	select {
	case w.flushReq <- ack:
		return <-ack
	case <-w.done:
		return w.err()
	}
}

// Close stops the writer loop after draining queued lines.
func (w *asyncWriter) Close() error {
	w.once.Do(func() {
		close(w.queue)
	})
	<-w.done
	return w.err()
}

func (w *asyncWriter) err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.writeErr
}

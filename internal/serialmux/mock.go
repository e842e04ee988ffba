package serialmux

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

// ReplayPort implements SerialPorter by replaying canned device output on a
// fixed interval, for dev mode and demos without hardware attached. Writes
// are captured in memory.
type ReplayPort struct {
	reader io.Reader
	cancel func()

	mu      sync.Mutex
	written bytes.Buffer
	closed  bool
}

// NewReplayPort creates a port that emits line every interval until closed.
func NewReplayPort(line []byte, interval time.Duration) *ReplayPort {
	r, w := io.Pipe()
	done := make(chan struct{})

	go func() {
		defer w.Close()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := w.Write(line); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return &ReplayPort{
		reader: r,
		cancel: func() { once.Do(func() { close(done) }) },
	}
}

func (p *ReplayPort) Read(buf []byte) (int, error) {
	return p.reader.Read(buf)
}

func (p *ReplayPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.New("serial port closed")
	}
	return p.written.Write(data)
}

func (p *ReplayPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cancel()
	return nil
}

// Written returns everything written to the port so far.
func (p *ReplayPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// NewMockSerialMux creates a SerialMux backed by a replay port that repeats
// the given line twice a second.
func NewMockSerialMux(line []byte) *SerialMux[*ReplayPort] {
	return NewSerialMux(NewReplayPort(line, 500*time.Millisecond))
}

// TestableSerialPort implements SerialPorter with configurable behaviour for
// tests: scripted reads, captured writes, injectable errors, and optional
// blocking reads.
type TestableSerialPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls.
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port.
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set.
	ReadError error

	// WriteError is returned by the next Write call if set.
	WriteError error

	// CloseError is returned by Close if set.
	CloseError error

	// Closed indicates whether Close was called.
	Closed bool

	// BlockReads causes Read to block until data is added or Close is called.
	BlockReads bool

	readCond *sync.Cond
}

// NewTestableSerialPort creates a new TestableSerialPort.
func NewTestableSerialPort() *TestableSerialPort {
	tsp := &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tsp.readCond = sync.NewCond(&tsp.mu)
	return tsp
}

// Read reads from the read buffer, honouring the configured error and
// blocking behaviour.
func (t *TestableSerialPort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, io.EOF
	}

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	if t.BlockReads && t.ReadBuffer.Len() == 0 {
		for !t.Closed && t.ReadBuffer.Len() == 0 {
			t.readCond.Wait()
		}
		if t.Closed {
			return 0, io.EOF
		}
	}

	return t.ReadBuffer.Read(p)
}

// Write appends to the write buffer unless an error is scripted.
func (t *TestableSerialPort) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errors.New("serial port closed")
	}

	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}

	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed and wakes any blocked readers.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.readCond.Broadcast()

	return t.CloseError
}

// AddReadData appends data to be returned by subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
	t.readCond.Signal()
}

// WrittenData returns all data written to the port.
func (t *TestableSerialPort) WrittenData() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.WriteBuffer.String()
}

//go:build !tinygo

package acquisition

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.bug.st/serial"
)

// DefaultBaudRate suits 8000 lines per second of "vvvv,iiii\n".
const DefaultBaudRate = 921600

var _ Source = (*Serial)(nil)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial reads raw sample pairs streamed by an external converter board,
// one "voltage,current" line per pair, and pushes them into a DoubleBuffer.
type Serial struct {
	port     string
	baudRate int
	buf      *DoubleBuffer

	conn      serial.Port
	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
	dropped   atomic.Uint64

	// Set by the reader when the stream ends without Close.
	lost    atomic.Bool
	errMu   sync.Mutex
	readErr error
}

// NewSerial creates a serial source with a buffer of bufferPairs pairs.
func NewSerial(port string, baudRate int, bufferPairs int) (*Serial, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	buf, err := NewDoubleBuffer(bufferPairs)
	if err != nil {
		return nil, err
	}

	return &Serial{
		port:     port,
		baudRate: baudRate,
		buf:      buf,
	}, nil
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Connect opens the serial port and starts reading samples.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		if !d.lost.Load() {
			return fmt.Errorf("already connected")
		}
		d.teardown()
	}

	port, err := serial.Open(d.port, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.conn = port
	d.cancel = cancel
	d.done = make(chan struct{})
	d.connected = true
	d.lost.Store(false)
	d.setErr(nil)

	go d.readPairs(ctx, port, d.done)

	return nil
}

// Close closes the port and waits for the reader to exit.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.teardown()
	d.setErr(nil)
	return nil
}

// teardown stops the reader and closes the port. Caller holds mu.
func (d *Serial) teardown() {
	d.cancel()

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			slog.Warn("error closing serial port", "port", d.port, "err", err)
		}
		d.conn = nil
	}
	<-d.done

	d.connected = false
}

// IsConnected returns whether the port is open and still streaming.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected && !d.lost.Load()
}

// Done is closed when the reader exits, on Close or when the stream ends.
// It is nil before the first Connect.
func (d *Serial) Done() <-chan struct{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.done
}

// Err returns why the stream ended without Close, or nil.
func (d *Serial) Err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.readErr
}

func (d *Serial) setErr(err error) {
	d.errMu.Lock()
	d.readErr = err
	d.errMu.Unlock()
}

// Events returns the consumer view of the buffer.
func (d *Serial) Events() Events {
	return d.buf
}

// Dropped returns the number of malformed lines skipped so far.
func (d *Serial) Dropped() uint64 {
	return d.dropped.Load()
}

// readPairs parses lines from r until EOF, error or cancellation.
func (d *Serial) readPairs(ctx context.Context, r io.Reader, done chan<- struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		pair, err := parseLine(line)
		if err != nil {
			d.dropped.Add(1)
			slog.Debug("failed to parse sample line", "line", line, "err", err)
			continue
		}

		d.buf.Push(pair)
	}

	if ctx.Err() != nil {
		return
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	err = fmt.Errorf("%w: serial port %s: %w", ErrStreamEnded, d.port, err)
	slog.Error("serial stream ended", "port", d.port, "err", err)
	d.setErr(err)
	d.lost.Store(true)
}

// parseLine parses "voltage,current" into a RawSamplePair.
// Example: 2065,2045
func parseLine(line string) (RawSamplePair, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return RawSamplePair{}, fmt.Errorf("invalid line format: expected 2 comma-separated values, got %d", len(parts))
	}

	voltage, err := parseRaw(parts[0])
	if err != nil {
		return RawSamplePair{}, fmt.Errorf("invalid voltage: %w", err)
	}
	current, err := parseRaw(parts[1])
	if err != nil {
		return RawSamplePair{}, fmt.Errorf("invalid current: %w", err)
	}

	return RawSamplePair{Voltage: voltage, Current: current}, nil
}

func parseRaw(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, err
	}
	if v > MaxRaw {
		return 0, fmt.Errorf("out of range: %d (max %d)", v, MaxRaw)
	}
	return uint16(v), nil
}

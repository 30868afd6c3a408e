package gnss

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/location-orchestrator/internal/domain"
	"go.bug.st/serial"
)

// NMEAConfig holds configuration for the serial NMEA receiver.
type NMEAConfig struct {
	PortPath string
	BaudRate int
}

// NMEAReceiver reads NMEA 0183 sentences from a UART GNSS module.
type NMEAReceiver struct {
	portPath string
	baudRate int
	logger   *slog.Logger

	mu     sync.Mutex
	port   serial.Port
	reader *sentenceReader
}

// NewNMEA creates a serial NMEA receiver. A zero baud rate means 9600.
func NewNMEA(cfg NMEAConfig, logger *slog.Logger) *NMEAReceiver {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 9600
	}
	return &NMEAReceiver{portPath: cfg.PortPath, baudRate: cfg.BaudRate, logger: logger}
}

func (n *NMEAReceiver) Name() string { return "nmea:" + n.portPath }

// Connect opens the serial port. Lack of access to the device node is
// reported as domain.ErrPermissionDenied.
func (n *NMEAReceiver) Connect(_ context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	mode := &serial.Mode{
		BaudRate: n.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(n.portPath, mode)
	if err != nil {
		return classifySerialError(fmt.Errorf("open %s: %w", n.portPath, err))
	}
	if err := port.SetReadTimeout(200 * time.Millisecond); err != nil {
		_ = port.Close()
		return fmt.Errorf("set read timeout on %s: %w", n.portPath, err)
	}
	n.port = port
	n.reader = newSentenceReader(timeoutReader{port})
	n.logger.Info("gnss receiver connected", "port", n.portPath, "baud", n.baudRate)
	return nil
}

func (n *NMEAReceiver) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.port == nil {
		return nil
	}
	err := n.port.Close()
	n.port = nil
	n.reader = nil
	return err
}

// Read scans the port for the next RMC+GGA pair until ctx is done. A silent
// port costs one read timeout per ctx check.
func (n *NMEAReceiver) Read(ctx context.Context) (*domain.Fix, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.reader == nil {
		return nil, errors.New("gnss: receiver not connected")
	}

	for {
		fix, err := n.reader.next()
		switch {
		case err == nil:
			return fix, nil
		case errors.Is(err, errReadTimeout), errors.Is(err, io.EOF), errors.Is(err, io.ErrNoProgress):
			// The scanner stops for good on any error; keep the fix state
			// and start a fresh one over the same port.
			n.reader.rewind(timeoutReader{n.port})
		default:
			return fix, classifySerialError(err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

var errReadTimeout = errors.New("gnss: serial read timeout")

// timeoutReader turns the empty read a serial port returns on timeout into
// errReadTimeout, so the scanner hands control back instead of retrying.
type timeoutReader struct{ r io.Reader }

func (t timeoutReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n == 0 && err == nil {
		return 0, errReadTimeout
	}
	return n, err
}

func classifySerialError(err error) error {
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PermissionDenied {
		return domain.Tag(domain.ErrPermissionDenied, err)
	}
	return err
}

// rewind points the reader at r, keeping the accumulated fix state.
func (r *sentenceReader) rewind(src io.Reader) {
	r.scanner = bufio.NewScanner(src)
}

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rjboer/GoWSA/internal/logging"
	"github.com/rjboer/GoWSA/internal/wsaerr"
)

const (
	DefaultControlPort = "37001"
	DefaultDataPort    = "37000"
	DefaultMaxLine     = 512
)

// Options configures a Conn. Zero values select the defaults.
type Options struct {
	ControlPort  string
	DataPort     string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxLine bounds a single control-plane response, terminator included.
	MaxLine int
	// StaleWindow is how long a query waits for the late reply of an
	// earlier timed-out query before giving up on it. Default 1s.
	StaleWindow time.Duration
	// RecvBuffer sets SO_RCVBUF on the data socket where supported. Zero
	// keeps the OS default.
	RecvBuffer int
	Logger     logging.Logger
}

func (o Options) withDefaults() Options {
	if o.ControlPort == "" {
		o.ControlPort = DefaultControlPort
	}
	if o.DataPort == "" {
		o.DataPort = DefaultDataPort
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 2 * time.Second
	}
	if o.MaxLine <= 0 {
		o.MaxLine = DefaultMaxLine
	}
	if o.StaleWindow <= 0 {
		o.StaleWindow = time.Second
	}
	o.Logger = logging.OrDefault(o.Logger)
	return o
}

// Conn owns the control and data sockets of one analyser. Both are open or
// neither is.
type Conn struct {
	opts Options

	// ctrlMu keeps control-plane exchanges strictly request/response.
	ctrlMu  sync.Mutex
	control net.Conn
	// owed counts reply terminators still due from abandoned queries.
	owed int
	data    net.Conn
	closed  bool
}

// Dial opens the control socket and then the data socket on host. If the
// data socket cannot be opened the control socket is closed again.
func Dial(ctx context.Context, host string, opts Options) (*Conn, error) {
	opts = opts.withDefaults()
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" {
		return nil, wsaerr.New(wsaerr.InvIPHostAddress, "dial")
	}

	ctrlDialer := net.Dialer{Timeout: opts.DialTimeout}
	control, err := ctrlDialer.DialContext(ctx, "tcp", net.JoinHostPort(host, opts.ControlPort))
	if err != nil {
		return nil, wsaerr.Wrap(wsaerr.EthernetConnectFailed, "dial control", err)
	}

	dataDialer := net.Dialer{Timeout: opts.DialTimeout, Control: recvBufferControl(opts.RecvBuffer)}
	data, err := dataDialer.DialContext(ctx, "tcp", net.JoinHostPort(host, opts.DataPort))
	if err != nil {
		_ = control.Close()
		return nil, wsaerr.Wrap(wsaerr.EthernetConnectFailed, "dial data", err)
	}

	opts.Logger.Info("connected",
		logging.Field{Key: "host", Value: host},
		logging.Field{Key: "control_port", Value: opts.ControlPort},
		logging.Field{Key: "data_port", Value: opts.DataPort},
	)
	return &Conn{opts: opts, control: control, data: data}, nil
}

// NewFromConns wraps already-established sockets (tests, tunnels).
func NewFromConns(control, data net.Conn, opts Options) *Conn {
	return &Conn{opts: opts.withDefaults(), control: control, data: data}
}

// IsOpen reports whether both sockets are held.
func (c *Conn) IsOpen() bool {
	return c != nil && !c.closed && c.control != nil && c.data != nil
}

// Disconnect releases both sockets. Calling it again is a no-op.
func (c *Conn) Disconnect() error {
	if c == nil || c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	if c.control != nil {
		errs = append(errs, c.control.Close())
	}
	if c.data != nil {
		errs = append(errs, c.data.Close())
	}
	c.opts.Logger.Info("disconnected")
	return errors.Join(errs...)
}

// SendCommand writes one command line. No response is read.
func (c *Conn) SendCommand(line string) error {
	if !c.IsOpen() {
		return wsaerr.New(wsaerr.SocketError, "send command")
	}
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()
	if err := c.writeLine(line); err != nil {
		return wsaerr.Wrap(wsaerr.CmdSendFailed, "send "+trimLine(line), err)
	}
	return nil
}

// SendQuery writes a query line and reads the response up to the line
// terminator. A timeout is reported as QUERYNORESP, an overlong line as
// RESPUNKNOWN and a closed socket as SOCKETDROPPED. Replies still owed by
// earlier timed-out queries are discarded before the line is written.
func (c *Conn) SendQuery(line string, timeout time.Duration) (string, error) {
	if !c.IsOpen() {
		return "", wsaerr.New(wsaerr.SocketError, "send query")
	}
	op := "query " + trimLine(line)
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()
	c.skipStale()
	if err := c.writeLine(line); err != nil {
		return "", wsaerr.Wrap(wsaerr.CmdSendFailed, op, err)
	}
	resp, err := c.readLine(timeout)
	if err != nil {
		return "", classify(op, err)
	}
	return resp, nil
}

// RecvData reads exactly len(buf) bytes from the data socket, looping over
// short reads until the buffer is full or timeout elapses. It returns the
// number of bytes read, which is short of len(buf) only on error.
func (c *Conn) RecvData(buf []byte, timeout time.Duration) (int, error) {
	if !c.IsOpen() {
		return 0, wsaerr.New(wsaerr.SocketError, "recv data")
	}
	if timeout > 0 {
		_ = c.data.SetReadDeadline(time.Now().Add(timeout))
		defer c.data.SetReadDeadline(time.Time{})
	}
	n, err := io.ReadFull(c.data, buf)
	if err != nil {
		return n, classify("recv data", err)
	}
	return n, nil
}

// Drain discards whatever arrives on the data socket for window and returns
// the number of bytes thrown away. Idle periods are expected and not errors.
func (c *Conn) Drain(window time.Duration) (int64, error) {
	if !c.IsOpen() {
		return 0, wsaerr.New(wsaerr.SocketError, "drain")
	}
	defer c.data.SetReadDeadline(time.Time{})

	var total int64
	scratch := make([]byte, 64*1024)
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		_ = c.data.SetReadDeadline(deadline)
		n, err := c.data.Read(scratch)
		total += int64(n)
		if err == nil {
			continue
		}
		if isTimeout(err) {
			break
		}
		if errors.Is(err, io.EOF) {
			return total, wsaerr.Wrap(wsaerr.SocketDropped, "drain", err)
		}
		return total, wsaerr.Wrap(wsaerr.SocketError, "drain", err)
	}
	return total, nil
}

func (c *Conn) writeLine(line string) error {
	if !hasLineEnding(line) {
		line += "\n"
	}
	_ = c.control.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	b := []byte(line)
	for len(b) > 0 {
		n, err := c.control.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

var errLineTooLong = errors.New("response exceeds maximum line length")

// readLine reads one LF-terminated response byte by byte so nothing past the
// terminator is consumed. CR bytes are dropped. A response that times out
// or overflows without its terminator leaves one reply owed.
func (c *Conn) readLine(timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = time.Second
	}
	_ = c.control.SetReadDeadline(time.Now().Add(timeout))
	defer c.control.SetReadDeadline(time.Time{})

	buf := make([]byte, 0, 64)
	var one [1]byte
	for read := 0; ; read++ {
		if read >= c.opts.MaxLine {
			c.discardLine()
			return "", errLineTooLong
		}
		if _, err := c.control.Read(one[:]); err != nil {
			if isTimeout(err) {
				c.owed++
			}
			return "", err
		}
		switch one[0] {
		case '\n':
			return string(buf), nil
		case '\r':
			continue
		}
		buf = append(buf, one[0])
	}
}

// discardLine throws away the rest of an overlong response under the
// current read deadline.
func (c *Conn) discardLine() {
	var one [1]byte
	for {
		if _, err := c.control.Read(one[:]); err != nil {
			if isTimeout(err) {
				c.owed++
			}
			return
		}
		if one[0] == '\n' {
			return
		}
	}
}

// skipStale reads and drops owed replies. A reply that has not arrived
// within StaleWindow is written off.
func (c *Conn) skipStale() {
	if c.owed == 0 {
		return
	}
	_ = c.control.SetReadDeadline(time.Now().Add(c.opts.StaleWindow))
	defer c.control.SetReadDeadline(time.Time{})

	var one [1]byte
	var skipped int
	for c.owed > 0 {
		if _, err := c.control.Read(one[:]); err != nil {
			c.opts.Logger.Warn("stale reply never arrived",
				logging.Field{Key: "owed", Value: c.owed},
				logging.Field{Key: "err", Value: err},
			)
			c.owed = 0
			return
		}
		skipped++
		if one[0] == '\n' {
			c.owed--
		}
	}
	c.opts.Logger.Debug("stale reply discarded", logging.Field{Key: "bytes", Value: skipped})
}

func classify(op string, err error) error {
	switch {
	case errors.Is(err, errLineTooLong):
		return wsaerr.Wrap(wsaerr.RespUnknown, op, err)
	case isTimeout(err):
		return wsaerr.Wrap(wsaerr.QueryNoResp, op, err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, net.ErrClosed):
		return wsaerr.Wrap(wsaerr.SocketDropped, op, err)
	default:
		return wsaerr.Wrap(wsaerr.SocketError, op, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// hasLineEnding checks whether the string already ends with CR or LF.
func hasLineEnding(s string) bool {
	return len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r')
}

func trimLine(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func (c *Conn) String() string {
	if c == nil || c.control == nil {
		return "transport.Conn(closed)"
	}
	return fmt.Sprintf("transport.Conn(%s)", c.control.RemoteAddr())
}

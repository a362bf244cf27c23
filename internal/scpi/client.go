package scpi

import (
	"strconv"
	"strings"
	"time"

	"github.com/rjboer/GoWSA/internal/device"
	"github.com/rjboer/GoWSA/internal/logging"
	"github.com/rjboer/GoWSA/internal/wsaerr"
)

// Transport is the control plane used by the Client.
type Transport interface {
	SendCommand(line string) error
	SendQuery(line string, timeout time.Duration) (string, error)
}

// Observer receives the outcome of every control-plane exchange.
type Observer interface {
	ObserveExchange(kind string, elapsed time.Duration, err error)
}

// Device error codes that are reported but do not fail the command.
const settingsConflict = -221

// Client issues commands and queries over a Transport.
type Client struct {
	T       Transport
	Timeout time.Duration
	// CheckErrors makes Exec read SYST:ERR? after each command.
	CheckErrors bool
	Logger      logging.Logger
	Observer    Observer
}

// NewClient returns a Client that checks the device error queue after every
// command.
func NewClient(t Transport, logger logging.Logger) *Client {
	return &Client{
		T:           t,
		Timeout:     time.Second,
		CheckErrors: true,
		Logger:      logging.OrDefault(logger),
	}
}

func (c *Client) log() logging.Logger { return logging.OrDefault(c.Logger) }

func (c *Client) observe(kind string, start time.Time, err error) {
	if c.Observer != nil {
		c.Observer.ObserveExchange(kind, time.Since(start), err)
	}
}

// Send writes a raw command line without checking the error queue.
func (c *Client) Send(line string) error {
	start := time.Now()
	err := c.T.SendCommand(line)
	c.observe("command", start, err)
	c.log().Debug("scpi command", logging.Field{Key: "cmd", Value: line}, logging.Field{Key: "err", Value: err})
	return err
}

// Exec sends "PATH args" and, when CheckErrors is set, confirms the device
// accepted it.
func (c *Client) Exec(path string, args ...any) error {
	line := Command(path, args...)
	if err := c.Send(line); err != nil {
		return err
	}
	if !c.CheckErrors {
		return nil
	}
	code, msg, err := c.SystemError()
	if err != nil {
		return err
	}
	switch {
	case code == 0:
		return nil
	case code == settingsConflict:
		c.log().Warn("device reported settings conflict", logging.Field{Key: "cmd", Value: line}, logging.Field{Key: "msg", Value: msg})
		return nil
	default:
		return wsaerr.Errorf(wsaerr.SetFailed, line, "device error %d: %s", code, msg)
	}
}

// QueryRaw sends a raw query line and returns the raw response text.
func (c *Client) QueryRaw(line string) (string, error) {
	start := time.Now()
	resp, err := c.T.SendQuery(line, c.Timeout)
	c.observe("query", start, err)
	c.log().Debug("scpi query", logging.Field{Key: "cmd", Value: line}, logging.Field{Key: "resp", Value: resp}, logging.Field{Key: "err", Value: err})
	return resp, err
}

// Query sends "PATH? args" and returns the trimmed response.
func (c *Client) Query(path string, args ...any) (string, error) {
	resp, err := c.QueryRaw(Query(path, args...))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

// QueryInt queries a single integer value.
func (c *Client) QueryInt(path string, args ...any) (int64, error) {
	resp, err := c.Query(path, args...)
	if err != nil {
		return 0, err
	}
	return ParseInt(resp)
}

// QueryFloat queries a single decimal value.
func (c *Client) QueryFloat(path string, args ...any) (float64, error) {
	resp, err := c.Query(path, args...)
	if err != nil {
		return 0, err
	}
	return ParseFloat(resp)
}

// QueryFields queries a positional response of exactly n fields.
func (c *Client) QueryFields(n int, path string, args ...any) ([]string, error) {
	resp, err := c.Query(path, args...)
	if err != nil {
		return nil, err
	}
	return Fields(resp, n)
}

// QueryTokens queries a positional response of variable length.
func (c *Client) QueryTokens(path string, args ...any) (*Tokens, error) {
	resp, err := c.Query(path, args...)
	if err != nil {
		return nil, err
	}
	return NewTokens(resp), nil
}

// SystemError pops one entry of the device error queue. An empty response
// or "No error" yields code 0.
func (c *Client) SystemError() (int, string, error) {
	resp, err := c.QueryRaw("SYST:ERR?")
	if err != nil {
		return 0, "", err
	}
	resp = strings.TrimSpace(resp)
	if resp == "" || strings.Contains(resp, "No error") {
		return 0, "", nil
	}
	codeText, msg, _ := strings.Cut(resp, ",")
	code, err := strconv.Atoi(strings.TrimSpace(codeText))
	if err != nil {
		return 0, "", wsaerr.Errorf(wsaerr.RespUnknown, "SYST:ERR?", "unexpected response %q", resp)
	}
	return code, clean(msg), nil
}

// Identify queries *IDN?.
func (c *Client) Identify() (device.Identity, error) {
	resp, err := c.QueryRaw("*IDN?")
	if err != nil {
		return device.Identity{}, err
	}
	return device.ParseIdentity(resp)
}

// StatusByte queries *STB?.
func (c *Client) StatusByte() (int, error) {
	v, err := c.QueryInt("*STB")
	return int(v), err
}

// EventStatus queries *ESR?.
func (c *Client) EventStatus() (int, error) {
	v, err := c.QueryInt("*ESR")
	return int(v), err
}

// Reset sends *RST.
func (c *Client) Reset() error {
	return c.Exec("*RST")
}

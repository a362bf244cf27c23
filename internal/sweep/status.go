package sweep

import (
	"strings"

	"github.com/rjboer/GoWSA/internal/scpi"
	"github.com/rjboer/GoWSA/internal/wsaerr"
)

// Status is the device-reported state of the sweep list.
type Status int

const (
	StatusUnknown Status = iota
	Stopped
	Running
)

func (s Status) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Running:
		return "RUNNING"
	default:
		return "UNKNOWN"
	}
}

// QueryStatus asks the device for the sweep list status. It is never cached:
// another client or the device itself may have changed it.
func QueryStatus(c *scpi.Client) (Status, error) {
	resp, err := c.Query("SWEEP:LIST:STATUS")
	if err != nil {
		return StatusUnknown, err
	}
	switch {
	case strings.Contains(resp, "STOPPED"):
		return Stopped, nil
	case strings.Contains(resp, "RUNNING"):
		return Running, nil
	default:
		return StatusUnknown, wsaerr.Errorf(wsaerr.SweepModeUndef, "sweep status", "unexpected status %q", resp)
	}
}

// RefuseIfRunning fails with SWEEPALREADYRUNNING when the list is running.
func RefuseIfRunning(c *scpi.Client, op string) error {
	st, err := QueryStatus(c)
	if err != nil {
		return err
	}
	if st == Running {
		return wsaerr.New(wsaerr.SweepAlreadyRunning, op)
	}
	return nil
}

package sweep

import (
	"strings"
	"time"

	"github.com/rjboer/GoWSA/internal/device"
	"github.com/rjboer/GoWSA/internal/logging"
	"github.com/rjboer/GoWSA/internal/metrics"
	"github.com/rjboer/GoWSA/internal/scpi"
	"github.com/rjboer/GoWSA/internal/telemetry"
	"github.com/rjboer/GoWSA/internal/wsaerr"
)

// DefaultDrainWindow is how long Stop discards data after the list stops.
const DefaultDrainWindow = 5 * time.Second

// Drainer discards in-flight bytes on the data socket.
type Drainer interface {
	Drain(window time.Duration) (int64, error)
}

// Options tunes a Machine. Zero values select the defaults.
type Options struct {
	DrainWindow time.Duration
	Logger      logging.Logger
	Metrics     *metrics.Metrics
	Reporter    telemetry.Reporter
}

// Machine is the client side of the device sweep list. The device owns the
// list and its status; the machine keeps only a shadow of the entry
// template and queries status before every guarded transition.
type Machine struct {
	c        *scpi.Client
	data     Drainer
	desc     *device.Descriptor
	opts     Options
	logger   logging.Logger
	template Entry
}

// NewMachine builds a Machine. data may be nil, in which case Stop skips
// the drain.
func NewMachine(c *scpi.Client, data Drainer, desc *device.Descriptor, opts Options) *Machine {
	if opts.DrainWindow <= 0 {
		opts.DrainWindow = DefaultDrainWindow
	}
	return &Machine{
		c:        c,
		data:     data,
		desc:     desc,
		opts:     opts,
		logger:   logging.OrDefault(opts.Logger).With(logging.Field{Key: "component", Value: "sweep"}),
		template: DefaultEntry(desc),
	}
}

// Template returns the staged entry as last written through this machine.
func (m *Machine) Template() Entry { return m.template }

// Status queries the list status.
func (m *Machine) Status() (Status, error) {
	return QueryStatus(m.c)
}

// Size queries the number of entries in the list.
func (m *Machine) Size() (int, error) {
	n, err := m.c.QueryInt("SWEEP:ENTRY:COUNT")
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, wsaerr.Errorf(wsaerr.RespUnknown, "sweep size", "negative entry count %d", n)
	}
	return int(n), nil
}

// New resets the device template and the local shadow to defaults.
func (m *Machine) New() error {
	if err := m.c.Exec("SWEEP:ENTRY:NEW"); err != nil {
		return err
	}
	m.template = DefaultEntry(m.desc)
	return nil
}

// Save commits the template to list position id. Zero appends.
func (m *Machine) Save(id int) error {
	const op = "sweep entry save"
	if err := RefuseIfRunning(m.c, op); err != nil {
		return err
	}
	size, err := m.Size()
	if err != nil {
		return err
	}
	if id < 0 || id > size+1 {
		return wsaerr.Errorf(wsaerr.SweepIDOOB, op, "id %d outside [0, %d]", id, size+1)
	}
	return m.c.Exec("SWEEP:ENTRY:SAVE", id)
}

// Delete removes entry id.
func (m *Machine) Delete(id int) error {
	const op = "sweep entry delete"
	if err := RefuseIfRunning(m.c, op); err != nil {
		return err
	}
	if err := m.checkID(op, id, wsaerr.SweepIDOOB); err != nil {
		return err
	}
	return m.c.Exec("SWEEP:ENTRY:DELETE", id)
}

// DeleteAll empties the list.
func (m *Machine) DeleteAll() error {
	if err := RefuseIfRunning(m.c, "sweep entry delete all"); err != nil {
		return err
	}
	return m.c.Exec("SWEEP:ENTRY:DELETE", "ALL")
}

// Copy loads entry id into the template and refreshes the local shadow.
func (m *Machine) Copy(id int) error {
	const op = "sweep entry copy"
	if err := RefuseIfRunning(m.c, op); err != nil {
		return err
	}
	if err := m.checkID(op, id, wsaerr.SweepListEmpty); err != nil {
		return err
	}
	if err := m.c.Exec("SWEEP:ENTRY:COPY", id); err != nil {
		return err
	}
	e, err := m.Read(id)
	if err != nil {
		return err
	}
	m.template = e
	return nil
}

// checkID validates a 1-based id against the current list size. An empty
// list fails with empty.
func (m *Machine) checkID(op string, id int, empty wsaerr.Code) error {
	size, err := m.Size()
	if err != nil {
		return err
	}
	if size == 0 {
		return wsaerr.Errorf(empty, op, "list is empty")
	}
	if id < 1 || id > size {
		return wsaerr.Errorf(wsaerr.SweepIDOOB, op, "id %d outside [1, %d]", id, size)
	}
	return nil
}

// Read queries and parses persisted entry id.
func (m *Machine) Read(id int) (Entry, error) {
	const op = "sweep entry read"
	if id < 1 {
		return Entry{}, wsaerr.Errorf(wsaerr.SweepIDOOB, op, "id %d", id)
	}
	resp, err := m.c.Query("SWEEP:ENTRY:READ", id)
	if err != nil {
		return Entry{}, err
	}
	e, err := parseEntry(resp)
	if err != nil {
		return Entry{}, err
	}
	if err := e.Validate(m.desc, op); err != nil {
		return Entry{}, wsaerr.Wrap(wsaerr.RespUnknown, op, err)
	}
	return e, nil
}

// List reads every persisted entry in order.
func (m *Machine) List() ([]Entry, error) {
	size, err := m.Size()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, size)
	for id := 1; id <= size; id++ {
		e, err := m.Read(id)
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Start begins sweeping the list from its first entry.
func (m *Machine) Start() error {
	err := m.transition("start", "SWEEP:LIST:START")
	m.observe("start", err)
	return err
}

// Resume continues sweeping from the entry active when Stop was issued.
func (m *Machine) Resume() error {
	err := m.transition("resume", "SWEEP:LIST:RESUME")
	m.observe("resume", err)
	return err
}

func (m *Machine) transition(name, cmd string) error {
	op := "sweep " + name
	if err := RefuseIfRunning(m.c, op); err != nil {
		return err
	}
	size, err := m.Size()
	if err != nil {
		return err
	}
	if size == 0 {
		return wsaerr.New(wsaerr.SweepListEmpty, op)
	}
	return m.c.Exec(cmd)
}

// Stop halts the list, flushes device buffers and drains the data socket
// for the drain window. The flush and drain are best effort: packets sent
// before the device stopped are discarded so the next read starts on a
// packet boundary.
func (m *Machine) Stop() error {
	if err := m.c.Exec("SWEEP:LIST:STOP"); err != nil {
		m.observe("stop", err)
		return err
	}
	if err := m.c.Exec("SWEEP:FLUSH"); err != nil {
		m.logger.Warn("flush after stop", logging.Field{Key: "err", Value: err})
	}
	var drained int64
	if m.data != nil {
		n, err := m.data.Drain(m.opts.DrainWindow)
		drained = n
		m.opts.Metrics.ObserveDrain(n)
		if err != nil {
			m.logger.Warn("drain after stop", logging.Field{Key: "err", Value: err}, logging.Field{Key: "bytes", Value: n})
		}
	}
	m.logger.Info("sweep stopped", logging.Field{Key: "drained_bytes", Value: drained})
	telemetry.Emit(m.opts.Reporter, telemetry.Event{Kind: telemetry.KindSweep, Detail: "stop", Bytes: drained}, nil)
	m.opts.Metrics.ObserveSweep("stop", nil)
	return nil
}

func (m *Machine) observe(name string, err error) {
	m.opts.Metrics.ObserveSweep(name, err)
	telemetry.Emit(m.opts.Reporter, telemetry.Event{Kind: telemetry.KindSweep, Detail: name}, err)
	if err != nil {
		m.logger.Warn("sweep "+name+" refused", logging.Field{Key: "err", Value: err})
		return
	}
	m.logger.Info("sweep " + name)
}

// SetIterations sets how many passes the list makes. Zero sweeps forever.
func (m *Machine) SetIterations(n int) error {
	if n < 0 {
		return wsaerr.Errorf(wsaerr.InvIteration, "sweep iterations", "%d", n)
	}
	return m.c.Exec("SWEEP:LIST:ITERATION", n)
}

// Iterations queries the pass count.
func (m *Machine) Iterations() (int, error) {
	n, err := m.c.QueryInt("SWEEP:LIST:ITERATION")
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, wsaerr.Errorf(wsaerr.RespUnknown, "sweep iterations", "negative count %d", n)
	}
	return int(n), nil
}

// Apply stages every field of e in the device template.
func (m *Machine) Apply(e Entry) error {
	steps := []func() error{
		func() error { return m.SetFreq(e.StartFreq, e.StopFreq) },
		func() error { return m.SetFreqStep(e.FreqStep) },
		func() error { return m.SetFreqShift(e.FreqShift) },
		func() error { return m.SetDecimation(e.Decimation) },
		func() error { return m.SetAntenna(e.Antenna) },
		func() error { return m.SetGainRF(e.GainRF) },
		func() error { return m.SetGainIF(e.GainIF) },
		func() error { return m.SetSamplesPerPacket(e.SamplesPerPacket) },
		func() error { return m.SetPacketsPerBlock(e.PacketsPerBlock) },
		func() error { return m.SetDwell(e.DwellSec, e.DwellUsec) },
	}
	if e.TriggerEnable {
		steps = append(steps, func() error { return m.SetTriggerLevel(e.TriggerStart, e.TriggerStop, e.TriggerAmplitude) })
	}
	steps = append(steps, func() error { return m.SetTriggerEnable(e.TriggerEnable) })
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// normalizeTrigger trims the trigger type reply to LEVEL or NONE.
func normalizeTrigger(resp string) (bool, error) {
	switch {
	case strings.Contains(resp, triggerLevel):
		return true, nil
	case strings.Contains(resp, triggerNone):
		return false, nil
	default:
		return false, wsaerr.Errorf(wsaerr.RespUnknown, "sweep trigger type", "unexpected response %q", resp)
	}
}

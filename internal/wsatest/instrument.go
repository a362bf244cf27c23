// Package wsatest provides a scripted analyser on in-memory pipes for tests.
package wsatest

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/rjboer/GoWSA/internal/transport"
)

// Handler answers one query. args is the text after the query path.
type Handler func(args string) string

// Instrument plays the device side of both sockets. Commands are recorded,
// queries are answered from registered handlers, and SYST:ERR? reports no
// error unless overridden.
type Instrument struct {
	t testing.TB

	mu       sync.Mutex
	lines    []string
	handlers map[string]Handler
	onCmd    map[string]func(args string)

	ctrlServer net.Conn
	dataServer net.Conn
	conn       *transport.Conn

	dataQ chan []byte
	done  chan struct{}
}

// NewInstrument starts the responder goroutines. They stop when the test ends.
func NewInstrument(t testing.TB) *Instrument {
	t.Helper()
	ctrlClient, ctrlServer := net.Pipe()
	dataClient, dataServer := net.Pipe()

	in := &Instrument{
		t:          t,
		handlers:   make(map[string]Handler),
		onCmd:      make(map[string]func(string)),
		ctrlServer: ctrlServer,
		dataServer: dataServer,
		conn:       transport.NewFromConns(ctrlClient, dataClient, transport.Options{}),
		dataQ:      make(chan []byte, 64),
		done:       make(chan struct{}),
	}
	go in.serveControl()
	go in.serveData()

	t.Cleanup(func() {
		close(in.done)
		in.conn.Disconnect()
		ctrlServer.Close()
		dataServer.Close()
	})
	return in
}

// Conn returns the client side of both sockets.
func (in *Instrument) Conn() *transport.Conn { return in.conn }

// Handle registers fn for a query path such as "SWEEP:LIST:STATUS?".
func (in *Instrument) Handle(query string, fn Handler) {
	in.mu.Lock()
	in.handlers[strings.ToUpper(query)] = fn
	in.mu.Unlock()
}

// Respond registers a fixed response for a query path.
func (in *Instrument) Respond(query, resp string) {
	in.Handle(query, func(string) string { return resp })
}

// OnCommand registers a hook run when a line with the given path arrives.
// Hooked query paths are not answered on the control socket.
func (in *Instrument) OnCommand(path string, fn func(args string)) {
	in.mu.Lock()
	in.onCmd[strings.ToUpper(path)] = fn
	in.mu.Unlock()
}

// Lines returns every line received so far, without terminators.
func (in *Instrument) Lines() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]string, len(in.lines))
	copy(out, in.lines)
	return out
}

// Count returns how many received lines start with prefix.
func (in *Instrument) Count(prefix string) int {
	n := 0
	for _, l := range in.Lines() {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

// Commands returns the received lines that are not queries.
func (in *Instrument) Commands() []string {
	var out []string
	for _, l := range in.Lines() {
		path, _, _ := strings.Cut(l, " ")
		if !strings.HasSuffix(path, "?") {
			out = append(out, l)
		}
	}
	return out
}

// SendData queues bytes for the data socket. Writes happen in order.
func (in *Instrument) SendData(b []byte) {
	cp := make([]byte, len(b))
	copy(cp, b)
	select {
	case in.dataQ <- cp:
	case <-in.done:
	}
}

func (in *Instrument) serveData() {
	for {
		select {
		case b := <-in.dataQ:
			if _, err := in.dataServer.Write(b); err != nil {
				return
			}
		case <-in.done:
			return
		}
	}
}

func (in *Instrument) serveControl() {
	r := bufio.NewReader(in.ctrlServer)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		path, args, _ := strings.Cut(line, " ")
		key := strings.ToUpper(path)

		in.mu.Lock()
		in.lines = append(in.lines, line)
		handler := in.handlers[key]
		hook := in.onCmd[key]
		in.mu.Unlock()

		// A hooked path never gets a control reply, so a data trigger such
		// as TRACE:BLOCK:DATA? can answer on the data socket instead.
		if hook != nil {
			hook(args)
			continue
		}
		if !strings.HasSuffix(path, "?") {
			continue
		}

		var resp string
		switch {
		case handler != nil:
			resp = handler(args)
		case key == "SYST:ERR?":
			resp = `0,"No error"`
		default:
			in.t.Errorf("wsatest: unexpected query %q", line)
		}
		if _, err := in.ctrlServer.Write([]byte(resp + "\n")); err != nil {
			return
		}
	}
}

package api

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
)

// Transport is one bidirectional API session (spec §4.6): a Unix
// socket connection or a pair of named pipes. Both wire-compatible
// transports expose the same newline-framed command/response grammar,
// so the reactor only ever talks to this interface.
type Transport interface {
	Read() (Command, error)
	Write(Response) error
	WriteEvent(Event) error
	Close() error
}

// writeEvent renders ev as a pretty-printed JSON block terminated by a
// newline (spec §4.6 "Framing") shared by both transport kinds.
func writeEvent(w interface{ Write([]byte) (int, error) }, ev Event) error {
	encoded, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(encoded, '\n'))
	return err
}

// socketTransport wraps one accepted Unix socket connection.
type socketTransport struct {
	conn net.Conn
	r    *bufio.Scanner
}

func newSocketTransport(conn net.Conn) *socketTransport {
	return &socketTransport{conn: conn, r: bufio.NewScanner(conn)}
}

func (t *socketTransport) Read() (Command, error) {
	if !t.r.Scan() {
		if err := t.r.Err(); err != nil {
			return Command{}, err
		}
		return Command{}, os.ErrClosed
	}
	return ParseCommand(t.r.Text())
}

func (t *socketTransport) Write(r Response) error {
	_, err := t.conn.Write([]byte(r.String() + "\n"))
	return err
}

func (t *socketTransport) WriteEvent(ev Event) error {
	return writeEvent(t.conn, ev)
}

func (t *socketTransport) Close() error {
	return t.conn.Close()
}

// SocketListener accepts Unix socket connections at path (spec §4.6
// "Unix socket: exabgp.sock"), handing each one back as a Transport.
type SocketListener struct {
	ln net.Listener
}

// ListenSocket removes any stale socket file at path (a clean restart
// leaves one behind) and starts listening.
func ListenSocket(path string) (*SocketListener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	return &SocketListener{ln: ln}, nil
}

// Accept blocks until a client connects. Like the peer TCP listener,
// this runs on its own goroutine in main; the reactor never blocks.
func (l *SocketListener) Accept() (Transport, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return newSocketTransport(conn), nil
}

func (l *SocketListener) Close() error {
	return l.ln.Close()
}

// pipeTransport is the legacy named-pipe transport (spec §4.6 "Named
// pipes (legacy opt-in)"): <dir>/exabgp.in carries commands from the
// client, <dir>/exabgp.out carries responses back.
type pipeTransport struct {
	in  *os.File
	out *os.File
	r   *bufio.Scanner
}

// OpenPipes opens (but does not create; the operator or an init
// script creates the FIFOs with mkfifo) the in/out pipe pair under
// dir.
func OpenPipes(dir string) (Transport, error) {
	in, err := os.OpenFile(filepath.Join(dir, "exabgp.in"), os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	out, err := os.OpenFile(filepath.Join(dir, "exabgp.out"), os.O_WRONLY, 0)
	if err != nil {
		in.Close()
		return nil, err
	}
	return &pipeTransport{in: in, out: out, r: bufio.NewScanner(in)}, nil
}

func (t *pipeTransport) Read() (Command, error) {
	if !t.r.Scan() {
		if err := t.r.Err(); err != nil {
			return Command{}, err
		}
		return Command{}, os.ErrClosed
	}
	return ParseCommand(t.r.Text())
}

func (t *pipeTransport) Write(r Response) error {
	_, err := t.out.Write([]byte(r.String() + "\n"))
	return err
}

func (t *pipeTransport) WriteEvent(ev Event) error {
	return writeEvent(t.out, ev)
}

func (t *pipeTransport) Close() error {
	inErr := t.in.Close()
	outErr := t.out.Close()
	if inErr != nil {
		return inErr
	}
	return outErr
}

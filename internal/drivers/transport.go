// Package drivers implements the instrument capability surface for the
// three supported hardware families: SCPI sources/meters over serial, an
// IPS120-style magnet PSU over Prologix GPIB, and a MercuryiPS-style magnet
// over serial SCPI. All protocol logic is written against small transport
// interfaces; real ports appear only in the Open* factories.
package drivers

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Transport is the byte-level connection to an instrument.
type Transport interface {
	io.ReadWriter
	io.Closer
}

// conn wraps a Transport with line-oriented send and ask primitives.
type conn struct {
	tr   Transport
	br   *bufio.Reader
	term string
}

func newConn(tr Transport, term string) *conn {
	if term == "" {
		term = "\n"
	}
	return &conn{tr: tr, br: bufio.NewReader(tr), term: term}
}

// send writes one terminated command.
func (c *conn) send(cmd string) error {
	if _, err := io.WriteString(c.tr, cmd+c.term); err != nil {
		return fmt.Errorf("send %q: %w", cmd, err)
	}
	return nil
}

// ask writes one terminated command and reads one reply line.
func (c *conn) ask(cmd string) (string, error) {
	if err := c.send(cmd); err != nil {
		return "", err
	}
	line, err := c.br.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("ask %q: read reply: %w", cmd, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *conn) Close() error {
	return c.tr.Close()
}

// Package listener lets plain HTTP and TLS proxy clients share one port.
package listener

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"
)

// DefaultHandshakeTimeout bounds how long a client has to send its first bytes and,
// for TLS clients, to complete the handshake.
const DefaultHandshakeTimeout = 10 * time.Second

// tlsRecordHeaderLen is the length of the header of a TLS record.
const tlsRecordHeaderLen = 5

// Rejection stages reported in RejectedError.
const (
	StageSniff     = "reading first bytes"
	StageHandshake = "tls handshake"
)

// RejectedError describes a client connection that was closed before it reached the proxy.
type RejectedError struct {
	Remote net.Addr
	Stage  string
	Err    error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s from %s : %v", e.Stage, e.Remote, e.Err)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// sniffedConn replays the bytes read while sniffing before reading from the connection.
type sniffedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (c *sniffedConn) Read(b []byte) (int, error) {
	return c.reader.Read(b)
}

// Mux terminates TLS for clients whose first bytes are a TLS handshake record and
// hands every other client through unchanged.
type Mux struct {
	net.Listener
	TLSConfig *tls.Config
	Timeout   time.Duration
}

func NewMux(l net.Listener, tlsConfig *tls.Config) *Mux {
	return &Mux{
		Listener:  l,
		TLSConfig: tlsConfig,
		Timeout:   DefaultHandshakeTimeout,
	}
}

// Accept returns the next client. Clients that fail sniffing or the TLS handshake are
// closed and reported as *RejectedError.
func (m *Mux) Accept() (net.Conn, error) {
	conn, err := m.Listener.Accept()
	if err != nil {
		return nil, fmt.Errorf("accepting connection : %w", err)
	}

	sniffed, isTLS, err := m.sniff(conn)
	if err != nil {
		conn.Close()
		return nil, &RejectedError{Remote: conn.RemoteAddr(), Stage: StageSniff, Err: err}
	}
	if !isTLS {
		return sniffed, nil
	}

	tlsConn, err := m.handshake(sniffed)
	if err != nil {
		conn.Close()
		return nil, &RejectedError{Remote: conn.RemoteAddr(), Stage: StageHandshake, Err: err}
	}
	return tlsConn, nil
}

func (m *Mux) sniff(conn net.Conn) (*sniffedConn, bool, error) {
	if err := conn.SetReadDeadline(time.Now().Add(m.Timeout)); err != nil {
		return nil, false, err
	}
	reader := bufio.NewReader(conn)
	header, peekErr := reader.Peek(tlsRecordHeaderLen)
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, false, err
	}
	if peekErr != nil {
		return nil, false, peekErr
	}
	// Handshake content type followed by a 3.x record version.
	isTLS := header[0] == 0x16 && header[1] == 0x03
	return &sniffedConn{Conn: conn, reader: reader}, isTLS, nil
}

func (m *Mux) handshake(conn *sniffedConn) (*tls.Conn, error) {
	if m.TLSConfig == nil {
		return nil, errors.New("no tls config")
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.Timeout)
	defer cancel()
	tlsConn := tls.Server(conn, m.TLSConfig)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return tlsConn, nil
}

// Tolerant keeps accepting after errors from the wrapped listener so that a single bad
// client does not stop the proxy. Only net.ErrClosed is returned.
type Tolerant struct {
	net.Listener
	OnReject func(err error) // may be nil
}

func NewTolerant(l net.Listener, onReject func(err error)) *Tolerant {
	return &Tolerant{Listener: l, OnReject: onReject}
}

func (l *Tolerant) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err == nil {
			return conn, nil
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, err
		}
		if l.OnReject != nil {
			l.OnReject(err)
		}
	}
}

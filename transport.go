package lunettes

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
)

// certHost is the pseudo host that serves the CA certificate to browsers configured with the proxy.
const certHost = "lunettes.cert"

// isCertHost reports whether hostPort names certHost, with or without a port.
func isCertHost(hostPort string) bool {
	host, _, err := net.SplitHostPort(hostPort)
	if err != nil {
		host = hostPort
	}
	return strings.EqualFold(host, certHost)
}

// caResponse builds the DER download of the CA certificate served on certHost.
func caResponse(req *http.Request, ca *x509.Certificate) *http.Response {
	res := &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Request:       req,
		Header:        make(http.Header),
		Body:          io.NopCloser(bytes.NewReader(ca.Raw)),
		ContentLength: int64(len(ca.Raw)),
	}
	res.Header.Set("Content-Type", "application/x-x509-ca-cert")
	res.Header.Set("Content-Disposition", `attachment; filename="lunettes-cert.der"`)
	return res
}

// chromeDialer opens upstream TLS connections with a Chrome ClientHello that only
// offers HTTP/1.1, since the response pipeline reads HTTP/1.1 bodies.
type chromeDialer struct {
	roots  *x509.CertPool // nil uses the system pool
	dialer net.Dialer
}

func (d *chromeDialer) DialTLSContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := d.dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	tlsConn, err := d.handshake(ctx, conn, addr)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func (d *chromeDialer) handshake(ctx context.Context, conn net.Conn, addr string) (*utls.UConn, error) {
	serverName, _, err := net.SplitHostPort(addr)
	if err != nil {
		serverName = addr
	}
	uConn := utls.UClient(conn, &utls.Config{ServerName: serverName, RootCAs: d.roots}, utls.HelloChrome_Auto)
	if err := uConn.BuildHandshakeState(); err != nil {
		return nil, fmt.Errorf("building handshake state : %w", err)
	}
	// HelloChrome_Auto ignores Config.NextProtos, so the extension is edited before the handshake.
	if err := offerHTTP1Only(uConn.Extensions); err != nil {
		return nil, err
	}
	if err := uConn.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf("tls handshake with %s : %w", addr, err)
	}
	return uConn, nil
}

func offerHTTP1Only(extensions []utls.TLSExtension) error {
	for _, ext := range extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			return nil
		}
	}
	return errors.New("client hello has no ALPN extension")
}

// upstreamTransport answers CA downloads itself and sends every other request upstream.
type upstreamTransport struct {
	ca   *x509.Certificate
	base http.RoundTripper
}

// newUpstreamTransport returns the proxy's round tripper. roots replaces the system
// pool for upstream certificate checks when non-nil.
func newUpstreamTransport(ca *x509.Certificate, roots *x509.CertPool) *upstreamTransport {
	dialer := &chromeDialer{
		roots:  roots,
		dialer: net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second},
	}
	return &upstreamTransport{
		ca: ca,
		base: &http.Transport{
			DialContext:         dialer.dialer.DialContext,
			DialTLSContext:      dialer.DialTLSContext,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// RoundTrip edits req in place because martian keys its per-request context on the
// request pointer.
func (t *upstreamTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if isCertHost(req.URL.Host) {
		return caResponse(req, t.ca), nil
	}
	// An explicit empty value stops net/http from sending its own User-Agent.
	if _, ok := req.Header["User-Agent"]; !ok {
		req.Header["User-Agent"] = []string{""}
	}
	return t.base.RoundTrip(req)
}

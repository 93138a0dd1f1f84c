// Package lunettes provides a local HTTP/HTTPS proxy that restyles the pages passing
// through it with bionic reading fonts. HTML and XHTML responses get a single style
// element holding the font faces for the user's configured sans-serif and serif
// families, unless the site filter excludes the page.
//
// The core functionality includes:
//   - HTTP/HTTPS proxy server with TLS certificate management
//   - Modifier pipeline that buffers, decodes and rewrites HTML responses
//   - Settings and font payloads persisted in a SQLite key/value store
//   - Chrome browser integration with an isolated profile
package lunettes

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/2005czq/lunettes/bionic"
	"github.com/2005czq/lunettes/core"
	"github.com/2005czq/lunettes/domain"
	"github.com/2005czq/lunettes/listener"
	"github.com/google/martian"
	"github.com/google/martian/fifo"
	"github.com/google/uuid"
)

const (
	certFile = "lunettes_cert.pem" // Certificate File Name
	keyFile  = "lunettes_key.pem"  // Private Key File Name

	// DefaultMaxBodyBytes is the largest response body that is buffered for injection.
	DefaultMaxBodyBytes int64 = 10 << 20
)

// Repository defines the methods consumed by the proxy to interact with the SQLite backend.
type Repository interface {
	domain.LogRepository
	domain.ConfigRepository
	Close() error
}

// Proxy is the main struct that ties the martian proxy, the modifier pipeline, the
// persisted logs and the styling pipeline together.
type Proxy struct {
	martianProxy   *martian.Proxy
	ConfigDir      string                     // The configuration directory
	Config         *Config                    // The proxy configuration loaded from config.yaml
	Repo           Repository                 // DB Repository Interface
	Modifiers      *fifo.Group                // Modifier group pipeline
	DBWriteChannel chan *domain.Log           // Log entries waiting to be persisted
	OnLog          func(log domain.Log) error // Function to be ran on each persisted log
	Logger         *slog.Logger               // Structured logger for proxy events
	Settings       domain.SettingsSource      // Source of the settings applied to every page
	Builder        bionic.Builder             // Builds the stylesheet for a settings snapshot
	MaxBodyBytes   int64                      // Responses larger than this are passed through
	Addr           string                     // IP Address of the proxy
	Port           string                     // Port of the proxy
	SPKIHash       string                     // SPKI Hash of the current certificate
	Cert           *x509.Certificate          // CA certificate used for MITM
	TLSConfig      *tls.Config                // TLS configuration presented to clients
}

// New creates a new Proxy instance and applies any provided options.
func New(options ...func(*Proxy) error) (*Proxy, error) {
	proxy := &Proxy{
		martianProxy:   martian.NewProxy(),
		Modifiers:      fifo.NewGroup(),
		DBWriteChannel: make(chan *domain.Log, 10),
		Logger:         slog.New(slog.DiscardHandler),
		MaxBodyBytes:   DefaultMaxBodyBytes,
	}
	err := proxy.WithOptions(options...)
	if err != nil {
		return nil, err
	}
	return proxy, nil
}

// ModifyRequest runs the request modifier pipeline. ErrSkipPipeline only stops the
// pipeline, the request itself continues.
func (proxy *Proxy) ModifyRequest(req *http.Request) error {
	err := proxy.Modifiers.ModifyRequest(req)
	if err != nil && !errors.Is(err, ErrSkipPipeline) {
		proxy.Logger.Warn("request pipeline", "url", req.URL.String(), "error", err)
		return err
	}
	return nil
}

// ModifyResponse runs the response modifier pipeline. ErrSkipPipeline only stops the
// pipeline, the response itself continues.
func (proxy *Proxy) ModifyResponse(res *http.Response) error {
	err := proxy.Modifiers.ModifyResponse(res)
	if err != nil && !errors.Is(err, ErrSkipPipeline) {
		proxy.Logger.Warn("response pipeline", "url", res.Request.URL.String(), "error", err)
		return err
	}
	return nil
}

// AddRequestModifier accepts RequestModifierFunc and wraps it in a reqAdapter
func (proxy *Proxy) AddRequestModifier(modifier RequestModifierFunc) {
	adapter := &reqAdapter{proxy: proxy, modifier: modifier}
	proxy.Modifiers.AddRequestModifier(adapter)
}

// AddResponseModifier accepts ResponseModifierFunc and wraps it in a resAdapter
func (proxy *Proxy) AddResponseModifier(modifier ResponseModifierFunc) {
	adapter := &resAdapter{proxy: proxy, modifier: modifier}
	proxy.Modifiers.AddResponseModifier(adapter)
}

// WriteToDB drains DBWriteChannel until it is closed. Entries are dropped when no
// repository is configured.
func (proxy *Proxy) WriteToDB() {
	for entry := range proxy.DBWriteChannel {
		if proxy.Repo != nil {
			if err := proxy.Repo.InsertLog(entry); err != nil {
				proxy.Logger.Error("inserting log", "error", err)
				continue
			}
		}
		if proxy.OnLog != nil {
			if err := proxy.OnLog(*entry); err != nil {
				proxy.Logger.Warn("log handler", "error", err)
			}
		}
	}
}

// WriteLog records a proxy event with the structured logger and queues it for
// persistence. The entry is dropped from the queue when it is full.
func (proxy *Proxy) WriteLog(level string, message string, options ...core.LogOption) error {
	var slogLevel slog.Level
	switch level {
	case "DEBUG":
		slogLevel = slog.LevelDebug
	case "INFO":
		slogLevel = slog.LevelInfo
	case "WARN":
		slogLevel = slog.LevelWarn
	case "ERROR":
		slogLevel = slog.LevelError
	default:
		return fmt.Errorf("level should be either: debug, info, warn, error")
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating new uuid : %w", err)
	}
	entry := &domain.Log{
		ID:        id,
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
	}
	for _, option := range options {
		err := option(entry)
		if err != nil {
			return fmt.Errorf("applying log option : %w", err)
		}
	}

	attrs := make([]any, 0, 2*len(entry.Context)+2)
	if entry.RequestID != nil {
		attrs = append(attrs, "request_id", entry.RequestID.String())
	}
	for key, value := range entry.Context {
		attrs = append(attrs, key, value)
	}
	proxy.Logger.Log(context.Background(), slogLevel, message, attrs...)

	select {
	case proxy.DBWriteChannel <- entry:
	default:
		proxy.Logger.Warn("log queue full, dropping entry", "message", message)
	}
	return nil
}

// GetListener listens on address:port and returns a listener that accepts both plain
// HTTP and TLS clients. Rejected connections are logged and do not stop the listener.
func (proxy *Proxy) GetListener(address string, port string) (net.Listener, error) {
	rawListener, err := net.Listen("tcp", net.JoinHostPort(address, port))
	if err != nil {
		return nil, fmt.Errorf("setting up listener on address:port %s:%s : %w", address, port, err)
	}
	tolerant := listener.NewTolerant(listener.NewMux(rawListener, proxy.TLSConfig), proxy.logRejected)

	proxy.Addr = address
	proxy.Port = port
	if tcpAddr, ok := rawListener.Addr().(*net.TCPAddr); ok && port == "0" {
		proxy.Port = fmt.Sprintf("%d", tcpAddr.Port)
	}
	proxy.WriteLog("INFO", fmt.Sprintf("Lunettes Service Started on %s", net.JoinHostPort(proxy.Addr, proxy.Port)))
	return tolerant, nil
}

// logRejected records a client connection the listener dropped.
func (proxy *Proxy) logRejected(err error) {
	fields := map[string]any{"error": err.Error()}
	var rejected *listener.RejectedError
	if errors.As(err, &rejected) {
		fields["stage"] = rejected.Stage
		if rejected.Remote != nil {
			fields["remote"] = rejected.Remote.String()
		}
	}
	proxy.WriteLog("WARN", "connection rejected", core.LogWithContext(fields))
}

// Serve starts the log writer, installs the upstream transport and serves proxy
// clients on listener until it is closed.
func (proxy *Proxy) Serve(listener net.Listener) error {
	if proxy.Cert == nil {
		return errors.New("proxy has no certificate, apply WithTLS first")
	}
	go proxy.WriteToDB()
	proxy.martianProxy.SetRoundTripper(newUpstreamTransport(proxy.Cert, nil))
	return proxy.martianProxy.Serve(listener)
}

// Close stops the martian proxy.
func (proxy *Proxy) Close() {
	proxy.martianProxy.Close()
}

// URL returns the proxy URL clients should be configured with.
func (proxy *Proxy) URL() string {
	return "http://" + net.JoinHostPort(proxy.Addr, proxy.Port)
}

// isLoopback reports whether host names the local machine.
func isLoopback(host string) bool {
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

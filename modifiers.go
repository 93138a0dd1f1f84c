package lunettes

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/2005czq/lunettes/core"
	"github.com/2005czq/lunettes/rawhttp"
	"github.com/google/martian"
	"github.com/google/uuid"
)

var (
	// ErrSkipPipeline is returned to stop the modifier pipeline for a request / response.
	// The request / response will still continue but won't be processed by any future modifiers
	ErrSkipPipeline = errors.New("stop processing item")

	// ErrNotHTML is returned when a response body is not an HTML or XHTML document
	ErrNotHTML = errors.New("not an html document")

	// ErrReadBody is returned when there is an error with reading the response body
	ErrReadBody = errors.New("failed to read the body")
)

// supportedEncodings are the content encodings rawhttp.Decode understands, in the
// form sent upstream in Accept-Encoding.
const supportedEncodings = "gzip, deflate, br"

// RequestModifierFunc is a signature for HTTP request modifiers, it takes in the request and *Proxy
type RequestModifierFunc func(proxy *Proxy, req *http.Request) error

// ResponseModifierFunc is a signature for HTTP response modifiers, it takes in the response and *Proxy
type ResponseModifierFunc func(proxy *Proxy, res *http.Response) error

// reqAdapter adapts the `RequestModifierFunc` and implements the `martian.RequestModifier` interface.
// This allows custom modifiers to be added with access to the *Proxy while satisfying the `martian.RequestModifier` interface
type reqAdapter struct {
	proxy    *Proxy
	modifier RequestModifierFunc
}

// ModifyRequest implements the `martian.RequestModifier` interface and allows the modifier to access the *Proxy
func (adapter *reqAdapter) ModifyRequest(req *http.Request) error {
	return adapter.modifier(adapter.proxy, req)
}

// resAdapter adapts the `ResponseModifierFunc` and implements the `martian.ResponseModifier` interface.
// This allows custom modifiers to be added with access to the *Proxy while satisfying the `martian.ResponseModifier` interface
type resAdapter struct {
	proxy    *Proxy
	modifier ResponseModifierFunc
}

// ModifyResponse implements the `martian.ResponseModifier` interface and allows the modifier to access the *Proxy
func (adapter *resAdapter) ModifyResponse(res *http.Response) error {
	return adapter.modifier(adapter.proxy, res)
}

// getHostPort will return a host:port string based on the request
// It will fall back to 443 or 80 depending on the scheme or req.TLS
func getHostPort(req *http.Request) string {
	hostPort := req.Host
	if hostPort == "" {
		hostPort = req.URL.Host
	}

	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		// If port is missing, use default
		host = hostPort
		if req.URL.Scheme == "https" || req.TLS != nil {
			port = "443"
		} else {
			port = "80"
		}
	}

	return net.JoinHostPort(host, port)
}

// PreventLoopModifier skips processing a request if it is made to the proxy's active listener address and port,
// preventing an infinite loop. Loopback names (localhost, 127.0.0.1, ::1) are treated as the same host.
func PreventLoopModifier(proxy *Proxy, req *http.Request) error {
	host, port, _ := net.SplitHostPort(getHostPort(req))

	sameHost := strings.EqualFold(host, proxy.Addr) || (isLoopback(host) && isLoopback(proxy.Addr))
	if sameHost && port == proxy.Port {
		martian.NewContext(req).SkipRoundTrip()
		return ErrSkipPipeline
	}
	return nil
}

// SkipConnectRequestModifier will skip processing for CONNECT requests
func SkipConnectRequestModifier(proxy *Proxy, req *http.Request) error {
	if req.Method == http.MethodConnect {
		return ErrSkipPipeline
	}
	return nil
}

// SetupRequestModifier initializes the request context. It will generate and set the request ID
// and set the request time.
func SetupRequestModifier(proxy *Proxy, req *http.Request) error {
	*req = *core.ContextWithRequestTime(req, time.Now())
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating uuid for request : %w", err)
	}
	*req = *core.ContextWithRequestID(req, id)
	return nil
}

// SkipCertHostModifier flags requests for the CA download so that the response served
// by the transport is not processed.
func SkipCertHostModifier(proxy *Proxy, req *http.Request) error {
	if isCertHost(getHostPort(req)) {
		*req = *core.ContextWithSkipFlag(req, true)
		return ErrSkipPipeline
	}
	return nil
}

// AcceptEncodingModifier limits Accept-Encoding to the encodings the proxy can decode,
// so that HTML responses can always be rewritten. Requests that do not ask for any
// encoding are left alone.
func AcceptEncodingModifier(proxy *Proxy, req *http.Request) error {
	accepted := req.Header.Get("Accept-Encoding")
	if accepted == "" {
		return nil
	}
	for _, part := range strings.Split(accepted, ",") {
		encoding, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		switch strings.ToLower(strings.TrimSpace(encoding)) {
		case "gzip", "x-gzip", "deflate", "br", "identity":
		default:
			req.Header.Set("Accept-Encoding", supportedEncodings)
			return nil
		}
	}
	return nil
}

// ResponseFilterModifier will perform an initial filtering round on responses.
// It will skip processing for responses to CONNECT and HEAD requests, responses where the skip flag was set or
// SkipRoundTrip is true, responses without a body and responses whose Content-Type is not HTML.
func ResponseFilterModifier(proxy *Proxy, res *http.Response) error {
	if res.Request.Method == http.MethodConnect || martian.NewContext(res.Request).SkippingRoundTrip() {
		return ErrSkipPipeline
	}
	if skip, ok := core.SkipFlagFromContext(res.Request.Context()); ok && skip {
		return ErrSkipPipeline
	}
	if res.Request.Method == http.MethodHead || res.Body == nil || res.Body == http.NoBody {
		return ErrSkipPipeline
	}
	if res.StatusCode < 200 || res.StatusCode > 299 || res.StatusCode == http.StatusNoContent {
		return ErrSkipPipeline
	}
	if res.Header.Get("Content-Type") != "" && rawhttp.Classify(res.Header, nil) == rawhttp.KindOther {
		return ErrSkipPipeline
	}
	return nil
}

// BionicResponseModifier buffers and decodes an HTML or XHTML response and runs the styling
// orchestrator over it with the current settings. When a style is injected the body is replaced
// with the identity encoded result and the Content-Security-Policy is extended to allow it.
// Any failure leaves the response as it came from upstream.
func BionicResponseModifier(proxy *Proxy, res *http.Response) error {
	if proxy.Settings == nil || proxy.Builder == nil {
		return ErrSkipPipeline
	}

	raw, err := rawhttp.ReadBody(res, proxy.MaxBodyBytes)
	if err != nil {
		if errors.Is(err, rawhttp.ErrBodyTooLarge) {
			rawhttp.RestoreBody(res, raw)
			return ErrSkipPipeline
		}
		return fmt.Errorf("%w : %w", ErrReadBody, err)
	}
	// Unless a style is injected the client gets the original bytes
	rawhttp.BufferBody(res, raw)

	body, err := rawhttp.Decode(raw, res.Header.Get("Content-Encoding"), proxy.MaxBodyBytes)
	if errors.Is(err, rawhttp.ErrBodyTooLarge) {
		return ErrSkipPipeline
	}
	if err != nil {
		proxy.WriteLog("WARN", "decoding response body", logContext(res, err)...)
		return ErrSkipPipeline
	}

	kind := rawhttp.Classify(res.Header, body)
	if kind == rawhttp.KindOther {
		return ErrSkipPipeline
	}

	styled, content, ok, err := StyleDocument(res.Request.Context(), res.Request.URL, kind, body, proxy.Settings, proxy.Builder, proxy.Logger)
	if err != nil {
		proxy.WriteLog("WARN", "injecting bionic style", logContext(res, err)...)
		return ErrSkipPipeline
	}
	if !ok {
		return nil
	}
	rawhttp.ReplaceBody(res, styled)
	rawhttp.AllowInlineStyle(res.Header, content)
	proxy.WriteLog("DEBUG", "bionic style injected", logContext(res, nil)...)
	return nil
}

// logContext describes the exchange for a log entry: url, error, request ID and
// the time elapsed since the request reached the proxy.
func logContext(res *http.Response, err error) []core.LogOption {
	fields := map[string]any{"url": res.Request.URL.String()}
	if err != nil {
		fields["error"] = err.Error()
	}
	if start, ok := core.RequestTimeFromContext(res.Request.Context()); ok {
		fields["elapsed_ms"] = time.Since(start).Milliseconds()
	}
	options := []core.LogOption{core.LogWithContext(fields)}
	if id, ok := core.RequestIDFromContext(res.Request.Context()); ok {
		options = append(options, core.LogWithRequestID(id))
	}
	return options
}

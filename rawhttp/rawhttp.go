// Package rawhttp buffers and decodes HTTP message bodies and rewrites HTML
// and XHTML documents in place.
package rawhttp

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/beevik/etree"
	"github.com/gabriel-vasile/mimetype"
	"github.com/yosssi/gohtml"
)

var (
	// ErrBodyTooLarge is returned when a body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("body exceeds limit")

	// ErrUnsupportedEncoding is returned for content encodings that cannot be decoded.
	ErrUnsupportedEncoding = errors.New("unsupported content encoding")
)

// Kind classifies a response body.
type Kind int

const (
	KindOther Kind = iota
	KindHTML
	KindXHTML
)

func (k Kind) String() string {
	switch k {
	case KindHTML:
		return "html"
	case KindXHTML:
		return "xhtml"
	default:
		return "other"
	}
}

// Classify decides whether a body is an HTML or XHTML document. The
// Content-Type header wins; a body without one is sniffed.
func Classify(header http.Header, body []byte) Kind {
	if contentType := header.Get("Content-Type"); contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil && !errors.Is(err, mime.ErrInvalidMediaParameter) {
			return KindOther
		}
		switch strings.ToLower(mediaType) {
		case "text/html":
			return KindHTML
		case "application/xhtml+xml":
			return KindXHTML
		default:
			return KindOther
		}
	}

	if mimetype.Detect(body).Is("text/html") {
		return KindHTML
	}
	return KindOther
}

// ReadBody reads at most limit bytes of res.Body and closes it. A body larger
// than limit yields ErrBodyTooLarge along with the bytes already read, so the
// caller can restore the original stream.
func ReadBody(res *http.Response, limit int64) ([]byte, error) {
	if res.Body == nil {
		return []byte{}, nil
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		res.Body.Close()
		return nil, fmt.Errorf("reading response body : %w", err)
	}
	if int64(len(body)) > limit {
		return body, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, limit)
	}
	res.Body.Close()
	return body, nil
}

// RestoreBody puts back a partially read body in front of the unread remainder.
func RestoreBody(res *http.Response, read []byte) {
	rest := res.Body
	res.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(read), rest), rest}
}

// Decode undoes the given Content-Encoding. Identity and empty encodings
// return body unchanged. A decoded body larger than limit yields ErrBodyTooLarge.
func Decode(body []byte, encoding string, limit int64) ([]byte, error) {
	var reader io.Reader
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		if int64(len(body)) > limit {
			return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, limit)
		}
		return body, nil
	case "gzip", "x-gzip":
		gzipReader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	case "br":
		reader = brotli.NewReader(bytes.NewReader(body))
	case "deflate":
		flateReader := flate.NewReader(bytes.NewReader(body))
		defer flateReader.Close()
		reader = flateReader
	default:
		return nil, fmt.Errorf("%w : %s", ErrUnsupportedEncoding, encoding)
	}

	decoded, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("decoding %s content : %w", encoding, err)
	}
	if int64(len(decoded)) > limit {
		return nil, fmt.Errorf("decoding %s content : %w (%d bytes)", encoding, ErrBodyTooLarge, limit)
	}
	return decoded, nil
}

// BufferBody sets an in-memory body on res, keeping its Content-Encoding, and replaces
// chunked framing with a Content-Length.
func BufferBody(res *http.Response, body []byte) {
	res.Body = io.NopCloser(bytes.NewReader(body))
	res.ContentLength = int64(len(body))
	res.Header.Set("Content-Length", strconv.Itoa(len(body)))
	res.TransferEncoding = nil
}

// ReplaceBody sets an identity encoded body on res and fixes the framing headers.
func ReplaceBody(res *http.Response, body []byte) {
	BufferBody(res, body)
	res.Header.Del("Content-Encoding")
	res.Uncompressed = true
}

// Prettify indents an HTML or XML document for display. Well-formed markup is
// indented as XML, anything else that looks like HTML goes through gohtml. It
// returns an empty slice when the body is neither.
func Prettify(body []byte) ([]byte, error) {
	if len(body) == 0 {
		return []byte{}, nil
	}

	trimmedBody := bytes.TrimSpace(body)

	doc := etree.NewDocument()
	err := doc.ReadFromBytes(trimmedBody)
	if err == nil && doc.Root() != nil {
		doc.Indent(1)
		var output bytes.Buffer
		if _, err := doc.WriteTo(&output); err != nil {
			return []byte{}, fmt.Errorf("writing indented XML : %w", err)
		}
		return output.Bytes(), nil
	}

	if mimetype.Detect(trimmedBody).Is("text/html") || bytes.HasPrefix(trimmedBody, []byte("<")) {
		output := gohtml.FormatBytes(trimmedBody)
		if len(output) > 0 {
			return output, nil
		}
	}

	return []byte{}, nil
}

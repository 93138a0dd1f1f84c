package bionic

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const (
	// StyleElementID is the id of the injected style element.
	StyleElementID = "lunettes-bionic"
	// ApplyAttribute carries the id of the apply that produced the element.
	ApplyAttribute = "data-lunettes-apply"
)

// Document is the page a stylesheet is applied to.
type Document interface {
	// URL returns the location used for site filtering.
	URL() *url.URL
	// InjectStyle adds a style containing css and returns a handle to remove it.
	InjectStyle(css string) (Style, error)
}

// Style is an injected stylesheet.
type Style interface {
	Remove() error
}

// NewApplyID returns a fresh identifier for an injected style.
func NewApplyID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// StyleContent returns css as it appears inside the HTML style element.
func StyleContent(css string) string {
	// A font name containing "</style" must not close the element.
	return strings.ReplaceAll(css, "</", `<\/`)
}

// StyleTag renders css as the style element injected into HTML documents.
func StyleTag(applyID string, css string) string {
	return fmt.Sprintf(`<style id="%s" %s="%s">%s</style>`, StyleElementID, ApplyAttribute, applyID, StyleContent(css))
}

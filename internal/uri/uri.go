// Package uri validates candidate URIs before interception.
package uri

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"

	"github.com/hpungsan/hostgate/internal/domain"
)

// Reason classifies a rejected URI.
type Reason string

const (
	ReasonBlankOrEmpty Reason = "BLANK_OR_EMPTY"
	ReasonInvalid      Reason = "INVALID"
)

// ValidationError is returned by Validate for any rejected input.
type ValidationError struct {
	Reason Reason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("uri rejected: %s", e.Reason)
	}
	return fmt.Sprintf("uri rejected: %s: %s", e.Reason, e.Detail)
}

// Parsed is an accepted URI.
type Parsed struct {
	// Raw is the trimmed input
	Raw    string
	Scheme string
	// Host is lowercased, IDNA-encoded, without port or trailing dot
	Host string
	URL  *url.URL
}

// String returns the trimmed input.
func (p *Parsed) String() string { return p.Raw }

var profile = idna.New(
	idna.MapForLookup(),
	idna.Transitional(false),
	idna.StrictDomainName(false),
)

// Validate accepts absolute http and https URIs with a non-empty host.
func Validate(raw string) (*Parsed, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &ValidationError{Reason: ReasonBlankOrEmpty}
	}
	if strings.ContainsAny(trimmed, " \t\r\n") {
		return nil, &ValidationError{Reason: ReasonInvalid, Detail: "contains whitespace"}
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, &ValidationError{Reason: ReasonInvalid, Detail: err.Error()}
	}
	if !u.IsAbs() {
		return nil, &ValidationError{Reason: ReasonInvalid, Detail: "not absolute"}
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, &ValidationError{Reason: ReasonInvalid, Detail: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}

	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return nil, err
	}

	return &Parsed{Raw: trimmed, Scheme: scheme, Host: host, URL: u}, nil
}

// NormalizeHost lowercases a bare host, strips a trailing dot and converts
// internationalized names to their ASCII form. IP literals pass through.
func NormalizeHost(host string) (string, error) {
	host = domain.NormalizeHost(host)
	if host == "" {
		return "", &ValidationError{Reason: ReasonInvalid, Detail: "missing host"}
	}
	if net.ParseIP(host) != nil {
		return host, nil
	}
	ascii, err := profile.ToASCII(host)
	if err != nil {
		return "", &ValidationError{Reason: ReasonInvalid, Detail: err.Error()}
	}
	return ascii, nil
}

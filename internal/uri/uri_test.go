package uri

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantHost string
		reason   Reason
	}{
		{name: "https", input: "https://example.com/x", wantHost: "example.com"},
		{name: "http with port", input: "http://Example.COM:8080/a?b=c", wantHost: "example.com"},
		{name: "trailing dot", input: "https://example.com./", wantHost: "example.com"},
		{name: "surrounding space", input: "  https://example.com  ", wantHost: "example.com"},
		{name: "idn", input: "https://bücher.example/", wantHost: "xn--bcher-kva.example"},
		{name: "ipv4", input: "http://127.0.0.1/", wantHost: "127.0.0.1"},
		{name: "ipv6", input: "http://[::1]:80/", wantHost: "::1"},
		{name: "empty", input: "", reason: ReasonBlankOrEmpty},
		{name: "blank", input: "   \t", reason: ReasonBlankOrEmpty},
		{name: "not a url", input: "not a url", reason: ReasonInvalid},
		{name: "relative", input: "/path/only", reason: ReasonInvalid},
		{name: "ftp", input: "ftp://example.com/file", reason: ReasonInvalid},
		{name: "mailto", input: "mailto:someone@example.com", reason: ReasonInvalid},
		{name: "no host", input: "https:///path", reason: ReasonInvalid},
		{name: "bad escape", input: "https://example.com/%zz", reason: ReasonInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Validate(tt.input)
			if tt.reason != "" {
				var verr *ValidationError
				require.True(t, errors.As(err, &verr), "want ValidationError, got %v", err)
				assert.Equal(t, tt.reason, verr.Reason)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, p.Host)
		})
	}
}

func TestParsedKeepsInput(t *testing.T) {
	p, err := Validate(" HTTPS://Example.com/Path ")
	require.NoError(t, err)
	assert.Equal(t, "HTTPS://Example.com/Path", p.String())
	assert.Equal(t, "https", p.Scheme)
	assert.Equal(t, "/Path", p.URL.Path)
}

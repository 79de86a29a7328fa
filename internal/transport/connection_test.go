package transport

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateOrigin(t *testing.T) {
	allowed := []string{"https://trusted.com", "http://localhost:3000"}

	tests := []struct {
		name        string
		origin      string
		expectError bool
	}{
		{name: "allowed origin", origin: "https://trusted.com", expectError: false},
		{name: "allowed localhost", origin: "http://localhost:3000", expectError: false},
		{name: "subdomain does not match strictly", origin: "https://evil.trusted.com", expectError: true},
		{name: "suffix trick does not match", origin: "https://trusted.com.evil.com", expectError: true},
		{name: "no origin header allowed for non-browser clients", origin: "", expectError: false},
		{name: "unlisted origin rejected", origin: "http://evil.com", expectError: true},
		{name: "scheme mismatch rejected", origin: "http://trusted.com", expectError: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}

			err := validateOrigin(req, allowed)

			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOrigin_MalformedAllowedEntryIsSkipped(t *testing.T) {
	allowed := []string{"://not a url", "https://trusted.com"}
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://trusted.com")

	assert.NoError(t, validateOrigin(req, allowed))
}

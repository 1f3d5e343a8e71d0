package client

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestTransportError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *TransportError
		contains []string
	}{
		{
			name: "status only",
			err: &TransportError{
				URL:        "/projects?limit=100",
				StatusCode: 500,
			},
			contains: []string{"status 500", "/projects?limit=100"},
		},
		{
			name: "network failure",
			err: &TransportError{
				URL: "/projects",
				Err: io.EOF,
			},
			contains: []string{"/projects", "EOF"},
		},
		{
			name: "status with cause",
			err: &TransportError{
				URL:        "/projects",
				StatusCode: 200,
				Err:        errors.New("read response body: timeout"),
			},
			contains: []string{"status 200", "timeout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(msg, want) {
					t.Errorf("Error() = %q, want it to contain %q", msg, want)
				}
			}
		})
	}
}

func TestProtocolError_Error(t *testing.T) {
	err := &ProtocolError{
		URL:   "/projects?limit=100",
		Field: "filteredCount",
		Err:   errors.New("field missing"),
	}

	msg := err.Error()
	if !strings.Contains(msg, "filteredCount") {
		t.Errorf("Error() = %q, want field name included", msg)
	}
	if !strings.Contains(msg, "field missing") {
		t.Errorf("Error() = %q, want cause included", msg)
	}
}

func TestErrors_Unwrap(t *testing.T) {
	cause := io.ErrUnexpectedEOF

	te := &TransportError{URL: "/projects", Err: cause}
	if !errors.Is(te, cause) {
		t.Error("TransportError should unwrap its cause")
	}

	pe := &ProtocolError{URL: "/projects", Field: "projects", Err: cause}
	if !errors.Is(pe, cause) {
		t.Error("ProtocolError should unwrap its cause")
	}
}

func TestErrors_AsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("fetch page 17 of 42: %w", &TransportError{URL: "/projects?page=17", StatusCode: 500})

	var te *TransportError
	if !errors.As(wrapped, &te) {
		t.Fatal("errors.As should find *TransportError through wrapping")
	}
	if te.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", te.StatusCode)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
		{
			name:     "transport",
			err:      &TransportError{URL: "/projects", StatusCode: 503},
			expected: ErrorClassTransport,
		},
		{
			name:     "protocol",
			err:      &ProtocolError{URL: "/projects", Field: "filteredCount"},
			expected: ErrorClassProtocol,
		},
		{
			name:     "wrapped transport",
			err:      fmt.Errorf("fetch page 2 of 3: %w", &TransportError{URL: "/projects"}),
			expected: ErrorClassTransport,
		},
		{
			name:     "unrecognized",
			err:      errors.New("plain"),
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.expected {
				t.Errorf("Classify() = %q, want %q", got, tt.expected)
			}
		})
	}
}

package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"marked", MarkTransient(errors.New("boom")), true},
		{"status 429", &StatusError{Service: "nih", StatusCode: 429}, true},
		{"status 503 wrapped", eris.Wrap(&StatusError{Service: "nih", StatusCode: 503}, "fetch"), true},
		{"status 404", &StatusError{Service: "nih", StatusCode: 404}, false},
		{"net timeout", timeoutErr{}, true},
		{"conn reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"message pattern", errors.New("dial tcp: lookup api.openalex.org: no such host"), true},
		{"context canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be permanent", code)
		}
	}
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{Service: "openalex", StatusCode: 400, Body: "invalid filter"}
	if err.Error() != "openalex: unexpected status 400: invalid filter" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if (&StatusError{Service: "nih", StatusCode: 500}).Error() != "nih: unexpected status 500" {
		t.Error("unexpected message without body")
	}
}

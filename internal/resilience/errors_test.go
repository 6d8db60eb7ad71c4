package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestHTTPErrorTransient(t *testing.T) {
	transient := []int{408, 429, 500, 502, 503, 504}
	for _, code := range transient {
		e := &HTTPError{Status: code, URL: "https://api.test"}
		if !e.Transient() {
			t.Errorf("status %d should be transient", code)
		}
	}

	for _, code := range []int{200, 301, 400, 401, 403, 404, 422} {
		e := &HTTPError{Status: code, URL: "https://api.test"}
		if e.Transient() {
			t.Errorf("status %d should not be transient", code)
		}
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil is not transient")
	}
	if !IsTransient(&HTTPError{Status: 503}) {
		t.Error("503 should be transient")
	}
	if IsTransient(&HTTPError{Status: 404}) {
		t.Error("404 should not be transient")
	}
	if !IsTransient(fmt.Errorf("fetch: %w", &HTTPError{Status: 429})) {
		t.Error("wrapped 429 should be transient")
	}
	if IsTransient(errors.New("invalid character '<' looking for beginning of value")) {
		t.Error("parse error should not be transient")
	}
	if !IsTransient(errors.New("read tcp: connection reset by peer")) {
		t.Error("connection reset should be transient")
	}
}

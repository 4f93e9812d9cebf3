package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }
func (timeoutErr) Temporary() bool { return true }

func TestShouldRetry(t *testing.T) {
	dial := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"timeout", timeoutErr{}, true},
		{"dial", dial, true},
		{"wrapped url", &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: dial}, true},
		{"plain", errors.New("bad request"), false},
	}
	for _, tc := range cases {
		if got := ShouldRetry(tc.err); got != tc.want {
			t.Errorf("%s: ShouldRetry = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestClassify(t *testing.T) {
	if got := Classify(&net.OpError{Op: "dial", Err: errors.New("refused")}); got != "dial" {
		t.Fatalf("dial classified as %s", got)
	}
	if got := Classify(context.DeadlineExceeded); got != "timeout" {
		t.Fatalf("deadline classified as %s", got)
	}
	if got := Classify(errors.New("boom")); got != "unknown" {
		t.Fatalf("plain classified as %s", got)
	}
}

func TestRedact(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AA-bb_cc/sendMessage": EOF`)
	if got := Redact(err); got != `Post "https://api.telegram.org/bot<redacted>/sendMessage": EOF` {
		t.Fatalf("token not redacted: %s", got)
	}
}

package sender

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestDispatcherRunsJobs(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	defer d.Close()

	var ran atomic.Bool
	done := make(chan struct{})
	err := d.Enqueue(context.Background(), "test", func() error {
		ran.Store(true)
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	if !ran.Load() {
		t.Fatal("job flag not set")
	}
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{
		Workers:      1,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
		MaxDuration:  time.Second,
	})
	defer d.Close()

	var calls atomic.Int32
	done := make(chan struct{})
	_ = d.Enqueue(context.Background(), "test", func() error {
		if calls.Add(1) < 3 {
			return &net.DNSError{IsTimeout: true}
		}
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried to success")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
	if d.ErrorCount() != 0 {
		t.Fatalf("error count = %d, want 0", d.ErrorCount())
	}
}

func TestDispatcherDoesNotRetryPermanentErrors(t *testing.T) {
	d := NewDispatcher(Options{
		Workers:      1,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
		MaxDuration:  time.Second,
	})

	var calls atomic.Int32
	_ = d.Enqueue(context.Background(), "test", func() error {
		calls.Add(1)
		return &tele.Error{Code: 400, Description: "Bad Request: chat not found"}
	})
	d.Close()

	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("error count = %d, want 1", d.ErrorCount())
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	d.Close()

	err := d.Enqueue(context.Background(), "test", func() error { return nil })
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestSanitizeErrorMessageRedactsToken(t *testing.T) {
	err := errors.New("Post https://api.telegram.org/bot123456:AAHdqwe-rty_uiop/sendMessage: EOF")
	got := sanitizeErrorMessage(err)
	if got != "Post https://api.telegram.org/bot<redacted>/sendMessage: EOF" {
		t.Fatalf("unexpected sanitized message: %s", got)
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{context.DeadlineExceeded, "timeout"},
		{&net.DNSError{IsTimeout: true}, "timeout"},
		{&net.DNSError{}, "dns"},
		{&tele.Error{Code: 502}, "http_5xx"},
		{&tele.Error{Code: 400}, "http_4xx"},
		{errors.New("boom"), "unknown"},
	}
	for _, tc := range cases {
		if got := classifyError(tc.err); got != tc.want {
			t.Fatalf("classifyError(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

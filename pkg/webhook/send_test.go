package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSender_Send(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotSig, gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Signature-256")
		gotType = r.Header.Get("X-Event-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	event := New(TypeJobCompleted, "job-server", "abc123", "evt-1", map[string]any{
		"status": "sumstats SUCCEEDED",
	})

	sender := NewSender(5 * time.Second)
	if err := sender.Send(context.Background(), server.URL, event, "secret"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotType != TypeJobCompleted {
		t.Errorf("X-Event-Type = %q, want %q", gotType, TypeJobCompleted)
	}

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSig != want {
		t.Errorf("X-Signature-256 = %q, want %q", gotSig, want)
	}
}

func TestSender_NoSignatureWithoutKey(t *testing.T) {
	t.Parallel()

	var gotSig string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature-256")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewSender(5 * time.Second)
	event := New(TypeJobCompleted, "job-server", "abc123", "evt-1", nil)
	if err := sender.Send(context.Background(), server.URL, event, ""); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotSig != "" {
		t.Errorf("unexpected signature header %q", gotSig)
	}
}

func TestSender_HTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sender := NewSender(5 * time.Second)
	err := sender.Send(context.Background(), server.URL, New(TypeJobCompleted, "job-server", "k", "e", nil), "")

	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusBadRequest {
		t.Fatalf("Send = %v, want HTTPError 400", err)
	}
	if !IsClientError(err) {
		t.Error("IsClientError = false for 400")
	}
	if IsClientError(&HTTPError{StatusCode: 503}) {
		t.Error("IsClientError = true for 503")
	}
}

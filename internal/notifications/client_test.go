package notifications

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	pkgerrors "github.com/locationup/locationup-go/pkg/errors"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc, opts ...Option) *Client {
	t.Helper()
	opts = append(opts, WithHTTPClient(&http.Client{Transport: rt}))
	client, err := NewClient("http://backend.test", opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClientListRequest(t *testing.T) {
	var capturedURL, capturedMethod, capturedAuth string

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedMethod = req.Method
		capturedAuth = req.Header.Get("Authorization")
		return jsonResponse(http.StatusOK, `[{"id":"n-1","severity":"INFO","content":"hello","recipient":"42"}]`), nil
	})

	client := newTestClient(t, rt, WithToken("tok-123"))
	records, err := client.List(context.Background(), "42", ListParams{Limit: 10, UnreadOnly: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if capturedMethod != http.MethodGet {
		t.Fatalf("unexpected method %s", capturedMethod)
	}
	if capturedURL != "http://backend.test/api/notifications/user/42?limit=10&unreadOnly=true" {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedAuth != "Bearer tok-123" {
		t.Fatalf("unexpected auth header %q", capturedAuth)
	}
	if len(records) != 1 || records[0].ID != "n-1" || records[0].Content != "hello" {
		t.Fatalf("unexpected records %+v", records)
	}
}

func TestClientMarkReadAndDeletePaths(t *testing.T) {
	var urls []string
	var methods []string

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		urls = append(urls, req.URL.String())
		methods = append(methods, req.Method)
		return jsonResponse(http.StatusNoContent, ""), nil
	})

	client := newTestClient(t, rt)
	ctx := context.Background()
	if err := client.MarkRead(ctx, "n-1"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := client.MarkAllRead(ctx, "42"); err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if err := client.Delete(ctx, "n-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	wantURLs := []string{
		"http://backend.test/api/notifications/n-1/read",
		"http://backend.test/api/notifications/user/42/read-all",
		"http://backend.test/api/notifications/n-1",
	}
	wantMethods := []string{http.MethodPatch, http.MethodPatch, http.MethodDelete}
	for i := range wantURLs {
		if urls[i] != wantURLs[i] {
			t.Fatalf("call %d: URL %q, want %q", i, urls[i], wantURLs[i])
		}
		if methods[i] != wantMethods[i] {
			t.Fatalf("call %d: method %q, want %q", i, methods[i], wantMethods[i])
		}
	}
}

func TestClientSendCustom(t *testing.T) {
	var capturedBody map[string]any

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(data, &capturedBody); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		return jsonResponse(http.StatusCreated, ""), nil
	})

	client := newTestClient(t, rt)
	err := client.SendCustom(context.Background(), SendRequest{UserID: "42", Message: "rental ready", Severity: "SUCCESS"})
	if err != nil {
		t.Fatalf("send custom: %v", err)
	}
	if capturedBody["userId"] != "42" || capturedBody["message"] != "rental ready" {
		t.Fatalf("unexpected body %v", capturedBody)
	}
}

func TestClientSendCustomValidation(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		t.Fatal("invalid request must not reach the network")
		return nil, nil
	})
	client := newTestClient(t, rt)

	err := client.SendCustom(context.Background(), SendRequest{UserID: "", Message: "hi"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	err = client.SendCustom(context.Background(), SendRequest{UserID: "42", Message: "hi", Severity: "LOUD"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for bad severity, got %v", err)
	}
}

func TestClientErrorMapping(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{"error":"missing"}`), nil
	})
	client := newTestClient(t, rt)

	err := client.MarkRead(context.Background(), "n-404")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}

	rt = roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusServiceUnavailable, "try later"), nil
	})
	client = newTestClient(t, rt)
	err = client.SendTest(context.Background(), "42")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if !typed.Retryable() {
		t.Fatal("dependency errors should be retryable")
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("   "); err == nil {
		t.Fatal("expected error for empty base url")
	}
}

package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"mwb/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testClient(t *testing.T, fn roundTripFunc) *Client {
	t.Helper()
	cfg, _ := config.Load()
	cfg.FetchRateRPS = 1000
	cfg.FetchTimeoutMs = 5000
	cfg.StructuredOnly = false

	client := NewClient(cfg, nil, nil)
	client.httpClient = &http.Client{Transport: fn}
	return client
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestFetchTextWithRetry(t *testing.T) {
	attempt := 0
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/pt/biblioteca/mwb" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		attempt++
		if attempt == 1 {
			return response(http.StatusServiceUnavailable, "busy"), nil
		}
		return response(http.StatusOK, "<html><body>ok</body></html>"), nil
	})

	body, err := client.FetchText(context.Background(), "https://example.test/pt/biblioteca/mwb", false)
	if err != nil {
		t.Fatal(err)
	}
	if attempt != 2 {
		t.Fatalf("attempts=%d", attempt)
	}
	if !strings.Contains(body, "ok") {
		t.Fatalf("body=%q", body)
	}
}

func TestFetchTextStatusError(t *testing.T) {
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		return response(http.StatusNotFound, "missing"), nil
	})

	_, err := client.FetchText(context.Background(), "https://example.test/none", false)
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("err=%v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusNotFound {
		t.Fatalf("err=%v", err)
	}
}

func TestFetchTextStructuredOnly(t *testing.T) {
	calls := 0
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		calls++
		return response(http.StatusOK, "page"), nil
	})
	client.cfg.StructuredOnly = true

	if _, err := client.FetchText(context.Background(), "https://example.test/a", false); !errors.Is(err, ErrStructuredOnly) {
		t.Fatalf("err=%v", err)
	}
	if calls != 0 {
		t.Fatalf("calls=%d", calls)
	}
	body, err := client.FetchText(context.Background(), "https://example.test/a", true)
	if err != nil || body != "page" {
		t.Fatalf("body=%q err=%v", body, err)
	}
}

func TestFetchTextCancelled(t *testing.T) {
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		<-r.Context().Done()
		return nil, r.Context().Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchText(ctx, "https://example.test/slow", false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
}

func TestFetchRejectsScheme(t *testing.T) {
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected request")
		return nil, nil
	})
	if _, _, err := client.FetchBytes(context.Background(), "file:///etc/passwd"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFetchBytesTooLarge(t *testing.T) {
	calls := 0
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		calls++
		return response(http.StatusOK, strings.Repeat("x", 17)), nil
	})
	client.maxBody = 16

	if _, _, err := client.FetchBytes(context.Background(), "https://example.test/mwb.pdf"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err=%v", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d", calls)
	}

	client.maxBody = 17
	body, _, err := client.FetchBytes(context.Background(), "https://example.test/mwb.pdf")
	if err != nil || len(body) != 17 {
		t.Fatalf("len=%d err=%v", len(body), err)
	}
}

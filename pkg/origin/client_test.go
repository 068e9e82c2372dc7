package origin

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/financialdata-online/edge-cache/internal/testutil"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		wantBackend string
	}{
		{
			name:        "valid https backend",
			config:      DefaultConfig("https://api.financialdata.online"),
			wantBackend: "https://api.financialdata.online",
		},
		{
			name:        "trailing slash trimmed",
			config:      DefaultConfig("http://localhost:8081/"),
			wantBackend: "http://localhost:8081",
		},
		{
			name:        "nil http client defaults",
			config:      Config{Backend: "http://origin"},
			wantBackend: "http://origin",
		},
		{
			name:        "empty backend",
			config:      DefaultConfig(""),
			expectError: true,
		},
		{
			name:        "unsupported scheme",
			config:      DefaultConfig("ftp://origin"),
			expectError: true,
		},
		{
			name:        "relative url",
			config:      DefaultConfig("/v1"),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client.Backend() != tt.wantBackend {
				t.Errorf("Backend() = %q, want %q", client.Backend(), tt.wantBackend)
			}
		})
	}
}

func TestTarget(t *testing.T) {
	client, err := New(DefaultConfig("https://api.example.com"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		target string
		want   string
	}{
		{"/v1/reference/tickers", "https://api.example.com/v1/reference/tickers"},
		{"/v1/trades/AAPL?date=2020-01-01&limit=5", "https://api.example.com/v1/trades/AAPL?date=2020-01-01&limit=5"},
		{"/v1/reference/indices/I%3ASPX", "https://api.example.com/v1/reference/indices/I%3ASPX"},
		{"/", "https://api.example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if got := client.Target(req); got != tt.want {
				t.Errorf("Target() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestForward_RelaysRequest(t *testing.T) {
	mock := testutil.NewMockOrigin()
	defer mock.Close()

	mock.SetResponse("/v1/orders", testutil.MockResponse{
		StatusCode: http.StatusCreated,
		Body:       `{"id": 1}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"X-Origin":     "yes",
		},
	})

	client, err := New(DefaultConfig(mock.URL()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/orders?dry=1", strings.NewReader(`{"qty": 10}`))
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Connection", "keep-alive, X-Drop")
	req.Header.Set("X-Drop", "1")

	resp := client.Forward(req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want 201", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Origin"); got != "yes" {
		t.Errorf("X-Origin = %q, want origin header relayed", got)
	}
	if got := resp.Header.Get(HeaderAllowOrigin); got != "*" {
		t.Errorf("%s = %q, want *", HeaderAllowOrigin, got)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"id": 1}` {
		t.Errorf("body = %s", body)
	}

	seen, ok := mock.LastRequest()
	if !ok {
		t.Fatal("origin saw no request")
	}
	if seen.Method != http.MethodPost {
		t.Errorf("origin method = %s", seen.Method)
	}
	if seen.URI != "/v1/orders?dry=1" {
		t.Errorf("origin URI = %s", seen.URI)
	}
	if string(seen.Body) != `{"qty": 10}` {
		t.Errorf("origin body = %s", seen.Body)
	}
	if seen.Header.Get("Authorization") != "Bearer token" {
		t.Error("Authorization header not forwarded")
	}
	if seen.Header.Get("X-Drop") != "" {
		t.Error("header named by Connection was forwarded")
	}
}

func TestForward_OverridesOriginCORS(t *testing.T) {
	mock := testutil.NewMockOrigin()
	defer mock.Close()

	mock.SetResponse("/v1/cors", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Access-Control-Allow-Origin": "https://only.example.com",
		},
	})

	client, _ := New(DefaultConfig(mock.URL()))
	resp := client.Forward(httptest.NewRequest(http.MethodGet, "/v1/cors", nil))
	defer resp.Body.Close()

	if got := resp.Header.Values(HeaderAllowOrigin); len(got) != 1 || got[0] != "*" {
		t.Errorf("%s = %v, want [*]", HeaderAllowOrigin, got)
	}
}

func TestForward_ErrorStatusPassesThrough(t *testing.T) {
	mock := testutil.NewMockOrigin()
	defer mock.Close()

	mock.SetResponse("/v1/missing", testutil.NewNotFoundResponse())
	mock.SetResponse("/v1/broken", testutil.NewServerErrorResponse())

	client, _ := New(DefaultConfig(mock.URL()))

	for path, want := range map[string]int{"/v1/missing": 404, "/v1/broken": 500} {
		resp := client.Forward(httptest.NewRequest(http.MethodGet, path, nil))
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("%s: StatusCode = %d, want %d", path, resp.StatusCode, want)
		}
	}
}

func TestForward_NetworkFailure(t *testing.T) {
	client, err := New(DefaultConfig(testutil.ClosedURL()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp := client.Forward(httptest.NewRequest(http.MethodGet, "/v1/reference/tickers", nil))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("StatusCode = %d, want 502", resp.StatusCode)
	}
	if got := resp.Header.Get(HeaderAllowOrigin); got != "*" {
		t.Errorf("%s = %q, want *", HeaderAllowOrigin, got)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["error"] == "" {
		t.Errorf("error field missing from %v", payload)
	}
}

func TestDo_NetworkFailureIsOriginError(t *testing.T) {
	client, _ := New(DefaultConfig(testutil.ClosedURL()))

	_, err := client.Do(httptest.NewRequest(http.MethodGet, "/v1/x", nil))
	if err == nil {
		t.Fatal("expected error")
	}

	var originErr *OriginError
	if !errors.As(err, &originErr) {
		t.Fatalf("error %T is not *OriginError", err)
	}
	if originErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want network", originErr.ErrorClass)
	}
	if !strings.HasSuffix(originErr.URL, "/v1/x") {
		t.Errorf("URL = %q", originErr.URL)
	}
}

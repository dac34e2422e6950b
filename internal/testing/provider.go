package testing

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"golang.org/x/oauth2"
)

const (
	FakeClientID     = "test_client_id"
	FakeClientSecret = "test_client_secret"
)

// RecordedRequest is a request received by the [FakeProvider] API.
type RecordedRequest struct {
	Method        string
	Path          string
	Query         url.Values
	Authorization string
	Body          []byte
}

// APIResponse is a canned response for one "METHOD /path" on the fake API.
type APIResponse struct {
	Status int
	Body   string
}

// FakeProvider is an httptest server standing in for the accounts service and the Web API.
//
// Token endpoint: POST /api/token (client Basic auth required).
// Web API: everything under /v1, answered from Routes or 204 by default.
type FakeProvider struct {
	Server *httptest.Server

	mu              sync.Mutex
	exchangeStatus  int
	exchangeBody    map[string]any
	refreshStatus   int
	refreshBody     map[string]any
	routes          map[string]APIResponse
	tokenRequests   []url.Values
	apiRequests     []RecordedRequest
	beforeTokenCall func(grant string)
}

// NewFakeProvider starts a provider closed at test cleanup.
//
// Defaults: the code exchange returns AT1/RT1/3600 and refresh returns AT2 with no refresh token.
func NewFakeProvider(t *testing.T) *FakeProvider {
	t.Helper()

	p := &FakeProvider{
		exchangeStatus: http.StatusOK,
		exchangeBody:   map[string]any{"access_token": "AT1", "token_type": "Bearer", "refresh_token": "RT1", "expires_in": 3600},
		refreshStatus:  http.StatusOK,
		refreshBody:    map[string]any{"access_token": "AT2", "token_type": "Bearer", "expires_in": 3600},
		routes:         make(map[string]APIResponse),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", p.serveToken)
	mux.HandleFunc("/v1/", p.serveAPI)
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)

	return p
}

// Config returns an oauth2 config pointed at the fake token endpoint.
func (p *FakeProvider) Config(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     FakeClientID,
		ClientSecret: FakeClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"user-read-playback-state", "user-modify-playback-state"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.Server.URL + "/authorize",
			TokenURL:  p.Server.URL + "/api/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// APIBaseURL returns the base URL of the fake Web API.
func (p *FakeProvider) APIBaseURL() string {
	return p.Server.URL + "/v1"
}

// SetExchange sets the response of the authorization_code grant.
func (p *FakeProvider) SetExchange(status int, body map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangeStatus, p.exchangeBody = status, body
}

// SetRefresh sets the response of the refresh_token grant.
func (p *FakeProvider) SetRefresh(status int, body map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshStatus, p.refreshBody = status, body
}

// OnTokenCall registers a hook run before every token endpoint response.
func (p *FakeProvider) OnTokenCall(fn func(grant string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.beforeTokenCall = fn
}

// Route sets the response for method and path (relative to /v1).
func (p *FakeProvider) Route(method, path string, status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[method+" "+path] = APIResponse{Status: status, Body: body}
}

// TokenRequests returns the form values of every token endpoint call.
func (p *FakeProvider) TokenRequests() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]url.Values(nil), p.tokenRequests...)
}

// TokenCalls counts token endpoint calls with the given grant type.
func (p *FakeProvider) TokenCalls(grant string) int {
	n := 0
	for _, form := range p.TokenRequests() {
		if form.Get("grant_type") == grant {
			n++
		}
	}
	return n
}

// APIRequests returns every request received under /v1.
func (p *FakeProvider) APIRequests() []RecordedRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]RecordedRequest(nil), p.apiRequests...)
}

func (p *FakeProvider) serveToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	grant := r.PostForm.Get("grant_type")

	p.mu.Lock()
	p.tokenRequests = append(p.tokenRequests, r.PostForm)
	hook := p.beforeTokenCall
	status, body := p.exchangeStatus, p.exchangeBody
	if grant == "refresh_token" {
		status, body = p.refreshStatus, p.refreshBody
	}
	p.mu.Unlock()

	if hook != nil {
		hook(grant)
	}

	id, secret, ok := r.BasicAuth()
	if !ok || id != FakeClientID || secret != FakeClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid_client"})
		return
	}

	writeJSON(w, status, body)
}

func (p *FakeProvider) serveAPI(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	path := strings.TrimPrefix(r.URL.Path, "/v1")

	p.mu.Lock()
	p.apiRequests = append(p.apiRequests, RecordedRequest{
		Method:        r.Method,
		Path:          path,
		Query:         r.URL.Query(),
		Authorization: r.Header.Get("Authorization"),
		Body:          body,
	})
	resp, ok := p.routes[r.Method+" "+path]
	p.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	io.WriteString(w, resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

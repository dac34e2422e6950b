// Spotify accounts and player endpoints
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/spotremote/internal/shared"
	"golang.org/x/oauth2"
)

const (
	SpotifyAuthURL    = "https://accounts.spotify.com/authorize"
	SpotifyTokenURL   = "https://accounts.spotify.com/api/token"
	SpotifyAPIBaseURL = "https://api.spotify.com/v1"

	// SearchLimit is the page size sent with every search.
	SearchLimit = 10
)

// SpotifyScopes are requested on every login.
var SpotifyScopes = []string{
	"user-read-private",
	"user-read-email",
	"user-modify-playback-state",
	"user-read-playback-state",
	"user-read-currently-playing",
	"streaming",
	"app-remote-control",
}

// NewOAuthConfig builds the authorization code client for the Spotify accounts service.
//
// Client credentials go in the Basic Authorization header of token requests.
func NewOAuthConfig(creds shared.SpotifyConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURI,
		Scopes:       SpotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   SpotifyAuthURL,
			TokenURL:  SpotifyTokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// PlayRequest is the body accepted by the start playback operation.
type PlayRequest struct {
	DeviceID   string   `json:"device_id,omitempty"`
	URIs       []string `json:"uris,omitempty" validate:"omitempty,dive,required"`
	ContextURI string   `json:"context_uri,omitempty"`
}

// PlaybackStep names the phase of start playback that failed.
type PlaybackStep string

const (
	StepTransfer PlaybackStep = "transfer"
	StepPlay     PlaybackStep = "play"
)

// PlaybackError reports a start playback step that did not complete.
//
// Either Err holds the failed call, or the provider answered with a 2xx other than 200/204 and
// StatusCode/Details carry that answer. A completed transfer is never undone.
type PlaybackError struct {
	Step       PlaybackStep
	StatusCode int
	Details    any
	Err        error
}

func (e *PlaybackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("playback %s step: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("playback %s step: unexpected status %d", e.Step, e.StatusCode)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// Message is the client-facing summary of the failed step.
func (e *PlaybackError) Message() string {
	if e.Step == StepTransfer {
		return "Failed to transfer playback"
	}
	return "Failed to start playback"
}

type transferPayload struct {
	DeviceIDs []string `json:"device_ids"`
	Play      bool     `json:"play"`
}

type playPayload struct {
	URIs       []string `json:"uris,omitempty"`
	ContextURI string   `json:"context_uri,omitempty"`
}

// SpotifyPlayer implements [Player] against the Web API.
type SpotifyPlayer struct {
	api *Forwarder
}

// NewSpotifyPlayer creates a player that sends its calls through api.
func NewSpotifyPlayer(api *Forwarder) *SpotifyPlayer {
	return &SpotifyPlayer{api: api}
}

// Devices lists the user's available playback devices.
func (p *SpotifyPlayer) Devices(ctx context.Context, token string) (*APIResponse, error) {
	return p.api.Forward(ctx, token, ProviderRequest{Method: http.MethodGet, Endpoint: "/me/player/devices"})
}

func (p *SpotifyPlayer) Pause(ctx context.Context, token string) (*APIResponse, error) {
	return p.api.Forward(ctx, token, ProviderRequest{Method: http.MethodPut, Endpoint: "/me/player/pause"})
}

func (p *SpotifyPlayer) Next(ctx context.Context, token string) (*APIResponse, error) {
	return p.api.Forward(ctx, token, ProviderRequest{Method: http.MethodPost, Endpoint: "/me/player/next"})
}

func (p *SpotifyPlayer) Previous(ctx context.Context, token string) (*APIResponse, error) {
	return p.api.Forward(ctx, token, ProviderRequest{Method: http.MethodPost, Endpoint: "/me/player/previous"})
}

// Search runs a catalog search; kind defaults to "track".
func (p *SpotifyPlayer) Search(ctx context.Context, token, query, kind string) (*APIResponse, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", shared.ErrMissingArgument)
	}
	if kind == "" {
		kind = "track"
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("type", kind)
	q.Set("limit", strconv.Itoa(SearchLimit))

	return p.api.Forward(ctx, token, ProviderRequest{Method: http.MethodGet, Endpoint: "/search", Query: q})
}

// StartPlayback transfers playback to req.DeviceID when set, then starts playing.
//
// The play call is made when URIs or a context URI were given, or when no device was named.
func (p *SpotifyPlayer) StartPlayback(ctx context.Context, token string, req PlayRequest) error {
	if req.DeviceID != "" {
		resp, err := p.api.Forward(ctx, token, ProviderRequest{
			Method:   http.MethodPut,
			Endpoint: "/me/player",
			Body:     transferPayload{DeviceIDs: []string{req.DeviceID}, Play: true},
		})
		if err := stepResult(StepTransfer, resp, err); err != nil {
			return err
		}
	}

	payload := playPayload{URIs: req.URIs, ContextURI: req.ContextURI}
	if len(payload.URIs) == 0 && payload.ContextURI == "" && req.DeviceID != "" {
		return nil
	}

	resp, err := p.api.Forward(ctx, token, ProviderRequest{
		Method:   http.MethodPut,
		Endpoint: "/me/player/play",
		Body:     payload,
	})
	return stepResult(StepPlay, resp, err)
}

func stepResult(step PlaybackStep, resp *APIResponse, err error) error {
	if err != nil {
		return &PlaybackError{Step: step, Err: err}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return &PlaybackError{Step: step, StatusCode: resp.StatusCode, Details: resp.JSONData}
	}
	return nil
}

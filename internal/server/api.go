package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/spotremote/internal/services"
	"github.com/desertthunder/spotremote/internal/shared"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// proxy adapts a token-taking player call to a handler that relays the provider response.
func (s *Server) proxy(call func(ctx context.Context, token string) (*services.APIResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := s.validToken(w, r)
		if !ok {
			return
		}

		resp, err := call(r.Context(), token)
		if err != nil {
			s.upstreamFailed(w, r, err)
			return
		}
		writeProviderResponse(w, resp)
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "Search query 'q' is required")
		return
	}
	kind := r.URL.Query().Get("type")

	s.proxy(func(ctx context.Context, token string) (*services.APIResponse, error) {
		return s.player.Search(ctx, token, query, kind)
	})(w, r)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	req, err := decodePlayRequest(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body", Message: err.Error()})
		return
	}

	token, ok := s.validToken(w, r)
	if !ok {
		return
	}

	if err := s.player.StartPlayback(r.Context(), token, req); err != nil {
		s.upstreamFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Playback initiated"})
}

// decodePlayRequest reads an optional JSON play body. An empty body is an empty request.
func decodePlayRequest(body io.Reader) (services.PlayRequest, error) {
	var req services.PlayRequest
	if err := json.NewDecoder(io.LimitReader(body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if err := validate.Struct(req); err != nil {
		return req, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return req, nil
}

// upstreamFailed logs a failed provider call against the request ID and answers the client.
func (s *Server) upstreamFailed(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warn("provider call failed", "request_id", RequestIDFrom(r.Context()), "path", r.URL.Path, "error", err)
	writeUpstreamError(w, err)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

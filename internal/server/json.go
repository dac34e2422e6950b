package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/desertthunder/spotremote/internal/services"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   any    `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeProviderResponse relays a successful provider answer: JSON verbatim, otherwise 204.
func writeProviderResponse(w http.ResponseWriter, resp *services.APIResponse) {
	if !resp.IsJSON {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(resp.Body)
}

// writeUpstreamError maps a failed provider call to the client.
//
// The provider status and payload are passed through; without a provider answer the status is 500.
func writeUpstreamError(w http.ResponseWriter, err error) {
	var upstream *services.UpstreamError
	if errors.As(err, &upstream) {
		status := upstream.StatusCode
		var payload any = "Internal server error"
		if status == 0 {
			status = http.StatusInternalServerError
		} else if upstream.Payload != nil {
			payload = upstream.Payload
		} else if len(upstream.Body) > 0 {
			payload = string(upstream.Body)
		}
		writeJSON(w, status, errorBody{Error: payload, Message: upstream.Error()})
		return
	}

	var playback *services.PlaybackError
	if errors.As(err, &playback) && playback.StatusCode != 0 {
		writeJSON(w, playback.StatusCode, errorBody{Error: playback.Message(), Details: playback.Details})
		return
	}

	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error", Message: err.Error()})
}

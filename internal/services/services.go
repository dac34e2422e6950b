package services

import "context"

// Player is the set of playback operations exposed over HTTP.
type Player interface {
	Devices(ctx context.Context, token string) (*APIResponse, error)
	Pause(ctx context.Context, token string) (*APIResponse, error)
	Next(ctx context.Context, token string) (*APIResponse, error)
	Previous(ctx context.Context, token string) (*APIResponse, error)
	Search(ctx context.Context, token, query, kind string) (*APIResponse, error)
	StartPlayback(ctx context.Context, token string, req PlayRequest) error
}

var _ Player = (*SpotifyPlayer)(nil)

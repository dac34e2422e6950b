package auth

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// TokenEndpoint is the part of [oauth2.Config] the flow and refresher rely on.
type TokenEndpoint interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
	TokenSource(ctx context.Context, t *oauth2.Token) oauth2.TokenSource
}

var _ TokenEndpoint = (*oauth2.Config)(nil)

// expiresIn recovers the provider's expires_in value, in seconds, from a token response.
//
// The raw field is preferred; Expiry (already computed by oauth2 against its own clock) is the fallback.
func expiresIn(tok *oauth2.Token, now time.Time) int64 {
	if tok.ExpiresIn > 0 {
		return tok.ExpiresIn
	}

	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}

	if !tok.Expiry.IsZero() {
		if secs := math.Ceil(tok.Expiry.Sub(now).Seconds()); secs > 0 {
			return int64(secs)
		}
	}
	return 0
}

// providerDetail extracts status and body of a token endpoint rejection for logging.
func providerDetail(err error) (status int, body string) {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		return rerr.Response.StatusCode, string(rerr.Body)
	}
	return 0, ""
}

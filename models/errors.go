package models

import "errors"

var (
	// ErrChannelUnavailable is returned when a send is attempted while the channel is not open.
	ErrChannelUnavailable = errors.New("chat channel unavailable")
	// ErrIdentityUnavailable means the acting user could not be resolved from the credential.
	ErrIdentityUnavailable = errors.New("identity unavailable")
	// ErrStaleCacheReference means the cached chat id was rejected by the server.
	ErrStaleCacheReference = errors.New("stale cached chat reference")
	// ErrMalformedPayload covers any server payload with an unexpected shape.
	ErrMalformedPayload = errors.New("malformed server payload")
	ErrNoActiveChat     = errors.New("no active chat")
	ErrChatNotFound     = errors.New("chat not found")
	ErrChatAlreadyOpen  = errors.New("a chat is already active")
	ErrEmptyMessage     = errors.New("message is empty")
)

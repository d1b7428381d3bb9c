package domain

import "errors"

// Error taxonomy shared by the server and the screen client.
var (
	ErrNetworkTransient  = errors.New("transient network error")
	ErrDecodeUnsupported = errors.New("media cannot be decoded")
	ErrNoContent         = errors.New("no content assigned")
	ErrMalformedMessage  = errors.New("malformed message")
	ErrConnectionLost    = errors.New("connection lost")
)

// Content authority lookups.
var (
	ErrScreenNotFound   = errors.New("screen not found")
	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrFolderNotFound   = errors.New("media folder not found")
)

// Package player is the screen side: a playback Session that walks the
// playlist one item at a time through a Renderer, a Watcher that polls the
// content fingerprint and change log, and a PushListener that turns server
// hints into early fingerprint checks. Player wires the three together.
package player

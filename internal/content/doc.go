// Package content resolves what a screen should be showing and summarizes it
// as a fingerprint that screens compare to decide whether to reload.
//
// Resolver turns a screen into its ordered item list. Fingerprinter hashes
// that list, and Cache keeps the result per screen for a short TTL. Streamer
// answers "which item is at index N" for the playback session.
package content

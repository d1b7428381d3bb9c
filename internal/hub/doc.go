// Package hub is the broadcast hub: the registry of live push connections from
// screens and admin consoles.
//
// The registry is owned by a single goroutine. Register, Unregister, Touch and
// SendTo are commands sent to it over a channel, so no lock guards the map.
// Each connection gets its own writer goroutine with a small buffer; the hub
// never blocks on a socket. Delivery is best effort and at most once: a
// closed writer is skipped and a writer whose buffer is full is evicted.
package hub

// Package changelog implements the fallback change log: a small bounded FIFO of
// recent content mutations that screens poll when their push channel is down.
//
// Two backends live here: Memory (a ring buffer, the default) and File (a JSON
// file shared between processes through an advisory lock). The Redis backend
// is in internal/adapter/redis. All of them satisfy domain.ChangeLog.
package changelog

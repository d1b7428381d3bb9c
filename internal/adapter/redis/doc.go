// Package redis holds the Redis-backed change log, announcement relay and
// instance registry, plus the client constructor with its metrics and
// circuit breaker hooks.
package redis

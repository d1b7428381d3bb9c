package domain

type PlaybackStatus string

const (
	StatusLoading   PlaybackStatus = "loading"
	StatusPlaying   PlaybackStatus = "playing"
	StatusError     PlaybackStatus = "error"
	StatusCompleted PlaybackStatus = "completed"
	StatusNoContent PlaybackStatus = "no-content"
)

// PlaybackState is client-local and discarded with the session.
type PlaybackState struct {
	CurrentIndex int            `json:"currentIndex"`
	TotalItems   int            `json:"totalItems"`
	RetryCount   int            `json:"retryCount"`
	LastError    error          `json:"-"`
	Status       PlaybackStatus `json:"status"`
}

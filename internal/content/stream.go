package content

import (
	"context"
	"fmt"

	"github.com/pscheid92/screensync/internal/domain"
)

type Streamer struct {
	resolver *Resolver
}

func NewStreamer(resolver *Resolver) *Streamer {
	return &Streamer{resolver: resolver}
}

// Stream resolves the item at index, wrapping out-of-range and negative
// indexes modulo the item count. The next item is omitted at the end of a
// non-looping playlist.
func (s *Streamer) Stream(ctx context.Context, screenID string, index int) (domain.StreamResponse, error) {
	res, err := s.resolver.Resolve(ctx, screenID)
	if err != nil {
		return domain.StreamResponse{}, fmt.Errorf("stream %s: %w", screenID, err)
	}

	total := len(res.Items)
	idx := ((index % total) + total) % total
	looping := res.Playlist.IsLooping()

	current := res.Items[idx]
	resp := domain.StreamResponse{
		CurrentItem:  &current,
		TotalItems:   total,
		CurrentIndex: idx,
		IsLooping:    looping,
	}
	if looping || idx+1 < total {
		next := res.Items[(idx+1)%total]
		resp.NextItem = &next
	}
	return resp, nil
}

package content

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/pscheid92/screensync/internal/domain"
)

type hashInput struct {
	PlaylistName string            `json:"playlistName"`
	Folder       string            `json:"folder"`
	SourceMode   domain.SourceMode `json:"sourceMode"`
	Items        []entry           `json:"items"`
	UpdatedAt    int64             `json:"updatedAt"`
}

// Fingerprint summarizes a resolved item set. The hash is the base64 of a
// canonical JSON document; it detects change, it does not resist forgery.
func Fingerprint(res *Resolved) domain.ContentFingerprint {
	input := hashInput{
		PlaylistName: res.Playlist.Name,
		Folder:       res.Playlist.Folder,
		SourceMode:   res.SourceMode,
		Items:        res.entries,
		UpdatedAt:    unixMilli(res.Playlist.UpdatedAt),
	}
	// Marshalling plain structs of strings and ints cannot fail.
	data, _ := json.Marshal(input)

	lastModified := res.Playlist.UpdatedAt
	for _, e := range res.entries {
		if e.ModifiedTime == 0 {
			continue
		}
		if mt := time.UnixMilli(e.ModifiedTime); mt.After(lastModified) {
			lastModified = mt
		}
	}

	return domain.ContentFingerprint{
		Hash:         base64.StdEncoding.EncodeToString(data),
		LastModified: lastModified.UTC(),
		ItemCount:    len(res.entries),
		SourceMode:   res.SourceMode,
	}
}

// Fingerprinter computes content status straight from the authority.
type Fingerprinter struct {
	resolver *Resolver
}

func NewFingerprinter(resolver *Resolver) *Fingerprinter {
	return &Fingerprinter{resolver: resolver}
}

// Status never reports authority failures as errors: anything that prevents
// resolving content yields {hasContent: false}. Only a cancelled ctx is returned.
func (f *Fingerprinter) Status(ctx context.Context, screenID string) (domain.ContentStatus, error) {
	res, err := f.resolver.Resolve(ctx, screenID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.ContentStatus{}, ctxErr
		}
		if errors.Is(err, domain.ErrNoContent) {
			slog.DebugContext(ctx, "No content for screen", "screen_id", screenID, "reason", err)
		} else {
			slog.WarnContext(ctx, "Content resolution failed, reporting no content", "screen_id", screenID, "error", err)
		}
		return noContent(), nil
	}

	fp := Fingerprint(res)
	return domain.ContentStatus{
		HasContent:   true,
		ContentHash:  fp.Hash,
		LastModified: &fp.LastModified,
		ItemCount:    fp.ItemCount,
		PlaylistName: res.Playlist.Name,
		SourceMode:   fp.SourceMode,
		Files:        res.Files,
	}, nil
}

func noContent() domain.ContentStatus {
	return domain.ContentStatus{HasContent: false, Files: []domain.FileInfo{}}
}

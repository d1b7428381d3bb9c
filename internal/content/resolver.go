package content

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pscheid92/screensync/internal/domain"
)

// MediaStatter is implemented by authorities that can report file metadata
// for items of a manual playlist.
type MediaStatter interface {
	StatMedia(ctx context.Context, itemURL string) (domain.MediaFile, bool)
}

// Resolved is a screen's playlist expanded into playable items. Items are in
// playback order; Files are sorted by name.
type Resolved struct {
	Playlist   *domain.Playlist
	SourceMode domain.SourceMode
	Items      []domain.PlaylistItem
	Files      []domain.FileInfo
	entries    []entry
}

// entry is one resolved file as it enters the fingerprint.
type entry struct {
	Name         string           `json:"name"`
	URL          string           `json:"url"`
	Type         domain.MediaType `json:"type"`
	Size         int64            `json:"size"`
	ModifiedTime int64            `json:"modifiedTime"`
}

type Resolver struct {
	authority    domain.ContentAuthority
	mediaBaseURL string
}

// NewResolver builds item URLs for folder playlists under mediaBaseURL (e.g. "/media").
func NewResolver(authority domain.ContentAuthority, mediaBaseURL string) *Resolver {
	return &Resolver{
		authority:    authority,
		mediaBaseURL: strings.TrimRight(mediaBaseURL, "/"),
	}
}

// Resolve returns ErrNoContent (wrapped) when the screen has nothing playable.
func (r *Resolver) Resolve(ctx context.Context, screenID string) (*Resolved, error) {
	playlist, err := r.authority.GetAssignedPlaylist(ctx, screenID)
	if err != nil {
		if errors.Is(err, domain.ErrScreenNotFound) || errors.Is(err, domain.ErrPlaylistNotFound) {
			return nil, fmt.Errorf("%w: %w", domain.ErrNoContent, err)
		}
		return nil, fmt.Errorf("get assigned playlist: %w", err)
	}
	if playlist == nil {
		return nil, domain.ErrNoContent
	}

	var res *Resolved
	if playlist.Folder != "" {
		res, err = r.resolveFolder(ctx, playlist)
	} else {
		res = r.resolveManual(ctx, playlist)
	}
	if err != nil {
		return nil, err
	}

	if len(res.Items) == 0 {
		return nil, domain.ErrNoContent
	}
	return res, nil
}

func (r *Resolver) resolveFolder(ctx context.Context, playlist *domain.Playlist) (*Resolved, error) {
	media, err := r.authority.ListFolderMedia(ctx, playlist.Folder)
	if err != nil {
		// An unreadable folder is the same as an empty one.
		return nil, fmt.Errorf("%w: list folder %q: %w", domain.ErrNoContent, playlist.Folder, err)
	}

	files := make([]domain.MediaFile, 0, len(media))
	for _, m := range media {
		if m.MediaType == domain.MediaVideo || m.MediaType == domain.MediaImage {
			files = append(files, m)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	items := make([]domain.PlaylistItem, len(files))
	for i, f := range files {
		items[i] = domain.PlaylistItem{
			ID:   playlist.Folder + "/" + f.Name,
			Name: f.Name,
			URL:  r.mediaBaseURL + "/" + url.PathEscape(playlist.Folder) + "/" + url.PathEscape(f.Name),
			Type: f.MediaType,
		}
	}

	entries := make([]entry, len(files))
	for i, f := range files {
		entries[i] = entry{
			Name:         f.Name,
			URL:          items[i].URL,
			Type:         f.MediaType,
			Size:         f.Size,
			ModifiedTime: unixMilli(f.ModifiedTime),
		}
	}

	return newResolved(playlist, domain.SourceFolder, items, entries), nil
}

func (r *Resolver) resolveManual(ctx context.Context, playlist *domain.Playlist) *Resolved {
	statter, _ := r.authority.(MediaStatter)

	items := make([]domain.PlaylistItem, len(playlist.Items))
	copy(items, playlist.Items)

	entries := make([]entry, len(items))
	for i, item := range items {
		entries[i] = entry{Name: item.Name, URL: item.URL, Type: item.Type}
		if statter != nil {
			if st, ok := statter.StatMedia(ctx, item.URL); ok {
				entries[i].Size = st.Size
				entries[i].ModifiedTime = unixMilli(st.ModifiedTime)
			}
		}
	}

	return newResolved(playlist, domain.SourceManual, items, entries)
}

// newResolved sorts entries by name so enumeration order never reaches the hash.
func newResolved(playlist *domain.Playlist, mode domain.SourceMode, items []domain.PlaylistItem, entries []entry) *Resolved {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].URL < entries[j].URL
	})

	files := make([]domain.FileInfo, len(entries))
	for i, e := range entries {
		files[i] = domain.FileInfo{Name: e.Name, Size: e.Size, ModifiedTime: e.ModifiedTime}
	}

	return &Resolved{
		Playlist:   playlist,
		SourceMode: mode,
		Items:      items,
		Files:      files,
		entries:    entries,
	}
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

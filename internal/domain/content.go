package domain

import (
	"context"
	"time"
)

type MediaType string

const (
	MediaVideo MediaType = "video"
	MediaImage MediaType = "image"
)

type SourceMode string

const (
	SourceManual SourceMode = "manual"
	SourceFolder SourceMode = "folder"
)

// Screen is a display client as known to the content authority.
type Screen struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PlaylistID string `json:"playlistId"`
}

// PlaylistItem is read-only from this subsystem's perspective.
type PlaylistItem struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	URL      string    `json:"url"`
	Type     MediaType `json:"type"`
	Duration int       `json:"duration,omitempty"` // seconds
}

type Playlist struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Folder    string         `json:"folder,omitempty"`
	Items     []PlaylistItem `json:"items"`
	Loop      *bool          `json:"loop,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// IsLooping reports whether playback wraps around. Playlists loop unless told otherwise.
func (p *Playlist) IsLooping() bool {
	return p.Loop == nil || *p.Loop
}

type MediaFile struct {
	Name         string
	Size         int64
	ModifiedTime time.Time
	MediaType    MediaType
}

// ContentAuthority is the external store of screens, playlists and media folders.
type ContentAuthority interface {
	GetAssignedPlaylist(ctx context.Context, screenID string) (*Playlist, error)
	ListFolderMedia(ctx context.Context, folder string) ([]MediaFile, error)
}

// ContentFingerprint summarizes what a screen should show. Not a security hash.
type ContentFingerprint struct {
	Hash         string     `json:"contentHash"`
	LastModified time.Time  `json:"lastModified"`
	ItemCount    int        `json:"itemCount"`
	SourceMode   SourceMode `json:"sourceMode"`
}

type FileInfo struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime int64  `json:"modifiedTime"` // unix ms
}

// ContentStatus is the response of the content-status endpoint.
type ContentStatus struct {
	HasContent   bool       `json:"hasContent"`
	ContentHash  string     `json:"contentHash,omitempty"`
	LastModified *time.Time `json:"lastModified,omitempty"`
	ItemCount    int        `json:"itemCount"`
	PlaylistName string     `json:"playlistName,omitempty"`
	SourceMode   SourceMode `json:"sourceMode,omitempty"`
	Files        []FileInfo `json:"files"`
}

// StreamResponse is the resolved playback position for a screen.
type StreamResponse struct {
	CurrentItem  *PlaylistItem `json:"currentItem"`
	NextItem     *PlaylistItem `json:"nextItem,omitempty"`
	TotalItems   int           `json:"totalItems"`
	CurrentIndex int           `json:"currentIndex"`
	IsLooping    bool          `json:"isLooping"`
}

// Package authority provides a read-only content authority backed by JSON
// files and a media directory tree.
package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pscheid92/screensync/internal/domain"
)

const (
	screensFile   = "screens.json"
	playlistsFile = "playlists.json"
)

var ErrUnsafePath = errors.New("path escapes media root")

var mediaExtensions = map[string]domain.MediaType{
	".mp4":  domain.MediaVideo,
	".m4v":  domain.MediaVideo,
	".mov":  domain.MediaVideo,
	".webm": domain.MediaVideo,
	".mkv":  domain.MediaVideo,
	".jpg":  domain.MediaImage,
	".jpeg": domain.MediaImage,
	".png":  domain.MediaImage,
	".gif":  domain.MediaImage,
	".webp": domain.MediaImage,
}

// MediaTypeOf classifies a file name by extension.
func MediaTypeOf(name string) (domain.MediaType, bool) {
	t, ok := mediaExtensions[strings.ToLower(filepath.Ext(name))]
	return t, ok
}

// FileStore reads screens.json and playlists.json from dataDir and media
// folders from mediaDir. It never writes.
type FileStore struct {
	dataDir      string
	mediaDir     string
	mediaBaseURL string
}

func NewFileStore(dataDir, mediaDir, mediaBaseURL string) *FileStore {
	return &FileStore{
		dataDir:      dataDir,
		mediaDir:     mediaDir,
		mediaBaseURL: strings.TrimRight(mediaBaseURL, "/"),
	}
}

func (s *FileStore) GetAssignedPlaylist(_ context.Context, screenID string) (*domain.Playlist, error) {
	var screens []domain.Screen
	if err := s.readJSON(screensFile, &screens); err != nil {
		return nil, err
	}

	var screen *domain.Screen
	for i := range screens {
		if screens[i].ID == screenID {
			screen = &screens[i]
			break
		}
	}
	if screen == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrScreenNotFound, screenID)
	}
	if screen.PlaylistID == "" {
		return nil, fmt.Errorf("%w: screen %s has no playlist", domain.ErrPlaylistNotFound, screenID)
	}

	var playlists []domain.Playlist
	if err := s.readJSON(playlistsFile, &playlists); err != nil {
		return nil, err
	}
	for i := range playlists {
		if playlists[i].ID == screen.PlaylistID {
			return &playlists[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrPlaylistNotFound, screen.PlaylistID)
}

// ListFolderMedia lists playable files directly inside folder. Hidden files,
// subdirectories and unknown extensions are skipped.
func (s *FileStore) ListFolderMedia(_ context.Context, folder string) ([]domain.MediaFile, error) {
	dir, err := s.mediaPath(folder)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFolderNotFound, folder)
		}
		return nil, fmt.Errorf("read media folder %s: %w", folder, err)
	}

	files := make([]domain.MediaFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		mediaType, ok := MediaTypeOf(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		files = append(files, domain.MediaFile{
			Name:         e.Name(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime(),
			MediaType:    mediaType,
		})
	}
	return files, nil
}

// StatMedia reports size and mtime for item URLs served from the media root.
func (s *FileStore) StatMedia(_ context.Context, itemURL string) (domain.MediaFile, bool) {
	prefix := s.mediaBaseURL + "/"
	if !strings.HasPrefix(itemURL, prefix) {
		return domain.MediaFile{}, false
	}
	rel, err := url.PathUnescape(strings.TrimPrefix(itemURL, prefix))
	if err != nil {
		return domain.MediaFile{}, false
	}
	path, err := s.mediaPath(rel)
	if err != nil {
		return domain.MediaFile{}, false
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return domain.MediaFile{}, false
	}
	mediaType, _ := MediaTypeOf(info.Name())
	return domain.MediaFile{
		Name:         info.Name(),
		Size:         info.Size(),
		ModifiedTime: info.ModTime(),
		MediaType:    mediaType,
	}, true
}

// Ready checks that both directories are readable; used by the readiness probe.
func (s *FileStore) Ready(context.Context) error {
	for _, dir := range []string{s.dataDir, s.mediaDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("stat %s: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
	}
	return nil
}

func (s *FileStore) mediaPath(rel string) (string, error) {
	rel = filepath.FromSlash(rel)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, rel)
	}
	return filepath.Join(s.mediaDir, rel), nil
}

func (s *FileStore) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dataDir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// No file yet means nothing configured.
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

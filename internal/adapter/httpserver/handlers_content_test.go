package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/pscheid92/screensync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeEvents_DefaultsSinceToZero(t *testing.T) {
	var gotSince int64 = -1
	srv := newTestServer(t, &mockAppService{changesSinceFn: func(_ context.Context, since int64) []domain.ChangeEvent {
		gotSince = since
		return []domain.ChangeEvent{{Kind: domain.EventFilesUploaded, Timestamp: 5}}
	}})

	rec := do(t, srv, http.MethodGet, "/change-events", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), gotSince)
	assert.JSONEq(t, `[{"kind":"files-uploaded","timestamp":5}]`, rec.Body.String())
}

func TestChangeEvents_PassesSince(t *testing.T) {
	var gotSince int64
	srv := newTestServer(t, &mockAppService{changesSinceFn: func(_ context.Context, since int64) []domain.ChangeEvent {
		gotSince = since
		return []domain.ChangeEvent{}
	}})

	rec := do(t, srv, http.MethodGet, "/change-events?since=1700000000000", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1_700_000_000_000), gotSince)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestChangeEvents_InvalidSince(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := do(t, srv, http.MethodGet, "/change-events?since=yesterday", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"validation"`)
}

func TestContentStatus_ReturnsStatus(t *testing.T) {
	srv := newTestServer(t, &mockAppService{contentStatusFn: func(_ context.Context, screenID string) (domain.ContentStatus, error) {
		assert.Equal(t, "lobby", screenID)
		return domain.ContentStatus{
			HasContent:   true,
			ContentHash:  "abc",
			ItemCount:    2,
			PlaylistName: "Campaña",
			SourceMode:   domain.SourceFolder,
			Files:        []domain.FileInfo{{Name: "a.mp4", Size: 10, ModifiedTime: 1}},
		}, nil
	}})

	rec := do(t, srv, http.MethodGet, "/content-status/lobby", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["hasContent"])
	assert.Equal(t, "abc", body["contentHash"])
	assert.Equal(t, float64(2), body["itemCount"])
	assert.Len(t, body["files"], 1)
}

func TestContentStatus_NoContentIsStill200(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := do(t, srv, http.MethodGet, "/content-status/unknown", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"hasContent":false,"itemCount":0,"files":[]}`, rec.Body.String())
}

func TestContentStatus_ContextErrorIs500(t *testing.T) {
	srv := newTestServer(t, &mockAppService{contentStatusFn: func(context.Context, string) (domain.ContentStatus, error) {
		return domain.ContentStatus{}, context.DeadlineExceeded
	}})

	rec := do(t, srv, http.MethodGet, "/content-status/lobby", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"internal"`)
}

func TestStream_ForwardsIndex(t *testing.T) {
	srv := newTestServer(t, &mockAppService{streamFn: func(_ context.Context, screenID string, index int) (domain.StreamResponse, error) {
		return domain.StreamResponse{
			CurrentItem:  &domain.PlaylistItem{Name: fmt.Sprintf("item-%d", index), Type: domain.MediaImage},
			TotalItems:   3,
			CurrentIndex: index,
			IsLooping:    true,
		}, nil
	}})

	rec := do(t, srv, http.MethodGet, "/stream/lobby?index=2", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body domain.StreamResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.CurrentIndex)
	assert.Equal(t, "item-2", body.CurrentItem.Name)
	assert.True(t, body.IsLooping)
}

func TestStream_NoContentIs404(t *testing.T) {
	srv := newTestServer(t, &mockAppService{streamFn: func(context.Context, string, int) (domain.StreamResponse, error) {
		return domain.StreamResponse{}, fmt.Errorf("screen lobby: %w", domain.ErrNoContent)
	}})

	rec := do(t, srv, http.MethodGet, "/stream/lobby", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"not_found"`)
}

func TestStream_AuthorityFailureIs500(t *testing.T) {
	srv := newTestServer(t, &mockAppService{streamFn: func(context.Context, string, int) (domain.StreamResponse, error) {
		return domain.StreamResponse{}, errors.New("permission denied")
	}})

	rec := do(t, srv, http.MethodGet, "/stream/lobby", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStream_InvalidIndex(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := do(t, srv, http.MethodGet, "/stream/lobby?index=first", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package correlation

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID_Length(t *testing.T) {
	assert.Len(t, NewID(), 8)
}

func TestEnsure_KeepsExistingID(t *testing.T) {
	ctx := WithID(context.Background(), "abc12345")
	id, ok := ID(Ensure(ctx))
	assert.True(t, ok)
	assert.Equal(t, "abc12345", id)
}

func TestEnsure_AddsMissingID(t *testing.T) {
	id, ok := ID(Ensure(context.Background()))
	assert.True(t, ok)
	assert.Len(t, id, 8)
}

func TestID_EmptyString(t *testing.T) {
	id, ok := ID(WithID(context.Background(), ""))
	assert.False(t, ok)
	assert.Empty(t, id)
}

func TestHandler_AddsContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	ctx := WithScreen(WithID(context.Background(), "deadbeef"), "CAS")
	logger.InfoContext(ctx, "polled")

	out := buf.String()
	assert.Contains(t, out, "correlation_id=deadbeef")
	assert.Contains(t, out, "screen_id=CAS")
}

func TestHandler_NoAttributesWithoutContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewTextHandler(&buf, nil)))

	logger.Info("plain")

	assert.NotContains(t, buf.String(), "correlation_id")
	assert.NotContains(t, buf.String(), "screen_id")
}

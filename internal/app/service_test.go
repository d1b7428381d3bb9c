package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/screensync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStatus struct {
	statusFn func(ctx context.Context, screenID string) (domain.ContentStatus, error)
}

func (m *mockStatus) Status(ctx context.Context, screenID string) (domain.ContentStatus, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx, screenID)
	}
	return domain.ContentStatus{Files: []domain.FileInfo{}}, nil
}

type mockStreams struct {
	streamFn func(ctx context.Context, screenID string, index int) (domain.StreamResponse, error)
}

func (m *mockStreams) Stream(ctx context.Context, screenID string, index int) (domain.StreamResponse, error) {
	if m.streamFn != nil {
		return m.streamFn(ctx, screenID, index)
	}
	return domain.StreamResponse{}, domain.ErrNoContent
}

type mockClients struct {
	clients []domain.ClientRegistration
}

func (m *mockClients) Clients() []domain.ClientRegistration { return m.clients }

func newTestService(status StatusProvider, streams StreamProvider, log domain.ChangeLog, clients ClientLister) *Service {
	clock := clockwork.NewFakeClockAt(announceTime)
	return NewService(status, streams, log, NewAnnouncer(&mockNotifier{}, log, clock), clients)
}

func TestService_ContentStatusDelegates(t *testing.T) {
	status := &mockStatus{statusFn: func(_ context.Context, screenID string) (domain.ContentStatus, error) {
		assert.Equal(t, "lobby", screenID)
		return domain.ContentStatus{HasContent: true, ContentHash: "abc", ItemCount: 2}, nil
	}}
	svc := newTestService(status, &mockStreams{}, &mockChangeLog{}, &mockClients{})

	got, err := svc.ContentStatus(context.Background(), "lobby")
	require.NoError(t, err)
	assert.True(t, got.HasContent)
	assert.Equal(t, "abc", got.ContentHash)
}

func TestService_StreamPassesErrorsThrough(t *testing.T) {
	svc := newTestService(&mockStatus{}, &mockStreams{}, &mockChangeLog{}, &mockClients{})

	_, err := svc.Stream(context.Background(), "lobby", 0)
	assert.ErrorIs(t, err, domain.ErrNoContent)
}

func TestService_StreamForwardsIndex(t *testing.T) {
	streams := &mockStreams{streamFn: func(_ context.Context, _ string, index int) (domain.StreamResponse, error) {
		return domain.StreamResponse{CurrentIndex: index % 3, TotalItems: 3}, nil
	}}
	svc := newTestService(&mockStatus{}, streams, &mockChangeLog{}, &mockClients{})

	got, err := svc.Stream(context.Background(), "lobby", 4)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentIndex)
}

func TestService_ChangesSinceSoftFails(t *testing.T) {
	log := &mockChangeLog{readSinceFn: func(context.Context, int64) ([]domain.ChangeEvent, error) {
		return nil, errors.New("lock timeout")
	}}
	svc := newTestService(&mockStatus{}, &mockStreams{}, log, &mockClients{})

	events := svc.ChangesSince(context.Background(), 0)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestService_AnnounceThenChangesSince(t *testing.T) {
	clock := clockwork.NewFakeClockAt(announceTime)
	log := &recordingLog{}
	svc := NewService(&mockStatus{}, &mockStreams{}, log, NewAnnouncer(&mockNotifier{}, log, clock), &mockClients{})

	res := svc.Announce(context.Background(), domain.EventContentUpdated, nil)
	require.True(t, res.Logged)

	assert.Len(t, svc.ChangesSince(context.Background(), res.Timestamp-1), 1)
	assert.Empty(t, svc.ChangesSince(context.Background(), res.Timestamp))
}

func TestService_ClientsNeverNil(t *testing.T) {
	svc := newTestService(&mockStatus{}, &mockStreams{}, &mockChangeLog{}, &mockClients{})
	assert.NotNil(t, svc.Clients())

	reg := domain.ClientRegistration{ClientID: uuid.New(), Role: domain.RoleAdmin, ConnectedAt: time.Now()}
	svc = newTestService(&mockStatus{}, &mockStreams{}, &mockChangeLog{}, &mockClients{clients: []domain.ClientRegistration{reg}})
	assert.Equal(t, []domain.ClientRegistration{reg}, svc.Clients())
}

type recordingLog struct {
	events []domain.ChangeEvent
}

func (r *recordingLog) Append(_ context.Context, event domain.ChangeEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *recordingLog) ReadSince(_ context.Context, since int64) ([]domain.ChangeEvent, error) {
	out := []domain.ChangeEvent{}
	for _, ev := range r.events {
		if ev.Timestamp > since {
			out = append(out, ev)
		}
	}
	return out, nil
}

type mockInstances struct {
	instances []domain.ServerInstance
	err       error
}

func (m *mockInstances) Instances(context.Context) ([]domain.ServerInstance, error) {
	return m.instances, m.err
}

func TestService_InstancesWithoutRegistry(t *testing.T) {
	svc := newTestService(&mockStatus{}, &mockStreams{}, &mockChangeLog{}, &mockClients{})

	got := svc.Instances(context.Background())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestService_InstancesFromRegistry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(announceTime)
	log := &mockChangeLog{}
	want := []domain.ServerInstance{{InstanceID: "a", Version: "1.0.0", LastSeen: 1}}

	svc := NewService(&mockStatus{}, &mockStreams{}, log, NewAnnouncer(&mockNotifier{}, log, clock), &mockClients{},
		WithInstances(&mockInstances{instances: want}))
	assert.Equal(t, want, svc.Instances(context.Background()))

	svc = NewService(&mockStatus{}, &mockStreams{}, log, NewAnnouncer(&mockNotifier{}, log, clock), &mockClients{},
		WithInstances(&mockInstances{err: errors.New("redis down")}))
	got := svc.Instances(context.Background())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

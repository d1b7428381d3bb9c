package app

import (
	"context"
	"log/slog"

	"github.com/pscheid92/screensync/internal/domain"
)

type StatusProvider interface {
	Status(ctx context.Context, screenID string) (domain.ContentStatus, error)
}

type StreamProvider interface {
	Stream(ctx context.Context, screenID string, index int) (domain.StreamResponse, error)
}

type ClientLister interface {
	Clients() []domain.ClientRegistration
}

// InstanceLister reports the server instances sharing this deployment.
type InstanceLister interface {
	Instances(ctx context.Context) ([]domain.ServerInstance, error)
}

type ServiceOption func(*Service)

func WithInstances(l InstanceLister) ServiceOption {
	return func(s *Service) { s.instances = l }
}

// Service is the only component that references more than one content
// component. Handlers depend on it rather than on the pieces.
type Service struct {
	status    StatusProvider
	streams   StreamProvider
	log       domain.ChangeLog
	announcer *Announcer
	clients   ClientLister
	instances InstanceLister
}

func NewService(status StatusProvider, streams StreamProvider, log domain.ChangeLog, announcer *Announcer, clients ClientLister, opts ...ServiceOption) *Service {
	s := &Service{
		status:    status,
		streams:   streams,
		log:       log,
		announcer: announcer,
		clients:   clients,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ContentStatus(ctx context.Context, screenID string) (domain.ContentStatus, error) {
	return s.status.Status(ctx, screenID)
}

func (s *Service) Stream(ctx context.Context, screenID string, index int) (domain.StreamResponse, error) {
	return s.streams.Stream(ctx, screenID, index)
}

// ChangesSince soft-fails: a change log that cannot be read looks empty, and
// polling screens fall back to their fingerprint poll.
func (s *Service) ChangesSince(ctx context.Context, since int64) []domain.ChangeEvent {
	events, err := s.log.ReadSince(ctx, since)
	if err != nil {
		slog.WarnContext(ctx, "Change log read failed", "since", since, "error", err)
		return []domain.ChangeEvent{}
	}
	return events
}

func (s *Service) Announce(ctx context.Context, kind domain.EventKind, payload map[string]any) AnnounceResult {
	return s.announcer.Announce(ctx, kind, payload)
}

func (s *Service) Clients() []domain.ClientRegistration {
	clients := s.clients.Clients()
	if clients == nil {
		return []domain.ClientRegistration{}
	}
	return clients
}

// Instances lists the server instances sharing the deployment. Without a
// registry, or when it cannot be read, the list is empty.
func (s *Service) Instances(ctx context.Context) []domain.ServerInstance {
	if s.instances == nil {
		return []domain.ServerInstance{}
	}
	instances, err := s.instances.Instances(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Instance registry read failed", "error", err)
		return []domain.ServerInstance{}
	}
	return instances
}

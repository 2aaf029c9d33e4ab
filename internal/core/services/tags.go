package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chatrelay/internal/core/domain"
)

var tagTracer = otel.Tracer("tag-service")

// TagService manages the tenant-scoped labels operators put on contacts.
type TagService struct {
	log      *slog.Logger
	apps     domain.AppRepository
	tags     domain.TagRepository
	contacts domain.ContactRepository
}

func NewTagService(log *slog.Logger, apps domain.AppRepository, tags domain.TagRepository, contacts domain.ContactRepository) *TagService {
	return &TagService{log: log, apps: apps, tags: tags, contacts: contacts}
}

func (s *TagService) ListTags(ctx context.Context, appID uuid.UUID) ([]domain.Tag, error) {
	ctx, span := tagTracer.Start(ctx, "TagService.ListTags", trace.WithAttributes(
		attribute.String("app_id", appID.String()),
	))
	defer span.End()

	if _, err := s.apps.GetApp(ctx, appID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	tags, err := s.tags.ListByApp(ctx, appID)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "tags - list - query failed", "app_id", appID, "err", err)
		return nil, err
	}
	return tags, nil
}

// CreateTag adds a label to the app. Names are unique per app, compared
// case-insensitively.
func (s *TagService) CreateTag(ctx context.Context, appID uuid.UUID, name string) (*domain.Tag, error) {
	ctx, span := tagTracer.Start(ctx, "TagService.CreateTag", trace.WithAttributes(
		attribute.String("app_id", appID.String()),
		attribute.String("name", name),
	))
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: tag name required", domain.ErrInvalidPayload)
	}
	if _, err := s.apps.GetApp(ctx, appID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	existing, err := s.tags.ListByApp(ctx, appID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for _, t := range existing {
		if strings.EqualFold(t.Name, name) {
			return nil, fmt.Errorf("%w: %q", domain.ErrTagExists, name)
		}
	}

	tag := &domain.Tag{
		ID:      uuid.New(),
		AppID:   appID,
		Name:    name,
		Enabled: true,
	}
	if err := s.tags.Create(ctx, tag); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "tags - create - insert failed", "app_id", appID, "name", name, "err", err)
		return nil, err
	}
	s.log.InfoContext(ctx, "tags - create - tag created", "app_id", appID, "tag_id", tag.ID, "name", name)
	return tag, nil
}

func (s *TagService) SetTagEnabled(ctx context.Context, tagID uuid.UUID, enabled bool) error {
	ctx, span := tagTracer.Start(ctx, "TagService.SetTagEnabled", trace.WithAttributes(
		attribute.String("tag_id", tagID.String()),
		attribute.Bool("enabled", enabled),
	))
	defer span.End()

	if err := s.tags.SetEnabled(ctx, tagID, enabled); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *TagService) DeleteTag(ctx context.Context, tagID uuid.UUID) error {
	ctx, span := tagTracer.Start(ctx, "TagService.DeleteTag", trace.WithAttributes(
		attribute.String("tag_id", tagID.String()),
	))
	defer span.End()

	if err := s.tags.Delete(ctx, tagID); err != nil {
		span.RecordError(err)
		return err
	}
	s.log.InfoContext(ctx, "tags - delete - tag removed", "tag_id", tagID)
	return nil
}

// AssignTag links a tag to the contact identified by wa_id within the app.
func (s *TagService) AssignTag(ctx context.Context, appID uuid.UUID, waID string, tagID uuid.UUID) error {
	ctx, span := tagTracer.Start(ctx, "TagService.AssignTag", trace.WithAttributes(
		attribute.String("app_id", appID.String()),
		attribute.String("wa_id", waID),
		attribute.String("tag_id", tagID.String()),
	))
	defer span.End()

	contact, err := s.contacts.GetByWaID(ctx, appID, waID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.tags.AssignToContact(ctx, tagID, contact.ID); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "tags - assign - failed", "tag_id", tagID, "contact_id", contact.ID, "err", err)
		return err
	}
	return nil
}

// RemoveTag unlinks a tag from the contact identified by wa_id.
func (s *TagService) RemoveTag(ctx context.Context, appID uuid.UUID, waID string, tagID uuid.UUID) error {
	ctx, span := tagTracer.Start(ctx, "TagService.RemoveTag", trace.WithAttributes(
		attribute.String("app_id", appID.String()),
		attribute.String("wa_id", waID),
		attribute.String("tag_id", tagID.String()),
	))
	defer span.End()

	contact, err := s.contacts.GetByWaID(ctx, appID, waID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.tags.RemoveFromContact(ctx, tagID, contact.ID); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

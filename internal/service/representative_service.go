package service

import (
	"context"
	"time"

	"github.com/boddenberg/eternity-backoffice-go/internal/domain"
	"github.com/boddenberg/eternity-backoffice-go/internal/infra/observability"
	"github.com/boddenberg/eternity-backoffice-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var representativeTracer = otel.Tracer("service/representatives")

// RepresentativeService is the admin console over back-office users.
// Every operation is admin-only.
type RepresentativeService struct {
	directory port.RepresentativeDirectory
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewRepresentativeService creates the representative management service.
func NewRepresentativeService(directory port.RepresentativeDirectory, metrics *observability.Metrics, logger *zap.Logger) *RepresentativeService {
	return &RepresentativeService{directory: directory, metrics: metrics, logger: logger}
}

// List returns every representative with its client count.
func (s *RepresentativeService) List(ctx context.Context, actor domain.Actor) (reps []domain.Representative, err error) {
	ctx, span := representativeTracer.Start(ctx, "RepresentativeService.List")
	defer span.End()
	defer s.observe("ListRepresentatives", time.Now(), &err)

	if err := s.authorize(actor, ""); err != nil {
		return nil, err
	}
	return s.directory.List(ctx)
}

// Create registers a representative. Role defaults to REPRESENTATIVE and
// status to ACTIVE.
func (s *RepresentativeService) Create(ctx context.Context, actor domain.Actor, attrs domain.RepresentativeAttributes) (rep *domain.Representative, err error) {
	ctx, span := representativeTracer.Start(ctx, "RepresentativeService.Create")
	defer span.End()
	defer s.observe("CreateRepresentative", time.Now(), &err)

	if err := s.authorize(actor, ""); err != nil {
		return nil, err
	}

	attrs = attrs.Normalize()
	if attrs.Role == "" {
		attrs.Role = domain.RoleRepresentative
	}
	if attrs.Status == "" {
		attrs.Status = domain.RepresentativeActive
	}
	if err := validateRepresentative(attrs); err != nil {
		return nil, err
	}

	rep = &domain.Representative{ID: uuid.NewString()}
	attrs.Apply(rep)
	if err := s.directory.Create(ctx, rep); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("representative.id", rep.ID))
	s.logger.Info("representative created",
		zap.String("representative_id", rep.ID),
		zap.String("login", rep.Login),
		zap.String("role", string(rep.Role)),
		zap.String("actor_id", actor.ID),
	)
	return rep, nil
}

// Update overwrites a representative's profile. Empty role or status keep
// the stored value.
func (s *RepresentativeService) Update(ctx context.Context, actor domain.Actor, id string, attrs domain.RepresentativeAttributes) (rep *domain.Representative, err error) {
	ctx, span := representativeTracer.Start(ctx, "RepresentativeService.Update")
	defer span.End()
	defer s.observe("UpdateRepresentative", time.Now(), &err)
	span.SetAttributes(attribute.String("representative.id", id))

	if err := s.authorize(actor, id); err != nil {
		return nil, err
	}
	rep, err = s.directory.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	attrs = attrs.Normalize()
	if attrs.Role == "" {
		attrs.Role = rep.Role
	}
	if attrs.Status == "" {
		attrs.Status = rep.Status
	}
	if err := validateRepresentative(attrs); err != nil {
		return nil, err
	}
	if err := guardSelf(actor, id, attrs.Role, attrs.Status); err != nil {
		return nil, err
	}

	attrs.Apply(rep)
	if err := s.directory.Update(ctx, rep); err != nil {
		return nil, err
	}

	s.logger.Info("representative updated",
		zap.String("representative_id", id),
		zap.String("status", string(rep.Status)),
		zap.String("actor_id", actor.ID),
	)
	return rep, nil
}

// SetStatus activates or deactivates a representative. A deactivated
// representative's tokens stop authenticating on the next request.
func (s *RepresentativeService) SetStatus(ctx context.Context, actor domain.Actor, id string, status domain.RepresentativeStatus) (rep *domain.Representative, err error) {
	ctx, span := representativeTracer.Start(ctx, "RepresentativeService.SetStatus")
	defer span.End()
	defer s.observe("SetRepresentativeStatus", time.Now(), &err)
	span.SetAttributes(attribute.String("representative.id", id))

	if err := s.authorize(actor, id); err != nil {
		return nil, err
	}
	status = domain.RepresentativeAttributes{Status: status}.Normalize().Status
	if !status.Valid() {
		return nil, invalidRepresentative("status", "status must be ACTIVE or INACTIVE")
	}

	rep, err = s.directory.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardSelf(actor, id, rep.Role, status); err != nil {
		return nil, err
	}
	if rep.Status == status {
		return rep, nil
	}

	rep.Status = status
	if err := s.directory.Update(ctx, rep); err != nil {
		return nil, err
	}

	s.logger.Info("representative status changed",
		zap.String("representative_id", id),
		zap.String("status", string(status)),
		zap.String("actor_id", actor.ID),
	)
	return rep, nil
}

func (s *RepresentativeService) authorize(actor domain.Actor, id string) error {
	if CanManageRepresentatives(actor) {
		return nil
	}
	s.logger.Warn("representative management denied",
		zap.String("actor_id", actor.ID),
		zap.String("representative_id", id),
	)
	return denied(actor, id, domain.ActionManageRepresentatives)
}

func (s *RepresentativeService) observe(op string, start time.Time, err *error) {
	s.metrics.RecordOperation(op, time.Since(start), *err)
}

// guardSelf keeps an admin from locking themselves out.
func guardSelf(actor domain.Actor, id string, role domain.Role, status domain.RepresentativeStatus) error {
	if actor.ID != id {
		return nil
	}
	if status != domain.RepresentativeActive {
		return invalidRepresentative("status", "you cannot deactivate your own account")
	}
	if role != actor.Role {
		return invalidRepresentative("role", "you cannot change your own role")
	}
	return nil
}

func validateRepresentative(attrs domain.RepresentativeAttributes) error {
	switch {
	case attrs.Name == "":
		return invalidRepresentative("name", "name is required")
	case attrs.Login == "":
		return invalidRepresentative("login", "login is required")
	case !attrs.Role.Valid():
		return invalidRepresentative("role", "unknown role "+string(attrs.Role))
	case !attrs.Status.Valid():
		return invalidRepresentative("status", "unknown status "+string(attrs.Status))
	case attrs.CommissionRate < 0 || attrs.CommissionRate > 100:
		return invalidRepresentative("commissionRate", "commissionRate must be between 0 and 100")
	}
	return nil
}

func invalidRepresentative(field, msg string) error {
	return &domain.ErrValidation{Code: domain.CodeInvalidRepresentative, Field: field, Message: msg}
}

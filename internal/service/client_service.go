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

var clientTracer = otel.Tracer("service/clients")

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ClientService manages titular registration and profile edits.
type ClientService struct {
	clients port.ClientRegistry
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewClientService creates a client registry service.
func NewClientService(clients port.ClientRegistry, metrics *observability.Metrics, logger *zap.Logger) *ClientService {
	return &ClientService{clients: clients, metrics: metrics, logger: logger}
}

// RegisterClient creates a top-level client (a new titular).
func (s *ClientService) RegisterClient(ctx context.Context, actor domain.Actor, attrs domain.ClientAttributes) (client *domain.Client, err error) {
	ctx, span := clientTracer.Start(ctx, "ClientService.RegisterClient")
	defer span.End()
	defer s.observe("RegisterClient", time.Now(), &err)

	client, err = createClient(ctx, s.clients, actor, attrs)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("client.id", client.ID))
	s.logger.Info("client registered",
		zap.String("client_id", client.ID),
		zap.String("actor_id", actor.ID),
		zap.String("status", string(client.Status)),
	)
	return client, nil
}

// Get loads one client.
func (s *ClientService) Get(ctx context.Context, id string) (*domain.Client, error) {
	ctx, span := clientTracer.Start(ctx, "ClientService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))

	return s.clients.FindByID(ctx, id)
}

// List returns the actor's portfolio: every client for admins, owned
// clients for representatives. query filters by name or cpf.
func (s *ClientService) List(ctx context.Context, actor domain.Actor, query string, limit int) (clients []domain.Client, err error) {
	ctx, span := clientTracer.Start(ctx, "ClientService.List")
	defer span.End()
	defer s.observe("ListClients", time.Now(), &err)

	filter := domain.ClientFilter{Query: query, Limit: clampLimit(limit, defaultListLimit, maxListLimit)}
	if !actor.IsAdmin() {
		filter.RepresentativeID = actor.ID
	}
	return s.clients.List(ctx, filter)
}

// UpdateProfile overwrites the writable fields of a client and recomputes
// its status. Only admins may reassign the owning representative.
func (s *ClientService) UpdateProfile(ctx context.Context, actor domain.Actor, id string, attrs domain.ClientAttributes) (client *domain.Client, err error) {
	ctx, span := clientTracer.Start(ctx, "ClientService.UpdateProfile")
	defer span.End()
	defer s.observe("UpdateProfile", time.Now(), &err)
	span.SetAttributes(attribute.String("client.id", id))

	client, err = s.clients.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanManageFamily(actor, client) {
		s.logger.Warn("profile update denied",
			zap.String("actor_id", actor.ID),
			zap.String("client_id", id),
		)
		return nil, denied(actor, id, "update_profile")
	}

	attrs = attrs.Normalize()
	if err := validateClient(attrs, false); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		if attrs.RepresentativeID != "" && attrs.RepresentativeID != client.RepresentativeID {
			s.logger.Warn("representative reassignment denied",
				zap.String("actor_id", actor.ID),
				zap.String("client_id", id),
			)
			return nil, denied(actor, id, "reassign_representative")
		}
		attrs.RepresentativeID = client.RepresentativeID
	}

	attrs.Apply(client)
	if err := s.clients.Update(ctx, client); err != nil {
		return nil, err
	}

	s.logger.Info("client profile updated",
		zap.String("client_id", id),
		zap.String("actor_id", actor.ID),
		zap.String("status", string(client.Status)),
	)
	return client, nil
}

func (s *ClientService) observe(op string, start time.Time, err *error) {
	s.metrics.RecordOperation(op, time.Since(start), *err)
}

// createClient validates attrs and persists a new client. Representatives
// own what they create; admins assign an owner only explicitly.
func createClient(ctx context.Context, clients port.ClientRegistry, actor domain.Actor, attrs domain.ClientAttributes) (*domain.Client, error) {
	attrs = attrs.Normalize()
	if err := validateClient(attrs, true); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		attrs.RepresentativeID = actor.ID
	}

	client := &domain.Client{
		ID:               uuid.NewString(),
		RegistrationDate: time.Now().UTC(),
	}
	attrs.Apply(client)

	if err := clients.Create(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// validateClient checks the minimum a client record needs. birthDate is
// mandatory for new records and must be YYYY-MM-DD whenever present.
func validateClient(attrs domain.ClientAttributes, isNew bool) error {
	switch {
	case attrs.Name == "":
		return invalidClient("name", "name is required")
	case attrs.CPF == "":
		return invalidClient("cpf", "cpf is required")
	case isNew && attrs.BirthDate == "":
		return invalidClient("birthDate", "birthDate is required")
	case !attrs.PaymentMethod.Valid():
		return invalidClient("paymentMethod", "unknown payment method "+string(attrs.PaymentMethod))
	case attrs.MonthlyValue < 0:
		return invalidClient("monthlyValue", "monthlyValue cannot be negative")
	}
	if attrs.BirthDate != "" {
		if _, err := time.Parse(time.DateOnly, attrs.BirthDate); err != nil {
			return invalidClient("birthDate", "birthDate must be YYYY-MM-DD")
		}
	}
	return nil
}

func invalidClient(field, msg string) error {
	return &domain.ErrValidation{Code: domain.CodeInvalidClientData, Field: field, Message: msg}
}

func clampLimit(limit, def, max int) int {
	switch {
	case limit <= 0:
		return def
	case limit > max:
		return max
	}
	return limit
}

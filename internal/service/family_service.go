package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/boddenberg/eternity-backoffice-go/internal/domain"
	"github.com/boddenberg/eternity-backoffice-go/internal/infra/observability"
	"github.com/boddenberg/eternity-backoffice-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var familyTracer = otel.Tracer("service/family")

const (
	defaultCandidateLimit = 20
	maxCandidateLimit     = 100
)

// FamilyService maintains kinship edges between a subject client (titular)
// and its members, and serves the enriched dependent views.
type FamilyService struct {
	clients port.ClientRegistry
	family  port.KinshipStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewFamilyService creates the kinship linker.
func NewFamilyService(clients port.ClientRegistry, family port.KinshipStore, metrics *observability.Metrics, logger *zap.Logger) *FamilyService {
	return &FamilyService{clients: clients, family: family, metrics: metrics, logger: logger}
}

// ============================================================
// Reads
// ============================================================

// ListDependents returns the subject's dependents in link order.
func (s *FamilyService) ListDependents(ctx context.Context, subjectID string) (deps []domain.Dependent, err error) {
	ctx, span := familyTracer.Start(ctx, "FamilyService.ListDependents")
	defer span.End()
	defer s.observe("ListDependents", time.Now(), &err)
	span.SetAttributes(attribute.String("subject.id", subjectID))

	if _, err := s.loadSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	deps, err = s.family.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("dependents.count", len(deps)))
	return deps, nil
}

// LinkCandidates lists clients that could be linked to the subject:
// name or cpf matches query, and the client is neither the subject nor
// already one of its members.
func (s *FamilyService) LinkCandidates(ctx context.Context, subjectID, query string, limit int) (candidates []domain.Client, err error) {
	ctx, span := familyTracer.Start(ctx, "FamilyService.LinkCandidates")
	defer span.End()
	defer s.observe("LinkCandidates", time.Now(), &err)
	span.SetAttributes(attribute.String("subject.id", subjectID))

	if _, err := s.loadSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	return s.clients.SearchCandidates(ctx, subjectID, query,
		clampLimit(limit, defaultCandidateLimit, maxCandidateLimit))
}

// ClientSheet loads a client together with its family unit.
func (s *FamilyService) ClientSheet(ctx context.Context, clientID string) (sheet *domain.ClientSheet, err error) {
	ctx, span := familyTracer.Start(ctx, "FamilyService.ClientSheet")
	defer span.End()
	defer s.observe("ClientSheet", time.Now(), &err)
	span.SetAttributes(attribute.String("client.id", clientID))

	var (
		client *domain.Client
		deps   []domain.Dependent
	)
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c, err := s.clients.FindByID(gCtx, clientID)
		if err != nil {
			return err
		}
		client = c
		return nil
	})

	g.Go(func() error {
		d, err := s.family.ListBySubject(gCtx, clientID)
		if err != nil {
			return err
		}
		deps = d
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &domain.ClientSheet{Client: *client, Dependents: deps}, nil
}

// ============================================================
// Mutations
// ============================================================

// LinkExisting links an existing client to the subject's family unit and
// returns the new edge id. Checks run in a fixed order: subject, permission,
// self link, member, duplicate, kinship label.
func (s *FamilyService) LinkExisting(ctx context.Context, actor domain.Actor, subjectID, memberID, kinship string) (edgeID string, err error) {
	ctx, span := familyTracer.Start(ctx, "FamilyService.LinkExisting")
	defer span.End()
	defer s.observe("LinkExisting", time.Now(), &err)
	span.SetAttributes(
		attribute.String("subject.id", subjectID),
		attribute.String("member.id", memberID),
		attribute.String("actor.id", actor.ID),
	)

	subject, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return "", err
	}
	if err := s.authorize(actor, subject, "link_existing"); err != nil {
		return "", err
	}

	memberID = strings.TrimSpace(memberID)
	if memberID == subject.ID {
		return "", &domain.ErrValidation{
			Code:    domain.CodeInvalidSelfLink,
			Field:   "memberClientId",
			Message: "a client cannot be its own dependent",
		}
	}
	if _, err := s.clients.FindByID(ctx, memberID); err != nil {
		return "", asResource(err, domain.ResourceMember, memberID)
	}

	exists, err := s.family.Exists(ctx, subject.ID, memberID)
	if err != nil {
		return "", err
	}
	if exists {
		return "", &domain.ErrDuplicateLink{SubjectID: subject.ID, MemberID: memberID}
	}

	kinship, err = requireKinship(kinship)
	if err != nil {
		return "", err
	}

	edgeID, err = s.link(ctx, subject.ID, memberID, kinship)
	if err != nil {
		return "", err
	}

	s.logger.Info("client linked",
		zap.String("edge_id", edgeID),
		zap.String("subject_id", subject.ID),
		zap.String("member_id", memberID),
		zap.String("kinship", kinship),
		zap.String("actor_id", actor.ID),
	)
	return edgeID, nil
}

// CreateAndLink registers a new client and links it to the subject. When
// the client was created but the edge was not, the result still carries the
// client id alongside the error (see CreateAndLinkResult.PartialSuccess).
func (s *FamilyService) CreateAndLink(ctx context.Context, actor domain.Actor, subjectID string, attrs domain.ClientAttributes, kinship string) (result domain.CreateAndLinkResult, err error) {
	ctx, span := familyTracer.Start(ctx, "FamilyService.CreateAndLink")
	defer span.End()
	defer s.observe("CreateAndLink", time.Now(), &err)
	span.SetAttributes(
		attribute.String("subject.id", subjectID),
		attribute.String("actor.id", actor.ID),
	)

	subject, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return result, err
	}
	if err := s.authorize(actor, subject, "create_and_link"); err != nil {
		return result, err
	}
	if err := validateClient(attrs.Normalize(), true); err != nil {
		return result, err
	}
	kinship, err = requireKinship(kinship)
	if err != nil {
		return result, err
	}

	client, err := createClient(ctx, s.clients, actor, attrs)
	if err != nil {
		return result, err
	}
	result.ClientID = client.ID
	span.SetAttributes(attribute.String("member.id", client.ID))

	result.EdgeID, err = s.link(ctx, subject.ID, client.ID, kinship)
	if err != nil {
		s.logger.Error("create-and-link: client created but not linked",
			zap.String("subject_id", subject.ID),
			zap.String("client_id", client.ID),
			zap.Error(err),
		)
		span.SetAttributes(attribute.Bool("partial", true))
		return result, err
	}

	s.logger.Info("client created and linked",
		zap.String("edge_id", result.EdgeID),
		zap.String("subject_id", subject.ID),
		zap.String("client_id", client.ID),
		zap.String("kinship", kinship),
		zap.String("actor_id", actor.ID),
	)
	return result, nil
}

// Unlink removes one edge of the subject's family unit. The member client
// is left untouched.
func (s *FamilyService) Unlink(ctx context.Context, actor domain.Actor, subjectID, edgeID string) (err error) {
	ctx, span := familyTracer.Start(ctx, "FamilyService.Unlink")
	defer span.End()
	defer s.observe("Unlink", time.Now(), &err)
	span.SetAttributes(
		attribute.String("subject.id", subjectID),
		attribute.String("edge.id", edgeID),
		attribute.String("actor.id", actor.ID),
	)

	subject, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return err
	}
	if err := s.authorize(actor, subject, "unlink"); err != nil {
		return err
	}

	edge, err := s.family.FindByID(ctx, edgeID)
	if err != nil {
		return err
	}
	if edge.SubjectClientID != subject.ID {
		return &domain.ErrNotFound{Resource: domain.ResourceEdge, ID: edgeID}
	}
	if err := s.family.Delete(ctx, subject.ID, edgeID); err != nil {
		return err
	}

	s.logger.Info("client unlinked",
		zap.String("edge_id", edgeID),
		zap.String("subject_id", subject.ID),
		zap.String("member_id", edge.MemberClientID),
		zap.String("actor_id", actor.ID),
	)
	return nil
}

// ============================================================
// Internal helpers
// ============================================================

func (s *FamilyService) loadSubject(ctx context.Context, subjectID string) (*domain.Client, error) {
	subject, err := s.clients.FindByID(ctx, subjectID)
	if err != nil {
		return nil, asResource(err, domain.ResourceSubject, subjectID)
	}
	return subject, nil
}

func (s *FamilyService) authorize(actor domain.Actor, subject *domain.Client, action string) error {
	if CanManageFamily(actor, subject) {
		return nil
	}
	s.logger.Warn("family mutation denied",
		zap.String("action", action),
		zap.String("actor_id", actor.ID),
		zap.String("actor_role", string(actor.Role)),
		zap.String("subject_id", subject.ID),
	)
	return denied(actor, subject.ID, action)
}

// link inserts the edge. The store's uniqueness constraint settles races
// between identical concurrent links.
func (s *FamilyService) link(ctx context.Context, subjectID, memberID, kinship string) (string, error) {
	edge := &domain.KinshipEdge{
		ID:              uuid.NewString(),
		SubjectClientID: subjectID,
		MemberClientID:  memberID,
		Kinship:         kinship,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.family.Create(ctx, edge); err != nil {
		return "", err
	}
	return edge.ID, nil
}

func (s *FamilyService) observe(op string, start time.Time, err *error) {
	s.metrics.RecordOperation(op, time.Since(start), *err)
}

func requireKinship(kinship string) (string, error) {
	kinship = strings.TrimSpace(kinship)
	if kinship == "" {
		return "", &domain.ErrValidation{
			Code:    domain.CodeMissingKinship,
			Field:   "kinship",
			Message: "kinship is required",
		}
	}
	return kinship, nil
}

// asResource renames a client-not-found error after the role the client
// plays in the operation.
func asResource(err error, resource, id string) error {
	var nf *domain.ErrNotFound
	if errors.As(err, &nf) && nf.Resource == domain.ResourceClient {
		return &domain.ErrNotFound{Resource: resource, ID: id}
	}
	return err
}

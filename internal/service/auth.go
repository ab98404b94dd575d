package service

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/eternity-backoffice-go/internal/domain"
	"github.com/boddenberg/eternity-backoffice-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var authTracer = otel.Tracer("service/auth")

// AuthService turns access tokens into actors. Login and session storage
// live elsewhere; this service only verifies tokens and re-reads the
// representative behind them on every request, so role changes and
// deactivations apply immediately.
type AuthService struct {
	directory port.RepresentativeDirectory
	jwtSecret []byte
	accessTTL time.Duration
	logger    *zap.Logger
}

// NewAuthService creates the token verifier.
func NewAuthService(directory port.RepresentativeDirectory, jwtSecret string, accessTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		directory: directory,
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
		logger:    logger,
	}
}

// Authenticate validates tokenString and resolves the acting user. The
// stored role wins over the role claimed in the token.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (domain.Actor, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Authenticate")
	defer span.End()

	claims, err := s.ValidateAccessToken(tokenString)
	if err != nil {
		return domain.Actor{}, err
	}
	span.SetAttributes(attribute.String("actor.id", claims.Subject))

	rep, err := s.activeRepresentative(ctx, claims.Subject)
	if err != nil {
		return domain.Actor{}, err
	}
	if rep.Role != claims.Role {
		s.logger.Debug("auth: token role is stale",
			zap.String("representative_id", rep.ID),
			zap.String("token_role", string(claims.Role)),
			zap.String("stored_role", string(rep.Role)),
		)
	}
	return rep.Actor(), nil
}

// IssueDevToken signs an access token for an active representative without
// a password. Only mounted when DEV_AUTH is enabled.
func (s *AuthService) IssueDevToken(ctx context.Context, representativeID string) (*domain.TokenResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.IssueDevToken")
	defer span.End()

	rep, err := s.activeRepresentative(ctx, representativeID)
	if err != nil {
		return nil, err
	}

	token, err := s.signAccessToken(rep)
	if err != nil {
		return nil, err
	}

	s.logger.Info("dev token issued", zap.String("representative_id", rep.ID))
	return &domain.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int(s.accessTTL.Seconds()),
		TokenType:   "Bearer",
	}, nil
}

func (s *AuthService) activeRepresentative(ctx context.Context, id string) (*domain.Representative, error) {
	rep, err := s.directory.FindByID(ctx, id)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			s.logger.Warn("auth: unknown representative", zap.String("representative_id", id))
			return nil, &domain.ErrUnauthorized{Message: "Representante não encontrado"}
		}
		return nil, err
	}
	if rep.Status != domain.RepresentativeActive {
		s.logger.Warn("auth: inactive representative", zap.String("representative_id", id))
		return nil, &domain.ErrUnauthorized{Message: "Representante inativo"}
	}
	if !rep.Role.Valid() {
		return nil, &domain.ErrUnauthorized{Message: "Perfil de acesso inválido"}
	}
	return rep, nil
}

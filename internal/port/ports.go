// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/eternity-backoffice-go/internal/domain"
)

// ClientRegistry owns canonical client records.
// Create and Update reject a representativeId that names no representative.
// Implemented by sqlstore.ClientStore.
type ClientRegistry interface {
	FindByID(ctx context.Context, id string) (*domain.Client, error)
	Create(ctx context.Context, c *domain.Client) error
	Update(ctx context.Context, c *domain.Client) error
	List(ctx context.Context, filter domain.ClientFilter) ([]domain.Client, error)

	// SearchCandidates matches name or cpf, case-insensitively, and skips
	// subjectID and every client already linked to it.
	SearchCandidates(ctx context.Context, subjectID, query string, limit int) ([]domain.Client, error)
}

// KinshipStore owns the family_members edges.
// Create must enforce (subject, member) uniqueness and report a violation
// as *domain.ErrDuplicateLink.
type KinshipStore interface {
	ListBySubject(ctx context.Context, subjectID string) ([]domain.Dependent, error)
	Exists(ctx context.Context, subjectID, memberID string) (bool, error)
	Create(ctx context.Context, edge *domain.KinshipEdge) error
	FindByID(ctx context.Context, edgeID string) (*domain.KinshipEdge, error)
	Delete(ctx context.Context, subjectID, edgeID string) error
}

// RepresentativeDirectory owns back-office users. Create and Update must
// report a login already in use as *domain.ErrDuplicateLogin.
// Implemented by sqlstore.RepresentativeStore.
type RepresentativeDirectory interface {
	FindByID(ctx context.Context, id string) (*domain.Representative, error)
	List(ctx context.Context) ([]domain.Representative, error)
	Create(ctx context.Context, rep *domain.Representative) error
	Update(ctx context.Context, rep *domain.Representative) error
}

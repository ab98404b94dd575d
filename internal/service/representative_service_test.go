package service_test

import (
	"context"
	"testing"

	"github.com/boddenberg/eternity-backoffice-go/internal/domain"
	"github.com/boddenberg/eternity-backoffice-go/internal/infra/observability"
	"github.com/boddenberg/eternity-backoffice-go/internal/infra/sqlstore"
	"github.com/boddenberg/eternity-backoffice-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRepresentativeService(t *testing.T) (*sqlstore.RepresentativeStore, *service.RepresentativeService) {
	t.Helper()
	db := sqlstore.OpenTestSQLite(t)
	sqlstore.SeedRepresentatives(t, db, "rep1", "rep2")
	reps := sqlstore.NewRepresentativeStore(db)
	return reps, service.NewRepresentativeService(reps, observability.NewMetrics(), zap.NewNop())
}

func TestRepresentativeService_AdminOnly(t *testing.T) {
	_, svc := newRepresentativeService(t)
	ctx := context.Background()
	attrs := domain.RepresentativeAttributes{Name: "Lucas", Login: "lucas"}

	_, err := svc.List(ctx, rep1)
	assert.Equal(t, domain.KindPermissionDenied, domain.KindOf(err))
	_, err = svc.Create(ctx, rep1, attrs)
	assert.Equal(t, domain.KindPermissionDenied, domain.KindOf(err))
	_, err = svc.Update(ctx, rep1, "rep1", attrs)
	assert.Equal(t, domain.KindPermissionDenied, domain.KindOf(err))
	_, err = svc.SetStatus(ctx, rep1, "rep2", domain.RepresentativeInactive)
	assert.Equal(t, domain.KindPermissionDenied, domain.KindOf(err))

	var denied *domain.ErrPermissionDenied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, domain.ActionManageRepresentatives, denied.Action)
}

func TestRepresentativeService_Create(t *testing.T) {
	reps, svc := newRepresentativeService(t)
	ctx := context.Background()

	rep, err := svc.Create(ctx, admin, domain.RepresentativeAttributes{
		Name: " Lucas Amparo ", Login: " Lucas.Rep ", Email: "lucas@eternity.com", CommissionRate: 10,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rep.ID)
	assert.Equal(t, "Lucas Amparo", rep.Name)
	assert.Equal(t, "lucas.rep", rep.Login)
	assert.Equal(t, domain.RoleRepresentative, rep.Role)
	assert.Equal(t, domain.RepresentativeActive, rep.Status)

	stored, err := reps.FindByID(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, *rep, *stored)

	all, err := svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	tests := []struct {
		name  string
		attrs domain.RepresentativeAttributes
		want  domain.Kind
	}{
		{"missing name", domain.RepresentativeAttributes{Login: "x"}, domain.KindInvalidRepresentative},
		{"missing login", domain.RepresentativeAttributes{Name: "X"}, domain.KindInvalidRepresentative},
		{"unknown role", domain.RepresentativeAttributes{Name: "X", Login: "x", Role: "AUDITOR"}, domain.KindInvalidRepresentative},
		{"commission over 100", domain.RepresentativeAttributes{Name: "X", Login: "x", CommissionRate: 150}, domain.KindInvalidRepresentative},
		{"login taken", domain.RepresentativeAttributes{Name: "X", Login: "LUCAS.REP"}, domain.KindDuplicateLogin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, admin, tt.attrs)
			assert.Equal(t, tt.want, domain.KindOf(err))
		})
	}
}

func TestRepresentativeService_UpdateAndStatus(t *testing.T) {
	reps, svc := newRepresentativeService(t)
	ctx := context.Background()

	rep, err := svc.Update(ctx, admin, "rep1", domain.RepresentativeAttributes{
		Name: "Lucas", Login: "rep1", PixKey: "lucas@pix",
	})
	require.NoError(t, err)
	assert.Equal(t, "Lucas", rep.Name)
	assert.Equal(t, domain.RoleRepresentative, rep.Role, "empty role keeps the stored one")
	assert.Equal(t, domain.RepresentativeActive, rep.Status)

	rep, err = svc.SetStatus(ctx, admin, "rep1", "inactive")
	require.NoError(t, err)
	assert.Equal(t, domain.RepresentativeInactive, rep.Status)
	stored, err := reps.FindByID(ctx, "rep1")
	require.NoError(t, err)
	assert.Equal(t, domain.RepresentativeInactive, stored.Status)
	assert.Equal(t, "lucas@pix", stored.PixKey)

	rep, err = svc.SetStatus(ctx, admin, "rep1", domain.RepresentativeActive)
	require.NoError(t, err)
	assert.Equal(t, domain.RepresentativeActive, rep.Status)

	_, err = svc.SetStatus(ctx, admin, "rep1", "PAUSED")
	assert.Equal(t, domain.KindInvalidRepresentative, domain.KindOf(err))
	_, err = svc.SetStatus(ctx, admin, "rep9", domain.RepresentativeInactive)
	assert.Equal(t, domain.KindRepresentativeNotFound, domain.KindOf(err))
	_, err = svc.Update(ctx, admin, "rep1", domain.RepresentativeAttributes{Name: "Lucas", Login: "rep2"})
	assert.Equal(t, domain.KindDuplicateLogin, domain.KindOf(err))
}

func TestRepresentativeService_AdminCannotLockThemselvesOut(t *testing.T) {
	_, svc := newRepresentativeService(t)
	ctx := context.Background()

	_, err := svc.SetStatus(ctx, admin, "admin", domain.RepresentativeInactive)
	assert.Equal(t, domain.KindInvalidRepresentative, domain.KindOf(err))

	_, err = svc.Update(ctx, admin, "admin", domain.RepresentativeAttributes{
		Name: "Administrador", Login: "admin", Role: domain.RoleRepresentative,
	})
	assert.Equal(t, domain.KindInvalidRepresentative, domain.KindOf(err))

	rep, err := svc.Update(ctx, admin, "admin", domain.RepresentativeAttributes{
		Name: "Administração", Login: "admin", Email: "admin@eternity.com",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, rep.Role)
}

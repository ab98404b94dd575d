package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/boddenberg/eternity-backoffice-go/internal/domain"
)

// ============================================================
// Family store: kinship edges (family_members)
// ============================================================

// FamilyStore implements port.KinshipStore.
type FamilyStore struct {
	db *DB
}

// NewFamilyStore creates a kinship edge store over db.
func NewFamilyStore(db *DB) *FamilyStore {
	return &FamilyStore{db: db}
}

// ListBySubject joins the subject's edges with the member records, in
// insertion order.
func (s *FamilyStore) ListBySubject(ctx context.Context, subjectID string) ([]domain.Dependent, error) {
	dependents := []domain.Dependent{}
	err := s.db.run(ctx, "family_members", "ListDependents", func(ctx context.Context) error {
		query := s.db.rebind(`SELECT fm.id, fm.kinship,
			c.id, c.name, c.cpf, c.rg, c.birth_date, c.email, c.phone, c.registration_date, c.status,
			c.company_id, c.representative_id, c.zip_code, c.address, c.address_number, c.neighborhood,
			c.city, c.state, c.payment_method, c.monthly_value
			FROM family_members fm
			JOIN clients c ON fm.member_client_id = c.id
			WHERE fm.subject_client_id = ?
			ORDER BY fm.seq`)
		rows, err := s.db.conn.QueryContext(ctx, query, subjectID)
		if err != nil {
			return fmt.Errorf("query family members: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var edgeID, kinship string
			c, err := scanClient(prefixScanner{row: rows, prefix: []any{&edgeID, &kinship}})
			if err != nil {
				return fmt.Errorf("scan family member: %w", err)
			}
			dependents = append(dependents, domain.Dependent{EdgeID: edgeID, Kinship: kinship, Client: *c})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return dependents, nil
}

// Exists reports whether the subject already has an edge to the member.
func (s *FamilyStore) Exists(ctx context.Context, subjectID, memberID string) (bool, error) {
	var exists bool
	err := s.db.run(ctx, "family_members", "EdgeExists", func(ctx context.Context) error {
		query := s.db.rebind(`SELECT 1 FROM family_members WHERE subject_client_id = ? AND member_client_id = ?`)
		var one int
		err := s.db.conn.QueryRowContext(ctx, query, subjectID, memberID).Scan(&one)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil
		case err != nil:
			return fmt.Errorf("check family member: %w", err)
		}
		exists = true
		return nil
	})
	return exists, err
}

// Create inserts an edge. The (subject, member) uniqueness constraint is the
// final arbiter for concurrent links: the losing insert gets
// *domain.ErrDuplicateLink.
func (s *FamilyStore) Create(ctx context.Context, edge *domain.KinshipEdge) error {
	return s.db.run(ctx, "family_members", "CreateEdge", func(ctx context.Context) error {
		query := s.db.rebind(`INSERT INTO family_members (id, subject_client_id, member_client_id, kinship, created_at)
			VALUES (?, ?, ?, ?, ?)`)
		_, err := s.db.conn.ExecContext(ctx, query,
			edge.ID, edge.SubjectClientID, edge.MemberClientID, edge.Kinship, edge.CreatedAt,
		)
		if err == nil {
			return nil
		}
		switch classifyConstraint(err) {
		case constraintUnique:
			return &domain.ErrDuplicateLink{SubjectID: edge.SubjectClientID, MemberID: edge.MemberClientID}
		case constraintForeignKey:
			return &domain.ErrNotFound{Resource: domain.ResourceMember, ID: edge.MemberClientID}
		case constraintCheck:
			return &domain.ErrValidation{
				Code:    domain.CodeInvalidSelfLink,
				Field:   "memberClientId",
				Message: "a client cannot be its own dependent",
			}
		}
		return fmt.Errorf("insert family member: %w", err)
	})
}

// FindByID loads one edge.
func (s *FamilyStore) FindByID(ctx context.Context, edgeID string) (*domain.KinshipEdge, error) {
	var edge domain.KinshipEdge
	err := s.db.run(ctx, "family_members", "FindEdgeByID", func(ctx context.Context) error {
		query := s.db.rebind(`SELECT id, subject_client_id, member_client_id, kinship, created_at
			FROM family_members WHERE id = ?`)
		err := s.db.conn.QueryRowContext(ctx, query, edgeID).Scan(
			&edge.ID, &edge.SubjectClientID, &edge.MemberClientID, &edge.Kinship, &edge.CreatedAt,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &domain.ErrNotFound{Resource: domain.ResourceEdge, ID: edgeID}
			}
			return fmt.Errorf("find family member %s: %w", edgeID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

// Delete removes the edge only when it belongs to subjectID.
func (s *FamilyStore) Delete(ctx context.Context, subjectID, edgeID string) error {
	return s.db.run(ctx, "family_members", "DeleteEdge", func(ctx context.Context) error {
		query := s.db.rebind(`DELETE FROM family_members WHERE id = ? AND subject_client_id = ?`)
		res, err := s.db.conn.ExecContext(ctx, query, edgeID, subjectID)
		if err != nil {
			return fmt.Errorf("delete family member %s: %w", edgeID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete family member %s: %w", edgeID, err)
		}
		if n == 0 {
			return &domain.ErrNotFound{Resource: domain.ResourceEdge, ID: edgeID}
		}
		return nil
	})
}

// prefixScanner scans leading columns into prefix before handing the rest
// to the wrapped destinations.
type prefixScanner struct {
	row    rowScanner
	prefix []any
}

func (p prefixScanner) Scan(dest ...any) error {
	return p.row.Scan(append(append([]any{}, p.prefix...), dest...)...)
}

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/boddenberg/eternity-backoffice-go/internal/domain"
)

const representativeColumns = `r.id, r.name, r.email, r.login, r.phone, r.cpf_cnpj, r.commission_rate, r.pix_key, r.role, r.status`

// RepresentativeStore implements port.RepresentativeDirectory.
type RepresentativeStore struct {
	db *DB
}

// NewRepresentativeStore creates a representative store over db.
func NewRepresentativeStore(db *DB) *RepresentativeStore {
	return &RepresentativeStore{db: db}
}

func scanRepresentative(row rowScanner, extra ...any) (*domain.Representative, error) {
	var (
		rep          domain.Representative
		role, status string
		commission   sql.NullFloat64
	)
	dest := []any{
		&rep.ID, &rep.Name, &rep.Email, &rep.Login, &rep.Phone, &rep.CPFCNPJ,
		&commission, &rep.PixKey, &role, &status,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	rep.Role = domain.Role(role)
	rep.Status = domain.RepresentativeStatus(status)
	rep.CommissionRate = commission.Float64
	return &rep, nil
}

// FindByID loads one representative.
func (s *RepresentativeStore) FindByID(ctx context.Context, id string) (*domain.Representative, error) {
	var rep *domain.Representative
	err := s.db.run(ctx, "representatives", "FindRepresentativeByID", func(ctx context.Context) error {
		query := s.db.rebind(`SELECT ` + representativeColumns + ` FROM representatives r WHERE r.id = ?`)
		r, err := scanRepresentative(s.db.conn.QueryRowContext(ctx, query, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &domain.ErrNotFound{Resource: domain.ResourceRepresentative, ID: id}
			}
			return fmt.Errorf("find representative %s: %w", id, err)
		}
		rep = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// List returns every representative ordered by name, each with the number
// of clients it owns.
func (s *RepresentativeStore) List(ctx context.Context) ([]domain.Representative, error) {
	reps := []domain.Representative{}
	err := s.db.run(ctx, "representatives", "ListRepresentatives", func(ctx context.Context) error {
		query := `SELECT ` + representativeColumns + `, COUNT(c.id)
			FROM representatives r
			LEFT JOIN clients c ON c.representative_id = r.id
			GROUP BY ` + representativeColumns + `
			ORDER BY r.name, r.id`
		rows, err := s.db.conn.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("query representatives: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var total int
			rep, err := scanRepresentative(rows, &total)
			if err != nil {
				return fmt.Errorf("scan representative: %w", err)
			}
			rep.TotalClients = total
			reps = append(reps, *rep)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return reps, nil
}

// Create inserts a representative. A login already in use yields
// *domain.ErrDuplicateLogin.
func (s *RepresentativeStore) Create(ctx context.Context, rep *domain.Representative) error {
	return s.db.run(ctx, "representatives", "CreateRepresentative", func(ctx context.Context) error {
		query := s.db.rebind(`INSERT INTO representatives
			(id, name, email, login, phone, cpf_cnpj, commission_rate, pix_key, role, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		_, err := s.db.conn.ExecContext(ctx, query,
			rep.ID, rep.Name, rep.Email, rep.Login, rep.Phone, rep.CPFCNPJ,
			nullFloat(rep.CommissionRate), rep.PixKey, string(rep.Role), string(rep.Status),
		)
		if err != nil {
			return representativeWriteError(err, rep, "insert representative")
		}
		return nil
	})
}

// Update overwrites every writable field of an existing representative.
func (s *RepresentativeStore) Update(ctx context.Context, rep *domain.Representative) error {
	return s.db.run(ctx, "representatives", "UpdateRepresentative", func(ctx context.Context) error {
		query := s.db.rebind(`UPDATE representatives SET
			name = ?, email = ?, login = ?, phone = ?, cpf_cnpj = ?, commission_rate = ?,
			pix_key = ?, role = ?, status = ?
			WHERE id = ?`)
		res, err := s.db.conn.ExecContext(ctx, query,
			rep.Name, rep.Email, rep.Login, rep.Phone, rep.CPFCNPJ, nullFloat(rep.CommissionRate),
			rep.PixKey, string(rep.Role), string(rep.Status), rep.ID,
		)
		if err != nil {
			return representativeWriteError(err, rep, "update representative "+rep.ID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update representative %s: %w", rep.ID, err)
		}
		if n == 0 {
			return &domain.ErrNotFound{Resource: domain.ResourceRepresentative, ID: rep.ID}
		}
		return nil
	})
}

func representativeWriteError(err error, rep *domain.Representative, op string) error {
	switch classifyConstraint(err) {
	case constraintUnique:
		return &domain.ErrDuplicateLogin{Login: rep.Login}
	case constraintCheck:
		return &domain.ErrValidation{
			Code:    domain.CodeInvalidRepresentative,
			Field:   "role",
			Message: "unknown role or status",
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

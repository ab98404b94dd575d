package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/boddenberg/eternity-backoffice-go/internal/domain"
)

// ============================================================
// Clients store: canonical client records (Client Registry)
// ============================================================

const clientColumns = `id, name, cpf, rg, birth_date, email, phone, registration_date, status,
	company_id, representative_id, zip_code, address, address_number, neighborhood,
	city, state, payment_method, monthly_value`

// ClientStore implements port.ClientRegistry.
type ClientStore struct {
	db *DB
}

// NewClientStore creates a client store over db.
func NewClientStore(db *DB) *ClientStore {
	return &ClientStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*domain.Client, error) {
	var (
		c               domain.Client
		status, payment string
		company, repID  sql.NullString
		monthlyValue    sql.NullFloat64
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.CPF, &c.RG, &c.BirthDate, &c.Email, &c.Phone,
		&c.RegistrationDate, &status, &company, &repID,
		&c.ZipCode, &c.Address, &c.AddressNumber, &c.Neighborhood, &c.City, &c.State,
		&payment, &monthlyValue,
	)
	if err != nil {
		return nil, err
	}
	c.Status = domain.ClientStatus(status)
	c.PaymentMethod = domain.PaymentMethod(payment)
	c.CompanyID = company.String
	c.RepresentativeID = repID.String
	c.MonthlyValue = monthlyValue.Float64
	return &c, nil
}

// FindByID loads one client. Missing clients yield *domain.ErrNotFound.
func (s *ClientStore) FindByID(ctx context.Context, id string) (*domain.Client, error) {
	var client *domain.Client
	err := s.db.run(ctx, "clients", "FindClientByID", func(ctx context.Context) error {
		query := s.db.rebind(`SELECT ` + clientColumns + ` FROM clients WHERE id = ?`)
		c, err := scanClient(s.db.conn.QueryRowContext(ctx, query, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &domain.ErrNotFound{Resource: domain.ResourceClient, ID: id}
			}
			return fmt.Errorf("find client %s: %w", id, err)
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Create inserts a new client. The caller assigns ID and RegistrationDate.
func (s *ClientStore) Create(ctx context.Context, c *domain.Client) error {
	return s.db.run(ctx, "clients", "CreateClient", func(ctx context.Context) error {
		query := s.db.rebind(`INSERT INTO clients (` + clientColumns + `, search_key)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		_, err := s.db.conn.ExecContext(ctx, query,
			c.ID, c.Name, c.CPF, c.RG, c.BirthDate, c.Email, c.Phone,
			c.RegistrationDate, string(c.Status), nullString(c.CompanyID), nullString(c.RepresentativeID),
			c.ZipCode, c.Address, c.AddressNumber, c.Neighborhood, c.City, c.State,
			string(c.PaymentMethod), nullFloat(c.MonthlyValue), searchKey(c),
		)
		if err != nil {
			return clientWriteError(err, c, "insert client")
		}
		return nil
	})
}

// Update overwrites the writable fields of an existing client.
func (s *ClientStore) Update(ctx context.Context, c *domain.Client) error {
	return s.db.run(ctx, "clients", "UpdateClient", func(ctx context.Context) error {
		query := s.db.rebind(`UPDATE clients SET
			name = ?, cpf = ?, rg = ?, birth_date = ?, email = ?, phone = ?, status = ?,
			company_id = ?, representative_id = ?, zip_code = ?, address = ?, address_number = ?,
			neighborhood = ?, city = ?, state = ?, payment_method = ?, monthly_value = ?, search_key = ?
			WHERE id = ?`)
		res, err := s.db.conn.ExecContext(ctx, query,
			c.Name, c.CPF, c.RG, c.BirthDate, c.Email, c.Phone, string(c.Status),
			nullString(c.CompanyID), nullString(c.RepresentativeID), c.ZipCode, c.Address, c.AddressNumber,
			c.Neighborhood, c.City, c.State, string(c.PaymentMethod), nullFloat(c.MonthlyValue), searchKey(c),
			c.ID,
		)
		if err != nil {
			return clientWriteError(err, c, "update client "+c.ID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update client %s: %w", c.ID, err)
		}
		if n == 0 {
			return &domain.ErrNotFound{Resource: domain.ResourceClient, ID: c.ID}
		}
		return nil
	})
}

// clientWriteError maps the representative foreign key to a validation error.
func clientWriteError(err error, c *domain.Client, op string) error {
	if classifyConstraint(err) == constraintForeignKey {
		return &domain.ErrValidation{
			Code:    domain.CodeInvalidClientData,
			Field:   "representativeId",
			Message: "unknown representative " + c.RepresentativeID,
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// List returns clients matching filter ordered by name.
func (s *ClientStore) List(ctx context.Context, filter domain.ClientFilter) ([]domain.Client, error) {
	var (
		where []string
		args  []any
	)
	if filter.RepresentativeID != "" {
		where = append(where, "representative_id = ?")
		args = append(args, filter.RepresentativeID)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		where = append(where, `search_key LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(q))
	}

	query := `SELECT ` + clientColumns + ` FROM clients`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY name, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	return s.queryClients(ctx, "ListClients", query, args...)
}

// SearchCandidates finds clients whose name or cpf contains query
// (case-insensitive), excluding the subject and its current members.
func (s *ClientStore) SearchCandidates(ctx context.Context, subjectID, query string, limit int) ([]domain.Client, error) {
	q := `SELECT ` + clientColumns + ` FROM clients c
		WHERE c.id <> ?
		AND NOT EXISTS (
			SELECT 1 FROM family_members fm
			WHERE fm.subject_client_id = ? AND fm.member_client_id = c.id
		)`
	args := []any{subjectID, subjectID}
	if query = strings.TrimSpace(query); query != "" {
		q += ` AND c.search_key LIKE ? ESCAPE '\'`
		args = append(args, likePattern(query))
	}
	q += ` ORDER BY c.name, c.id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	return s.queryClients(ctx, "SearchCandidates", q, args...)
}

func (s *ClientStore) queryClients(ctx context.Context, op, query string, args ...any) ([]domain.Client, error) {
	clients := []domain.Client{}
	err := s.db.run(ctx, "clients", op, func(ctx context.Context) error {
		rows, err := s.db.conn.QueryContext(ctx, s.db.rebind(query), args...)
		if err != nil {
			return fmt.Errorf("query clients: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanClient(rows)
			if err != nil {
				return fmt.Errorf("scan client: %w", err)
			}
			clients = append(clients, *c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return clients, nil
}

// searchKey is the lower-cased haystack matched by name/cpf searches.
// It is computed here so matching is Unicode-aware on every dialect.
func searchKey(c *domain.Client) string {
	return strings.ToLower(c.Name + " " + c.CPF)
}

func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(q)) + "%"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: f != 0}
}

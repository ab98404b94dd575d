package domain

import "strings"

// ============================================================
// Representatives / acting user
// ============================================================

// Role is the acting user's role in the back-office.
type Role string

const (
	RoleAdmin          Role = "ADMIN"
	RoleRepresentative Role = "REPRESENTATIVE"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleRepresentative
}

// Actor identifies who is performing an operation.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsAdmin reports whether the actor holds the ADMIN role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// RepresentativeStatus mirrors the sales agent's contract state.
type RepresentativeStatus string

const (
	RepresentativeActive   RepresentativeStatus = "ACTIVE"
	RepresentativeInactive RepresentativeStatus = "INACTIVE"
)

// Valid reports whether s is a known status.
func (s RepresentativeStatus) Valid() bool {
	return s == RepresentativeActive || s == RepresentativeInactive
}

// Representative is a back-office user: an admin or a sales agent.
type Representative struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Email          string               `json:"email,omitempty"`
	Login          string               `json:"login"`
	Phone          string               `json:"phone,omitempty"`
	CPFCNPJ        string               `json:"cpfCnpj,omitempty"`
	CommissionRate float64              `json:"commissionRate,omitempty"`
	PixKey         string               `json:"pixKey,omitempty"`
	Role           Role                 `json:"role"`
	Status         RepresentativeStatus `json:"status"`

	// TotalClients is filled by listings only.
	TotalClients int `json:"totalClients"`
}

// Actor returns the acting-user view of the representative.
func (r *Representative) Actor() Actor {
	return Actor{ID: r.ID, Role: r.Role}
}

// RepresentativeAttributes is the writable part of a representative, as
// sent by the admin console on create and edit.
type RepresentativeAttributes struct {
	Name           string               `json:"name"`
	Email          string               `json:"email"`
	Login          string               `json:"login"`
	Phone          string               `json:"phone"`
	CPFCNPJ        string               `json:"cpfCnpj"`
	CommissionRate float64              `json:"commissionRate"`
	PixKey         string               `json:"pixKey"`
	Role           Role                 `json:"role"`
	Status         RepresentativeStatus `json:"status"`
}

// Normalize trims text fields and lower-cases the login.
func (a RepresentativeAttributes) Normalize() RepresentativeAttributes {
	a.Name = strings.TrimSpace(a.Name)
	a.Email = strings.TrimSpace(a.Email)
	a.Login = strings.ToLower(strings.TrimSpace(a.Login))
	a.Phone = strings.TrimSpace(a.Phone)
	a.CPFCNPJ = strings.TrimSpace(a.CPFCNPJ)
	a.PixKey = strings.TrimSpace(a.PixKey)
	a.Role = Role(strings.ToUpper(strings.TrimSpace(string(a.Role))))
	a.Status = RepresentativeStatus(strings.ToUpper(strings.TrimSpace(string(a.Status))))
	return a
}

// Apply copies the attributes onto rep.
func (a RepresentativeAttributes) Apply(rep *Representative) {
	rep.Name = a.Name
	rep.Email = a.Email
	rep.Login = a.Login
	rep.Phone = a.Phone
	rep.CPFCNPJ = a.CPFCNPJ
	rep.CommissionRate = a.CommissionRate
	rep.PixKey = a.PixKey
	rep.Role = a.Role
	rep.Status = a.Status
}

// RepresentativeStatusRequest is the body of PATCH /v1/representatives/{id}/status.
type RepresentativeStatusRequest struct {
	Status RepresentativeStatus `json:"status"`
}

// DevTokenRequest is the body of POST /v1/dev/token.
type DevTokenRequest struct {
	RepresentativeID string `json:"representativeId"`
}

// TokenResponse carries a signed access token.
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
	TokenType   string `json:"tokenType"`
}

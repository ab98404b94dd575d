package domain

import "time"

// ============================================================
// Family unit (kinship edges)
// ============================================================

// KinshipEdge links a subject client (titular) to a member client.
// Edges are directed and carry a free-text kinship label.
type KinshipEdge struct {
	ID              string    `json:"id"`
	SubjectClientID string    `json:"subjectClientId"`
	MemberClientID  string    `json:"memberClientId"`
	Kinship         string    `json:"kinship"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Dependent is an edge joined with the full member record.
type Dependent struct {
	EdgeID  string `json:"edgeId"`
	Kinship string `json:"kinship"`
	Client  Client `json:"client"`
}

// CreateAndLinkResult reports both halves of create-and-link.
// ClientID is set whenever the client was persisted, even if linking failed.
type CreateAndLinkResult struct {
	ClientID string `json:"clientId,omitempty"`
	EdgeID   string `json:"edgeId,omitempty"`
}

// PartialSuccess reports whether the client was created but the edge was not.
func (r CreateAndLinkResult) PartialSuccess() bool {
	return r.ClientID != "" && r.EdgeID == ""
}

// ClientSheet is the "ficha do beneficiário": a client and its family unit.
type ClientSheet struct {
	Client     Client      `json:"client"`
	Dependents []Dependent `json:"dependents"`
}

// ============================================================
// API requests
// ============================================================

// LinkExistingRequest is the body of POST /v1/clients/{clientId}/family.
type LinkExistingRequest struct {
	MemberClientID string `json:"memberClientId"`
	Kinship        string `json:"kinship"`
}

// LinkExistingResponse is returned on a successful link.
type LinkExistingResponse struct {
	EdgeID string `json:"edgeId"`
}

// CreateAndLinkRequest is the body of POST /v1/clients/{clientId}/family/new.
type CreateAndLinkRequest struct {
	Client  ClientAttributes `json:"client"`
	Kinship string           `json:"kinship"`
}

// CreateAndLinkResponse is returned by create-and-link, including on partial success.
type CreateAndLinkResponse struct {
	ClientID string `json:"clientId,omitempty"`
	EdgeID   string `json:"edgeId,omitempty"`
	Partial  bool   `json:"partial,omitempty"`
	Error    string `json:"error,omitempty"`
	Code     Kind   `json:"code,omitempty"`
}

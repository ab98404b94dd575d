package domain

import (
	"strings"
	"time"
)

// ============================================================
// Clients (beneficiários)
// ============================================================

// ClientStatus reflects how much of the registration form is filled in.
type ClientStatus string

const (
	ClientStatusBasic    ClientStatus = "BASIC"
	ClientStatusComplete ClientStatus = "COMPLETE"
)

// PaymentMethod is the billing channel of a plan.
type PaymentMethod string

const (
	PaymentPix        PaymentMethod = "PIX"
	PaymentBoleto     PaymentMethod = "BOLETO"
	PaymentCreditCard PaymentMethod = "CREDIT_CARD"
)

// Valid reports whether p is a known payment method. Empty is valid (unset).
func (p PaymentMethod) Valid() bool {
	switch p {
	case "", PaymentPix, PaymentBoleto, PaymentCreditCard:
		return true
	}
	return false
}

// Client is a canonical client record. Dependents are Clients too.
type Client struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	CPF              string       `json:"cpf"`
	RG               string       `json:"rg,omitempty"`
	BirthDate        string       `json:"birthDate,omitempty"` // YYYY-MM-DD
	Email            string       `json:"email,omitempty"`
	Phone            string       `json:"phone,omitempty"`
	RegistrationDate time.Time    `json:"registrationDate"`
	Status           ClientStatus `json:"status"`
	CompanyID        string       `json:"companyId,omitempty"`
	RepresentativeID string       `json:"representativeId,omitempty"`

	// Endereço
	ZipCode       string `json:"zipCode,omitempty"`
	Address       string `json:"address,omitempty"`
	AddressNumber string `json:"addressNumber,omitempty"`
	Neighborhood  string `json:"neighborhood,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`

	// Financeiro
	PaymentMethod PaymentMethod `json:"paymentMethod,omitempty"`
	MonthlyValue  float64       `json:"monthlyValue,omitempty"`
}

// ClientAttributes carries the writable fields of a Client.
type ClientAttributes struct {
	Name             string        `json:"name"`
	CPF              string        `json:"cpf"`
	RG               string        `json:"rg,omitempty"`
	BirthDate        string        `json:"birthDate,omitempty"`
	Email            string        `json:"email,omitempty"`
	Phone            string        `json:"phone,omitempty"`
	CompanyID        string        `json:"companyId,omitempty"`
	RepresentativeID string        `json:"representativeId,omitempty"`
	ZipCode          string        `json:"zipCode,omitempty"`
	Address          string        `json:"address,omitempty"`
	AddressNumber    string        `json:"addressNumber,omitempty"`
	Neighborhood     string        `json:"neighborhood,omitempty"`
	City             string        `json:"city,omitempty"`
	State            string        `json:"state,omitempty"`
	PaymentMethod    PaymentMethod `json:"paymentMethod,omitempty"`
	MonthlyValue     float64       `json:"monthlyValue,omitempty"`
}

// Normalize trims surrounding whitespace from every text field.
func (a ClientAttributes) Normalize() ClientAttributes {
	a.Name = strings.TrimSpace(a.Name)
	a.CPF = strings.TrimSpace(a.CPF)
	a.RG = strings.TrimSpace(a.RG)
	a.BirthDate = strings.TrimSpace(a.BirthDate)
	a.Email = strings.TrimSpace(a.Email)
	a.Phone = strings.TrimSpace(a.Phone)
	a.CompanyID = strings.TrimSpace(a.CompanyID)
	a.RepresentativeID = strings.TrimSpace(a.RepresentativeID)
	a.ZipCode = strings.TrimSpace(a.ZipCode)
	a.Address = strings.TrimSpace(a.Address)
	a.AddressNumber = strings.TrimSpace(a.AddressNumber)
	a.Neighborhood = strings.TrimSpace(a.Neighborhood)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	return a
}

// Status derives the form-completion status of the attributes.
func (a ClientAttributes) Status() ClientStatus {
	required := []string{
		a.Name, a.CPF, a.BirthDate, a.Phone,
		a.ZipCode, a.Address, a.AddressNumber, a.City, a.State,
		string(a.PaymentMethod),
	}
	for _, v := range required {
		if v == "" {
			return ClientStatusBasic
		}
	}
	return ClientStatusComplete
}

// Apply copies the attributes onto c and recomputes its status.
func (a ClientAttributes) Apply(c *Client) {
	c.Name = a.Name
	c.CPF = a.CPF
	c.RG = a.RG
	c.BirthDate = a.BirthDate
	c.Email = a.Email
	c.Phone = a.Phone
	c.CompanyID = a.CompanyID
	c.RepresentativeID = a.RepresentativeID
	c.ZipCode = a.ZipCode
	c.Address = a.Address
	c.AddressNumber = a.AddressNumber
	c.Neighborhood = a.Neighborhood
	c.City = a.City
	c.State = a.State
	c.PaymentMethod = a.PaymentMethod
	c.MonthlyValue = a.MonthlyValue
	c.Status = a.Status()
}

// Attributes returns the writable fields of c.
func (c *Client) Attributes() ClientAttributes {
	return ClientAttributes{
		Name:             c.Name,
		CPF:              c.CPF,
		RG:               c.RG,
		BirthDate:        c.BirthDate,
		Email:            c.Email,
		Phone:            c.Phone,
		CompanyID:        c.CompanyID,
		RepresentativeID: c.RepresentativeID,
		ZipCode:          c.ZipCode,
		Address:          c.Address,
		AddressNumber:    c.AddressNumber,
		Neighborhood:     c.Neighborhood,
		City:             c.City,
		State:            c.State,
		PaymentMethod:    c.PaymentMethod,
		MonthlyValue:     c.MonthlyValue,
	}
}

// ClientFilter scopes a client listing.
type ClientFilter struct {
	RepresentativeID string // empty = every client
	Query            string // case-insensitive substring over name and cpf
	Limit            int
}

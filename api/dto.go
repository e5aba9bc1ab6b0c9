/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry validator/v10 struct tags; handlers run them through
  the shared validator before touching the store. Amount and date parsing
  that the tags cannot express stays in handlers.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/aguaflow/waterdesk/billing"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// LoginRequest carries the operator PIN.
type LoginRequest struct {
	PIN string `json:"pin" validate:"required"`
}

// UpdatePINRequest replaces the operator PIN.
type UpdatePINRequest struct {
	PIN string `json:"pin" validate:"required,min=4"`
}

// ClientRequest is the body for both create and update of a client.
// Status may be omitted on create (defaults to active).
type ClientRequest struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address" validate:"required"`
	Status  string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// AddPaymentRequest records a payment for a client.
type AddPaymentRequest struct {
	ClientID    int64           `json:"client_id" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate string          `json:"payment_date" validate:"required"`
	Status      string          `json:"status" validate:"omitempty,oneof=paid pending"`
}

// ConsumptionRequest upserts the reading for one (month, year) period.
type ConsumptionRequest struct {
	Month             string  `json:"month" validate:"required,len=2"`
	Year              int     `json:"year" validate:"required,gte=2000"`
	NormalConsumption float64 `json:"normal_consumption" validate:"gte=0"`
	ExcessConsumption float64 `json:"excess_consumption" validate:"gte=0"`
	Notes             string  `json:"notes"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type LoginResponse struct {
	OK bool `json:"ok"`
}

// ClientDTO represents a client in API responses.
type ClientDTO struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// ClientStatusDTO is a client row with its derived latest-payment and
// latest-consumption fields plus the display badge.
type ClientStatusDTO struct {
	ClientDTO
	LastPaymentDate   string  `json:"last_payment_date"`
	PaymentStatus     string  `json:"payment_status"`
	ExcessConsumption float64 `json:"excess_consumption"`
	DisplayStatus     string  `json:"display_status"`
}

// PaymentDTO represents a payment in API responses.
type PaymentDTO struct {
	ID          int64           `json:"id"`
	ClientID    int64           `json:"client_id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate string          `json:"payment_date"`
	Status      string          `json:"status"`
	CreatedAt   string          `json:"created_at,omitempty"`
}

// PaymentWithClientDTO is a payment joined with the client's identity,
// used by the calendar day view.
type PaymentWithClientDTO struct {
	PaymentDTO
	ClientName    string `json:"client_name"`
	ClientAddress string `json:"client_address"`
}

// ConsumptionDTO represents a consumption record in API responses.
type ConsumptionDTO struct {
	ID                int64   `json:"id"`
	ClientID          int64   `json:"client_id"`
	Month             string  `json:"month"`
	Year              int     `json:"year"`
	NormalConsumption float64 `json:"normal_consumption"`
	ExcessConsumption float64 `json:"excess_consumption"`
	Notes             string  `json:"notes,omitempty"`
	CreatedAt         string  `json:"created_at,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func toClientDTO(c *billing.Client) ClientDTO {
	return ClientDTO{
		ID:        c.ID,
		Name:      c.Name,
		Address:   c.Address,
		Status:    c.Status,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}

func toClientStatusDTO(v billing.ClientStatusView) ClientStatusDTO {
	return ClientStatusDTO{
		ClientDTO:         toClientDTO(&v.Client),
		LastPaymentDate:   v.LastPaymentDate,
		PaymentStatus:     v.PaymentStatus,
		ExcessConsumption: v.ExcessConsumption,
		DisplayStatus:     string(v.DisplayStatus()),
	}
}

func toClientStatusDTOs(views []billing.ClientStatusView) []ClientStatusDTO {
	dtos := make([]ClientStatusDTO, len(views))
	for i, v := range views {
		dtos[i] = toClientStatusDTO(v)
	}
	return dtos
}

func toPaymentDTO(p *billing.Payment) PaymentDTO {
	return PaymentDTO{
		ID:          p.ID,
		ClientID:    p.ClientID,
		Amount:      p.Amount,
		PaymentDate: p.PaymentDate.Format("2006-01-02"),
		Status:      p.Status,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

func toConsumptionDTO(rec *billing.ConsumptionRecord) ConsumptionDTO {
	return ConsumptionDTO{
		ID:                rec.ID,
		ClientID:          rec.ClientID,
		Month:             rec.Month,
		Year:              rec.Year,
		NormalConsumption: rec.NormalConsumption,
		ExcessConsumption: rec.ExcessConsumption,
		Notes:             rec.Notes,
		CreatedAt:         rec.CreatedAt.Format(time.RFC3339),
	}
}

/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/vacation-engine/vacation"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// SubmitRequest is the body for creating or editing a vacation request.
// Dates are inclusive, formatted YYYY-MM-DD.
type SubmitRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// DecisionRequest is the body for a manager decision.
//
// Decision is one of "Approved", "ApprovedException", "Rejected".
type DecisionRequest struct {
	Decision string `json:"decision"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// RequestDTO represents a vacation request in API responses.
type RequestDTO struct {
	ID               int64     `json:"id"`
	SubmittedAt      time.Time `json:"submitted_at"`
	RequesterEmail   string    `json:"requester_email"`
	RequesterName    string    `json:"requester_name"`
	StartDate        string    `json:"start_date"`
	EndDate          string    `json:"end_date"`
	Status           string    `json:"status"`
	BusinessDays     int       `json:"business_days"`
	Note             string    `json:"note,omitempty"`
	CalendarEventRef string    `json:"calendar_event_ref,omitempty"`
}

// BalanceDTO carries the three balance figures as decimal strings.
type BalanceDTO struct {
	Total     string `json:"total"`
	Used      string `json:"used"`
	Remaining string `json:"remaining"`
}

// SummaryDTO is the response for GET /api/me/summary.
type SummaryDTO struct {
	Name    string     `json:"name"`
	Email   string     `json:"email"`
	Team    string     `json:"team"`
	Balance BalanceDTO `json:"balance"`
}

// DashboardDTO is the response for GET /api/dashboard.
type DashboardDTO struct {
	Requests         []RequestDTO `json:"requests"`
	Balance          BalanceDTO   `json:"balance"`
	IsManager        bool         `json:"is_manager"`
	AwaitingDecision []RequestDTO `json:"awaiting_decision,omitempty"`
}

// MutationDTO wraps a mutation result with any external-service warnings.
type MutationDTO struct {
	Request  RequestDTO `json:"request"`
	Warnings []string   `json:"warnings,omitempty"`
}

// ErrorDTO is the uniform error envelope.
type ErrorDTO struct {
	Error string `json:"error"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toRequestDTO(r vacation.Request) RequestDTO {
	return RequestDTO{
		ID:               int64(r.ID),
		SubmittedAt:      r.SubmittedAt,
		RequesterEmail:   r.RequesterEmail,
		RequesterName:    r.RequesterName,
		StartDate:        r.StartDate.String(),
		EndDate:          r.EndDate.String(),
		Status:           string(r.Status),
		BusinessDays:     r.BusinessDays,
		Note:             r.Note,
		CalendarEventRef: r.CalendarEventRef,
	}
}

func toRequestDTOs(rs []vacation.Request) []RequestDTO {
	out := make([]RequestDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toRequestDTO(r))
	}
	return out
}

func toBalanceDTO(b vacation.BalanceTotals) BalanceDTO {
	return BalanceDTO{
		Total:     b.Total.String(),
		Used:      b.Used.String(),
		Remaining: b.Remaining.String(),
	}
}

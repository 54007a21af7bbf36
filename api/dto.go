/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures the API adds around the booking types. Quotes,
  saves, statements and refunds are served as the booking package's own
  JSON-tagged types; only envelopes and demo types live here.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Errors:
    ErrorResponse, PartialFailureResponse

  Guides:
    GuidesResponse

  Scenarios:
    ScenarioDTO, LoadScenarioRequest, LoadScenarioResponse

VALIDATION:
  Validation is done in the booking service, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - booking/save.go, booking/refunds.go: request and result types
*/
package api

import (
	"github.com/warp/tour-pricing/backend"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// PartialFailureResponse is returned when a save or refund ran but did not
// cover the full amount (207), or when a save's refund drew nothing. Result
// is the save or refund result.
type PartialFailureResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Result  any    `json:"result"`
}

// GuidesResponse lists the guides assigned to a reservation.
type GuidesResponse struct {
	ReservationID string          `json:"reservation_id"`
	Guides        []backend.Guide `json:"guides"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"` // "edits", "refunds" or "failures"
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// LoadScenarioResponse names the reservations a scenario created.
type LoadScenarioResponse struct {
	Scenario       ScenarioDTO `json:"scenario"`
	ReservationIDs []string    `json:"reservation_ids"`
}

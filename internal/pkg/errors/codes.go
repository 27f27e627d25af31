package errors

import "net/http"

// Error code constants.
// Every mutation failure maps to exactly one code; clients branch on the
// code, never on the message text.

// Mission error codes.
const (
	CodeMissionNotFound   = "MISSION_NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeMissionInProgress = "MISSION_IN_PROGRESS"
)

// Drone error codes.
const (
	CodeDroneNotFound    = "DRONE_NOT_FOUND"
	CodeDroneUnavailable = "DRONE_UNAVAILABLE"
	CodeSerialExists     = "SERIAL_ALREADY_EXISTS"
)

// Report error codes.
const (
	CodeReportNotFound = "REPORT_NOT_FOUND"
)

// Concurrency error codes.
const (
	// CodeConcurrentModification is returned when the coordinator's
	// compare-and-swap retries are exhausted. Transient; safe to retry.
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
)

// Event channel error codes.
const (
	CodeTopicForbidden        = "TOPIC_FORBIDDEN"
	CodeTopicInvalid          = "TOPIC_INVALID"
	CodeChannelDeliveryFailed = "CHANNEL_DELIVERY_FAILED"
)

// Validation error codes.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
)

// Auth error codes.
const (
	CodeAuthFailed   = "AUTH_FAILED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

// Convenience constructors using predefined codes.

// ErrMissionNotFound creates a mission not found error.
func ErrMissionNotFound(missionID string) *AppError {
	return NotFound(CodeMissionNotFound, "mission not found").
		WithParams(map[string]interface{}{"mission_id": missionID})
}

// ErrDroneNotFound creates a drone not found error.
func ErrDroneNotFound(droneID string) *AppError {
	return NotFound(CodeDroneNotFound, "drone not found").
		WithParams(map[string]interface{}{"drone_id": droneID})
}

// ErrInvalidTransition creates a state machine rejection error.
func ErrInvalidTransition(from, to string) *AppError {
	return Conflict(CodeInvalidTransition, "transition not permitted").
		WithParams(map[string]interface{}{"from": from, "to": to})
}

// ErrDroneUnavailable creates a cross-entity precondition failure.
func ErrDroneUnavailable(droneID, status string) *AppError {
	return Conflict(CodeDroneUnavailable, "drone is not available for this operation").
		WithParams(map[string]interface{}{"drone_id": droneID, "status": status})
}

// ErrConcurrentModification creates a CAS-retries-exhausted error.
func ErrConcurrentModification(missionID string) *AppError {
	return Conflict(CodeConcurrentModification, "concurrent update detected, retry the request").
		WithParams(map[string]interface{}{"mission_id": missionID})
}

// ErrValidation creates a 400 validation error for a named field.
func ErrValidation(field, reason string) *AppError {
	return &AppError{
		Code:       CodeValidationFailed,
		Message:    "invalid request: " + reason,
		HTTPStatus: http.StatusBadRequest,
		Params:     map[string]interface{}{"field": field},
	}
}

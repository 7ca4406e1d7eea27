package respbuilder

import "net/http"

type ErrKind int64

const (
	ErrUnhandled ErrKind = iota + 1
	ErrValidation
	ErrConflict
)

// Reason is what the client sees for an ErrKind. Codes are stable, clients switch on them.
type Reason struct {
	Code    string
	Message string
	Status  int
}

var ReasonMap = map[ErrKind]Reason{
	ErrUnhandled:  {Code: "01", Message: "unhandled error", Status: http.StatusInternalServerError},
	ErrValidation: {Code: "02", Message: "error validation", Status: http.StatusBadRequest},
	ErrConflict:   {Code: "06", Message: "operation not allowed while a campaign is sending", Status: http.StatusConflict},
}

// ErrorEntity contain code, message, debug (*if applicable) and trace id.
type ErrorEntity struct {
	Code    string `json:"error_code"`
	Message string `json:"error_description"`
	Debug   string `json:"debug,omitempty"`
	TraceID string `json:"trace_id"`
}

// HTTPError always wrap in error key: {"error":{"error_code":"02",...}}
type HTTPError struct {
	Err ErrorEntity `json:"error"`
}

func (e HTTPError) Error() string {
	return e.Err.Message + ": " + e.Err.Debug
}

// HTTPSuccess success response always wrap in data key.
type HTTPSuccess struct {
	TraceID string      `json:"trace_id"`
	Data    interface{} `json:"data"`
}

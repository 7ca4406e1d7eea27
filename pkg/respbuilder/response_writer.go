package respbuilder

import (
	"net/http"

	"github.com/segmentio/encoding/json"
)

func WriteJSON(httpStatus int, rw http.ResponseWriter, r *http.Request, data interface{}) {
	tracer := MustExtract(r.Context())

	payload, err := json.Marshal(data)
	if err != nil {
		httpStatus = http.StatusInternalServerError
		payload, _ = json.Marshal(Error(r.Context(), ErrUnhandled, err))
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.Header().Set("Tracer-ID", tracer.AppTraceID)
	rw.WriteHeader(httpStatus)
	_, _ = rw.Write(payload)
}

// WriteError writes the error envelope with the status of its kind, unknown kind is 500.
func WriteError(rw http.ResponseWriter, r *http.Request, kind ErrKind, err error) {
	status := http.StatusInternalServerError
	if reason, ok := ReasonMap[kind]; ok {
		status = reason.Status
	}

	WriteJSON(status, rw, r, Error(r.Context(), kind, err))
}

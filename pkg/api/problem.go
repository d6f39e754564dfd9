package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/flowkeep/flowkeep/pkg/domain"
	"github.com/flowkeep/flowkeep/pkg/logger"
	"github.com/flowkeep/flowkeep/pkg/validation"
)

// Problem is an RFC 7807 application/problem+json response body, plus the
// invalidParams extension carried by parameter-validation failures.
type Problem struct {
	Type          string                  `json:"type"`
	Title         string                  `json:"title"`
	Status        int                     `json:"status"`
	Detail        string                  `json:"detail,omitempty"`
	Instance      string                  `json:"instance,omitempty"`
	Timestamp     string                  `json:"timestamp"`
	InvalidParams []validation.ParamError `json:"invalidParams,omitempty"`
}

const problemTypeBase = "https://flowkeep.dev/problems/"

// writeProblem renders p to w with the problem+json content type.
func writeProblem(w http.ResponseWriter, r *http.Request, p Problem) {
	if p.Type == "" {
		p.Type = "about:blank"
	}
	p.Instance = r.URL.Path
	p.Timestamp = time.Now().UTC().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	json.NewEncoder(w).Encode(p)
}

// writeError maps a domain error onto its problem shape. Anything that is
// not a classified domain error becomes a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind, ok := domain.KindOf(err)
	if !ok {
		logger.ErrorC(logger.CategoryAPI, "unhandled error", "path", r.URL.Path, "error", err)
		writeProblem(w, r, Problem{
			Type:   "about:blank",
			Title:  "Internal Server Error",
			Status: http.StatusInternalServerError,
		})
		return
	}

	p := Problem{
		Type:   problemTypeBase + string(kind),
		Detail: err.Error(),
	}
	switch kind {
	case domain.KindMalformedIdentifier:
		p.Title, p.Status = "Malformed Identifier", http.StatusBadRequest
	case domain.KindParseError:
		p.Title, p.Status = "Invalid Document", http.StatusBadRequest
	case domain.KindInvalidRevision:
		p.Title, p.Status = "Invalid Revision", http.StatusBadRequest
	case domain.KindParameterValidation:
		p.Title, p.Status = "Parameter Validation Failed", http.StatusBadRequest
		var agg *validation.AggregateError
		if errors.As(err, &agg) {
			p.InvalidParams = agg.Errors
		}
	case domain.KindNotFound:
		p.Title, p.Status = "Not Found", http.StatusNotFound
	case domain.KindAlreadyExists:
		p.Title, p.Status = "Already Exists", http.StatusConflict
	case domain.KindActiveConflict:
		p.Title, p.Status = "Active Revision Conflict", http.StatusConflict
	case domain.KindOptimisticLock:
		p.Title, p.Status = "Optimistic Lock Conflict", http.StatusConflict
	default:
		p.Title, p.Status = "Internal Server Error", http.StatusInternalServerError
		p.Type = "about:blank"
	}
	writeProblem(w, r, p)
}

// badRequest is the shortcut for boundary failures that never reach the
// domain (bad header, wrong content type, invalid query parameter).
func badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, Problem{
		Type:   problemTypeBase + "BadRequest",
		Title:  "Bad Request",
		Status: http.StatusBadRequest,
		Detail: detail,
	})
}

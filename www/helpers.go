package www

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/importer"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/production"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/stationstate"
)

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSONStatus(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// splitList parses a comma separated query value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	var hdr *importer.HeaderNotFoundError
	var verrs importer.ValidationErrors
	switch {
	case errors.As(err, &hdr), errors.As(err, &verrs):
		return http.StatusUnprocessableEntity
	case errors.Is(err, importer.ErrSessionNotFound),
		errors.Is(err, production.ErrNotFound),
		errors.Is(err, stationstate.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, production.ErrInvalidTransition),
		errors.Is(err, production.ErrDuplicateLot):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

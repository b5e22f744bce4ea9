package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"budgettable/internal/core"
)

const maxBodyBytes = 1 << 20

// errMalformedBody marks a request body that is not valid JSON.
var errMalformedBody = errors.New("malformed JSON body")

// parseIDParam reads an integer path parameter.
func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, &core.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not an integer", raw)}
	}
	return id, nil
}

// optionalQuery returns a pointer to the query value when the key is
// present, even if the value is empty.
func optionalQuery(q url.Values, key string) *string {
	if !q.Has(key) {
		return nil
	}
	v := q.Get(key)
	return &v
}

// parseCellValue reads the value query parameter. Absent or empty means
// an empty cell.
func parseCellValue(q url.Values) (*float64, error) {
	raw := strings.TrimSpace(q.Get("value"))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, &core.ValidationError{Field: "value", Reason: fmt.Sprintf("%q is not a number", raw)}
	}
	return &v, nil
}

// parseRowPatch collects the text fields present in the query string.
func parseRowPatch(q url.Values) core.RowPatch {
	return core.RowPatch{
		Entity:  optionalQuery(q, "entity"),
		Article: optionalQuery(q, "article"),
		Project: optionalQuery(q, "project"),
	}
}

// decodeJSONBody decodes a bounded JSON body into v. Syntax errors wrap
// errMalformedBody; a well formed body with wrong field types is a
// ValidationError.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &core.ValidationError{
				Field:  typeErr.Field,
				Reason: fmt.Sprintf("must be %s", typeErr.Type),
			}
		}
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data", errMalformedBody)
	}
	return nil
}

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	apperrors "hotelops/pkg/errors"

	"github.com/julienschmidt/httprouter"
)

// PathInt reads a positive integer path parameter.
func PathInt(ps httprouter.Params, name string) (int, error) {
	raw := ps.ByName(name)
	if raw == "" {
		return 0, apperrors.Validation(fmt.Sprintf("%s is required", name), map[string]any{"field": name})
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, apperrors.Validation(
			fmt.Sprintf("%s must be a positive integer, got: %s", name, raw),
			map[string]any{"field": name},
		)
	}
	return v, nil
}

// DecodeJSON decodes a single JSON object from the request body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Validation("Request body is required", nil)
		}
		return apperrors.Validation("Invalid request body", map[string]any{"error": err.Error()})
	}
	if dec.More() {
		return apperrors.Validation("Request body must contain a single JSON object", nil)
	}
	return nil
}

// Package validation decodes typed JSON request bodies and validates them
// with struct tags before they reach a service.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "unionvote/pkg/domain-errors"
)

const maxBodyBytes = 1 << 16

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct validates v against its `validate` tags.
func Struct(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return dErrors.New(dErrors.CodeValidation, describe(verrs))
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request")
	}
	return nil
}

// DecodeJSON reads a single JSON object from r into dst, rejecting unknown
// fields and trailing data, then validates it.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body")
	}
	if dec.More() {
		return dErrors.New(dErrors.CodeBadRequest, "request body must contain a single JSON object")
	}
	return Struct(dst)
}

func describe(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/dayreport/internal/domain"
)

// MaxRequestBytes bounds every decoded request body.
const MaxRequestBytes = 10 << 20

// Global validator instance for reuse
var validate = validator.New()

// DecodeJSON decodes exactly one JSON value from the request body into v.
// Malformed, oversized or trailing input fails with domain.ErrValidation.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return domain.Invalidf("request body exceeds %d bytes", tooLarge.Limit)
		case errors.Is(err, io.EOF):
			return domain.Invalidf("request body is empty")
		default:
			return domain.Invalidf("invalid JSON: %v", err)
		}
	}
	if dec.More() {
		return domain.Invalidf("request body must contain a single JSON value")
	}
	return nil
}

// ValidateRequest validates v with its struct tags, or its own Validate
// method when it has one. Failures wrap domain.ErrValidation.
func ValidateRequest(v interface{}) error {
	if validator, ok := v.(interface{ Validate() error }); ok {
		return validator.Validate()
	}

	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return domain.Invalidf("%s failed on the '%s' rule", verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	return nil
}

package fetch

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/dayreport/internal/domain"
	"github.com/tidwall/gjson"
)

// requestValidator checks domain.Request struct tags.
var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New()
	mustRegister(v, "json_object", func(fl validator.FieldLevel) bool {
		body := bytes.TrimSpace(fl.Field().Bytes())
		return gjson.ValidBytes(body) && gjson.ParseBytes(body).IsObject()
	})
	mustRegister(v, "header_name", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		return name != "" && !strings.ContainsAny(name, " \t\r\n:")
	})
	mustRegister(v, "header_value", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), "\r\n")
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// ValidateURL accepts only well-formed absolute http and https URLs. Callers
// supply endpoint URLs, so this is an allow-list: anything else (file, ftp,
// data, javascript, scheme-relative, opaque) is rejected.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return domain.Invalidf("API URL is required and must be a string")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return domain.Invalidf("invalid URL format")
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return domain.Invalidf("only HTTP and HTTPS protocols are allowed")
	}

	if u.Opaque != "" || u.Hostname() == "" {
		return domain.Invalidf("invalid URL format: missing host")
	}

	return nil
}

// ValidateRequest checks a submission and returns it with the method
// normalized and a null body dropped. It never touches the network.
func ValidateRequest(req domain.Request) (domain.Request, error) {
	if err := ValidateURL(req.APIURL); err != nil {
		return domain.Request{}, err
	}

	out := req.Clone()
	out.Method = strings.ToUpper(strings.TrimSpace(req.Method))
	if out.Method == "" {
		out.Method = domain.MethodPost
	}
	if body := bytes.TrimSpace(req.Body); len(body) == 0 || bytes.Equal(body, []byte("null")) {
		out.Body = nil
	}

	if err := requestValidator.Struct(out); err != nil {
		return domain.Request{}, requestError(err)
	}
	return out, nil
}

// requestError turns the first validator failure into a validation error
// naming the submission field.
func requestError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "oneof":
		return domain.Invalidf("requestType must be get or post")
	case "json_object":
		return domain.Invalidf("requestBody must be a JSON object")
	case "header_name":
		return domain.Invalidf("invalid header name %q", fe.Value())
	case "header_value":
		return domain.Invalidf("invalid value for header %s", strings.TrimPrefix(fe.Field(), "Headers"))
	case "required":
		return domain.Invalidf("%s is required", fe.Field())
	default:
		return domain.Invalidf("%s failed on the '%s' rule", fe.Field(), fe.Tag())
	}
}

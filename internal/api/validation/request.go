package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RequestIDPattern restricts caller-chosen request ids to safe tokens that
// can appear in a URL path.
var RequestIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{7,63}$`)

// ValidateRequestID validates that the request ID follows the expected format
func ValidateRequestID(fl validator.FieldLevel) bool {
	return RequestIDPattern.MatchString(fl.Field().String())
}

// ValidateLatexDocument requires a document class and a document body.
func ValidateLatexDocument(fl validator.FieldLevel) bool {
	doc := fl.Field().String()
	return strings.Contains(doc, `\documentclass`) &&
		strings.Contains(doc, `\begin{document}`)
}

// RegisterRequestValidators registers the custom validators used by the API
// request models.
func RegisterRequestValidators(v *validator.Validate) {
	_ = v.RegisterValidation("request_id", ValidateRequestID)
	_ = v.RegisterValidation("latex_document", ValidateLatexDocument)
}

// New returns a validator with the custom rules registered.
func New() *validator.Validate {
	v := validator.New()
	RegisterRequestValidators(v)
	return v
}

// Message flattens validator errors into one line naming each failed field
// and rule.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" failed "+fe.Tag())
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

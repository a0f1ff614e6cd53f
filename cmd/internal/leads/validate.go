package leads

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	maxNameChars        = 100
	maxMessageChars     = 1000
	maxPropertyRefChars = 64
)

var phoneRE = regexp.MustCompile(`^\+?[0-9 ()\-]{8,20}$`)

// CaptureRequest is the public lead form payload.
type CaptureRequest struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Message     string `json:"message"`
	PropertyRef string `json:"property_ref"`
	Source      string `json:"source"`
}

// Validate checks the request after Normalize. A lead needs at least one way to reach
// the visitor back.
func (m CaptureRequest) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.RuneLength(0, maxNameChars)),
		validation.Field(&m.Phone,
			validation.Required.When(m.Email == "").Error("phone or email is required"),
			validation.Match(phoneRE).Error("must be a valid phone number"),
		),
		validation.Field(&m.Email,
			validation.Required.When(m.Phone == "").Error("phone or email is required"),
			is.EmailFormat,
			validation.RuneLength(0, 254),
		),
		validation.Field(&m.Message, validation.RuneLength(0, maxMessageChars)),
		validation.Field(&m.PropertyRef, validation.RuneLength(0, maxPropertyRefChars)),
		validation.Field(&m.Source, validation.Required,
			validation.In(SourceContactForm, SourcePropertyPage, SourceWhatsApp, SourceChat)),
	)
}

// Normalize strips angle brackets and surrounding space from every field and defaults
// the source. Overlong free text is truncated rather than rejected.
func (m CaptureRequest) Normalize() CaptureRequest {
	out := CaptureRequest{
		Name:        clean(m.Name, maxNameChars),
		Phone:       clean(m.Phone, 0),
		Email:       strings.ToLower(clean(m.Email, 0)),
		Message:     clean(m.Message, maxMessageChars),
		PropertyRef: clean(m.PropertyRef, 0),
		Source:      strings.ToLower(clean(m.Source, 0)),
	}
	if out.Source == "" {
		out.Source = SourceContactForm
	}
	return out
}

var angleStripper = strings.NewReplacer("<", "", ">", "")

func clean(s string, max int) string {
	s = strings.TrimSpace(angleStripper.Replace(s))
	if max > 0 && utf8.RuneCountInString(s) > max {
		s = strings.TrimSpace(string([]rune(s)[:max]))
	}
	return s
}

// fieldErrors flattens ozzo validation errors into field -> message.
func fieldErrors(err error) map[string]string {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return map[string]string{"request": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for field, fe := range verrs {
		out[field] = fe.Error()
	}
	return out
}

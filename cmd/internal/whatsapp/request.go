package whatsapp

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MaxTextChars is the Cloud API limit for a text body.
const MaxTextChars = 4096

var (
	recipientRE    = regexp.MustCompile(`^[1-9][0-9]{7,14}$`)
	templateNameRE = regexp.MustCompile(`^[a-z0-9_]{1,512}$`)
	languageRE     = regexp.MustCompile(`^[a-z]{2,3}(_[A-Z]{2})?$`)
	phoneNoise     = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "+", "", ".", "")
	angleStripper  = strings.NewReplacer("<", "", ">", "")
)

// SendRequest is the /api/whatsapp/send body. Exactly one of Message and TemplateName is set.
type SendRequest struct {
	To                 string          `json:"to"`
	Message            string          `json:"message,omitempty"`
	TemplateName       string          `json:"templateName,omitempty"`
	TemplateLanguage   string          `json:"templateLanguage,omitempty"`
	TemplateComponents json.RawMessage `json:"templateComponents,omitempty"`
}

// Normalize reduces the recipient to E.164 digits and cleans the text body.
func (m SendRequest) Normalize() SendRequest {
	m.To = phoneNoise.Replace(strings.TrimSpace(m.To))
	m.Message = strings.TrimSpace(angleStripper.Replace(m.Message))
	if utf8.RuneCountInString(m.Message) > MaxTextChars {
		m.Message = string([]rune(m.Message)[:MaxTextChars])
	}
	// A JSON null arrives as the 4-byte literal; treat it as absent.
	if raw := bytes.TrimSpace(m.TemplateComponents); len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		m.TemplateComponents = nil
	}
	m.TemplateName = strings.TrimSpace(m.TemplateName)
	m.TemplateLanguage = strings.TrimSpace(m.TemplateLanguage)
	if m.TemplateName != "" && m.TemplateLanguage == "" {
		m.TemplateLanguage = "pt_BR"
	}
	return m
}

func (m SendRequest) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.To, validation.Required, validation.Match(recipientRE).Error("must be an international phone number")),
		validation.Field(&m.Message,
			validation.Required.When(m.TemplateName == "").Error("message or templateName is required"),
			validation.Empty.When(m.TemplateName != "").Error("message and templateName are mutually exclusive"),
		),
		validation.Field(&m.TemplateName, validation.Match(templateNameRE)),
		validation.Field(&m.TemplateLanguage, validation.Match(languageRE)),
		validation.Field(&m.TemplateComponents,
			validation.Empty.When(m.TemplateName == "").Error("requires templateName"),
			validation.By(jsonArray),
		),
	)
}

func jsonArray(value any) error {
	raw, _ := value.(json.RawMessage)
	if len(raw) == 0 {
		return nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return errors.New("must be a JSON array")
	}
	return nil
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

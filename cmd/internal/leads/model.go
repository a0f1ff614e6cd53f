package leads

import "time"

// Lead is one captured contact request. Optional fields are omitted when empty.
type Lead struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	Message     string    `json:"message,omitempty"`
	PropertyRef string    `json:"property_ref,omitempty"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
}

// Sources a lead may come from.
const (
	SourceContactForm  = "contact_form"
	SourcePropertyPage = "property_page"
	SourceWhatsApp     = "whatsapp"
	SourceChat         = "chat"
)

package leadwatch

import (
	"fmt"
	"strings"
	"time"
)

// Lead is the record carried by a leads insert event.
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

// Alert is what the broker sees for one new lead.
type Alert struct {
	Lead  Lead
	Title string
	Body  string
	At    time.Time
}

func newAlert(l Lead, at time.Time) Alert {
	name := strings.TrimSpace(l.Name)
	if name == "" {
		name = "Sem nome"
	}
	body := name
	if p := strings.TrimSpace(l.Phone); p != "" {
		body = fmt.Sprintf("%s - %s", name, p)
	}
	return Alert{Lead: l, Title: "Novo lead recebido", Body: body, At: at}
}

// Notifier shows an alert.
type Notifier interface {
	Notify(Alert)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Alert)

func (f NotifierFunc) Notify(a Alert) { f(a) }

package push

import (
	"fmt"
	"strings"
	"sync"
)

// Built-in template IDs.
const (
	TemplateSosRequest          = "sos-request"
	TemplateSosAcceptedPatient  = "sos-accepted-patient"
	TemplateSosAcceptedDonor    = "sos-accepted-donor"
	TemplateOperationCompleted  = "sos-operation-completed"
	TemplateOperationCancelled  = "sos-operation-cancelled"
	TemplateHospitalRequestNew  = "hospital-request-new"
	TemplateHospitalRequestDone = "hospital-request-decided"
)

// Template is a reusable push title/body pair with {{key}} placeholders.
type Template struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// TemplateEngine renders push templates.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:    TemplateSosRequest,
			Title: "Urgent {{kind}} donation request",
			Body:  "A patient near you needs a {{kind}} donation{{blood_label}}. Please help!",
		},
		{
			ID:    TemplateSosAcceptedPatient,
			Title: "Your request was accepted",
			Body:  "A donor accepted your request. Hospital: {{hospital_name}}",
		},
		{
			ID:    TemplateSosAcceptedDonor,
			Title: "Acceptance confirmed",
			Body:  "You accepted the request. Hospital: {{hospital_name}}",
		},
		{
			ID:    TemplateOperationCompleted,
			Title: "Operation completed",
			Body:  "{{hospital_name}} marked the operation as completed.",
		},
		{
			ID:    TemplateOperationCancelled,
			Title: "Operation cancelled",
			Body:  "{{hospital_name}} marked the operation as cancelled.",
		},
		{
			ID:    TemplateHospitalRequestNew,
			Title: "New request from a {{role}}",
			Body:  "A new request was received from {{requester_name}} ({{role}})",
		},
		{
			ID:    TemplateHospitalRequestDone,
			Title: "Request status updated",
			Body:  "Your request to {{hospital_name}} was {{status}}",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (title, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	title = t.Title
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		title = strings.ReplaceAll(title, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return title, body, nil
}

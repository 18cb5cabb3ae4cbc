package push

import "testing"

func TestTemplateEngine_RegisterAndRender(t *testing.T) {
	eng := NewTemplateEngine()
	eng.RegisterTemplate(Template{
		ID:    "test-tpl",
		Title: "Hello {{name}}",
		Body:  "Dear {{name}}, your code is {{code}}.",
	})

	title, body, err := eng.Render("test-tpl", map[string]string{"name": "Alice", "code": "1234"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if title != "Hello Alice" {
		t.Errorf("title = %q, want %q", title, "Hello Alice")
	}
	if body != "Dear Alice, your code is 1234." {
		t.Errorf("body = %q, want %q", body, "Dear Alice, your code is 1234.")
	}
}

func TestTemplateEngine_RenderMissing(t *testing.T) {
	eng := NewTemplateEngine()
	if _, _, err := eng.Render("nonexistent", nil); err == nil {
		t.Fatal("expected error for missing template, got nil")
	}
}

func TestTemplateEngine_BuiltInTemplates(t *testing.T) {
	eng := NewTemplateEngine()
	builtIn := []string{
		TemplateSosRequest,
		TemplateSosAcceptedPatient,
		TemplateSosAcceptedDonor,
		TemplateOperationCompleted,
		TemplateOperationCancelled,
		TemplateHospitalRequestNew,
		TemplateHospitalRequestDone,
	}
	for _, id := range builtIn {
		if _, _, err := eng.Render(id, nil); err != nil {
			t.Errorf("built-in template %q not found: %v", id, err)
		}
	}
}

func TestTemplateEngine_SosRequest(t *testing.T) {
	eng := NewTemplateEngine()
	title, body, err := eng.Render(TemplateSosRequest, map[string]string{"kind": "blood", "blood_label": " (type A+)"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if title != "Urgent blood donation request" {
		t.Errorf("title = %q", title)
	}
	if body != "A patient near you needs a blood donation (type A+). Please help!" {
		t.Errorf("body = %q", body)
	}
}

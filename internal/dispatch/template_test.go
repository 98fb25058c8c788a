package dispatch

import "testing"

func TestRender(t *testing.T) {
	tpl := Template{Subject: "Hello {{name}}", Body: "At {{time}}, {{name}}. {{missing}} stays."}
	got := tpl.Render(map[string]string{"name": "Ada", "time": "10:00"})

	if got.Subject != "Hello Ada" {
		t.Errorf("subject = %q", got.Subject)
	}
	if got.Body != "At 10:00, Ada. {{missing}} stays." {
		t.Errorf("body = %q", got.Body)
	}
	// The source template is untouched.
	if tpl.Subject != "Hello {{name}}" {
		t.Errorf("source mutated: %q", tpl.Subject)
	}
}

func TestRenderNoVariables(t *testing.T) {
	tpl := Template{Subject: "Hello {{name}}"}
	if got := tpl.Render(nil); got != tpl {
		t.Errorf("Render(nil) = %+v, want unchanged", got)
	}
}

func TestCatalogResolve(t *testing.T) {
	c := NewCatalog()
	c.Replace(map[string]Template{
		Key("appointment.reminder", "fr"): {Subject: "Rappel"},
		Key("appointment.reminder", ""):   {Subject: "Reminder"},
	})

	tests := []struct {
		name        string
		notifType   string
		locale      string
		wantSubject string
	}{
		{name: "exact locale match", notifType: "appointment.reminder", locale: "fr", wantSubject: "Rappel"},
		{name: "locale match is case-insensitive", notifType: "appointment.reminder", locale: "FR", wantSubject: "Rappel"},
		{name: "unknown locale falls back to type-wide entry", notifType: "appointment.reminder", locale: "de", wantSubject: "Reminder"},
		{name: "empty locale hits type-wide entry", notifType: "appointment.reminder", locale: "", wantSubject: "Reminder"},
		{name: "unknown type falls back to default", notifType: "appointment.cancelled", locale: "fr", wantSubject: DefaultTemplate.Subject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Resolve(tt.notifType, tt.locale); got.Subject != tt.wantSubject {
				t.Errorf("Resolve(%q, %q).Subject = %q, want %q", tt.notifType, tt.locale, got.Subject, tt.wantSubject)
			}
		})
	}
}

func TestCatalogEmptyResolvesDefault(t *testing.T) {
	c := NewCatalog()
	if got := c.Resolve("appointment.reminder", "en"); got != DefaultTemplate {
		t.Errorf("Resolve() on empty catalog = %+v, want default", got)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestCatalogReplaceSwapsWholesale(t *testing.T) {
	c := NewCatalog()
	c.Replace(map[string]Template{Key("a", ""): {Subject: "one"}})
	c.Replace(map[string]Template{Key("b", ""): {Subject: "two"}})

	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after wholesale replace", c.Len())
	}
	if got := c.Resolve("a", ""); got != DefaultTemplate {
		t.Errorf("old entry survived replace: %+v", got)
	}
	if got := c.Resolve("b", ""); got.Subject != "two" {
		t.Errorf("Resolve(b) = %+v", got)
	}
}

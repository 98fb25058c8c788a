package templates

// CatalogConfig represents the top-level structure of templates.yaml
type CatalogConfig struct {
	Templates []TemplateProps `yaml:"templates"`
}

// TemplateProps contains one template definition
type TemplateProps struct {
	Type    string `yaml:"type"`             // notification type, ex: appointment.reminder
	Locale  string `yaml:"locale,omitempty"` // empty = fallback for all locales of the type
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

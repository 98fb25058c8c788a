package dispatch

import (
	"strings"
	"sync"
	"time"
)

// Template is the rendered subject/body pair for one notification type and
// locale.
type Template struct {
	Subject string
	Body    string
}

// Render substitutes {{name}} placeholders in subject and body with the
// message-supplied variables. Unknown placeholders are left untouched.
func (t Template) Render(vars map[string]string) Template {
	if len(vars) == 0 {
		return t
	}
	out := t
	for name, value := range vars {
		placeholder := "{{" + name + "}}"
		out.Subject = strings.ReplaceAll(out.Subject, placeholder, value)
		out.Body = strings.ReplaceAll(out.Body, placeholder, value)
	}
	return out
}

// DefaultTemplate is used when no catalog entry matches.
var DefaultTemplate = Template{
	Subject: "Appointment reminder",
	Body:    "Your appointment is coming up.",
}

// TemplateSource resolves a template for a notification type and locale,
// falling back to a generic one when nothing matches.
type TemplateSource interface {
	Resolve(notifType, locale string) Template
}

// Catalog is an in-memory template index, safe for concurrent use. It is
// replaced wholesale by the template reloader.
type Catalog struct {
	mu         sync.RWMutex
	entries    map[string]Template // key: type|locale
	lastReload time.Time
}

// NewCatalog creates an empty catalog; Resolve falls back to DefaultTemplate
// until the first Replace.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]Template)}
}

func catalogKey(notifType, locale string) string {
	return notifType + "|" + strings.ToLower(locale)
}

// Replace swaps in a new set of entries.
func (c *Catalog) Replace(entries map[string]Template) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
	c.lastReload = time.Now()
}

// Key builds the catalog key for one type/locale pair. Locale "" registers
// the type-wide fallback.
func Key(notifType, locale string) string {
	return catalogKey(notifType, locale)
}

// Resolve returns the template for (type, locale), then (type, any locale
// fallback), then DefaultTemplate.
func (c *Catalog) Resolve(notifType, locale string) Template {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if tpl, ok := c.entries[catalogKey(notifType, locale)]; ok {
		return tpl
	}
	if tpl, ok := c.entries[catalogKey(notifType, "")]; ok {
		return tpl
	}
	return DefaultTemplate
}

// Len returns the number of registered templates.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

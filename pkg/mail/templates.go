package mail

import (
	"context"
	"fmt"
	"strings"
	"text/template"
)

// Template names an outbound email template.
type Template string

// Templates used by the portal. Wording is intentionally plain text.
const (
	TemplateNewQuery                 Template = "newQuery"
	TemplateNewLinkQuery             Template = "newLinkQuery"
	TemplateDueDateReminder          Template = "dueDateReminder"
	TemplateDueDateReminderLinkQuery Template = "dueDateReminderLinkQuery"
	TemplateDueDateWarning           Template = "dueDateWarning"
	TemplateDueDateWarningLinkQuery  Template = "dueDateWarningLinkQuery"
	TemplateNewCircular              Template = "newCircular"
	TemplateNewDocumentCategory      Template = "newDocumentCategory"
	TemplateDocumentReminder         Template = "documentReminder"
)

// TemplateData carries the fields referenced by the built-in templates.
type TemplateData struct {
	College  string
	Subject  string
	DueDate  string
	Link     string
	DaysLeft int
}

type templateDef struct {
	subject string
	body    string
}

var templateDefs = map[Template]templateDef{
	TemplateNewQuery: {
		subject: "New query from DDPU: {{.Subject}}",
		body: "Dear {{.College}},\n\nA new query \"{{.Subject}}\" has been issued by the DDPU office. " +
			"Please upload your response before {{.DueDate}}.\n\nRegards,\nDDPU Office",
	},
	TemplateNewLinkQuery: {
		subject: "New link query from DDPU: {{.Subject}}",
		body: "Dear {{.College}},\n\nA new query \"{{.Subject}}\" has been issued by the DDPU office. " +
			"Please open the following link before {{.DueDate}}:\n{{.Link}}\n\nRegards,\nDDPU Office",
	},
	TemplateDueDateReminder: {
		subject: "Reminder: query \"{{.Subject}}\" due {{.DueDate}}",
		body: "Dear {{.College}},\n\nThis is a reminder that the query \"{{.Subject}}\" is due on " +
			"{{.DueDate}} ({{.DaysLeft}} day(s) left). Please upload your response.\n\nRegards,\nDDPU Office",
	},
	TemplateDueDateReminderLinkQuery: {
		subject: "Reminder: link query \"{{.Subject}}\" due {{.DueDate}}",
		body: "Dear {{.College}},\n\nThis is a reminder that the query \"{{.Subject}}\" is due on " +
			"{{.DueDate}} ({{.DaysLeft}} day(s) left). Please open the link:\n{{.Link}}\n\nRegards,\nDDPU Office",
	},
	TemplateDueDateWarning: {
		subject: "Overdue: query \"{{.Subject}}\"",
		body: "Dear {{.College}},\n\nThe query \"{{.Subject}}\" was due on {{.DueDate}} and no response " +
			"has been recorded. Please upload your response immediately.\n\nRegards,\nDDPU Office",
	},
	TemplateDueDateWarningLinkQuery: {
		subject: "Overdue: link query \"{{.Subject}}\"",
		body: "Dear {{.College}},\n\nThe query \"{{.Subject}}\" was due on {{.DueDate}} and the link has " +
			"not been opened. Please open it immediately:\n{{.Link}}\n\nRegards,\nDDPU Office",
	},
	TemplateNewCircular: {
		subject: "New circular: {{.Subject}}",
		body: "Dear {{.College}},\n\nA new circular \"{{.Subject}}\" has been published by the DDPU " +
			"office. Please review it in the portal.\n\nRegards,\nDDPU Office",
	},
	TemplateNewDocumentCategory: {
		subject: "Documents requested: {{.Subject}}",
		body: "Dear {{.College}},\n\nThe DDPU office has requested documents under the category " +
			"\"{{.Subject}}\". Please upload the required files in the portal.\n\nRegards,\nDDPU Office",
	},
	TemplateDocumentReminder: {
		subject: "Reminder: documents pending for {{.Subject}}",
		body: "Dear {{.College}},\n\nYour upload for the document category \"{{.Subject}}\" is still " +
			"pending. Please submit it at the earliest.\n\nRegards,\nDDPU Office",
	},
}

var parsedTemplates = func() map[Template]struct{ subject, body *template.Template } {
	parsed := make(map[Template]struct{ subject, body *template.Template }, len(templateDefs))
	for name, def := range templateDefs {
		parsed[name] = struct{ subject, body *template.Template }{
			subject: template.Must(template.New(string(name) + ".subject").Parse(def.subject)),
			body:    template.Must(template.New(string(name) + ".body").Parse(def.body)),
		}
	}
	return parsed
}()

// Render produces the subject and body for the named template.
func Render(name Template, data TemplateData) (subject, body string, err error) {
	tmpl, ok := parsedTemplates[name]
	if !ok {
		return "", "", fmt.Errorf("mail: unknown template %q", name)
	}

	var sb, bb strings.Builder
	if err := tmpl.subject.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("mail: render subject %q: %w", name, err)
	}
	if err := tmpl.body.Execute(&bb, data); err != nil {
		return "", "", fmt.Errorf("mail: render body %q: %w", name, err)
	}
	return sb.String(), bb.String(), nil
}

// Courier renders a named template and hands the result to a Mailer.
type Courier struct {
	mailer Mailer
}

// NewCourier wraps a Mailer with template rendering.
func NewCourier(mailer Mailer) *Courier {
	return &Courier{mailer: mailer}
}

// SendTemplate renders the template and sends it to a single recipient.
func (c *Courier) SendTemplate(ctx context.Context, to string, name Template, data TemplateData) error {
	if c == nil || c.mailer == nil {
		return ErrSMTPDisabled
	}

	subject, body, err := Render(name, data)
	if err != nil {
		return err
	}

	return c.mailer.Send(ctx, Message{
		To:      []string{to},
		Subject: subject,
		Body:    body,
	})
}

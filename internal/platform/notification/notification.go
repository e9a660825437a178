// Package notification renders the transactional e-mail templates and sends
// them through an EmailSender.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Built-in template ids.
const (
	TemplateEmailVerification      = "email-verification"
	TemplateWelcome                = "welcome"
	TemplatePasswordReset          = "password-reset"
	TemplatePasswordChanged        = "password-changed"
	TemplateAppointmentReminder24h = "appointment-reminder-24h"
	TemplateAppointmentReminder2h  = "appointment-reminder-2h"
	TemplateTrialExpired           = "trial-expired"
	TemplateTrialReminder          = "trial-reminder"
	TemplateStaffInvitation        = "staff-invitation"
)

// Template is a plain text subject/body pair with {{key}} placeholders.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateEmailVerification,
			Name:    "Email Verification",
			Subject: "Your PaciGest verification code",
			Body: "Hello {{name}},\n\nYour verification code is {{code}}. It expires in {{expires_in}}.\n\n" +
				"If you did not create a PaciGest account you can ignore this message.",
		},
		{
			ID:      TemplateWelcome,
			Name:    "Welcome",
			Subject: "Welcome to PaciGest Plus",
			Body: "Hello {{name}},\n\nYour account is verified. Your free trial runs until {{trial_ends}}.\n\n" +
				"Sign in at {{login_url}}",
		},
		{
			ID:      TemplatePasswordReset,
			Name:    "Password Reset",
			Subject: "Reset your PaciGest password",
			Body: "Hello {{name}},\n\nYou requested a password reset. Open the following link within {{expires_in}}:\n" +
				"{{reset_link}}\n\nIf you did not request it, ignore this message.",
		},
		{
			ID:      TemplatePasswordChanged,
			Name:    "Password Changed",
			Subject: "Your PaciGest password was changed",
			Body:    "Hello {{name}},\n\nThe password of your account was changed. If this was not you, reset it immediately.",
		},
		{
			ID:      TemplateAppointmentReminder24h,
			Name:    "Appointment Reminder (24h)",
			Subject: "Reminder: appointment tomorrow with Dr. {{doctor_name}}",
			Body: "Dear {{patient_name}},\n\nThis is a reminder of your {{type}} appointment on {{date}} at {{time}} " +
				"with Dr. {{doctor_name}}.",
		},
		{
			ID:      TemplateAppointmentReminder2h,
			Name:    "Appointment Reminder (2h)",
			Subject: "Your appointment with Dr. {{doctor_name}} starts soon",
			Body:    "Dear {{patient_name}},\n\nYour appointment with Dr. {{doctor_name}} starts at {{time}} today.",
		},
		{
			ID:      TemplateTrialExpired,
			Name:    "Trial Expired",
			Subject: "Your PaciGest trial has ended",
			Body: "Hello {{name}},\n\nYour free trial ended on {{trial_ends}}. Clinical records and prescriptions stay " +
				"locked until you subscribe.",
		},
		{
			ID:      TemplateTrialReminder,
			Name:    "Trial Reminder",
			Subject: "Your PaciGest trial ends on {{trial_ends}}",
			Body:    "Hello {{name}},\n\nYour free trial ends on {{trial_ends}}. Subscribe to keep full access.",
		},
		{
			ID:      TemplateStaffInvitation,
			Name:    "Staff Invitation",
			Subject: "Dr. {{doctor_name}} added you to PaciGest",
			Body: "Hello {{name}},\n\nDr. {{doctor_name}} created a PaciGest account for you ({{email}}). " +
				"Sign in at {{login_url}} with the temporary password you were given and change it.",
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
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// Manager renders templates and hands the result to the sender.
type Manager struct {
	sender    EmailSender
	templates *TemplateEngine
	logger    zerolog.Logger
}

func NewManager(sender EmailSender, tpl *TemplateEngine, logger zerolog.Logger) *Manager {
	if tpl == nil {
		tpl = NewTemplateEngine()
	}
	return &Manager{sender: sender, templates: tpl, logger: logger}
}

// SendTemplate renders templateID with data and e-mails it to to.
func (m *Manager) SendTemplate(ctx context.Context, templateID, to string, data map[string]string) error {
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}
	if err := m.sender.SendEmail(ctx, to, subject, body); err != nil {
		return fmt.Errorf("send %s: %w", templateID, err)
	}
	m.logger.Debug().Str("template", templateID).Str("to", to).Msg("email sent")
	return nil
}

package notification

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func TestTemplateEngine_RegisterAndRender(t *testing.T) {
	eng := NewTemplateEngine()
	eng.RegisterTemplate(Template{
		ID:      "test-tpl",
		Name:    "Test Template",
		Subject: "Hello {{name}}",
		Body:    "Dear {{name}}, your code is {{code}}.",
	})

	subject, body, err := eng.Render("test-tpl", map[string]string{
		"name": "Alice",
		"code": "1234",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Hello Alice" {
		t.Errorf("subject = %q, want %q", subject, "Hello Alice")
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
		TemplateEmailVerification,
		TemplateWelcome,
		TemplatePasswordReset,
		TemplatePasswordChanged,
		TemplateAppointmentReminder24h,
		TemplateAppointmentReminder2h,
		TemplateTrialExpired,
		TemplateTrialReminder,
		TemplateStaffInvitation,
	}
	for _, id := range builtIn {
		subject, body, err := eng.Render(id, nil)
		if err != nil {
			t.Errorf("built-in template %q: %v", id, err)
			continue
		}
		if subject == "" || body == "" {
			t.Errorf("built-in template %q has empty subject or body", id)
		}
	}
}

func TestTemplateEngine_RenderMissingKey(t *testing.T) {
	eng := NewTemplateEngine()
	_, body, err := eng.Render(TemplateEmailVerification, map[string]string{"name": "Ana"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(body, "{{code}}") {
		t.Errorf("expected unreplaced placeholder to remain, got %q", body)
	}
	if !strings.Contains(body, "Hello Ana") {
		t.Errorf("expected name to be replaced, got %q", body)
	}
}

func TestManager_SendTemplate(t *testing.T) {
	sender := &MockEmailSender{}
	mgr := NewManager(sender, nil, zerolog.Nop())

	err := mgr.SendTemplate(context.Background(), TemplateEmailVerification, "a@b.com", map[string]string{
		"name":       "Ana",
		"code":       "123456",
		"expires_in": "15 minutes",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := sender.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 email, got %d", len(calls))
	}
	if calls[0].To != "a@b.com" {
		t.Errorf("unexpected recipient %q", calls[0].To)
	}
	if !strings.Contains(calls[0].Body, "123456") {
		t.Errorf("expected code in body, got %q", calls[0].Body)
	}
}

func TestManager_SendTemplateFailure(t *testing.T) {
	sender := &MockEmailSender{ShouldFail: true, FailError: "smtp down"}
	mgr := NewManager(sender, nil, zerolog.Nop())

	err := mgr.SendTemplate(context.Background(), TemplateWelcome, "a@b.com", nil)
	if err == nil || !strings.Contains(err.Error(), "smtp down") {
		t.Fatalf("expected sender error, got %v", err)
	}

	if err := mgr.SendTemplate(context.Background(), "missing", "a@b.com", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
	if len(sender.Calls()) != 1 {
		t.Errorf("unknown template must not reach the sender, got %d calls", len(sender.Calls()))
	}
}

func TestMockEmailSender_Concurrent(t *testing.T) {
	sender := &MockEmailSender{}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sender.SendEmail(context.Background(), "x@y.com", "s", "b")
		}()
	}
	wg.Wait()
	if len(sender.Calls()) != 20 {
		t.Errorf("expected 20 calls, got %d", len(sender.Calls()))
	}
	sender.Reset()
	if len(sender.Calls()) != 0 {
		t.Error("expected calls to be cleared")
	}
}

func TestNewEmailSender_FallsBackToLog(t *testing.T) {
	if _, ok := NewEmailSender("", "PaciGest <no-reply@pacigest.app>", zerolog.Nop()).(*LogSender); !ok {
		t.Error("expected LogSender without api key")
	}
	if _, ok := NewEmailSender("re_test_key", "PaciGest <no-reply@pacigest.app>", zerolog.Nop()).(*ResendSender); !ok {
		t.Error("expected ResendSender with api key")
	}
	if err := NewLogSender(zerolog.Nop()).SendEmail(context.Background(), "a@b.com", "s", "b"); err != nil {
		t.Errorf("log sender should not fail: %v", err)
	}
}

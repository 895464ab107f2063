// Package notification delivers dose reminders and stock alerts over
// email and SMS, with template rendering, retry, and Echo HTTP handlers.
// Delivery is best-effort: the scheduling core never depends on it.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nidohq/nido/internal/domain/medication"
)

// Channel represents the transport used to deliver a message.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Message represents a single outbound delivery.
type Message struct {
	ID           string            `json:"id"`
	FamilyGroup  string            `json:"family_group"`
	Channel      Channel           `json:"channel"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject,omitempty"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender is the interface for sending SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Template defines a reusable message template.
type Template struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	Channel Channel `json:"channel"`
}

// TemplateEngine manages message templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in
// templates pre-registered.
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
			ID:      "dose-reminder",
			Name:    "Dose Reminder",
			Subject: "Promemoria: {{medication}}",
			Body:    "Ciao {{member_name}}, ricordati di prendere {{medication}} ({{dose}}) alle {{time}}.",
			Channel: ChannelEmail,
		},
		{
			ID:      "low-stock",
			Name:    "Low Stock Alert",
			Subject: "Scorte in esaurimento: {{medication}}",
			Body:    "Le scorte di {{medication}} sono quasi finite: restano {{quantity}} dosi. Ricordati di ricomprarle.",
			Channel: ChannelEmail,
		},
		{
			ID:      "member-added",
			Name:    "Member Added",
			Subject: "Benvenuto nella famiglia {{family_name}}",
			Body:    "Ciao {{member_name}}, sei stato aggiunto alla famiglia {{family_name}}.",
			Channel: ChannelEmail,
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

// Render looks up a template by ID and performs {{key}} replacement
// using the supplied data map. Keys present in the template but absent
// from data are left as-is.
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

func (e *TemplateEngine) channel(templateID string) Channel {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if t, ok := e.templates[templateID]; ok {
		return t.Channel
	}
	return ChannelEmail
}

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

// SendEmail records the call and optionally returns an error.
func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// SMSCall records a single call to SendSMS.
type SMSCall struct {
	To   string
	Body string
}

// MockSMSSender is a test double for SMSSender.
type MockSMSSender struct {
	mu         sync.Mutex
	calls      []SMSCall
	ShouldFail bool
	FailError  string
}

// SendSMS records the call and optionally returns an error.
func (m *MockSMSSender) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SMSCall{To: to, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded SMS calls.
func (m *MockSMSSender) Calls() []SMSCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SMSCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Contact is a resolved delivery address for one family member.
type Contact struct {
	MemberID    uuid.UUID `json:"member_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
}

// ContactResolver maps member ids to delivery addresses. An empty id
// list resolves to the dose author's contact.
type ContactResolver interface {
	Resolve(ctx context.Context, family string, memberIDs []uuid.UUID) ([]Contact, error)
}

// Dispatcher orchestrates sending, storage, and retrieval of messages.
type Dispatcher struct {
	emailSender EmailSender
	smsSender   SMSSender
	templates   *TemplateEngine
	contacts    ContactResolver
	mu          sync.RWMutex
	messages    map[string]*Message
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(email EmailSender, sms SMSSender, tpl *TemplateEngine, contacts ContactResolver) *Dispatcher {
	return &Dispatcher{
		emailSender: email,
		smsSender:   sms,
		templates:   tpl,
		contacts:    contacts,
		messages:    make(map[string]*Message),
	}
}

// Send dispatches a message through the appropriate channel, assigns
// an ID and timestamps, and persists the result in-memory.
func (d *Dispatcher) Send(ctx context.Context, m *Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.Status = "pending"

	sendErr := d.deliver(ctx, m)
	if sendErr != nil {
		m.Status = "failed"
		m.Error = sendErr.Error()
	} else {
		m.Status = "sent"
		sentAt := time.Now().UTC()
		m.SentAt = &sentAt
	}

	d.mu.Lock()
	d.messages[m.ID] = m
	d.mu.Unlock()

	return sendErr
}

func (d *Dispatcher) deliver(ctx context.Context, m *Message) error {
	switch m.Channel {
	case ChannelEmail:
		return d.emailSender.SendEmail(ctx, m.Recipient, m.Subject, m.Body)
	case ChannelSMS:
		return d.smsSender.SendSMS(ctx, m.Recipient, m.Body)
	}
	return fmt.Errorf("unsupported channel: %s", m.Channel)
}

// SendFromTemplate renders a template and sends the resulting message.
func (d *Dispatcher) SendFromTemplate(ctx context.Context, family, templateID string, data map[string]string, recipient string) (*Message, error) {
	subject, body, err := d.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	m := &Message{
		FamilyGroup:  family,
		Channel:      d.templates.channel(templateID),
		Recipient:    recipient,
		Subject:      subject,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
	}

	if err := d.Send(ctx, m); err != nil {
		return m, err
	}
	return m, nil
}

// DispatchDoseReminder resolves the reminder's recipient list and
// sends one dose-reminder message per contact. Failed deliveries are
// recorded and skipped; the reminder is never lost over a single bad
// address.
func (d *Dispatcher) DispatchDoseReminder(ctx context.Context, family string, r medication.Reminder) ([]*Message, error) {
	contacts, err := d.contacts.Resolve(ctx, family, r.Recipients)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}

	data := map[string]string{
		"medication": r.MedicationName,
		"dose":       r.Dose,
		"time":       r.Start.Format("15:04"),
	}

	var sent []*Message
	for _, contact := range contacts {
		data["member_name"] = contact.DisplayName
		msg, err := d.SendFromTemplate(ctx, family, "dose-reminder", data, contact.Email)
		if msg != nil {
			sent = append(sent, msg)
		}
		if err != nil {
			continue
		}
	}
	return sent, nil
}

// GetMessage retrieves a message by ID.
func (d *Dispatcher) GetMessage(_ context.Context, id string) (*Message, error) {
	d.mu.RLock()
	m, ok := d.messages[id]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("message %q not found", id)
	}
	return m, nil
}

// ListByFamily returns messages for a family group, up to limit.
func (d *Dispatcher) ListByFamily(_ context.Context, family string, limit int) ([]*Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var result []*Message
	for _, m := range d.messages {
		if m.FamilyGroup == family {
			result = append(result, m)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

// Retry re-sends a failed message. Returns an error if the message is
// not in "failed" status.
func (d *Dispatcher) Retry(ctx context.Context, id string) error {
	d.mu.RLock()
	m, ok := d.messages[id]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("message %q not found", id)
	}
	if m.Status != "failed" {
		return fmt.Errorf("message %q is not in failed status (current: %s)", id, m.Status)
	}

	sendErr := d.deliver(ctx, m)

	d.mu.Lock()
	if sendErr != nil {
		m.Status = "failed"
		m.Error = sendErr.Error()
	} else {
		m.Status = "sent"
		sentAt := time.Now().UTC()
		m.SentAt = &sentAt
		m.Error = ""
	}
	d.mu.Unlock()

	return sendErr
}

// Stats returns counts of messages grouped by status.
func (d *Dispatcher) Stats(_ context.Context) map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := make(map[string]int)
	for _, m := range d.messages {
		stats[m.Status]++
	}
	return stats
}

// Handler exposes message operations over HTTP via Echo.
type Handler struct {
	dispatcher *Dispatcher
}

// NewHandler creates a new Handler.
func NewHandler(d *Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// RegisterRoutes registers all message routes on the given Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/messages/send", h.HandleSend)
	g.POST("/messages/send-template", h.HandleSendTemplate)
	g.GET("/messages/stats", h.HandleStats)
	g.GET("/messages/:id", h.HandleGet)
	g.GET("/messages", h.HandleList)
	g.POST("/messages/:id/retry", h.HandleRetry)
}

// sendRequest is the JSON body for POST /messages/send.
type sendRequest struct {
	FamilyGroup string  `json:"family_group"`
	Channel     Channel `json:"channel"`
	Recipient   string  `json:"recipient"`
	Subject     string  `json:"subject"`
	Body        string  `json:"body"`
}

// HandleSend handles POST /messages/send.
func (h *Handler) HandleSend(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	m := &Message{
		FamilyGroup: req.FamilyGroup,
		Channel:     req.Channel,
		Recipient:   req.Recipient,
		Subject:     req.Subject,
		Body:        req.Body,
	}

	// The message is returned even when delivery failed so the caller
	// can see the ID and error.
	_ = h.dispatcher.Send(c.Request().Context(), m)
	return c.JSON(http.StatusCreated, m)
}

// sendTemplateRequest is the JSON body for POST /messages/send-template.
type sendTemplateRequest struct {
	FamilyGroup string            `json:"family_group"`
	TemplateID  string            `json:"template_id"`
	Recipient   string            `json:"recipient"`
	Data        map[string]string `json:"data"`
}

// HandleSendTemplate handles POST /messages/send-template.
func (h *Handler) HandleSendTemplate(c echo.Context) error {
	var req sendTemplateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	m, err := h.dispatcher.SendFromTemplate(c.Request().Context(), req.FamilyGroup, req.TemplateID, req.Data, req.Recipient)
	if err != nil && m == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, m)
}

// HandleGet handles GET /messages/:id.
func (h *Handler) HandleGet(c echo.Context) error {
	id := c.Param("id")
	m, err := h.dispatcher.GetMessage(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, m)
}

// HandleList handles GET /messages?family_group=...
func (h *Handler) HandleList(c echo.Context) error {
	family := c.QueryParam("family_group")
	if family == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "family_group query parameter is required"})
	}

	list, err := h.dispatcher.ListByFamily(c.Request().Context(), family, 100)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, list)
}

// HandleRetry handles POST /messages/:id/retry.
func (h *Handler) HandleRetry(c echo.Context) error {
	id := c.Param("id")
	if err := h.dispatcher.Retry(c.Request().Context(), id); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	m, _ := h.dispatcher.GetMessage(c.Request().Context(), id)
	return c.JSON(http.StatusOK, m)
}

// HandleStats handles GET /messages/stats.
func (h *Handler) HandleStats(c echo.Context) error {
	stats := h.dispatcher.Stats(c.Request().Context())
	return c.JSON(http.StatusOK, stats)
}

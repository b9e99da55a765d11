package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kah-digital/agency-backend/internal/leads/domain"
	"github.com/kah-digital/agency-backend/internal/mailer"
)

// Sender is the outbound email dependency.
type Sender interface {
	Configured() bool
	Send(ctx context.Context, email mailer.Email) error
}

// Dispatcher fans a new lead out to the configured channels. Channels fail
// independently; a dead webhook never blocks the email and neither failure
// ever reaches the submitter.
type Dispatcher struct {
	mail       Sender
	recipients []string
	webhookURL string
	http       *http.Client
}

func NewDispatcher(mail Sender, recipients []string, webhookURL string) *Dispatcher {
	return &Dispatcher{
		mail:       mail,
		recipients: recipients,
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

// NotifyLead delivers the new-lead notification on every channel. Errors
// are logged per channel and swallowed.
func (d *Dispatcher) NotifyLead(ctx context.Context, lead domain.LeadRecord) {
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := d.sendEmail(ctx, lead); err != nil {
			log.Printf("[notify] email failed: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := d.sendWebhook(ctx, lead); err != nil {
			log.Printf("[notify] webhook failed: %v", err)
		}
	}()
	wg.Wait()
}

func (d *Dispatcher) sendEmail(ctx context.Context, lead domain.LeadRecord) error {
	if !d.mail.Configured() || len(d.recipients) == 0 {
		log.Printf("[notify] email skipped: mailer or recipients not configured")
		return nil
	}
	return d.mail.Send(ctx, mailer.Email{
		To:      d.recipients,
		Subject: "Nouvelle demande de devis - " + lead.Name,
		Text:    LeadSummary(lead),
	})
}

func (d *Dispatcher) sendWebhook(ctx context.Context, lead domain.LeadRecord) error {
	if d.webhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("marshal lead: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

// LeadSummary renders the plain-text notification body.
func LeadSummary(lead domain.LeadRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Projet: %s / Budget: %s / Timeline: %s\n", lead.ProjectType, lead.Budget, lead.Timeline)
	fmt.Fprintf(&b, "Client: %s", dash(string(lead.ClientType)))
	if lead.CompanyName != "" {
		fmt.Fprintf(&b, " / %s", lead.CompanyName)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Objectif: %s\n", lead.Goal)
	fmt.Fprintf(&b, "Pages: %s\n", dashList(lead.Pages))
	fmt.Fprintf(&b, "Inspirations: %s\n", dash(lead.Inspirations))
	fmt.Fprintf(&b, "Vision: %s\n", dash(lead.Message))
	fmt.Fprintf(&b, "Contact: %s %s", lead.Email, lead.Phone)

	if lead.Focus() == domain.FocusMobile {
		b.WriteString("\n\nMVP mobile:\n")
		fmt.Fprintf(&b, "- Plateformes: %s\n", dashList(lead.MobilePlatforms))
		fmt.Fprintf(&b, "- Fonctions: %s\n", dashList(lead.MobileFeatures))
		fmt.Fprintf(&b, "- Stores: %s\n", dash(lead.StoreSupport))
		fmt.Fprintf(&b, "- Stack/API: %s", dash(lead.TechPreferences))
	}

	if lead.Configurator != nil {
		cfg := lead.Configurator
		b.WriteString("\n\nConfigurateur:\n")
		fmt.Fprintf(&b, "- Type: %s\n", dash(cfg.SiteType))
		fmt.Fprintf(&b, "- Vision: %s\n", dash(cfg.Strategy))
		fmt.Fprintf(&b, "- Style: %s\n", dash(cfg.Mood))
		fmt.Fprintf(&b, "- Options: %s\n", dashList(cfg.Features))
		fmt.Fprintf(&b, "- Intégrations: %s", dashList(cfg.Integrations))
	}

	return b.String()
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func dashList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

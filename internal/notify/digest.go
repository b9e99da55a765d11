package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kah-digital/agency-backend/internal/leads/domain"
	"github.com/kah-digital/agency-backend/internal/leads/repository"
	"github.com/kah-digital/agency-backend/internal/mailer"
)

// Digest emails a daily recap of the leads received in the last 24 hours.
// It is quiet when nothing came in.
type Digest struct {
	store      repository.Store
	mail       Sender
	recipients []string
	now        func() time.Time
}

func NewDigest(store repository.Store, mail Sender, recipients []string) *Digest {
	return &Digest{store: store, mail: mail, recipients: recipients, now: time.Now}
}

// Run is wired as a cron job. Failures are logged, never fatal.
func (d *Digest) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := d.send(ctx); err != nil {
		log.Printf("[digest] failed: %v", err)
	}
}

func (d *Digest) send(ctx context.Context) error {
	if !d.mail.Configured() || len(d.recipients) == 0 {
		return nil
	}

	leads, err := d.store.ListRecent(ctx, 200)
	if err != nil {
		return fmt.Errorf("list leads: %w", err)
	}

	cutoff := d.now().Add(-24 * time.Hour)
	var fresh []domain.LeadRecord
	for _, lead := range leads {
		if lead.SubmittedAt.After(cutoff) {
			fresh = append(fresh, lead)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	return d.mail.Send(ctx, mailer.Email{
		To:      d.recipients,
		Subject: fmt.Sprintf("Récap quotidien - %d nouvelle(s) demande(s)", len(fresh)),
		Text:    digestBody(fresh),
	})
}

func digestBody(leads []domain.LeadRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Demandes reçues ces dernières 24h : %d\n\n", len(leads))
	for _, lead := range leads {
		fmt.Fprintf(&b, "- %s (%s) : %s / %s / %s\n",
			lead.Name, lead.Email, lead.ProjectType, lead.Budget, lead.Timeline)
	}
	return b.String()
}

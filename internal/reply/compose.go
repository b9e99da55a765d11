package reply

import (
	"fmt"
	"strings"

	"github.com/kah-digital/agency-backend/internal/leads/domain"
)

// TemplateID selects one of the canned reply templates. The set is closed;
// unknown ids are rejected rather than silently mapped to a default.
type TemplateID string

const (
	TemplateFeasible    TemplateID = "feasible"
	TemplateNeedInfo    TemplateID = "need-info"
	TemplateBudgetLow   TemplateID = "budget-low"
	TemplateChanges     TemplateID = "changes"
	TemplateNotFeasible TemplateID = "not-feasible"
)

func (t TemplateID) Valid() bool {
	switch t {
	case TemplateFeasible, TemplateNeedInfo, TemplateBudgetLow, TemplateChanges, TemplateNotFeasible:
		return true
	}
	return false
}

// Variant controls prose verbosity, never which facts appear.
type Variant string

const (
	VariantShort Variant = "short"
	VariantFull  Variant = "full"
)

// Profile mode values for Draft.ProjectProfile. Anything else is treated as
// an explicit category id.
const (
	ProfileAuto = "auto"
	ProfileNone = "none"
)

// Draft carries the operator's choices. It is never persisted.
type Draft struct {
	Template       TemplateID `json:"templateId"`
	Variant        Variant    `json:"variant"`
	ProjectProfile string     `json:"projectProfileKey"`

	PriceOverride    string `json:"priceOverride,omitempty"`
	TimelineOverride string `json:"timelineOverride,omitempty"`
	Notes            string `json:"notesOverride,omitempty"`
}

type Message struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

const (
	pricePlaceholder    = "à définir ensemble"
	timelinePlaceholder = "à préciser selon le planning"
)

// Composer renders reply drafts. Same inputs always produce the same
// output; nothing here reads the clock or any external state.
type Composer struct {
	agencyName   string
	contactEmail string
	contactPhone string
}

func NewComposer(agencyName, contactEmail, contactPhone string) *Composer {
	return &Composer{
		agencyName:   agencyName,
		contactEmail: contactEmail,
		contactPhone: contactPhone,
	}
}

type resolved struct {
	price    string
	timeline string
	notes    string
	variant  Variant
	snippet  *Snippet
}

func (c *Composer) Compose(lead domain.LeadRecord, draft Draft) (Message, error) {
	if !draft.Template.Valid() {
		return Message{}, fmt.Errorf("unknown template %q", draft.Template)
	}

	variant := draft.Variant
	if variant != VariantFull {
		variant = VariantShort
	}

	ctx := resolved{
		price:    fallback(draft.PriceOverride, lead.Budget, pricePlaceholder),
		timeline: fallback(draft.TimelineOverride, lead.Timeline, timelinePlaceholder),
		notes:    strings.TrimSpace(draft.Notes),
		variant:  variant,
		snippet:  c.pickSnippet(lead, draft.ProjectProfile),
	}

	var msg Message
	switch draft.Template {
	case TemplateFeasible:
		msg = c.feasible(lead, ctx)
	case TemplateNeedInfo:
		msg = c.needInfo(lead, ctx)
	case TemplateBudgetLow:
		msg = c.budgetLow(lead, ctx)
	case TemplateChanges:
		msg = c.changes(lead, ctx)
	case TemplateNotFeasible:
		msg = c.notFeasible(lead, ctx)
	}

	msg.Body += c.signature()
	return msg, nil
}

func (c *Composer) pickSnippet(lead domain.LeadRecord, profile string) *Snippet {
	switch profile {
	case ProfileNone:
		return nil
	case ProfileAuto, "":
		s := MatchSnippet(lead.ProjectType + " " + lead.Goal + " " + lead.Message)
		return &s
	default:
		s, ok := SnippetByKey(profile)
		if !ok {
			s = generalSnippet
		}
		return &s
	}
}

func greeting(lead domain.LeadRecord) string {
	name := strings.TrimSpace(lead.Name)
	if name == "" {
		return "Bonjour,"
	}
	return "Bonjour " + name + ","
}

func projectLabel(lead domain.LeadRecord) string {
	p := strings.TrimSpace(lead.ProjectType)
	if p == "" {
		return "votre projet"
	}
	return "votre projet " + p
}

func (c *Composer) feasible(lead domain.LeadRecord, ctx resolved) Message {
	var b strings.Builder
	b.WriteString(greeting(lead))
	b.WriteString("\n\n")
	b.WriteString("Merci pour votre demande, " + projectLabel(lead) + " est tout à fait réalisable.\n")
	b.WriteString("Budget estimé : " + ctx.price + "\n")
	b.WriteString("Délais : " + ctx.timeline + "\n")

	if ctx.variant == VariantFull {
		b.WriteString("\nNous avons l'habitude de ce type de mission et nous pouvons démarrer rapidement. ")
		b.WriteString("L'estimation ci-dessus couvre la conception, le développement et la mise en ligne ; ")
		b.WriteString("elle sera affinée ensemble lors d'un premier échange.\n")
	}

	writeSnippet(&b, ctx.snippet)
	writeNotes(&b, ctx.notes)

	b.WriteString("\nSouhaitez-vous planifier un appel pour en discuter ?\n")

	return Message{
		Subject: "Votre demande de devis - c'est faisable !",
		Body:    b.String(),
	}
}

func (c *Composer) needInfo(lead domain.LeadRecord, ctx resolved) Message {
	var b strings.Builder
	b.WriteString(greeting(lead))
	b.WriteString("\n\n")
	b.WriteString("Merci pour votre demande concernant " + projectLabel(lead) + ".\n")
	b.WriteString("Avant de vous proposer un chiffrage fiable, il nous manque quelques précisions.\n")

	if ctx.variant == VariantFull {
		b.WriteString("\nEn particulier : le périmètre fonctionnel exact, les contenus déjà disponibles ")
		b.WriteString("et vos contraintes de calendrier. Un échange de quinze minutes suffit en général.\n")
	}

	b.WriteString("\nFourchette envisagée à ce stade : " + ctx.price + "\n")
	b.WriteString("Horizon : " + ctx.timeline + "\n")

	writeSnippet(&b, ctx.snippet)
	writeNotes(&b, ctx.notes)

	b.WriteString("\nQuand seriez-vous disponible pour un rapide échange ?\n")

	return Message{
		Subject: "Votre demande de devis - quelques précisions",
		Body:    b.String(),
	}
}

func (c *Composer) budgetLow(lead domain.LeadRecord, ctx resolved) Message {
	var b strings.Builder
	b.WriteString(greeting(lead))
	b.WriteString("\n\n")
	b.WriteString("Merci pour votre demande concernant " + projectLabel(lead) + ".\n")
	b.WriteString("Le budget indiqué (" + ctx.price + ") est en dessous de ce que ce périmètre demande.\n")

	if ctx.variant == VariantFull {
		b.WriteString("\nDeux options : réduire le périmètre pour tenir l'enveloppe, ou phaser le projet ")
		b.WriteString("en livrant d'abord un socle puis les fonctionnalités secondaires. ")
		b.WriteString("Dans les deux cas le calendrier (" + ctx.timeline + ") reste tenable.\n")
	}

	writeSnippet(&b, ctx.snippet)
	writeNotes(&b, ctx.notes)

	b.WriteString("\nVoulez-vous qu'on regarde ensemble comment ajuster le périmètre ?\n")

	return Message{
		Subject: "Votre demande de devis - ajustons le périmètre",
		Body:    b.String(),
	}
}

func (c *Composer) changes(lead domain.LeadRecord, ctx resolved) Message {
	var b strings.Builder
	b.WriteString(greeting(lead))
	b.WriteString("\n\n")
	b.WriteString("Merci pour votre demande. Le projet est réalisable avec quelques ajustements.\n")
	b.WriteString("Budget estimé après ajustements : " + ctx.price + "\n")
	b.WriteString("Délais : " + ctx.timeline + "\n")

	if ctx.variant == VariantFull {
		b.WriteString("\nCertains points du brief demandent à être revus pour rester dans une approche ")
		b.WriteString("robuste et maintenable ; rien de bloquant, mais mieux vaut en parler avant de chiffrer définitivement.\n")
	}

	writeSnippet(&b, ctx.snippet)
	writeNotes(&b, ctx.notes)

	b.WriteString("\nOn vous propose un échange pour passer en revue ces ajustements.\n")

	return Message{
		Subject: "Votre demande de devis - réalisable avec ajustements",
		Body:    b.String(),
	}
}

func (c *Composer) notFeasible(lead domain.LeadRecord, ctx resolved) Message {
	var b strings.Builder
	b.WriteString(greeting(lead))
	b.WriteString("\n\n")
	b.WriteString("Merci pour votre demande concernant " + projectLabel(lead) + ".\n")
	b.WriteString("Après étude, nous ne sommes pas en mesure de le prendre en charge en l'état.\n")

	if ctx.variant == VariantFull {
		b.WriteString("\nCela tient au périmètre demandé rapporté au budget et au calendrier (" + ctx.timeline + "). ")
		b.WriteString("Si l'un de ces paramètres évolue, nous serons ravis de réétudier la demande.\n")
	}

	writeNotes(&b, ctx.notes)

	b.WriteString("\nNous restons à votre disposition si votre projet évolue.\n")

	return Message{
		Subject: "Votre demande de devis - réponse",
		Body:    b.String(),
	}
}

func writeSnippet(b *strings.Builder, s *Snippet) {
	if s == nil {
		return
	}
	b.WriteString("\n" + s.Title + " :\n")
	for _, line := range s.Bullets {
		b.WriteString("- " + line + "\n")
	}
}

func writeNotes(b *strings.Builder, notes string) {
	if notes == "" {
		return
	}
	b.WriteString("\n" + notes + "\n")
}

func (c *Composer) signature() string {
	return "\n--\n" + c.agencyName + "\n" + c.contactEmail + " | " + c.contactPhone + "\n"
}

// Signature exposes the exact trailing block for callers that need to
// verify or strip it.
func (c *Composer) Signature() string {
	return c.signature()
}

func fallback(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

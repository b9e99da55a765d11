package brief

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const MaxPDFBytes = 4 * 1024 * 1024

// fieldLabels fixes the order and wording of the summary lines in both
// locales. Unknown field keys in a request are simply ignored.
var fieldLabels = []struct {
	key string
	fr  string
	en  string
}{
	{"company", "Entreprise / Organisation", "Company / Organization"},
	{"contact", "Contact principal", "Main contact"},
	{"email", "Email / Telephone", "Email / Phone"},
	{"goals", "Objectifs principaux", "Main goals"},
	{"audience", "Cible / utilisateurs", "Audience / users"},
	{"pages", "Pages & fonctionnalites cles", "Key pages & features"},
	{"appPlatforms", "Plateformes app mobile", "Mobile app platforms"},
	{"appFeatures", "Fonctionnalites MVP", "MVP features"},
	{"style", "Style visuel", "Visual style"},
	{"references", "References", "References"},
	{"budget", "Budget", "Budget"},
	{"deadline", "Deadline", "Deadline"},
	{"integrations", "Integrations / outils", "Integrations / tools"},
	{"notes", "Notes", "Notes"},
}

// NormalizeLocale maps anything that is not "en" to "fr".
func NormalizeLocale(locale string) string {
	if locale == "en" {
		return "en"
	}
	return "fr"
}

// Summary renders the labeled field list; empty values show as "/".
func Summary(fields map[string]string, locale string) string {
	locale = NormalizeLocale(locale)

	lines := make([]string, 0, len(fieldLabels))
	for _, item := range fieldLabels {
		label := item.fr
		if locale == "en" {
			label = item.en
		}
		value := strings.TrimSpace(fields[item.key])
		if value == "" {
			value = "/"
		}
		lines = append(lines, label+": "+value)
	}
	return strings.Join(lines, "\n")
}

// Subject returns the localized email subject.
func Subject(locale string) string {
	if NormalizeLocale(locale) == "en" {
		return "Your Kah-Digital project brief"
	}
	return "Votre cahier des charges Kah-Digital"
}

// BodyText wraps the summary in the localized email prose.
func BodyText(summary, locale string) string {
	if NormalizeLocale(locale) == "en" {
		return "Hello,\n\nHere is your filled project brief. We will review it and get back to you shortly.\n\n" +
			summary +
			"\n\nOptional: premium AI modules are available (automation, chatbot, scoring).\n\nBest,\nKah-Digital"
	}
	return "Bonjour,\n\nVoici votre cahier des charges rempli. Nous le consultons et revenons vers vous rapidement.\n\n" +
		summary +
		"\n\nOption: modules IA premium disponibles (automatisation, chatbot, scoring).\n\nBien a vous,\nKah-Digital"
}

// AttachmentName returns the localized PDF filename.
func AttachmentName(locale string) string {
	if NormalizeLocale(locale) == "en" {
		return "kah-digital-brief.pdf"
	}
	return "cahier-des-charges-kah-digital.pdf"
}

// DecodePDF accepts raw base64 or a data URL, enforcing the size cap on
// the decoded bytes.
func DecodePDF(encoded string) ([]byte, error) {
	if i := strings.IndexByte(encoded, ','); i >= 0 {
		encoded = encoded[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode pdf: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty pdf")
	}
	if len(data) > MaxPDFBytes {
		return nil, fmt.Errorf("pdf exceeds %d bytes", MaxPDFBytes)
	}
	return data, nil
}

// FilterSelfBcc drops the requester from the admin copy list.
func FilterSelfBcc(admins []string, requester string) []string {
	requester = strings.ToLower(strings.TrimSpace(requester))
	out := make([]string, 0, len(admins))
	for _, a := range admins {
		if strings.ToLower(strings.TrimSpace(a)) == requester {
			continue
		}
		out = append(out, a)
	}
	return out
}

package reply

import "strings"

// Snippet is a canned bullet list describing how the agency approaches a
// family of projects.
type Snippet struct {
	Key      string
	Title    string
	Keywords []string
	Bullets  []string
}

// snippetCatalog is ordered: the first category whose keyword set matches
// any substring of the description wins. The order is a deliberate
// tie-break policy, not an optimization target.
var snippetCatalog = []Snippet{
	{
		Key:      "ecommerce",
		Title:    "Pour un projet e-commerce",
		Keywords: []string{"ecommerce", "e-commerce", "boutique", "shop", "vente en ligne", "catalogue"},
		Bullets: []string{
			"Catalogue produits et fiches optimisées pour la conversion",
			"Paiement sécurisé (Stripe) et gestion des commandes",
			"Suivi des stocks et emails transactionnels",
		},
	},
	{
		Key:      "mobile",
		Title:    "Pour une application mobile",
		Keywords: []string{"mobile", "application", "app ", "ios", "android", "flutter"},
		Bullets: []string{
			"Application iOS et Android à partir d'une base de code unique",
			"Publication sur l'App Store et le Play Store",
			"Notifications push et mode hors ligne si pertinent",
		},
	},
	{
		Key:      "saas",
		Title:    "Pour une plateforme métier",
		Keywords: []string{"saas", "plateforme", "portail", "dashboard", "espace client", "crm"},
		Bullets: []string{
			"Espace connecté avec gestion des rôles et des accès",
			"Tableaux de bord et exports de données",
			"Architecture pensée pour évoluer avec votre activité",
		},
	},
	{
		Key:      "vitrine",
		Title:    "Pour un site vitrine",
		Keywords: []string{"vitrine", "présentation", "presentation", "portfolio", "landing"},
		Bullets: []string{
			"Design sur mesure aligné sur votre identité",
			"Référencement naturel soigné dès la conception",
			"Formulaire de contact et suivi des demandes",
		},
	},
}

var generalSnippet = Snippet{
	Key:   "general",
	Title: "Notre approche",
	Bullets: []string{
		"Un interlocuteur unique du cadrage à la mise en ligne",
		"Des points d'avancement réguliers et un planning tenu",
		"Un code maintenu, documenté et qui vous appartient",
	},
}

// MatchSnippet classifies a free-text project description. First matching
// category wins; the General category is the fallback.
func MatchSnippet(description string) Snippet {
	haystack := strings.ToLower(description)
	for _, s := range snippetCatalog {
		for _, kw := range s.Keywords {
			if strings.Contains(haystack, kw) {
				return s
			}
		}
	}
	return generalSnippet
}

// SnippetByKey resolves an explicitly chosen category.
func SnippetByKey(key string) (Snippet, bool) {
	if key == generalSnippet.Key {
		return generalSnippet, true
	}
	for _, s := range snippetCatalog {
		if s.Key == key {
			return s, true
		}
	}
	return Snippet{}, false
}

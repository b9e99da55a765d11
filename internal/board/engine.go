package board

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kah-digital/agency-backend/internal/leads/domain"
)

type SortOrder string

const (
	SortRecent SortOrder = "recent"
	SortOldest SortOrder = "oldest"
)

type SourceFilter string

const (
	SourceAny          SourceFilter = ""
	SourceConfigurator SourceFilter = "configurator"
	SourceClassic      SourceFilter = "classic"
)

// Query carries the active filters, search and sort of a board view.
// Zero values mean "no filter".
type Query struct {
	Feasibility domain.Feasibility
	Deposit     domain.Deposit
	Pipeline    Pipeline
	Source      SourceFilter
	Search      string
	Sort        SortOrder
}

// View is one displayed lead: the server record joined with its local
// annotation. The two stay separate maps joined by key so the authority
// boundary (server fields vs console fields) remains visible.
type View struct {
	Key  string            `json:"key"`
	Lead domain.LeadRecord `json:"lead"`
	Meta AdminMeta         `json:"meta"`
}

// Totals are computed over the full unfiltered set; they feed the
// top-level KPI tiles.
type Totals struct {
	Total       int                        `json:"total"`
	Feasibility map[domain.Feasibility]int `json:"feasibility"`
	Deposit     map[domain.Deposit]int     `json:"deposit"`
}

// DayBucket is one calendar day of the trailing-30-day histogram. Days
// with zero leads are present with Count 0, never omitted.
type DayBucket struct {
	Date  time.Time `json:"date"`
	Key   string    `json:"key"`
	Count int       `json:"count"`
}

// Aggregates are recomputed over the filtered set on every query change.
type Aggregates struct {
	Last24h int `json:"last24h"`
	Last7d  int `json:"last7d"`
	Last30d int `json:"last30d"`

	WebCount    int `json:"webCount"`
	MobileCount int `json:"mobileCount"`
	WebPct      int `json:"webPct"`
	MobilePct   int `json:"mobilePct"`

	ConfiguratorCount int `json:"configuratorCount"`
	ClassicCount      int `json:"classicCount"`
	ConfiguratorPct   int `json:"configuratorPct"`
	ClassicPct        int `json:"classicPct"`

	Daily []DayBucket `json:"daily"`
}

type Snapshot struct {
	Displayed  []View     `json:"displayed"`
	Totals     Totals     `json:"totals"`
	Aggregates Aggregates `json:"aggregates"`
}

const histogramDays = 30

// Apply is the triage engine: a pure function of the lead snapshot, the
// annotation map, and the query. It performs no I/O; callers feed it a
// snapshot and merge results however they like.
func Apply(leads []domain.LeadRecord, metas map[string]AdminMeta, q Query, now time.Time) Snapshot {
	views := make([]View, 0, len(leads))
	for _, lead := range leads {
		key := lead.Key()
		meta, ok := metas[key]
		if !ok {
			meta = DefaultMeta()
		}
		views = append(views, View{Key: key, Lead: lead, Meta: meta})
	}

	totals := computeTotals(views)

	filtered := make([]View, 0, len(views))
	for _, v := range views {
		if matches(v, q) {
			filtered = append(filtered, v)
		}
	}

	sortViews(filtered, q.Sort)

	return Snapshot{
		Displayed:  filtered,
		Totals:     totals,
		Aggregates: computeAggregates(filtered, now),
	}
}

func matches(v View, q Query) bool {
	if q.Feasibility != "" && v.Lead.Feasibility != q.Feasibility {
		return false
	}
	if q.Deposit != "" && v.Lead.Deposit != q.Deposit {
		return false
	}
	if q.Pipeline != "" && v.Meta.Pipeline != q.Pipeline {
		return false
	}
	switch q.Source {
	case SourceConfigurator:
		if !v.Lead.FromConfigurator() {
			return false
		}
	case SourceClassic:
		if v.Lead.FromConfigurator() {
			return false
		}
	}

	query := strings.ToLower(strings.TrimSpace(q.Search))
	if query == "" {
		return true
	}

	haystack := strings.ToLower(strings.Join([]string{
		v.Lead.Name,
		v.Lead.Email,
		v.Lead.Phone,
		v.Lead.CompanyName,
		v.Lead.ProjectType,
		v.Lead.Goal,
	}, " "))
	return strings.Contains(haystack, query)
}

func sortViews(views []View, order SortOrder) {
	if order == SortOldest {
		sort.SliceStable(views, func(i, j int) bool {
			return views[i].Lead.SubmittedAt.Before(views[j].Lead.SubmittedAt)
		})
		return
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Lead.SubmittedAt.After(views[j].Lead.SubmittedAt)
	})
}

func computeTotals(views []View) Totals {
	totals := Totals{
		Total:       len(views),
		Feasibility: map[domain.Feasibility]int{},
		Deposit:     map[domain.Deposit]int{},
	}
	for _, v := range views {
		totals.Feasibility[v.Lead.Feasibility]++
		totals.Deposit[v.Lead.Deposit]++
	}
	return totals
}

func computeAggregates(filtered []View, now time.Time) Aggregates {
	agg := Aggregates{Daily: emptyHistogram(now)}

	indexByDay := make(map[string]int, len(agg.Daily))
	for i, bucket := range agg.Daily {
		indexByDay[bucket.Key] = i
	}

	for _, v := range filtered {
		age := now.Sub(v.Lead.SubmittedAt)
		if age <= 24*time.Hour {
			agg.Last24h++
		}
		if age <= 7*24*time.Hour {
			agg.Last7d++
		}
		if age <= 30*24*time.Hour {
			agg.Last30d++
		}

		if v.Lead.Focus() == domain.FocusMobile {
			agg.MobileCount++
		} else {
			agg.WebCount++
		}

		if v.Lead.FromConfigurator() {
			agg.ConfiguratorCount++
		} else {
			agg.ClassicCount++
		}

		day := dayKey(v.Lead.SubmittedAt.In(now.Location()))
		if i, ok := indexByDay[day]; ok {
			agg.Daily[i].Count++
		}
	}

	agg.WebPct, agg.MobilePct = split(agg.WebCount, agg.MobileCount)
	agg.ConfiguratorPct, agg.ClassicPct = split(agg.ConfiguratorCount, agg.ClassicCount)

	return agg
}

// split yields rounded complementary percentages, 0/0 when empty.
func split(a, b int) (int, int) {
	total := a + b
	if total == 0 {
		return 0, 0
	}
	pa := int(math.Round(float64(a) / float64(total) * 100))
	return pa, 100 - pa
}

// emptyHistogram builds the trailing 30 local calendar days, oldest first,
// inclusive of today.
func emptyHistogram(now time.Time) []DayBucket {
	today := startOfDay(now)
	buckets := make([]DayBucket, histogramDays)
	for i := range buckets {
		date := today.AddDate(0, 0, -(histogramDays - 1 - i))
		buckets[i] = DayBucket{Date: date, Key: dayKey(date)}
	}
	return buckets
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

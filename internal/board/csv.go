package board

import (
	"strings"
)

// csvHeader is the fixed export column order. Changing it breaks the
// spreadsheets operators have built on top of the export.
var csvHeader = []string{
	"submittedAt",
	"name",
	"email",
	"phone",
	"clientType",
	"companyName",
	"projectType",
	"budget",
	"timeline",
	"projectFocus",
	"goal",
	"pages",
	"mobilePlatforms",
	"mobileFeatures",
	"storeSupport",
	"techPreferences",
	"inspirations",
	"message",
	"feasibility",
	"deposit",
	"pipeline",
}

// ExportCSV renders the given views as RFC 4180 CSV. Every field is quoted
// unconditionally with inner quotes doubled; always-quoting keeps the
// writer trivial and the output parseable by anything.
func ExportCSV(views []View) string {
	var sb strings.Builder

	writeRow(&sb, csvHeader)
	for _, v := range views {
		lead := v.Lead
		writeRow(&sb, []string{
			lead.SubmittedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			lead.Name,
			lead.Email,
			lead.Phone,
			string(lead.ClientType),
			lead.CompanyName,
			lead.ProjectType,
			lead.Budget,
			lead.Timeline,
			string(lead.Focus()),
			lead.Goal,
			strings.Join(lead.Pages, ", "),
			strings.Join(lead.MobilePlatforms, ", "),
			strings.Join(lead.MobileFeatures, ", "),
			lead.StoreSupport,
			lead.TechPreferences,
			lead.Inspirations,
			lead.Message,
			string(lead.Feasibility),
			string(lead.Deposit),
			string(v.Meta.Pipeline),
		})
	}

	return sb.String()
}

func writeRow(sb *strings.Builder, values []string) {
	for i, value := range values {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('"')
		sb.WriteString(strings.ReplaceAll(value, `"`, `""`))
		sb.WriteByte('"')
	}
	sb.WriteByte('\n')
}

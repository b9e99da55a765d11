package domain

import (
	"fmt"
	"strings"
	"time"
)

// Feasibility is the admin-assigned triage flag on a lead.
type Feasibility string

const (
	FeasibilityPending  Feasibility = "pending"
	FeasibilityFeasible Feasibility = "feasible"
	FeasibilityBlocked  Feasibility = "blocked"
)

func (f Feasibility) Valid() bool {
	switch f {
	case FeasibilityPending, FeasibilityFeasible, FeasibilityBlocked:
		return true
	}
	return false
}

// Deposit tracks payment/engagement progress on a lead.
type Deposit string

const (
	DepositNone    Deposit = "none"
	DepositPaid    Deposit = "deposit"
	DepositServers Deposit = "servers"
)

func (d Deposit) Valid() bool {
	switch d {
	case DepositNone, DepositPaid, DepositServers:
		return true
	}
	return false
}

type ProjectFocus string

const (
	FocusWeb    ProjectFocus = "web"
	FocusMobile ProjectFocus = "mobile"
)

type ClientType string

const (
	ClientCompany    ClientType = "company"
	ClientIndividual ClientType = "individual"
)

// Configurator holds the interactive configurator selections when the lead
// originated there. Its presence is what marks a lead as
// configurator-sourced on the triage board.
type Configurator struct {
	SiteType     string   `json:"siteType,omitempty"`
	Strategy     string   `json:"strategy,omitempty"`
	Mood         string   `json:"mood,omitempty"`
	Features     []string `json:"features,omitempty"`
	Integrations []string `json:"integrations,omitempty"`
}

// LeadRecord is a submitted quote/brief request.
//
// SubmittedAt is set once at creation and never changes. Feasibility and
// Deposit are the only server-mutable fields and default to pending/none.
type LeadRecord struct {
	ID          string    `json:"id,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`

	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	ClientType  ClientType `json:"clientType,omitempty"`
	CompanyName string     `json:"companyName,omitempty"`

	ProjectType     string       `json:"projectType"`
	Goal            string       `json:"goal"`
	Budget          string       `json:"budget"`
	Timeline        string       `json:"timeline"`
	ProjectFocus    ProjectFocus `json:"projectFocus,omitempty"`
	Pages           []string     `json:"pages,omitempty"`
	AIModules       []string     `json:"aiModules,omitempty"`
	MobilePlatforms []string     `json:"mobilePlatforms,omitempty"`
	MobileFeatures  []string     `json:"mobileFeatures,omitempty"`
	StoreSupport    string       `json:"storeSupport,omitempty"`
	TechPreferences string       `json:"techPreferences,omitempty"`
	Inspirations    string       `json:"inspirations,omitempty"`
	Message         string       `json:"message,omitempty"`

	Configurator *Configurator `json:"configurator,omitempty"`

	Feasibility Feasibility `json:"feasibility"`
	Deposit     Deposit     `json:"deposit"`
}

// Key returns the stable identity used to merge admin annotations and
// optimistic updates. A persisted ID always wins; otherwise the timestamp
// and best-available contact field form the fallback key.
func (l LeadRecord) Key() string {
	if l.ID != "" {
		return l.ID
	}
	who := l.Email
	if who == "" {
		who = l.Name
	}
	if who == "" {
		who = "unknown"
	}
	return fmt.Sprintf("%s-%s", l.SubmittedAt.UTC().Format(time.RFC3339), who)
}

// Focus normalizes the project focus; absent means web.
func (l LeadRecord) Focus() ProjectFocus {
	if l.ProjectFocus == FocusMobile {
		return FocusMobile
	}
	return FocusWeb
}

// FromConfigurator reports whether the lead came through the configurator
// rather than the classic quote form.
func (l LeadRecord) FromConfigurator() bool {
	return l.Configurator != nil
}

// Validate applies the submission rules the public endpoint enforces.
func (l LeadRecord) Validate() error {
	if len(strings.TrimSpace(l.Name)) < 2 {
		return fmt.Errorf("name: at least 2 characters required")
	}
	if !strings.Contains(l.Email, "@") {
		return fmt.Errorf("email: invalid address")
	}
	if len(strings.TrimSpace(l.ProjectType)) < 2 {
		return fmt.Errorf("projectType: at least 2 characters required")
	}
	if len(strings.TrimSpace(l.Goal)) < 5 {
		return fmt.Errorf("goal: at least 5 characters required")
	}
	if len(strings.TrimSpace(l.Budget)) < 2 {
		return fmt.Errorf("budget: at least 2 characters required")
	}
	if len(strings.TrimSpace(l.Timeline)) < 2 {
		return fmt.Errorf("timeline: at least 2 characters required")
	}
	if l.ClientType != "" && l.ClientType != ClientCompany && l.ClientType != ClientIndividual {
		return fmt.Errorf("clientType: must be company or individual")
	}
	if l.ClientType == ClientCompany && len(strings.TrimSpace(l.CompanyName)) < 2 {
		return fmt.Errorf("companyName: required for company clients")
	}

	switch l.Focus() {
	case FocusWeb:
		if len(l.Pages) == 0 {
			return fmt.Errorf("pages: at least one page is required")
		}
	case FocusMobile:
		if len(l.MobilePlatforms) == 0 {
			return fmt.Errorf("mobilePlatforms: at least one platform is required")
		}
	}

	return nil
}

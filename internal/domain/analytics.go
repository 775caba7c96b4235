package domain

import "time"

// raw analytics row as returned by the report source
type AnalyticsEvent struct {
	LeadToken           string `json:"lead_token"`
	Date                string `json:"date"`
	FirstUserCampaign   string `json:"first_user_campaign"`
	FirstUserCampaignID string `json:"first_user_campaign_id"`
	SessionSource       string `json:"session_source"`
	SessionMedium       string `json:"session_medium"`
	SessionCampaign     string `json:"session_campaign"`
	SessionCampaignID   string `json:"session_campaign_id"`
	Sessions            int    `json:"sessions"`
	EngagedSessions     int    `json:"engaged_sessions"`
	Keyword             string `json:"keyword,omitempty"`
	OperatingSystem     string `json:"operating_system,omitempty"`
}

// CanonicalLead is an analytics row that yielded a lead identifier, with
// campaigns normalized and the attribution decision applied.
type CanonicalLead struct {
	LeadToken             string    `json:"pnm_parameter"`
	Mobile                string    `json:"mobile"`
	Date                  time.Time `json:"date"`
	FirstUserCampaign     string    `json:"first_user_campaign"`
	FirstUserCampaignID   string    `json:"first_user_campaign_id"`
	SourceMedium          string    `json:"source_medium"`
	SessionCampaign       string    `json:"session_campaign"`
	SessionCampaignID     string    `json:"session_campaign_id"`
	Sessions              int       `json:"sessions"`
	EngagedSessions       int       `json:"engaged_sessions"`
	Keyword               string    `json:"keyword"`
	OperatingSystem       string    `json:"operating_system"`
	FinalSource           string    `json:"final_source"`
	FinalSourceCampaignID string    `json:"final_source_campaign_id"`
}

// Window is an inclusive date range at day granularity.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

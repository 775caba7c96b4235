// Package attribution reconciles analytics sessions and CRM opportunities
// into one attribution table and merges it into a previously persisted one.
// Everything here is pure: no I/O, no shared state.
package attribution

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"leadsync/internal/domain"
)

const (
	// SentinelNA replaces campaign values that carry no attribution signal.
	SentinelNA = "NA"

	FinalSourceOrganic = "FT_Organic"

	brandMarker = "Brand"
)

var leadIDPattern = regexp.MustCompile(`\d{10}`)

// placeholder names, city routing tags and GA pseudo-campaigns
var campaignNoise = map[string]struct{}{
	"(not set)": {}, "(direct)": {}, "(organic)": {}, "(referral)": {},
	"bangalore": {}, "surat": {}, "chennai": {}, "mumbai": {}, "kopar-khairane": {},
	"pune": {}, "indore": {}, "default_trucks_fare_estimate": {}, "jaipur": {},
	"shriramgroup_banner": {}, "default_fare_estimate_booking_flow": {},
	"default_home_2W": {}, "delhi": {}, "kolkata": {}, "hyderabad": {},
	"default_two_wheelers_fare_estimate": {}, "default_home_Trucks": {},
	"Open Targeting Bangalore Sept9th2024": {}, "ahmedabad": {}, "coimbatore": {},
	"invite_code": {}, "footer-links": {}, "Kochi": {}, "broker_network": {},
	"header-logo": {}, "geoID15": {}, "santacruz": {}, "vadavalli": {}, "south-delhi": {},
	"confirmation_instructions_parent": {}, "geoID7": {}, "Nagpur": {},
	"Referral_v2": {}, "peenya": {},
}

var knownOperatingSystems = map[string]struct{}{
	"iOS":     {},
	"Windows": {},
	"Android": {},
}

var eventDateFormats = []string{
	"20060102",
	"2006-01-02",
	time.RFC3339,
}

// ExtractLeadID returns the first run of ten consecutive digits in raw.
func ExtractLeadID(raw string) (string, bool) {
	id := leadIDPattern.FindString(raw)
	return id, id != ""
}

func NormalizeCampaign(value string) string {
	if _, noise := campaignNoise[value]; noise {
		return SentinelNA
	}
	return value
}

// ComputeFinalSource picks the campaign a lead is attributed to. Both inputs
// must already be normalized.
func ComputeFinalSource(firstTouch, sessionCampaign string) string {
	if firstTouch != SentinelNA {
		return firstTouch
	}
	if strings.Contains(sessionCampaign, brandMarker) {
		return FinalSourceOrganic
	}
	if sessionCampaign != SentinelNA {
		return sessionCampaign
	}
	return SentinelNA
}

// ComputeFinalSourceCampaignID returns the campaign id that belongs to the
// label ComputeFinalSource chose, or "" when the label is synthetic.
func ComputeFinalSourceCampaignID(firstTouch, sessionCampaign, firstTouchID, sessionCampaignID string) string {
	if firstTouch != SentinelNA {
		return firstTouchID
	}
	if strings.Contains(sessionCampaign, brandMarker) || sessionCampaign == SentinelNA {
		return ""
	}
	return sessionCampaignID
}

// BucketOperatingSystem keeps the known platforms and folds everything else,
// including an empty value, into "Others".
func BucketOperatingSystem(os string) string {
	if _, ok := knownOperatingSystems[os]; ok {
		return os
	}
	return "Others"
}

func SourceMedium(source, medium string) string {
	if source == "" && medium == "" {
		return ""
	}
	return source + " / " + medium
}

// ParseEventDate accepts the analytics compact form and ISO dates. The result
// is midnight UTC.
func ParseEventDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range eventDateFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized event date %q", value)
}

// SkipCounts tallies analytics rows dropped by Canonicalize, per reason.
type SkipCounts struct {
	NoLeadID int
	BadDate  int
}

func (c SkipCounts) Total() int {
	return c.NoLeadID + c.BadDate
}

// Canonicalize maps raw analytics rows to canonical leads. Rows without a lead
// identifier or with an unparseable date are dropped and counted in skipped.
func Canonicalize(events []domain.AnalyticsEvent) (leads []domain.CanonicalLead, skipped SkipCounts) {
	leads = make([]domain.CanonicalLead, 0, len(events))
	for _, ev := range events {
		mobile, ok := ExtractLeadID(ev.LeadToken)
		if !ok {
			skipped.NoLeadID++
			continue
		}
		date, err := ParseEventDate(ev.Date)
		if err != nil {
			skipped.BadDate++
			continue
		}

		firstTouch := NormalizeCampaign(ev.FirstUserCampaign)
		session := NormalizeCampaign(ev.SessionCampaign)

		leads = append(leads, domain.CanonicalLead{
			LeadToken:             ev.LeadToken,
			Mobile:                mobile,
			Date:                  date,
			FirstUserCampaign:     firstTouch,
			FirstUserCampaignID:   ev.FirstUserCampaignID,
			SourceMedium:          SourceMedium(ev.SessionSource, ev.SessionMedium),
			SessionCampaign:       session,
			SessionCampaignID:     ev.SessionCampaignID,
			Sessions:              ev.Sessions,
			EngagedSessions:       ev.EngagedSessions,
			Keyword:               ev.Keyword,
			OperatingSystem:       BucketOperatingSystem(ev.OperatingSystem),
			FinalSource:           ComputeFinalSource(firstTouch, session),
			FinalSourceCampaignID: ComputeFinalSourceCampaignID(firstTouch, session, ev.FirstUserCampaignID, ev.SessionCampaignID),
		})
	}
	return leads, skipped
}

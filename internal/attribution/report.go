package attribution

import (
	"time"

	"leadsync/internal/domain"
)

// FilterRecords applies the dashboard filters. Empty selections match
// everything; date bounds are inclusive at day granularity.
func FilterRecords(records []domain.MappedRecord, filter domain.RecordFilter) []domain.MappedRecord {
	campaigns := toSet(filter.Campaigns)
	sourceMediums := toSet(filter.SourceMediums)
	systems := toSet(filter.OperatingSystems)
	shiftingTypes := toSet(filter.ShiftingTypes)

	out := make([]domain.MappedRecord, 0, len(records))
	for _, rec := range records {
		if filter.From != nil && dayOf(rec.Date).Before(dayOf(*filter.From)) {
			continue
		}
		if filter.To != nil && dayOf(rec.Date).After(dayOf(*filter.To)) {
			continue
		}
		if !matches(campaigns, rec.FinalSource) ||
			!matches(sourceMediums, rec.SourceMedium) ||
			!matches(systems, rec.OperatingSystem) ||
			!matches(shiftingTypes, rec.ShiftingType) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Summarize counts distinct mobiles overall, converted and unmatched.
func Summarize(records []domain.MappedRecord) domain.Summary {
	leads := map[string]struct{}{}
	converted := map[string]struct{}{}
	notFound := map[string]struct{}{}

	for _, rec := range records {
		leads[rec.Mobile] = struct{}{}
		switch rec.Status {
		case domain.StatusConverted:
			converted[rec.Mobile] = struct{}{}
		case domain.StatusNotFound:
			notFound[rec.Mobile] = struct{}{}
		}
	}

	summary := domain.Summary{
		TotalLeads:  len(leads),
		Conversions: len(converted),
		NotFound:    len(notFound),
	}
	if summary.TotalLeads > 0 {
		summary.ConversionRate = float64(summary.Conversions) / float64(summary.TotalLeads) * 100
	}
	return summary
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func matches(set map[string]struct{}, value string) bool {
	if set == nil {
		return true
	}
	_, ok := set[value]
	return ok
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

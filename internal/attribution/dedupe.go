package attribution

import (
	"sort"
	"time"

	"leadsync/internal/domain"
)

// DedupeByPeriod keeps one record per (lead, year, bi-month period). better
// reports whether a should replace the current survivor b; on ties the record
// seen first is kept. The result is sorted by date, oldest first.
func DedupeByPeriod[T any](records []T, mobile func(T) string, date func(T) time.Time, better func(a, b T) bool) []T {
	if len(records) == 0 {
		return []T{}
	}

	index := make(map[domain.PeriodKey]int, len(records))
	survivors := make([]T, 0, len(records))

	for _, rec := range records {
		key := PeriodKeyOf(mobile(rec), date(rec))
		i, seen := index[key]
		if !seen {
			index[key] = len(survivors)
			survivors = append(survivors, rec)
			continue
		}
		if better(rec, survivors[i]) {
			survivors[i] = rec
		}
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return date(survivors[i]).Before(date(survivors[j]))
	})
	return survivors
}

// DedupeAnalytics keeps the earliest touch per lead and period.
func DedupeAnalytics(leads []domain.CanonicalLead) []domain.CanonicalLead {
	return DedupeByPeriod(leads,
		func(l domain.CanonicalLead) string { return l.Mobile },
		func(l domain.CanonicalLead) time.Time { return l.Date },
		func(a, b domain.CanonicalLead) bool { return a.Date.Before(b.Date) },
	)
}

// DedupeCRM keeps the most advanced status per lead and period, and the most
// recent record among equally advanced ones.
func DedupeCRM(records []domain.CRMRecord) []domain.CRMRecord {
	return DedupeByPeriod(records,
		func(r domain.CRMRecord) string { return r.Mobile },
		func(r domain.CRMRecord) time.Time { return r.CreatedDate },
		func(a, b domain.CRMRecord) bool {
			pa, pb := a.Status.Priority(), b.Status.Priority()
			if pa != pb {
				return pa > pb
			}
			return a.CreatedDate.After(b.CreatedDate)
		},
	)
}

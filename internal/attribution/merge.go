package attribution

import (
	"leadsync/internal/domain"
)

type MergeResult struct {
	Records       []domain.MappedRecord
	NewRecords    int
	StatusUpdates int
}

// Merge reconciles freshly computed records against the persisted table,
// keyed by (mobile, month, year):
//   - keys only in incoming are added and counted as new;
//   - keys only in existing are kept untouched;
//   - keys in both keep the side with the later date, incoming on ties, and
//     count a status update when incoming wins with a different status.
//
// The result replaces the whole persisted table.
func Merge(incoming, existing []domain.MappedRecord) (MergeResult, error) {
	if err := validateKeys("new", incoming); err != nil {
		return MergeResult{}, err
	}
	if err := validateKeys("existing", existing); err != nil {
		return MergeResult{}, err
	}

	if len(existing) == 0 {
		return MergeResult{Records: incoming, NewRecords: len(incoming)}, nil
	}

	newKeys, newGroups := groupByKey(incoming)
	_, existingGroups := groupByKey(existing)

	result := MergeResult{Records: make([]domain.MappedRecord, 0, len(incoming)+len(existing))}

	for _, key := range newKeys {
		if _, overlap := existingGroups[key]; overlap {
			continue
		}
		result.NewRecords++
		for _, i := range newGroups[key] {
			result.Records = append(result.Records, incoming[i])
		}
	}

	for _, rec := range existing {
		if _, overlap := newGroups[rec.Key()]; !overlap {
			result.Records = append(result.Records, rec)
		}
	}

	for _, key := range newKeys {
		existingRows, overlap := existingGroups[key]
		if !overlap {
			continue
		}
		newRep := latest(incoming, newGroups[key])
		oldRep := latest(existing, existingRows)

		if newRep.Date.Before(oldRep.Date) {
			for _, i := range existingRows {
				result.Records = append(result.Records, existing[i])
			}
			continue
		}
		if newRep.Status != oldRep.Status {
			result.StatusUpdates++
		}
		for _, i := range newGroups[key] {
			result.Records = append(result.Records, incoming[i])
		}
	}

	return result, nil
}

func validateKeys(side string, records []domain.MappedRecord) error {
	for i, rec := range records {
		var missing []string
		if rec.Mobile == "" {
			missing = append(missing, domain.ColumnMobile)
		}
		if rec.Month < 1 || rec.Month > 12 {
			missing = append(missing, domain.ColumnMonth)
		}
		if rec.Year <= 0 {
			missing = append(missing, domain.ColumnYear)
		}
		if len(missing) > 0 {
			return &domain.MergeSchemaError{Side: side, Row: i, Missing: missing}
		}
	}
	return nil
}

// groupByKey returns the distinct keys in first-seen order and the row
// indexes for each key.
func groupByKey(records []domain.MappedRecord) ([]domain.CompositeKey, map[domain.CompositeKey][]int) {
	var order []domain.CompositeKey
	groups := make(map[domain.CompositeKey][]int, len(records))
	for i, rec := range records {
		key := rec.Key()
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}
	return order, groups
}

// latest returns the row with the greatest date among rows; the first such
// row on ties.
func latest(records []domain.MappedRecord, rows []int) domain.MappedRecord {
	best := records[rows[0]]
	for _, i := range rows[1:] {
		if records[i].Date.After(best.Date) {
			best = records[i]
		}
	}
	return best
}

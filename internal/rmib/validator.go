package rmib

import (
	"sort"

	"github.com/stemsi/exstem-rmib/internal/model"
)

// Validator enforces per-entry range and, in rank mode, cross-entry
// uniqueness. It holds no assignment of its own.
type Validator struct {
	mode       Mode
	categories []model.Category
	known      map[string]struct{}
}

// NewValidator creates a Validator for the given mode and catalog.
func NewValidator(mode Mode, categories []model.Category) *Validator {
	known := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		known[c.Key] = struct{}{}
	}
	return &Validator{mode: mode, categories: categories, known: known}
}

// MaxValue is the highest accepted value: the category count for ranks,
// MaxLevel for levels.
func (v *Validator) MaxValue() int {
	if v.mode == ModeRank {
		return len(v.categories)
	}
	return MaxLevel
}

// CheckEntry validates a single write before it is applied.
func (v *Validator) CheckEntry(key string, value int) error {
	if _, ok := v.known[key]; !ok {
		return invalid(Issue{Code: IssueUnknownCategory, Category: key})
	}
	if value < MinValue || value > v.MaxValue() {
		return invalid(Issue{Code: IssueOutOfRange, Category: key, Value: value})
	}
	return nil
}

// Check is the real-time pass over the current entries. Every holder of a
// duplicated rank is flagged, not only the most recent one.
func (v *Validator) Check(values map[string]int) []Issue {
	var issues []Issue

	holders := v.holders(values)
	for _, c := range v.categories {
		value, ok := values[c.Key]
		if !ok {
			continue
		}
		if value < MinValue || value > v.MaxValue() {
			issues = append(issues, Issue{Code: IssueOutOfRange, Category: c.Key, Value: value})
			continue
		}
		if v.mode == ModeRank && len(holders[value]) > 1 {
			issues = append(issues, Issue{Code: IssueDuplicate, Category: c.Key, Value: value})
		}
	}

	return append(issues, v.unknown(values)...)
}

// Final is the pre-submit check. In rank mode value findings are reported in
// ascending value order, then unfilled categories in declaration order.
func (v *Validator) Final(values map[string]int) error {
	if v.mode == ModeLevel {
		return v.finalLevels(values)
	}
	return v.finalRanks(values)
}

func (v *Validator) finalLevels(values map[string]int) error {
	var issues []Issue
	for _, c := range v.categories {
		value, ok := values[c.Key]
		switch {
		case !ok:
			issues = append(issues, Issue{Code: IssueUnfilled, Category: c.Key})
		case value < MinValue || value > MaxLevel:
			issues = append(issues, Issue{Code: IssueOutOfRange, Category: c.Key, Value: value})
		}
	}
	issues = append(issues, v.unknown(values)...)
	if len(issues) > 0 {
		return invalid(issues...)
	}
	return nil
}

func (v *Validator) finalRanks(values map[string]int) error {
	n := len(v.categories)
	holders := v.holders(values)

	var byValue []Issue
	for value := MinValue; value <= n; value++ {
		hs := holders[value]
		switch {
		case len(hs) == 0:
			byValue = append(byValue, Issue{Code: IssueMissingValue, Value: value})
		case len(hs) > 1:
			for _, key := range hs {
				byValue = append(byValue, Issue{Code: IssueDuplicate, Category: key, Value: value})
			}
		}
	}
	for _, c := range v.categories {
		if value, ok := values[c.Key]; ok && (value < MinValue || value > n) {
			byValue = append(byValue, Issue{Code: IssueOutOfRange, Category: c.Key, Value: value})
		}
	}
	sort.SliceStable(byValue, func(i, j int) bool { return byValue[i].Value < byValue[j].Value })

	issues := byValue
	for _, c := range v.categories {
		if _, ok := values[c.Key]; !ok {
			issues = append(issues, Issue{Code: IssueUnfilled, Category: c.Key})
		}
	}
	issues = append(issues, v.unknown(values)...)

	if len(issues) > 0 {
		return invalid(issues...)
	}
	return nil
}

// checkLoaded guards a wholesale replacement from the progress store.
// Partial assignments pass; anything the session could not have produced
// itself is rejected.
func (v *Validator) checkLoaded(values map[string]int) error {
	if issues := v.Check(values); len(issues) > 0 {
		return &DataIntegrityError{Op: "load", Message: issues[0].Message()}
	}
	return nil
}

// holders maps each value to the categories holding it, in declaration order.
func (v *Validator) holders(values map[string]int) map[int][]string {
	out := make(map[int][]string, len(values))
	for _, c := range v.categories {
		if value, ok := values[c.Key]; ok {
			out[value] = append(out[value], c.Key)
		}
	}
	return out
}

func (v *Validator) unknown(values map[string]int) []Issue {
	var keys []string
	for key := range values {
		if _, ok := v.known[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	issues := make([]Issue, 0, len(keys))
	for _, key := range keys {
		issues = append(issues, Issue{Code: IssueUnknownCategory, Category: key})
	}
	return issues
}

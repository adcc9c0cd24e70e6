package sql

import "github.com/ekaya-inc/ekaya-typestore/pkg/models"

// Clamp computes the effective page of a search over count matching rows.
//
// A nil limit takes the configured default. Any limit other than
// models.NoLimit is clamped into [Min, Max]. The offset is snapped down to a
// multiple of the limit and capped at the start of the last non-empty page.
// With no limit every row is returned from offset zero.
func Clamp(count int64, offset int, limit *int, settings models.LimitSettings) (int, int) {
	l := settings.Default
	if limit != nil {
		l = *limit
	}
	if l == models.NoLimit {
		return 0, models.NoLimit
	}
	l = ClampLimit(l, settings)

	if offset <= 0 || count <= 0 {
		return 0, l
	}

	offset -= offset % l
	pages := count / int64(l)
	if pages > 0 && count%int64(l) == 0 {
		pages--
	}
	if last := pages * int64(l); int64(offset) > last {
		offset = int(last)
	}
	return offset, l
}

// ClampLimit brings an explicit limit into [Min, Max], and never below one.
func ClampLimit(limit int, settings models.LimitSettings) int {
	if limit < settings.Min {
		limit = settings.Min
	}
	if limit > settings.Max {
		limit = settings.Max
	}
	if limit <= 0 {
		limit = 1
	}
	return limit
}

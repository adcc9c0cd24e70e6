package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

var limits = models.LimitSettings{Default: 20, Min: 5, Max: 100}

func TestClamp(t *testing.T) {
	tests := []struct {
		name       string
		count      int64
		offset     int
		limit      *int
		wantOffset int
		wantLimit  int
	}{
		{"default limit", 50, 0, nil, 0, 20},
		{"below min", 50, 0, models.LimitPtr(2), 0, 5},
		{"above max", 500, 0, models.LimitPtr(1000), 0, 100},
		{"snap down", 100, 25, models.LimitPtr(10), 20, 10},
		{"cap at last page", 45, 90, models.LimitPtr(10), 40, 10},
		{"exact multiple steps back one page", 40, 90, models.LimitPtr(10), 30, 10},
		{"offset beyond single page", 7, 50, models.LimitPtr(10), 0, 10},
		{"negative offset", 50, -10, models.LimitPtr(10), 0, 10},
		{"no limit", 50, 30, models.LimitPtr(models.NoLimit), 0, models.NoLimit},
		{"empty result", 0, 30, models.LimitPtr(10), 0, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, limit := Clamp(tt.count, tt.offset, tt.limit, limits)
			assert.Equal(t, tt.wantOffset, offset)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 5, ClampLimit(0, limits))
	assert.Equal(t, 5, ClampLimit(-3, limits))
	assert.Equal(t, 42, ClampLimit(42, limits))
	assert.Equal(t, 100, ClampLimit(1000, limits))
	assert.Equal(t, 1, ClampLimit(0, models.LimitSettings{}))
}

func TestClamp_Properties(t *testing.T) {
	for count := int64(0); count < 120; count += 7 {
		for _, requested := range []int{1, 5, 9, 20, 33, 100, 250} {
			for offset := 0; offset < 300; offset += 13 {
				o, l := Clamp(count, offset, models.LimitPtr(requested), limits)
				assert.GreaterOrEqual(t, l, limits.Min)
				assert.LessOrEqual(t, l, limits.Max)
				assert.Zero(t, o%l, "count=%d limit=%d offset=%d", count, requested, offset)

				last := (count / int64(l)) * int64(l)
				if count > 0 && count%int64(l) == 0 {
					last -= int64(l)
				}
				assert.LessOrEqual(t, int64(o), max(last, 0))
			}
		}
	}
}

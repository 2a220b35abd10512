package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeWindow_Validate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		window  TimeWindow
		wantErr bool
	}{
		{"valid window", TimeWindow{From: now.Add(-time.Hour), To: now}, false},
		{"same instant", TimeWindow{From: now, To: now}, false},
		{"missing from", TimeWindow{To: now}, true},
		{"missing to", TimeWindow{From: now}, true},
		{"inverted", TimeWindow{From: now, To: now.Add(-time.Minute)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.window.Validate()
			if tt.wantErr {
				assert.True(t, IsCode(err, CodeValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTimeWindow_Contains(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	w := TimeWindow{From: from, To: from.Add(24 * time.Hour)}

	assert.True(t, w.Contains(from))
	assert.True(t, w.Contains(from.Add(24*time.Hour)))
	assert.False(t, w.Contains(from.Add(-time.Second)))
}

func TestFilter_WithDoesNotMutateOriginal(t *testing.T) {
	base := DefaultFilter()
	next := base.With("store", "retail")

	assert.Empty(t, base.Filters)
	assert.Equal(t, "retail", next.Filters["store"])
	assert.Equal(t, 0, base.Offset())

	base.Page = 3
	assert.Equal(t, 40, base.Offset())
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2}, 21, 1, 10)
	assert.Equal(t, 3, p.TotalPages)

	empty := NewPaginated[int](nil, 0, 1, 0)
	assert.Equal(t, 0, empty.TotalPages)
}

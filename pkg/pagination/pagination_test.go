package pagination

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		limit, offset int
		want          Params
	}{
		{"defaults", 0, 0, Params{Limit: DefaultLimit, Offset: 0}},
		{"custom", 50, 10, Params{Limit: 50, Offset: 10}},
		{"limit capped", 500, 0, Params{Limit: MaxLimit, Offset: 0}},
		{"negative limit", -5, 0, Params{Limit: DefaultLimit, Offset: 0}},
		{"negative offset", 10, -3, Params{Limit: 10, Offset: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.limit, tt.offset); got != tt.want {
				t.Errorf("New(%d, %d) = %+v, want %+v", tt.limit, tt.offset, got, tt.want)
			}
		})
	}
}

func TestParams_SQL(t *testing.T) {
	if got := (Params{Limit: 20, Offset: 40}).SQL(); got != "LIMIT 20 OFFSET 40" {
		t.Errorf("SQL() = %q", got)
	}
}

func TestParams_HasNext(t *testing.T) {
	p := Params{Limit: 10, Offset: 0}
	if !p.HasNext(11) {
		t.Error("expected a next page for 11 results")
	}
	if p.HasNext(10) {
		t.Error("expected no next page for 10 results")
	}
	if p.NextOffset() != 10 {
		t.Errorf("NextOffset() = %d, want 10", p.NextOffset())
	}
}

func TestNewPage(t *testing.T) {
	page := NewPage([]string{"a", "b"}, 5, Params{Limit: 2, Offset: 2})
	if !page.HasMore {
		t.Error("expected HasMore")
	}
	if len(page.Items) != 2 || page.Total != 5 {
		t.Errorf("unexpected page: %+v", page)
	}

	empty := NewPage[string](nil, 0, New(0, 0))
	if empty.Items == nil {
		t.Error("expected non-nil empty items")
	}
	if empty.HasMore {
		t.Error("expected no more results")
	}
}

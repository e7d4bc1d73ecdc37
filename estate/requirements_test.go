package estate

import (
	"testing"
)

func f64(v float64) *float64 { return &v }
func i(v int) *int           { return &v }

func TestRequirementsComplete(t *testing.T) {
	tests := []struct {
		name string
		req  *Requirements
		want bool
	}{
		{
			name: "nil requirements",
			req:  nil,
			want: false,
		},
		{
			name: "empty requirements",
			req:  &Requirements{},
			want: false,
		},
		{
			name: "all mandatory fields",
			req: &Requirements{
				BudgetMax: f64(500000),
				Bedrooms:  i(3),
				Bathrooms: i(2),
				Location:  "Austin, TX",
			},
			want: true,
		},
		{
			name: "budget min alone does not satisfy budget",
			req: &Requirements{
				BudgetMin: f64(300000),
				Bedrooms:  i(3),
				Bathrooms: i(2),
				Location:  "Austin, TX",
			},
			want: false,
		},
		{
			name: "missing location",
			req: &Requirements{
				BudgetMax: f64(500000),
				Bedrooms:  i(3),
				Bathrooms: i(2),
			},
			want: false,
		},
		{
			name: "zero bedrooms explicitly provided counts",
			req: &Requirements{
				BudgetMax: f64(200000),
				Bedrooms:  i(0),
				Bathrooms: i(1),
				Location:  "Detroit, MI",
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.Complete(); got != tt.want {
				t.Errorf("Complete() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequirementsMissing(t *testing.T) {
	req := &Requirements{
		BudgetMax: f64(400000),
		Location:  "Seattle, WA",
	}
	missing := req.Missing()
	if len(missing) != 2 {
		t.Fatalf("Missing() = %v, want 2 entries", missing)
	}
	if missing[0] != "bedrooms" || missing[1] != "bathrooms" {
		t.Errorf("Missing() = %v, want [bedrooms bathrooms]", missing)
	}
}

func TestRequirementsMerge(t *testing.T) {
	base := &Requirements{
		BudgetMax: f64(500000),
		Location:  "Austin, TX",
	}
	base.Merge(&Requirements{
		Bedrooms:  i(3),
		Bathrooms: i(2),
	})

	if !base.Complete() {
		t.Fatal("expected merged requirements to be complete")
	}
	if base.Location != "Austin, TX" {
		t.Errorf("Merge erased location: %q", base.Location)
	}

	// A later turn refines the budget without touching other fields.
	base.Merge(&Requirements{BudgetMax: f64(450000)})
	if *base.BudgetMax != 450000 {
		t.Errorf("BudgetMax = %v, want 450000", *base.BudgetMax)
	}
	if *base.Bedrooms != 3 {
		t.Errorf("Bedrooms = %v, want 3", *base.Bedrooms)
	}

	// Merging nil is a no-op.
	base.Merge(nil)
	if !base.Complete() {
		t.Error("Merge(nil) changed state")
	}
}

package estate

import "fmt"

// Requirements holds the structured search criteria collected from the user
// during the requirements-gathering phase. Fields are pointers so that
// "not yet provided" is distinguishable from a zero value the user actually
// asked for.
type Requirements struct {
	BudgetMin      *float64 `json:"budget_min,omitempty"`
	BudgetMax      *float64 `json:"budget_max,omitempty"`
	Bedrooms       *int     `json:"bedrooms,omitempty"`
	Bathrooms      *int     `json:"bathrooms,omitempty"`
	Location       string   `json:"location,omitempty"`
	AdditionalInfo string   `json:"additional_info,omitempty"`
}

// Complete reports whether enough has been collected to start a search.
// Budget maximum, bedrooms, bathrooms, and location are mandatory; budget
// minimum and additional notes are optional.
func (r *Requirements) Complete() bool {
	if r == nil {
		return false
	}
	return r.BudgetMax != nil && r.Bedrooms != nil && r.Bathrooms != nil && r.Location != ""
}

// Missing lists the mandatory fields still absent, in a stable order.
func (r *Requirements) Missing() []string {
	var missing []string
	if r == nil {
		return []string{"budget_max", "bedrooms", "bathrooms", "location"}
	}
	if r.BudgetMax == nil {
		missing = append(missing, "budget_max")
	}
	if r.Bedrooms == nil {
		missing = append(missing, "bedrooms")
	}
	if r.Bathrooms == nil {
		missing = append(missing, "bathrooms")
	}
	if r.Location == "" {
		missing = append(missing, "location")
	}
	return missing
}

// Merge overlays the non-empty fields of other onto r. Later scoping turns
// refine earlier ones without erasing what was already collected.
func (r *Requirements) Merge(other *Requirements) {
	if other == nil {
		return
	}
	if other.BudgetMin != nil {
		r.BudgetMin = other.BudgetMin
	}
	if other.BudgetMax != nil {
		r.BudgetMax = other.BudgetMax
	}
	if other.Bedrooms != nil {
		r.Bedrooms = other.Bedrooms
	}
	if other.Bathrooms != nil {
		r.Bathrooms = other.Bathrooms
	}
	if other.Location != "" {
		r.Location = other.Location
	}
	if other.AdditionalInfo != "" {
		r.AdditionalInfo = other.AdditionalInfo
	}
}

// Summary renders the collected criteria as a single human-readable line
// for status messages and worker prompts.
func (r *Requirements) Summary() string {
	if r == nil {
		return "no criteria"
	}
	budget := "any budget"
	switch {
	case r.BudgetMin != nil && r.BudgetMax != nil:
		budget = fmt.Sprintf("$%.0f-$%.0f", *r.BudgetMin, *r.BudgetMax)
	case r.BudgetMax != nil:
		budget = fmt.Sprintf("up to $%.0f", *r.BudgetMax)
	}
	beds := "any beds"
	if r.Bedrooms != nil {
		beds = fmt.Sprintf("%dbd", *r.Bedrooms)
	}
	baths := "any baths"
	if r.Bathrooms != nil {
		baths = fmt.Sprintf("%dba", *r.Bathrooms)
	}
	loc := r.Location
	if loc == "" {
		loc = "anywhere"
	}
	return fmt.Sprintf("%s, %s/%s in %s", budget, beds, baths, loc)
}

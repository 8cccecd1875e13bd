package dictionary

// CategoryDef is one curated expense category offered to clients.
type CategoryDef struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

var curated = []CategoryDef{
	{Code: "rent", Label: "Rent"},
	{Code: "salaries", Label: "Salaries"},
	{Code: "utilities", Label: "Utilities"},
	{Code: "supplies", Label: "Supplies"},
	{Code: "transport", Label: "Transport"},
	{Code: "hospitality", Label: "Hospitality"},
	{Code: "maintenance", Label: "Maintenance"},
	{Code: "bank_fees", Label: "Bank Fees"},
	{Code: "taxes", Label: "Taxes"},
	{Code: "general", Label: "General"},
}

// Categories returns the curated expense categories. Free-form categories are
// still accepted; the list only powers client suggestions.
func Categories() []CategoryDef {
	out := make([]CategoryDef, len(curated))
	copy(out, curated)
	return out
}

// IsKnown reports whether code is one of the curated categories.
func IsKnown(code string) bool {
	for _, c := range curated {
		if c.Code == code {
			return true
		}
	}
	return false
}

package models

// HabitKindInfo describes a habit kind for the catalog endpoint.
type HabitKindInfo struct {
	Name        HabitKind `json:"name"`
	Description string    `json:"description"`
	Unit        string    `json:"unit"`
}

var habitCatalog = []HabitKindInfo{
	{HabitRecycling, "Recycling helps reduce waste by converting materials into reusable objects.", "kg"},
	{HabitComposting, "Composting turns organic waste into valuable fertilizer for your garden.", "kg"},
	{HabitEnergyUsage, "Energy conservation reduces your carbon footprint and saves on utility bills.", "kWh"},
	{HabitWaterConservation, "Saving water helps preserve our planet's most vital resource.", "liters"},
	{HabitReusableBags, "Using reusable bags reduces plastic waste and pollution.", "bags"},
}

// HabitCatalog returns every supported habit kind in display order.
func HabitCatalog() []HabitKindInfo {
	out := make([]HabitKindInfo, len(habitCatalog))
	copy(out, habitCatalog)
	return out
}

// LookupHabitKind returns catalog data for a kind.
func LookupHabitKind(kind HabitKind) (HabitKindInfo, bool) {
	for _, info := range habitCatalog {
		if info.Name == kind {
			return info, true
		}
	}
	return HabitKindInfo{}, false
}

// UnitFor returns the unit convention for a kind, or "" if the kind is unknown.
func UnitFor(kind HabitKind) string {
	info, _ := LookupHabitKind(kind)
	return info.Unit
}

// Valid reports whether k is a supported habit kind.
func (k HabitKind) Valid() bool {
	_, ok := LookupHabitKind(k)
	return ok
}

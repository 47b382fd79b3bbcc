package listing

import "slices"

// Field names a persisted attribute of a Listing.
type Field string

const (
	FieldURL     Field = "url"
	FieldTitle   Field = "title"
	FieldRent    Field = "rent"
	FieldArea    Field = "area"
	FieldAddress Field = "address"

	FieldAIElapsedTime     Field = "ai_elapsed_time"
	FieldAISelectorTime    Field = "ai_selector_time"
	FieldAIMemoryUsage     Field = "ai_memory_usage"
	FieldManualElapsedTime Field = "manual_elapsed_time"
	FieldManualMemoryUsage Field = "manual_memory_usage"
)

// DescriptiveFields are written by every strategy; the latest scrape wins.
var DescriptiveFields = []Field{FieldTitle, FieldRent, FieldArea, FieldAddress}

var owned = map[Strategy][]Field{
	StrategyAI:     {FieldAIElapsedTime, FieldAISelectorTime, FieldAIMemoryUsage},
	StrategyManual: {FieldManualElapsedTime, FieldManualMemoryUsage},
}

// OwnedFields returns the telemetry fields only the given strategy may write.
func OwnedFields(s Strategy) []Field {
	return slices.Clone(owned[s])
}

// Owner returns the strategy owning f, or false for shared fields.
func Owner(f Field) (Strategy, bool) {
	for s, fields := range owned {
		if slices.Contains(fields, f) {
			return s, true
		}
	}
	return "", false
}

// Fields returns the set of fields a Scraped result carries: the URL, the
// descriptive fields, and the telemetry owned by its strategy. Fields owned
// by the other strategy are never part of the set.
func (s *Scraped) Fields() []Field {
	fields := make([]Field, 0, 1+len(DescriptiveFields)+3)
	fields = append(fields, FieldURL)
	fields = append(fields, DescriptiveFields...)
	fields = append(fields, owned[s.Strategy]...)
	return fields
}

// Listing converts a scrape result into a record holding exactly the fields
// returned by Fields.
func (s *Scraped) Listing() Listing {
	l := Listing{
		URL:     s.URL,
		Title:   s.Title,
		Rent:    s.Rent,
		Area:    s.Area,
		Address: s.Address,
	}
	switch s.Strategy {
	case StrategyAI:
		l.AIElapsedTime = Ptr(s.ElapsedTime)
		l.AISelectorTime = s.SelectorTime
		l.AIMemoryUsage = Ptr(s.MemoryUsage)
	case StrategyManual:
		l.ManualElapsedTime = Ptr(s.ElapsedTime)
		l.ManualMemoryUsage = Ptr(s.MemoryUsage)
	}
	return l
}

// Merge overlays the fields carried by s onto a copy of existing. The ID of
// existing is kept and every field outside s.Fields() is left untouched.
func Merge(existing Listing, s *Scraped) Listing {
	incoming := s.Listing()
	merged := existing
	for _, f := range s.Fields() {
		merged.copyField(f, &incoming)
	}
	return merged
}

func (l *Listing) copyField(f Field, src *Listing) {
	switch f {
	case FieldURL:
		l.URL = src.URL
	case FieldTitle:
		l.Title = src.Title
	case FieldRent:
		l.Rent = src.Rent
	case FieldArea:
		l.Area = src.Area
	case FieldAddress:
		l.Address = src.Address
	case FieldAIElapsedTime:
		l.AIElapsedTime = src.AIElapsedTime
	case FieldAISelectorTime:
		l.AISelectorTime = src.AISelectorTime
	case FieldAIMemoryUsage:
		l.AIMemoryUsage = src.AIMemoryUsage
	case FieldManualElapsedTime:
		l.ManualElapsedTime = src.ManualElapsedTime
	case FieldManualMemoryUsage:
		l.ManualMemoryUsage = src.ManualMemoryUsage
	}
}

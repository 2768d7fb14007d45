package selection

type Field string

const (
	FieldVehicle Field = "vehicle"
	FieldDate    Field = "date"
	FieldBranch  Field = "branch"
	FieldService Field = "service"
	FieldBay     Field = "bay"
	FieldTime    Field = "time"
)

// Fields lists every field in the order results and clarifications are reported.
var Fields = []Field{FieldVehicle, FieldDate, FieldBranch, FieldService, FieldBay, FieldTime}

type Kind string

const (
	ByName    Kind = "BY_NAME"
	ByIndex   Kind = "BY_INDEX"
	ByKeyword Kind = "BY_KEYWORD"
)

// Extracted is what the language model pulled out of one turn for one field.
type Extracted struct {
	Value      string  `json:"value,omitempty"`
	RawText    string  `json:"rawText,omitempty"`
	Confidence float64 `json:"confidence"`
	Kind       Kind    `json:"selectionKind,omitempty"`
}

func (e *Extracted) empty() bool {
	return e == nil || (e.Value == "" && e.RawText == "")
}

// Extraction is a possibly partial selection. Nil fields were not mentioned.
type Extraction struct {
	Vehicle *Extracted `json:"vehicle,omitempty"`
	Date    *Extracted `json:"date,omitempty"`
	Branch  *Extracted `json:"branch,omitempty"`
	Service *Extracted `json:"service,omitempty"`
	Bay     *Extracted `json:"bay,omitempty"`
	Time    *Extracted `json:"time,omitempty"`
}

func (x Extraction) get(f Field) *Extracted {
	switch f {
	case FieldVehicle:
		return x.Vehicle
	case FieldDate:
		return x.Date
	case FieldBranch:
		return x.Branch
	case FieldService:
		return x.Service
	case FieldBay:
		return x.Bay
	case FieldTime:
		return x.Time
	}
	return nil
}

// Option is one choice previously shown to the user.
type Option struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords,omitempty"`
}

// OptionSets holds the choices currently visible in the conversation, in display order.
type OptionSets struct {
	Vehicles  []Option `json:"vehicles,omitempty"`
	Dates     []Option `json:"dates,omitempty"`
	Branches  []Option `json:"branches,omitempty"`
	Services  []Option `json:"services,omitempty"`
	Bays      []Option `json:"bays,omitempty"`
	TimeSlots []Option `json:"timeSlots,omitempty"`
}

func (s OptionSets) For(f Field) []Option {
	switch f {
	case FieldVehicle:
		return s.Vehicles
	case FieldDate:
		return s.Dates
	case FieldBranch:
		return s.Branches
	case FieldService:
		return s.Services
	case FieldBay:
		return s.Bays
	case FieldTime:
		return s.TimeSlots
	}
	return nil
}

// Merge overlays the non-empty sets of newer on s.
func (s OptionSets) Merge(newer OptionSets) OptionSets {
	pick := func(old, fresh []Option) []Option {
		if len(fresh) > 0 {
			return fresh
		}
		return old
	}
	return OptionSets{
		Vehicles:  pick(s.Vehicles, newer.Vehicles),
		Dates:     pick(s.Dates, newer.Dates),
		Branches:  pick(s.Branches, newer.Branches),
		Services:  pick(s.Services, newer.Services),
		Bays:      pick(s.Bays, newer.Bays),
		TimeSlots: pick(s.TimeSlots, newer.TimeSlots),
	}
}

type Method string

const (
	MethodID        Method = "id"
	MethodName      Method = "name"
	MethodOrdinal   Method = "ordinal"
	MethodKeyword   Method = "keyword"
	MethodExtractor Method = "extractor"
)

// FieldResult reports how one attempted field was resolved, or why it was not.
type FieldResult struct {
	Field      Field    `json:"field"`
	Resolved   bool     `json:"resolved"`
	Option     *Option  `json:"option,omitempty"`
	Method     Method   `json:"method,omitempty"`
	Confidence float64  `json:"confidence"`
	Candidates []Option `json:"candidates,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// Outcome is the verdict for one turn. NeedsClarification is the complement of Accepted
// whenever anything was attempted.
type Outcome struct {
	Accepted             bool             `json:"accepted"`
	NeedsClarification   bool             `json:"needsClarification"`
	Confidence           float64          `json:"confidence"`
	Resolved             map[Field]Option `json:"resolvedFields"`
	Fields               []FieldResult    `json:"fields"`
	ClarificationMessage string           `json:"clarificationMessage,omitempty"`
}

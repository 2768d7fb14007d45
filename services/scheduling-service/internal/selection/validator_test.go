package selection

import (
	"strings"
	"testing"
)

var vehicles = []Option{
	{ID: "veh-1", Name: "Honda Civic 51A-12345"},
	{ID: "veh-2", Name: "Toyota Vios 51G-67890"},
	{ID: "veh-3", Name: "Mazda CX-5 30F-11111"},
}

var bays = []Option{
	{ID: "bay-1", Name: "Bay 1", Keywords: []string{"cửa trước"}},
	{ID: "bay-2", Name: "Bay 2"},
}

func TestParseOrdinal(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"xe thứ 2", 2, true},
		{"xe thu 2", 2, true},
		{"Xe Thứ Hai", 2, true},
		{"số 3", 3, true},
		{"#1", 1, true},
		{"the 2nd one", 2, true},
		{"3", 3, true},
		{"the first", 1, true},
		{"cái cuối", lastOrdinal, true},
		{"the last one", lastOrdinal, true},
		{"toyota", 0, false},
		{"10:00", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseOrdinal(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("parseOrdinal(%q) = %d,%v want %d,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestValidateOrdinalVehicle(t *testing.T) {
	v := NewValidator(DefaultThreshold)
	out := v.Validate(Extraction{
		Vehicle: &Extracted{RawText: "xe thứ 2", Confidence: 0.6, Kind: ByIndex},
	}, OptionSets{Vehicles: vehicles})

	if !out.Accepted || out.NeedsClarification {
		t.Fatalf("expected accepted, got %+v", out)
	}
	if got := out.Resolved[FieldVehicle].ID; got != "veh-2" {
		t.Fatalf("expected veh-2, got %q", got)
	}
	if out.Confidence < 0.8 {
		t.Fatalf("expected confidence >= 0.8, got %v", out.Confidence)
	}
	if out.Fields[0].Method != MethodOrdinal {
		t.Fatalf("expected ordinal match, got %s", out.Fields[0].Method)
	}
}

func TestValidateOrdinalOutOfRange(t *testing.T) {
	v := NewValidator(DefaultThreshold)
	out := v.Validate(Extraction{
		Vehicle: &Extracted{RawText: "xe thứ 5", Confidence: 0.95, Kind: ByIndex},
	}, OptionSets{Vehicles: vehicles})

	if out.Accepted || !out.NeedsClarification {
		t.Fatalf("expected clarification, got %+v", out)
	}
	if _, ok := out.Resolved[FieldVehicle]; ok {
		t.Fatalf("vehicle must stay unresolved")
	}
	if !strings.Contains(out.ClarificationMessage, "Toyota Vios") {
		t.Fatalf("clarification should list candidates: %q", out.ClarificationMessage)
	}
}

func TestValidateMatchOrder(t *testing.T) {
	v := NewValidator(DefaultThreshold)
	cases := []struct {
		name   string
		ex     *Extracted
		want   string
		method Method
	}{
		{"id", &Extracted{Value: "VEH-3", Confidence: 0.9}, "veh-3", MethodID},
		{"exact name", &Extracted{Value: "toyota vios 51g-67890", Confidence: 0.9}, "veh-2", MethodName},
		{"name inside text", &Extracted{RawText: "chiếc Mazda CX-5 30F-11111 của tôi", Confidence: 0.7}, "veh-3", MethodKeyword},
		{"text inside name", &Extracted{Value: "civic", Confidence: 0.7}, "veh-1", MethodKeyword},
		{"last", &Extracted{RawText: "cái cuối", Confidence: 0.7, Kind: ByIndex}, "veh-3", MethodOrdinal},
	}
	for _, tc := range cases {
		out := v.Validate(Extraction{Vehicle: tc.ex}, OptionSets{Vehicles: vehicles})
		if !out.Accepted {
			t.Fatalf("%s: expected accepted, got %+v", tc.name, out)
		}
		if got := out.Resolved[FieldVehicle].ID; got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
		if m := out.Fields[0].Method; m != tc.method {
			t.Fatalf("%s: expected method %s, got %s", tc.name, tc.method, m)
		}
	}
}

func TestValidateAmbiguousContainment(t *testing.T) {
	v := NewValidator(DefaultThreshold)
	out := v.Validate(Extraction{
		Bay: &Extracted{Value: "bay", Confidence: 0.9},
	}, OptionSets{Bays: bays})
	if out.Accepted {
		t.Fatalf("expected ambiguity to block acceptance")
	}
	if n := len(out.Fields[0].Candidates); n != 2 {
		t.Fatalf("expected 2 candidates, got %d", n)
	}
}

func TestValidateKeyword(t *testing.T) {
	v := NewValidator(DefaultThreshold)
	out := v.Validate(Extraction{
		Bay: &Extracted{RawText: "khoang ở cửa trước", Confidence: 0.5, Kind: ByKeyword},
	}, OptionSets{Bays: bays})
	if !out.Accepted || out.Resolved[FieldBay].ID != "bay-1" {
		t.Fatalf("expected bay-1 via keyword, got %+v", out)
	}
}

func TestValidateDateIgnoresWeekdayOrdinal(t *testing.T) {
	v := NewValidator(DefaultThreshold)
	dates := []Option{{ID: "2026-03-02", Name: "2026-03-02"}, {ID: "2026-03-03", Name: "2026-03-03"}}
	out := v.Validate(Extraction{
		Date: &Extracted{RawText: "thứ 2", Confidence: 0.9, Kind: ByName},
	}, OptionSets{Dates: dates})
	if out.Accepted {
		t.Fatalf("weekday name must not select by position: %+v", out)
	}

	out = v.Validate(Extraction{
		Date: &Extracted{RawText: "ngày thứ 2", Confidence: 0.9, Kind: ByIndex},
	}, OptionSets{Dates: dates})
	if !out.Accepted || out.Resolved[FieldDate].ID != "2026-03-03" {
		t.Fatalf("expected positional date when flagged BY_INDEX, got %+v", out)
	}
}

func TestValidateFreeForm(t *testing.T) {
	v := NewValidator(DefaultThreshold)
	out := v.Validate(Extraction{
		Date: &Extracted{Value: "2026-03-02", Confidence: 0.92},
		Time: &Extracted{Value: "09:30", Confidence: 0.9},
	}, OptionSets{})
	if !out.Accepted {
		t.Fatalf("expected confident free-form values to be accepted: %+v", out)
	}
	if out.Resolved[FieldTime].ID != "09:30" || out.Fields[0].Method != MethodExtractor {
		t.Fatalf("unexpected resolution %+v", out.Fields)
	}

	out = v.Validate(Extraction{Date: &Extracted{Value: "2026-03-02", Confidence: 0.5}}, OptionSets{})
	if out.Accepted {
		t.Fatalf("low confidence free-form value must not be accepted")
	}

	out = v.Validate(Extraction{Time: &Extracted{Value: "morning", Confidence: 0.95}}, OptionSets{})
	if out.Accepted {
		t.Fatalf("malformed time must not be accepted")
	}
}

func TestValidateCatalogFieldsNeedShownOptions(t *testing.T) {
	v := NewValidator(DefaultThreshold)
	out := v.Validate(Extraction{
		Vehicle: &Extracted{Value: "the red one", Confidence: 0.85},
		Branch:  &Extracted{Value: "somewhere", Confidence: 0.9},
	}, OptionSets{})
	if out.Accepted || !out.NeedsClarification {
		t.Fatalf("vehicle and branch without options must not be accepted: %+v", out)
	}
	if len(out.Resolved) != 0 {
		t.Fatalf("nothing should resolve, got %+v", out.Resolved)
	}
	for _, fr := range out.Fields {
		if fr.Resolved || !strings.Contains(fr.Reason, "no "+string(fr.Field)+" options") {
			t.Fatalf("unexpected field result %+v", fr)
		}
	}
}

func TestValidatePartialFailureBlocksAll(t *testing.T) {
	v := NewValidator(DefaultThreshold)
	out := v.Validate(Extraction{
		Vehicle: &Extracted{Value: "veh-1", Confidence: 0.99},
		Bay:     &Extracted{Value: "bay 9", Confidence: 0.99},
	}, OptionSets{Vehicles: vehicles, Bays: bays})
	if out.Accepted {
		t.Fatalf("an unresolved field must block acceptance")
	}
	if _, ok := out.Resolved[FieldVehicle]; !ok {
		t.Fatalf("resolved fields are still reported")
	}
	if !strings.Contains(out.ClarificationMessage, "bay") {
		t.Fatalf("clarification should name the bay field: %q", out.ClarificationMessage)
	}
}

func TestValidateNothingAttempted(t *testing.T) {
	out := NewValidator(0).Validate(Extraction{}, OptionSets{Vehicles: vehicles})
	if out.Accepted || !out.NeedsClarification || out.ClarificationMessage == "" {
		t.Fatalf("empty extraction should ask for clarification: %+v", out)
	}
}

func TestOptionSetsMerge(t *testing.T) {
	old := OptionSets{Vehicles: vehicles, Bays: bays}
	merged := old.Merge(OptionSets{Bays: []Option{{ID: "bay-9", Name: "Bay 9"}}})
	if len(merged.Vehicles) != 3 || len(merged.Bays) != 1 || merged.Bays[0].ID != "bay-9" {
		t.Fatalf("unexpected merge %+v", merged)
	}
}

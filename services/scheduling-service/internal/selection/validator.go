package selection

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
)

// DefaultThreshold is the confidence a turn needs before its selection is acted on.
const DefaultThreshold = 0.8

// matchConfidence is the floor for a field matched deterministically.
const matchConfidence = 0.8

// Validator maps extracted values onto the options the user was shown. Matching is
// deterministic: id, exact name, ordinal position, then containment either way.
type Validator struct {
	threshold float64
}

func NewValidator(threshold float64) *Validator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Validator{threshold: threshold}
}

func (v *Validator) Threshold() float64 { return v.threshold }

// Validate resolves every field present in ex. The outcome is accepted only when
// at least one field was attempted, none stayed unresolved, and the mean confidence
// reaches the threshold.
func (v *Validator) Validate(ex Extraction, sets OptionSets) Outcome {
	out := Outcome{Resolved: map[Field]Option{}}
	var sum float64
	unresolved := 0
	for _, f := range Fields {
		e := ex.get(f)
		if e.empty() {
			continue
		}
		r := v.resolve(f, e, sets.For(f))
		out.Fields = append(out.Fields, r)
		if !r.Resolved {
			unresolved++
			continue
		}
		out.Resolved[f] = *r.Option
		sum += r.Confidence
	}

	if len(out.Fields) == 0 {
		out.NeedsClarification = true
		out.ClarificationMessage = "I could not tell which option you meant. Could you pick one from the list?"
		return out
	}
	if n := len(out.Resolved); n > 0 {
		out.Confidence = sum / float64(n)
	}
	out.Accepted = unresolved == 0 && len(out.Resolved) > 0 && out.Confidence >= v.threshold
	out.NeedsClarification = !out.Accepted
	if out.NeedsClarification {
		out.ClarificationMessage = clarification(out.Fields, out.Confidence, v.threshold)
	}
	return out
}

func (v *Validator) resolve(f Field, e *Extracted, options []Option) FieldResult {
	res := FieldResult{Field: f, Confidence: clamp(e.Confidence)}
	texts := candidatesText(e)

	if len(options) == 0 {
		return v.acceptFreeForm(f, e, res)
	}

	// id
	for _, t := range texts {
		for i := range options {
			if strings.EqualFold(strings.TrimSpace(options[i].ID), t) {
				return matched(res, options[i], MethodID)
			}
		}
	}

	// exact name
	for _, t := range texts {
		var hits []Option
		for _, o := range options {
			if model.Fold(o.Name) == model.Fold(t) {
				hits = append(hits, o)
			}
		}
		if len(hits) == 1 {
			return matched(res, hits[0], MethodName)
		}
		if len(hits) > 1 {
			return ambiguous(res, hits)
		}
	}

	// ordinal
	if ordinalAllowed(f, e) {
		for _, t := range texts {
			n, ok := parseOrdinal(t)
			if !ok {
				continue
			}
			if n == lastOrdinal {
				n = len(options)
			}
			if n < 1 || n > len(options) {
				res.Candidates = options
				res.Reason = fmt.Sprintf("option %d does not exist, there are %d", n, len(options))
				return res
			}
			return matched(res, options[n-1], MethodOrdinal)
		}
	}

	// containment either way, keywords included
	seen := map[string]bool{}
	var hits []Option
	for _, t := range texts {
		ft := model.Fold(t)
		if ft == "" {
			continue
		}
		for _, o := range options {
			if seen[o.ID] || !contains(o, ft) {
				continue
			}
			seen[o.ID] = true
			hits = append(hits, o)
		}
	}
	switch len(hits) {
	case 0:
		res.Candidates = options
		res.Reason = fmt.Sprintf("%q matches none of the options", texts[0])
		return res
	case 1:
		return matched(res, hits[0], MethodKeyword)
	default:
		return ambiguous(res, hits)
	}
}

// acceptFreeForm handles a field with no option set. Only a date or a time can stand on
// the extractor's own value, and only when it is confident enough and well formed.
func (v *Validator) acceptFreeForm(f Field, e *Extracted, res FieldResult) FieldResult {
	if f != FieldDate && f != FieldTime {
		res.Reason = fmt.Sprintf("no %s options have been shown to choose from", f)
		return res
	}
	value := strings.TrimSpace(e.Value)
	if value == "" {
		value = strings.TrimSpace(e.RawText)
	}
	if res.Confidence < v.threshold {
		res.Reason = fmt.Sprintf("no options to match against and confidence %.2f is below %.2f", res.Confidence, v.threshold)
		return res
	}
	switch f {
	case FieldDate:
		if _, err := time.Parse(model.DateLayout, value); err != nil {
			res.Reason = fmt.Sprintf("%q is not a YYYY-MM-DD date", value)
			return res
		}
	case FieldTime:
		if _, err := model.ParseClock("time", value); err != nil {
			res.Reason = fmt.Sprintf("%q is not an HH:mm time", value)
			return res
		}
	}
	res.Resolved = true
	res.Method = MethodExtractor
	res.Option = &Option{ID: value, Name: value}
	return res
}

func candidatesText(e *Extracted) []string {
	var out []string
	for _, s := range []string{e.Value, e.RawText} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		dup := false
		for _, o := range out {
			if o == s {
				dup = true
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}

// Dates and times read like ordinals ("thứ 2" is Monday, "9" is nine o'clock), so
// positions only apply there when the extractor flagged the turn as BY_INDEX.
func ordinalAllowed(f Field, e *Extracted) bool {
	if f == FieldDate || f == FieldTime {
		return e.Kind == ByIndex
	}
	return true
}

func contains(o Option, text string) bool {
	name := model.Fold(o.Name)
	if name != "" && (strings.Contains(name, text) || strings.Contains(text, name)) {
		return true
	}
	for _, k := range o.Keywords {
		if k = model.Fold(k); k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func matched(res FieldResult, o Option, m Method) FieldResult {
	res.Resolved = true
	res.Method = m
	res.Option = &o
	if res.Confidence < matchConfidence {
		res.Confidence = matchConfidence
	}
	return res
}

func ambiguous(res FieldResult, hits []Option) FieldResult {
	res.Candidates = hits
	res.Reason = fmt.Sprintf("matches %d options", len(hits))
	return res
}

func clamp(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

func clarification(fields []FieldResult, confidence, threshold float64) string {
	var parts []string
	for _, r := range fields {
		if r.Resolved {
			continue
		}
		line := fmt.Sprintf("%s: %s", r.Field, r.Reason)
		if len(r.Candidates) > 0 {
			names := make([]string, 0, len(r.Candidates))
			for i, c := range r.Candidates {
				names = append(names, fmt.Sprintf("%d. %s", i+1, c.Name))
			}
			line += " (choose one of: " + strings.Join(names, ", ") + ")"
		}
		parts = append(parts, line)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("I am not sure enough about your choice (%.2f < %.2f). Could you confirm it?", confidence, threshold)
	}
	return "Could you clarify " + strings.Join(parts, "; ")
}

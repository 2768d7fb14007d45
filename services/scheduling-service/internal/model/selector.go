package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ServiceSelector is either a single service id or an ordered list of ids.
// Exactly one of the two forms is set.
type ServiceSelector struct {
	single   string
	multiple []string
}

func SingleService(id string) ServiceSelector { return ServiceSelector{single: id} }

func MultipleServices(ids ...string) ServiceSelector {
	return ServiceSelector{multiple: append([]string(nil), ids...)}
}

// IsMultiple reports which form the selector holds.
func (s ServiceSelector) IsMultiple() bool { return s.multiple != nil }

// IDs normalizes the selector to a trimmed list, preserving order and dropping
// blanks and repeats.
func (s ServiceSelector) IDs() []string {
	raw := s.multiple
	if raw == nil {
		raw = []string{s.single}
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *ServiceSelector) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.HasPrefix(data, []byte(`"`)):
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*s = SingleService(id)
	case bytes.HasPrefix(data, []byte(`[`)):
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
		if ids == nil {
			ids = []string{}
		}
		*s = MultipleServices(ids...)
	case bytes.Equal(data, []byte("null")):
		*s = ServiceSelector{}
	default:
		return errors.New("services must be a string or an array of strings")
	}
	return nil
}

func (s ServiceSelector) MarshalJSON() ([]byte, error) {
	if s.IsMultiple() {
		return json.Marshal(s.multiple)
	}
	return json.Marshal(s.single)
}

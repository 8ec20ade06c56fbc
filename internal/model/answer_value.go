package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// AnswerValue is a raw answer as submitted by a client. It accepts a JSON
// string ("B", "5.5", "A,C") or a JSON array of option letters (["C","A"]),
// which is stored in the canonical sorted comma-joined form "A,C".
type AnswerValue string

// UnmarshalJSON implements json.Unmarshaler.
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*v = ""
		return nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("answer list: %w", err)
		}
		*v = AnswerValue(JoinSelection(list))
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if numErr := json.Unmarshal(data, &n); numErr != nil {
			return fmt.Errorf("answer must be a string or list: %w", err)
		}
		s = n.String()
	}
	*v = AnswerValue(strings.TrimSpace(s))
	return nil
}

// JoinSelection sorts the selected options and joins them with commas.
// Blank entries are dropped; duplicates are kept so scoring can reject them.
func JoinSelection(selected []string) string {
	out := make([]string, 0, len(selected))
	for _, s := range selected {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

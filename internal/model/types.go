package model

import (
	"sort"
	"strconv"
	"time"
)

// Message is the header and payload of a network observation.
type Message struct {
	Protocol string         `json:"protocol"`
	Type     string         `json:"type"`
	Activity string         `json:"activity"`
	Src      string         `json:"src"`
	Dest     string         `json:"dest"`
	Data     map[string]any `json:"data,omitempty"`
}

// Observation is one timestamped record of the input stream. Exactly one of
// Message and State is set. A nil entry in State marks a missing value.
type Observation struct {
	Timestamp float64
	Message   *Message
	State     map[string]*float64
	Malicious any
	Raw       map[string]any
}

// Values returns the numeric process values of the observation. For messages
// the nested value map is flattened with dotted keys and non-numeric leaves
// are skipped.
func (o Observation) Values() map[string]*float64 {
	if o.State != nil {
		return o.State
	}
	out := make(map[string]*float64)
	if o.Message == nil {
		return out
	}
	flattenNumeric("", o.Message.Data, out)
	return out
}

func flattenNumeric(prefix string, src map[string]any, out map[string]*float64) {
	for k, v := range src {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case nil:
			out[key] = nil
		case map[string]any:
			flattenNumeric(key, val, out)
		case []any:
			for i, item := range val {
				flattenNumeric(key, map[string]any{strconv.Itoa(i): item}, out)
			}
		default:
			if f, ok := ToFloat(val); ok {
				out[key] = &f
			}
		}
	}
}

// ToFloat converts JSON numbers and Go numeric types to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	}
	return 0, false
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Event is an observation tagged with the live session it belongs to.
type Event struct {
	Session     string
	Source      string
	Observation Observation
}

type Alert struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	EventTimestamp float64           `json:"event_timestamp"`
	Session        string            `json:"session"`
	Detector       string            `json:"detector"`
	Reason         Reason            `json:"reason"`
	Detail         string            `json:"detail"`
	Label          Label             `json:"label"`
	Rule           *Rule             `json:"rule,omitempty"`
	Context        map[string]string `json:"context,omitempty"`
}

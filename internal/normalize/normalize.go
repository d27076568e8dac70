package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"arguard/internal/model"
)

// Missing is substituted for absent message header fields.
const Missing = "<missing>"

// DataError reports a malformed record. The observation returned alongside
// it carries sentinels in place of the missing fields.
// Err is set when the record could not be decoded at all.
type DataError struct {
	Fields []string
	Err    error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return "malformed record: " + e.Err.Error()
	}
	return "record missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *DataError) Unwrap() error { return e.Err }

// Bytes decodes one JSON record.
func Bytes(data []byte) (model.Observation, error) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return model.Observation{}, &DataError{Err: err}
	}
	return Record(obj)
}

// Record converts a decoded record into an observation. Records carry either
// a "state" object of process values or message header fields with a "data"
// value map. Headers are read from the top level and fall back to "data".
func Record(obj map[string]any) (model.Observation, error) {
	var missing []string
	obs := model.Observation{Raw: obj, Malicious: obj["malicious"]}

	if ts, ok := model.ToFloat(obj["timestamp"]); ok {
		obs.Timestamp = ts
	} else {
		missing = append(missing, "timestamp")
	}

	if raw, ok := obj["state"]; ok {
		state, ok := raw.(map[string]any)
		if !ok {
			missing = append(missing, "state")
			state = nil
		}
		obs.State = make(map[string]*float64, len(state))
		for k, v := range state {
			if f, ok := model.ToFloat(v); ok {
				obs.State[k] = &f
			} else {
				obs.State[k] = nil
			}
		}
		return obs, dataError(missing)
	}

	data, _ := obj["data"].(map[string]any)
	msg := &model.Message{Data: map[string]any{}}
	header := map[string]*string{
		"protocol": &msg.Protocol,
		"type":     &msg.Type,
		"activity": &msg.Activity,
		"src":      &msg.Src,
		"dest":     &msg.Dest,
	}
	for _, name := range []string{"protocol", "type", "activity", "src", "dest"} {
		v, ok := lookup(obj, data, name)
		if !ok {
			missing = append(missing, name)
			*header[name] = Missing
			continue
		}
		*header[name] = v
	}
	if data == nil {
		missing = append(missing, "data")
	}
	for k, v := range data {
		if _, isHeader := header[k]; isHeader && obj[k] == nil {
			continue
		}
		msg.Data[k] = v
	}
	obs.Message = msg
	return obs, dataError(missing)
}

func lookup(obj, data map[string]any, name string) (string, bool) {
	if v, ok := obj[name]; ok && v != nil {
		return scalar(v), true
	}
	if v, ok := data[name]; ok && v != nil {
		return scalar(v), true
	}
	return "", false
}

func scalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

func dataError(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return &DataError{Fields: missing}
}

package classify

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"arguard/internal/model"
)

// Composite labels a message by its header fields and its process values
// quantized into bins of a fixed width.
type Composite struct {
	binSize int
}

func NewComposite(binSize int) *Composite {
	if binSize <= 0 {
		binSize = 1
	}
	return &Composite{binSize: binSize}
}

func (c *Composite) Classify(obs model.Observation) (Classification, error) {
	var b strings.Builder
	if msg := obs.Message; msg != nil {
		b.WriteString(msg.Protocol)
		b.WriteByte('-')
		b.WriteString(msg.Type)
		b.WriteByte('-')
		b.WriteString(msg.Activity)
		b.WriteByte('-')
		b.WriteString(msg.Src)
		b.WriteByte('-')
		b.WriteString(msg.Dest)
		b.WriteByte('-')
		c.writeValues(&b, msg.Data)
	} else {
		values := make(map[string]any, len(obs.State))
		for k, v := range obs.State {
			if v == nil {
				values[k] = nil
				continue
			}
			values[k] = *v
		}
		b.WriteString("state-")
		c.writeValues(&b, values)
	}
	return Classification{Label: model.Label(b.String()), ClusterID: -1}, nil
}

func (c *Composite) writeValues(b *strings.Builder, values map[string]any) {
	flat := make(map[string]string)
	c.flatten("", values, flat)
	b.WriteByte('{')
	for i, k := range model.SortedKeys(flat) {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(flat[k])
	}
	b.WriteByte('}')
}

func (c *Composite) flatten(prefix string, src map[string]any, out map[string]string) {
	for k, v := range src {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			c.flatten(key, val, out)
		case []any:
			for i, item := range val {
				c.flatten(key, map[string]any{strconv.Itoa(i): item}, out)
			}
		case nil:
			out[key] = "none"
		case string:
			out[key] = val
		case bool:
			out[key] = strconv.FormatBool(val)
		default:
			if f, ok := model.ToFloat(val); ok {
				out[key] = strconv.FormatInt(c.Bucket(f), 10)
				continue
			}
			out[key] = fmt.Sprint(val)
		}
	}
}

// Bucket floors v / binSize toward negative infinity.
func (c *Composite) Bucket(v float64) int64 {
	return int64(math.Floor(v / float64(c.binSize)))
}

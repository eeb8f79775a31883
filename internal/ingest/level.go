package ingest

import (
	"encoding/json"

	"crossarb/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

var numberAPI = sonic.Config{UseNumber: true}.Froze()

// Level is one book level. Venues send either [price, size] arrays or
// objects keyed by price or p; prices may be strings or numbers.
type Level struct {
	Price string
	Size  string
}

func (l *Level) UnmarshalJSON(b []byte) error {
	var raw any
	if err := numberAPI.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case []any:
		if len(v) == 0 {
			return errors.Wrap(exception.ErrFeedMalformed, "empty level")
		}
		l.Price = scalar(v[0])
		if len(v) > 1 {
			l.Size = scalar(v[1])
		}
	case map[string]any:
		l.Price = firstScalar(v, "price", "p")
		l.Size = firstScalar(v, "size", "qty", "q", "amount")
	default:
		l.Price = scalar(v)
	}
	if l.Price == "" {
		return errors.Wrapf(exception.ErrFeedMalformed, "level without price: %s", b)
	}
	return nil
}

// Text is a JSON scalar that venues send either quoted or as a bare number.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	var raw any
	if err := numberAPI.Unmarshal(b, &raw); err != nil {
		return err
	}
	*t = Text(scalar(raw))
	return nil
}

func (t Text) String() string {
	return string(t)
}

// Top returns the first level price, or "" for an empty side.
func Top(levels []Level) string {
	if len(levels) == 0 {
		return ""
	}
	return levels[0].Price
}

func firstScalar(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s := scalar(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	default:
		return ""
	}
}

package order

import (
	"encoding/json"

	"github.com/bytedance/sonic"
)

var numberAPI = sonic.Config{UseNumber: true}.Froze()

// ID is a response scalar that venues send either quoted or as a number.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	var raw any
	if err := numberAPI.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		*id = ID(v)
	case json.Number:
		*id = ID(v.String())
	default:
		*id = ""
	}
	return nil
}

package order

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
)

// goneCodes are venue error codes, normalized by errorCode, that mean the
// order is no longer live.
var goneCodes = map[string]struct{}{
	"NOT_FOUND":               {},
	"ORDER_NOT_FOUND":         {},
	"ORDER_DOES_NOT_EXIST":    {},
	"UNKNOWN_ORDER":           {},
	"ORDER_FILLED":            {},
	"ORDER_ALREADY_FILLED":    {},
	"ALREADY_FILLED":          {},
	"ORDER_CANCELLED":         {},
	"ORDER_CANCELED":          {},
	"ORDER_ALREADY_CANCELLED": {},
	"ORDER_ALREADY_CANCELED":  {},
	"ALREADY_CANCELLED":       {},
	"ALREADY_CANCELED":        {},
	"ORDER_ALREADY_CLOSED":    {},
	"ORDER_IS_TERMINAL":       {},
	"ORDER_ALREADY_TERMINAL":  {},
}

var errorFields = []string{"code", "errorCode", "error", "message", "msg", "status"}

// IsGone reports whether a cancel failure means the order is already not
// live: unknown to the venue, filled or cancelled. Cancels treat it as success.
// Bodies of 400, 409 and 422 must carry one of goneCodes as a whole value.
func IsGone(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case http.StatusNotFound, http.StatusGone:
		return true
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		for _, code := range errorCodes(se.Body) {
			if _, ok := goneCodes[code]; ok {
				return true
			}
		}
	}
	return false
}

// errorCodes returns the normalized string fields of a JSON error body, or
// the whole body when it is not a JSON object.
func errorCodes(body string) []string {
	var doc map[string]any
	if err := sonic.ConfigFastest.UnmarshalFromString(body, &doc); err != nil {
		return []string{errorCode(body)}
	}
	var codes []string
	collect := func(m map[string]any) {
		for _, field := range errorFields {
			if s, ok := m[field].(string); ok {
				codes = append(codes, errorCode(s))
			}
		}
	}
	collect(doc)
	if nested, ok := doc["error"].(map[string]any); ok {
		collect(nested)
	}
	return codes
}

func errorCode(s string) string {
	s = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), "."))
	return strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_").Replace(s))
}

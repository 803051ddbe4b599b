package billing

import (
	"bytes"
	"encoding/json"
	"strings"

	"folioAPI/internal/types/subscription"
)

// Provider adapts one payment provider's webhook format to Event. Adapters
// hold their own secret and plan catalog.
type Provider interface {
	Name() subscription.Provider
	// SignatureHeader is the HTTP header the provider signs deliveries with.
	SignatureHeader() string
	VerifySignature(body []byte, header string) error
	ParsePayload(body []byte) (*Event, error)
}

// looseID accepts identifiers sent either as JSON strings or numbers.
// LemonSqueezy sends numeric ids, Paddle sends prefixed strings.
type looseID string

func (id *looseID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = looseID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = looseID(n.String())
	return nil
}

func (id looseID) String() string {
	return string(id)
}

// customString pulls the first non-empty string value under any of keys.
func customString(data map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := data[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		case float64:
			b, _ := json.Marshal(v)
			return string(b)
		}
	}
	return ""
}

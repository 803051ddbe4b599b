package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sign returns the lowercase hex HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the hex HMAC-SHA256 of payload under
// secret. An empty secret never verifies.
func Verify(payload []byte, signature, secret string) bool {
	signature = strings.ToLower(strings.TrimSpace(signature))
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// PaddleSignature is the parsed form of a "ts=...;h1=..." header. Paddle
// sends one h1 per active secret while a secret is being rotated.
type PaddleSignature struct {
	Timestamp time.Time
	RawTS     string
	H1        []string
}

var errMalformedSignature = errors.New("malformed signature header")

// ParsePaddleSignature splits the composite header on ';' and picks the ts and
// h1 fields by prefix. Unknown fields are ignored.
func ParsePaddleSignature(header string) (PaddleSignature, error) {
	var sig PaddleSignature
	if strings.TrimSpace(header) == "" {
		return sig, errMalformedSignature
	}

	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "ts="):
			sig.RawTS = strings.TrimPrefix(part, "ts=")
		case strings.HasPrefix(part, "h1="):
			if h1 := strings.TrimPrefix(part, "h1="); h1 != "" {
				sig.H1 = append(sig.H1, h1)
			}
		}
	}

	if sig.RawTS == "" || len(sig.H1) == 0 {
		return sig, fmt.Errorf("%w: need ts and h1", errMalformedSignature)
	}

	unix, err := strconv.ParseInt(sig.RawTS, 10, 64)
	if err != nil {
		return sig, fmt.Errorf("%w: bad ts %q", errMalformedSignature, sig.RawTS)
	}
	sig.Timestamp = time.Unix(unix, 0)

	return sig, nil
}

// SignedPayload is the byte string Paddle signs: "<ts>:<raw body>".
func (s PaddleSignature) SignedPayload(body []byte) []byte {
	out := make([]byte, 0, len(s.RawTS)+1+len(body))
	out = append(out, s.RawTS...)
	out = append(out, ':')
	return append(out, body...)
}

// Matches reports whether any h1 value signs body under secret.
func (s PaddleSignature) Matches(body []byte, secret string) bool {
	payload := s.SignedPayload(body)
	for _, h1 := range s.H1 {
		if Verify(payload, h1, secret) {
			return true
		}
	}
	return false
}

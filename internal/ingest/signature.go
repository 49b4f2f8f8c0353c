package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"callcenter-analytics/internal/apperr"
)

// SignatureHeader carries the composite webhook signature:
// "t=<unix_seconds>,v0=<hex_hmac_sha256>". Field order and extra
// fields are tolerated; both keys are mandatory.
const SignatureHeader = "X-Webhook-Signature"

// ReplayWindow is how far in the past a signed timestamp may lie.
// There is no upper bound: future timestamps pass.
const ReplayWindow = 30 * time.Minute

type signatureFields struct {
	timestamp int64
	signature string
}

func parseSignatureHeader(header string) (signatureFields, error) {
	if header == "" {
		return signatureFields{}, apperr.Auth("Missing signature header")
	}

	var f signatureFields
	var haveT, haveV0 bool
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return signatureFields{}, apperr.Auth("Invalid signature format")
			}
			f.timestamp = ts
			haveT = true
		case "v0":
			f.signature = "v0=" + value
			haveV0 = true
		}
	}
	if !haveT || !haveV0 {
		return signatureFields{}, apperr.Auth("Invalid signature format")
	}
	return f, nil
}

// VerifySignature checks a webhook signature header against the raw request
// body. The signed message is "<timestamp>.<raw-body>"; the expected value is
// "v0=" plus the lowercase-hex HMAC-SHA256 of that message under secret.
//
// Pure: no I/O, no state. The caller supplies the clock.
func VerifySignature(rawBody []byte, header, secret string, now time.Time) (time.Time, error) {
	fields, err := parseSignatureHeader(header)
	if err != nil {
		return time.Time{}, err
	}

	oldest := now.Add(-ReplayWindow)
	ts := time.Unix(fields.timestamp, 0)
	if ts.Before(oldest) {
		return time.Time{}, apperr.Auth("Request expired")
	}

	if secret == "" {
		return time.Time{}, apperr.Auth("Webhook secret is not configured")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(fields.timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(fields.signature)) {
		return time.Time{}, apperr.Auth("Invalid signature")
	}
	return ts, nil
}

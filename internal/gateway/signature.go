package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dzshop/order-orchestrator/internal/entities"
)

// SignatureHeader carries the webhook signature in the form
// "t=<unix>,v1=<hex hmac-sha256>". The MAC is computed over "<unix>.<body>"
// with the shared webhook secret.
const SignatureHeader = "Gateway-Signature"

const signatureTolerance = 5 * time.Minute

// Sign produces a signature header value for a payload. Used by the gateway
// itself; exposed here for tests and the webhook simulator.
func Sign(secret string, ts time.Time, payload []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), computeMAC(secret, ts.Unix(), payload))
}

func computeMAC(secret string, unix int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", unix)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(secret, header string, payload []byte, now time.Time) error {
	var ts int64
	var sig string

	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: malformed timestamp", entities.ErrInvalidSignature)
			}
			ts = parsed
		case "v1":
			sig = value
		}
	}

	if ts == 0 || sig == "" {
		return fmt.Errorf("%w: missing signature parts", entities.ErrInvalidSignature)
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", entities.ErrInvalidSignature)
	}

	expected := computeMAC(secret, ts, payload)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("%w: mac mismatch", entities.ErrInvalidSignature)
	}
	return nil
}

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/apperrors"
)

// signaturePrefix is the scheme tag Meta puts in X-Hub-Signature-256.
const signaturePrefix = "sha256="

// VerifySignature checks the webhook body against the X-Hub-Signature-256
// header using the organization's app secret. Comparison is constant time.
// Runs before the body is parsed or anything is persisted. The intake only
// calls this for tenants that configured a secret; an empty secret here is
// a caller bug, not an unsigned tenant.
func VerifySignature(appSecret string, body []byte, header string) error {
	if appSecret == "" {
		return fmt.Errorf("%w: no app secret to verify against", apperrors.ErrInvalidSignature)
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return fmt.Errorf("%w: missing or malformed signature header", apperrors.ErrInvalidSignature)
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return fmt.Errorf("%w: signature is not valid hex", apperrors.ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := mac.Sum(nil)

	if !hmac.Equal(provided, expected) {
		return fmt.Errorf("%w: signature mismatch", apperrors.ErrInvalidSignature)
	}
	return nil
}

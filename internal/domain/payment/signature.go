package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// VerifySignature checks an HMAC-SHA256 confirmation signature as delivered
// by the processor: hex(HMAC_SHA256(secret, intentID + "|" + paymentID)).
//
// The comparison is constant-time to avoid leaking the secret through timing
// side-channels. Malformed input (empty fields, non-hex signature) returns
// false rather than an error; callers treat it identically to a failed
// verification.
func VerifySignature(intentID, confirmationID, signature, secret string) bool {
	if intentID == "" || confirmationID == "" || signature == "" || secret == "" {
		return false
	}

	supplied, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(intentID))
	mac.Write([]byte("|"))
	mac.Write([]byte(confirmationID))
	expected := mac.Sum(nil)

	return subtle.ConstantTimeCompare(expected, supplied) == 1
}

// Sign computes the confirmation signature for the given intent and payment
// IDs. Exposed for tests and for stub processors in integration setups.
func Sign(intentID, confirmationID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(intentID))
	mac.Write([]byte("|"))
	mac.Write([]byte(confirmationID))
	return hex.EncodeToString(mac.Sum(nil))
}

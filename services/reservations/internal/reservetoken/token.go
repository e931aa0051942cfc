// Package reservetoken signs and checks the reservation token handed to a
// guest at initiate and required for self-service cancellation.
package reservetoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const Length = 32

type Signer struct {
	secret []byte
}

func New(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign derives the token from the contact email, the event day and the
// issue instant in unix milliseconds. All three must be persisted to verify.
func (s *Signer) Sign(email string, eventDate time.Time, issuedMs int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%s:%d", strings.ToLower(email), eventDate.UTC().Format("2006-01-02T15:04:05.000Z"), issuedMs)
	return hex.EncodeToString(mac.Sum(nil))[:Length]
}

func (s *Signer) Verify(token, email string, eventDate time.Time, issuedMs int64) bool {
	if len(token) != Length {
		return false
	}
	want := s.Sign(email, eventDate, issuedMs)
	return hmac.Equal([]byte(strings.ToLower(token)), []byte(want))
}

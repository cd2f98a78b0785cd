package validator

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/fspswitch/transfers/go/transfer"
)

// Fingerprint returns the SHA-256 digest of the canonicalized prepare
// payload. The canonical form is the exact field sequence
//
//	transferId, payerFsp, payeeFsp, amount.currency, amount.amount,
//	ilpPacket, condition, expirationDate
//
// joined with a single NUL delimiter, with expirationDate rendered as
// RFC 3339 UTC. The digest must stay stable across processes and versions:
// it is the sole key of duplicate detection.
func Fingerprint(p *transfer.Prepare) []byte {
	var h = sha256.New()
	for i, field := range []string{
		p.TransferID,
		p.PayerFSP,
		p.PayeeFSP,
		p.Amount.Currency,
		p.Amount.Amount,
		p.ILPPacket,
		p.Condition,
		p.ExpirationDate.UTC().Format(time.RFC3339),
	} {
		if i != 0 {
			_, _ = h.Write([]byte{0x00})
		}
		_, _ = h.Write([]byte(field))
	}
	return h.Sum(nil)
}

// VerifyFulfilment reports whether SHA-256 of the decoded fulfilment equals
// the decoded condition, compared in constant time. Any decode failure
// yields false; it never errors.
func VerifyFulfilment(fulfilment, condition string) bool {
	var preimage, err = decodeCondition(fulfilment)
	if err != nil {
		return false
	}
	expect, err := decodeCondition(condition)
	if err != nil {
		return false
	}
	var digest = sha256.Sum256(preimage)
	return subtle.ConstantTimeCompare(digest[:], expect) == 1
}

// decodeCondition decodes a base64url 32-byte value, with or without padding.
func decodeCondition(s string) ([]byte, error) {
	var b, err = decodeBase64URL(s)
	if err != nil {
		return nil, err
	} else if len(b) != sha256.Size {
		return nil, fmt.Errorf("expected %d bytes, got %d", sha256.Size, len(b))
	}
	return b, nil
}

func decodeBase64URL(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

// decodeOpaque decodes an opaque base64 octet string (standard or URL
// alphabet, padded or not), as used for ILP packets.
func decodeOpaque(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("value is not base64")
}

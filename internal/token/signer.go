// Package token implements the gateway's request-signing contract (C1):
// a deterministic hash of a request's scalar parameters plus the merchant
// secret, used by the Authenticator (C3) to verify inbound requests. The
// Notifier (C10) signs outbound webhooks with its own HMAC-SHA256 scheme,
// not with this package.
//
// The shape follows the teacher's auth package (ExtractHeaders → Verify →
// check identity), adapted from Ed25519 signature verification to HMAC-style
// token recomputation since §9 assumes the server can recompute the secret.
package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
)

// Params is the scalar parameter set a token is computed over. Only scalar
// (string, bool, int, int32, int64, float64) values participate; nested maps/slices are dropped
// by Sign per §4.1 step 1, precisely to avoid cross-implementation
// serialization disagreements.
type Params map[string]interface{}

// Sign computes the token for params and secret per §4.1:
//  1. drop non-scalar / empty entries
//  2. insert ("Password", secret)
//  3. sort keys byte-wise ascending
//  4. concatenate string forms of values, no separator
//  5. SHA-256, lowercase hex
func Sign(params Params, secret string) string {
	scalars := make(map[string]string, len(params)+1)
	for k, v := range params {
		s, ok := renderScalar(v)
		if !ok || s == "" {
			continue
		}
		scalars[k] = s
	}
	scalars["Password"] = secret

	keys := make([]string, 0, len(scalars))
	for k := range scalars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf []byte
	for _, k := range keys {
		buf = append(buf, scalars[k]...)
	}

	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether expected is the token produced by signing params
// with secret, using a constant-time comparison.
func Verify(params Params, expected, secret string) bool {
	computed := Sign(params, secret)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(expected)) == 1
}

// renderScalar renders a scalar value to its canonical string form, or
// reports ok=false for nested/non-scalar values which must be excluded.
func renderScalar(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case bool:
		if x {
			return "true", true
		}
		return "false", true
	case int:
		return strconv.FormatInt(int64(x), 10), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		// JSON-decoded integers land here; render without a decimal point
		// when the value is integral, matching the wire representation of
		// amount/paymentExpiry fields the signer commonly hashes.
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10), true
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	default:
		return "", false
	}
}

// ErrTokenMismatch is a descriptive mismatch error for callers that want one
// instead of Verify's bare boolean.
var ErrTokenMismatch = fmt.Errorf("token: signature mismatch")

package github

import (
	"strings"

	"github.com/google/go-github/v73/github"
)

// SignatureHeader carries the HMAC-SHA256 signature of a webhook body.
const SignatureHeader = github.SHA256SignatureHeader

const sha256Prefix = "sha256="

// VerifySignature reports whether signature equals "sha256=" followed by the
// hex HMAC-SHA256 of payload under secret. The comparison is constant time.
// Missing signatures, other hash schemes and an empty secret are not verified.
func VerifySignature(payload []byte, signature, secret string) bool {
	if secret == "" || !strings.HasPrefix(signature, sha256Prefix) {
		return false
	}
	return github.ValidateSignature(signature, payload, []byte(secret)) == nil
}

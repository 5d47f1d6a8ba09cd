package service

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/makkenzo/keygate/internal/config"
	"github.com/makkenzo/keygate/internal/metrics"
	"go.uber.org/zap"
)

const (
	hmacSHA256Prefix = "sha256="

	SchemeHMACSHA256 = "hmac_sha256"
	SchemeTwilio     = "twilio"
)

// VerifyHMACSHA256 checks a hex HMAC-SHA256 of body, optionally prefixed
// with "sha256=". Any missing input yields false.
func VerifyHMACSHA256(body []byte, signatureHeader, secret string) bool {
	if signatureHeader == "" || secret == "" {
		return false
	}

	signature := strings.TrimPrefix(signatureHeader, hmacSHA256Prefix)
	expected := ComputeHMACSHA256(body, secret)

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

func ComputeHMACSHA256(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// TwilioCanonicalString appends the parameter values to url in ascending
// order of their keys. Keys themselves are not part of the string.
func TwilioCanonicalString(url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(url)
	for _, k := range keys {
		b.WriteString(params[k])
	}
	return b.String()
}

func ComputeTwilioSignature(authToken, url string, params map[string]string) string {
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(TwilioCanonicalString(url, params)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyTwilioSignatureWithToken is the token-explicit form of
// SignatureVerifier.VerifyTwilioSignature.
func VerifyTwilioSignatureWithToken(authToken, url string, params map[string]string, signature string) bool {
	if authToken == "" || signature == "" {
		return false
	}
	expected := ComputeTwilioSignature(authToken, url, params)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// SignatureVerifier checks inbound webhook signatures against configured
// secrets. It never consults the key store and never returns errors.
type SignatureVerifier struct {
	hmacSecret      string
	twilioAuthToken string
	metrics         *metrics.Metrics
	logger          *zap.Logger
}

func NewSignatureVerifier(cfg config.WebhookConfig, m *metrics.Metrics, logger *zap.Logger) *SignatureVerifier {
	log := logger.Named("SignatureVerifier")
	if cfg.HMACSecret == "" {
		log.Warn("Generic webhook HMAC secret is not configured, generic signatures will be rejected")
	}
	if cfg.TwilioAuthToken == "" {
		log.Warn("Twilio auth token is not configured, Twilio signatures will be rejected")
	}

	return &SignatureVerifier{
		hmacSecret:      cfg.HMACSecret,
		twilioAuthToken: cfg.TwilioAuthToken,
		metrics:         m,
		logger:          log,
	}
}

// VerifyHMACSHA256 verifies body against the configured generic secret.
func (v *SignatureVerifier) VerifyHMACSHA256(body []byte, signatureHeader string) bool {
	ok := VerifyHMACSHA256(body, signatureHeader, v.hmacSecret)
	v.observe(SchemeHMACSHA256, ok)
	return ok
}

func (v *SignatureVerifier) VerifyTwilioSignature(url string, params map[string]string, signature string) bool {
	ok := VerifyTwilioSignatureWithToken(v.twilioAuthToken, url, params, signature)
	v.observe(SchemeTwilio, ok)
	return ok
}

func (v *SignatureVerifier) observe(scheme string, ok bool) {
	v.metrics.ObserveSignature(scheme, ok)
	if !ok {
		v.logger.Debug("Webhook signature rejected", zap.String("scheme", scheme))
	}
}

package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/keygate/internal/config"
	"github.com/makkenzo/keygate/internal/ierr"
	"github.com/makkenzo/keygate/internal/service"
	"go.uber.org/zap"
)

const (
	hubSignatureHeader    = "X-Hub-Signature-256"
	signatureHeader       = "X-Signature"
	twilioSignatureHeader = "X-Twilio-Signature"
)

type WebhookHandler struct {
	verifier      *service.SignatureVerifier
	publicBaseURL string
	logger        *zap.Logger
}

func NewWebhookHandler(verifier *service.SignatureVerifier, cfg config.WebhookConfig, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:      verifier,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:        logger.Named("WebhookHandler"),
	}
}

// Generic verifies an HMAC-SHA256 of the raw body.
func (h *WebhookHandler) Generic(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.logger.Warn("Failed to read webhook body", zap.Error(err))
		_ = c.Error(ierr.ErrInvalidSignature)
		return
	}

	sig := c.GetHeader(hubSignatureHeader)
	if sig == "" {
		sig = c.GetHeader(signatureHeader)
	}

	if !h.verifier.VerifyHMACSHA256(body, sig) {
		_ = c.Error(ierr.ErrInvalidSignature)
		return
	}

	h.logger.Info("Generic webhook accepted", zap.Int("bytes", len(body)))
	c.Status(http.StatusNoContent)
}

// Twilio verifies X-Twilio-Signature over the absolute request URL and the
// POST form parameters. Repeated parameters contribute their first value.
func (h *WebhookHandler) Twilio(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		h.logger.Warn("Failed to parse twilio webhook form", zap.Error(err))
		_ = c.Error(ierr.ErrInvalidSignature)
		return
	}

	params := make(map[string]string, len(c.Request.PostForm))
	for k, v := range c.Request.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	url := h.requestURL(c)
	if !h.verifier.VerifyTwilioSignature(url, params, c.GetHeader(twilioSignatureHeader)) {
		h.logger.Debug("Twilio signature mismatch", zap.String("url", url))
		_ = c.Error(ierr.ErrInvalidSignature)
		return
	}

	h.logger.Info("Twilio webhook accepted", zap.Int("params", len(params)))
	c.Status(http.StatusNoContent)
}

// requestURL rebuilds the URL the sender signed. Behind a proxy the
// configured public base URL wins over the Host header.
func (h *WebhookHandler) requestURL(c *gin.Context) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL + c.Request.URL.RequestURI()
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
}

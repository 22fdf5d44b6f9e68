// Package webhook authenticates inbound Jira webhook deliveries.
//
// Checks run in a fixed order, each one switched by configuration:
// User-Agent vendor token, HMAC-SHA256 body signature, then the source-IP
// allow-list. The first failing check rejects the delivery.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Aincrad-Flux/TWIN/internal/config"
	"github.com/Aincrad-Flux/TWIN/internal/logger"
	"github.com/Aincrad-Flux/TWIN/internal/metrics"
)

// Mode selects how soft checks behave.
type Mode int

const (
	// Relaxed logs a User-Agent mismatch and lets the request through.
	Relaxed Mode = iota
	// Strict rejects a User-Agent mismatch.
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "relaxed"
}

// forensicLen is how much of a signature is logged on mismatch.
const forensicLen = 12

type Authenticator struct {
	cfg  config.ValidationConfig
	mode Mode
	log  zerolog.Logger
}

func NewAuthenticator(cfg config.ValidationConfig, mode Mode, log zerolog.Logger) *Authenticator {
	if cfg.EnforceSignature && len(cfg.Secret) == 0 {
		log.Warn().Msg("signature validation enabled but no secret configured")
	}
	return &Authenticator{cfg: cfg, mode: mode, log: log}
}

func (a *Authenticator) Mode() Mode { return a.mode }

// Authenticate returns nil to accept the request or a *RejectError.
func (a *Authenticator) Authenticate(req *InboundRequest) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var ip string
			if req != nil {
				ip = req.ClientIP
			}
			a.log.Error().
				Str("client_ip", ip).
				Str("panic", fmt.Sprint(r)).
				Msg("webhook validation failed unexpectedly")
			err = reject(ReasonValidationError)
		}
	}()

	if err := a.checkUserAgent(req); err != nil {
		return err
	}
	if err := a.checkSignature(req); err != nil {
		return err
	}
	return a.checkSourceIP(req)
}

func (a *Authenticator) checkUserAgent(req *InboundRequest) error {
	if !a.cfg.RequireUserAgent {
		return nil
	}
	ua := req.Header.Get("User-Agent")
	if ua != "" && strings.Contains(ua, a.cfg.UserAgentToken) {
		metrics.WebhookChecks.WithLabelValues("user_agent", "pass").Inc()
		a.log.Debug().Str("client_ip", req.ClientIP).Msg("user-agent check passed")
		return nil
	}

	ev := a.log.Warn().
		Str("client_ip", req.ClientIP).
		Str("user_agent", logger.Sanitize(ua)).
		Str("mode", a.mode.String())
	if a.mode == Strict {
		metrics.WebhookChecks.WithLabelValues("user_agent", "fail").Inc()
		ev.Msg("suspicious webhook rejected: invalid user-agent")
		return reject(ReasonInvalidUserAgent)
	}
	metrics.WebhookChecks.WithLabelValues("user_agent", "warn").Inc()
	ev.Msg("suspicious webhook: invalid user-agent")
	return nil
}

func (a *Authenticator) checkSignature(req *InboundRequest) error {
	if !a.cfg.EnforceSignature {
		return nil
	}
	if len(a.cfg.Secret) == 0 {
		metrics.WebhookChecks.WithLabelValues("signature", "skip").Inc()
		a.log.Warn().Str("client_ip", req.ClientIP).Msg("signature validation enabled but no secret configured")
		return nil
	}

	header := req.Header.Get(a.cfg.SignatureHeader)
	if header == "" {
		metrics.WebhookChecks.WithLabelValues("signature", "fail").Inc()
		a.log.Error().Str("client_ip", req.ClientIP).Msg("no signature received")
		return reject(ReasonMissingSignature)
	}

	expected := Sign(a.cfg.Secret, req.Body)
	received, hasScheme := strings.CutPrefix(header, a.cfg.SignatureScheme)
	if !hasScheme || !TimingSafeEqual(expected, received) {
		metrics.WebhookChecks.WithLabelValues("signature", "fail").Inc()
		a.log.Error().
			Str("client_ip", req.ClientIP).
			Str("expected", logger.Truncate(expected, forensicLen)).
			Str("received", logger.Truncate(logger.Sanitize(header), forensicLen)).
			Int("body_bytes", len(req.Body)).
			Msg("invalid webhook signature")
		return reject(ReasonInvalidSignature)
	}

	metrics.WebhookChecks.WithLabelValues("signature", "pass").Inc()
	a.log.Info().Str("client_ip", req.ClientIP).Msg("webhook signature validated")
	return nil
}

func (a *Authenticator) checkSourceIP(req *InboundRequest) error {
	if len(a.cfg.AllowedIPs) == 0 {
		return nil
	}
	if _, ok := a.cfg.AllowedIPs[req.ClientIP]; ok {
		metrics.WebhookChecks.WithLabelValues("source_ip", "pass").Inc()
		a.log.Debug().Str("client_ip", req.ClientIP).Msg("source ip allowed")
		return nil
	}
	for _, ip := range req.ForwardedIPs() {
		if _, ok := a.cfg.AllowedIPs[ip]; ok {
			metrics.WebhookChecks.WithLabelValues("source_ip", "pass").Inc()
			a.log.Debug().Str("client_ip", req.ClientIP).Str("forwarded_ip", ip).Msg("source ip allowed")
			return nil
		}
	}

	metrics.WebhookChecks.WithLabelValues("source_ip", "fail").Inc()
	a.log.Error().
		Str("client_ip", req.ClientIP).
		Str("forwarded_for", logger.Sanitize(req.ForwardedFor)).
		Msg("webhook from unauthorized ip")
	return reject(ReasonUnauthorizedIP)
}

// Sign returns the hex HMAC-SHA256 of body under secret, without scheme prefix.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// TimingSafeEqual compares a and b in time independent of their content and length.
// Both sides are reduced to fixed-size digests first, so unequal lengths take the
// same path as equal ones.
func TimingSafeEqual(a, b string) bool {
	da := sha256.Sum256([]byte(a))
	db := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(da[:], db[:]) == 1
}

package services

import (
	"context"
	"net/url"

	"github.com/lnurl-gateway/backend/internal/events"
	"github.com/lnurl-gateway/backend/internal/lnurl"
	"github.com/lnurl-gateway/backend/internal/models"
	"go.uber.org/zap"
)

// audit writes an audit row. Failures are logged, never returned.
func audit(ctx context.Context, a AuditLogger, log *zap.Logger, entry models.AuditLog) {
	if err := a.Log(ctx, entry); err != nil {
		log.Warn("failed to write audit log",
			zap.String("action", entry.Action),
			zap.String("entity_type", entry.EntityType),
			zap.String("entity_id", entry.EntityID),
			zap.Error(err),
		)
	}
}

func publish(ctx context.Context, p events.Publisher, log *zap.Logger, event events.Event) {
	if err := p.Publish(ctx, events.Stream, event); err != nil {
		log.Warn("failed to publish event", zap.String("type", event.Type), zap.Error(err))
	}
}

func strPtr(s string) *string { return &s }

// buildURL joins the public base URL, a path and query parameters.
func buildURL(base, path string, query url.Values) string {
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// encodeOffer turns a first-step URL into the bech32 LNURL and its QR code.
func encodeOffer(rawURL string) (code, qr string, err error) {
	code, err = lnurl.Encode(rawURL)
	if err != nil {
		return "", "", err
	}
	qr, err = lnurl.QRDataURL(lnurl.ProtocolPrefix + code)
	if err != nil {
		return "", "", err
	}
	return code, qr, nil
}

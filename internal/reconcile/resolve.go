package reconcile

import (
	"context"
	"fmt"

	"github.com/commercedesk/backoffice/internal/gateway"
)

// resolved carries whatever the gateway returned for an input id. Exactly one
// of Session or Intent is the primary object; Intent is also set when the
// session arrived with its payment intent expanded.
type resolved struct {
	Kind    gateway.IDKind
	Session *gateway.Session
	Intent  *gateway.PaymentIntent
}

// resolve classifies the raw id and fetches the matching gateway object.
// This is the only step whose failure aborts a run: without a session or an
// intent there is nothing to reconcile.
func resolve(ctx context.Context, gw gateway.Client, id string) (*resolved, error) {
	kind := gateway.ClassifyID(id)
	switch kind {
	case gateway.KindPaymentIntent:
		pi, err := gw.RetrievePaymentIntent(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", id, err)
		}
		return &resolved{Kind: kind, Intent: pi}, nil
	default:
		s, err := gw.RetrieveSession(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", id, err)
		}
		return &resolved{Kind: kind, Session: s, Intent: s.Intent()}, nil
	}
}

// sessionID picks the persisted session key: the session id when the run
// started from a session, else the intent id, else the raw input.
func (r *resolved) sessionID(raw string) string {
	if r.Session != nil && r.Session.ID != "" {
		return r.Session.ID
	}
	if r.Intent != nil && r.Intent.ID != "" {
		return r.Intent.ID
	}
	return raw
}

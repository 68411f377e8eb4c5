package stripe

import stripeapi "github.com/stripe/stripe-go/v72"

// Metadata keys shared between session creation and webhook extraction.
const (
	metaCreator     = "creator"
	metaGiftName    = "gift_name"
	metaGiftMessage = "gift_message"
	metaAnonymous   = "anonymous"
	metaSource      = "source"
)

// buildSessionMetadata flattens a session request into the string map Stripe
// carries through to the webhook. Empty fields are omitted.
func buildSessionMetadata(req CreateSessionRequest) map[string]string {
	meta := make(map[string]string, 5)
	if req.Creator != "" {
		meta[metaCreator] = req.Creator
	}
	if req.SupporterName != "" {
		meta[metaGiftName] = req.SupporterName
	}
	if req.GiftMessage != "" {
		meta[metaGiftMessage] = req.GiftMessage
	}
	if req.Anonymous {
		meta[metaAnonymous] = "true"
	}
	if req.Source != "" {
		meta[metaSource] = req.Source
	}
	return meta
}

// collectSessionMetadata resolves each metadata key independently across the
// completed session, its payment intent, and the intent's first charge, in
// that order. Stripe does not populate the three locations identically, so a
// key absent (or empty) at session level can still arrive on the intent or
// the charge; for every key the first non-empty value wins.
func collectSessionMetadata(s *stripeapi.CheckoutSession) map[string]string {
	merged := make(map[string]string)
	for _, source := range metadataSources(s) {
		for key, value := range source {
			if value == "" {
				continue
			}
			if _, seen := merged[key]; !seen {
				merged[key] = value
			}
		}
	}
	return merged
}

// metadataSources lists the metadata bags attached to a completed session in
// lookup priority order. Unexpanded intents contribute nothing.
func metadataSources(s *stripeapi.CheckoutSession) []map[string]string {
	sources := []map[string]string{s.Metadata}
	if s.PaymentIntent != nil {
		sources = append(sources, s.PaymentIntent.Metadata)
		if s.PaymentIntent.Charges != nil && len(s.PaymentIntent.Charges.Data) > 0 {
			if charge := s.PaymentIntent.Charges.Data[0]; charge != nil {
				sources = append(sources, charge.Metadata)
			}
		}
	}
	return sources
}

// parseAnonymous treats only the exact string "true" as anonymous. Any other
// value, including "1" or "True", keeps the supporter visible.
func parseAnonymous(value string) bool {
	return value == "true"
}

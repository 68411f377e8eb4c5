package stripe

import (
	"testing"

	stripeapi "github.com/stripe/stripe-go/v72"
)

func TestBuildSessionMetadata(t *testing.T) {
	tests := []struct {
		name string
		req  CreateSessionRequest
		want map[string]string
	}{
		{
			name: "full tip request",
			req: CreateSessionRequest{
				Creator:       "alice",
				SupporterName: "Bob",
				GiftMessage:   "keep painting!",
				Anonymous:     true,
				Source:        "creator_page",
			},
			want: map[string]string{
				"creator":      "alice",
				"gift_name":    "Bob",
				"gift_message": "keep painting!",
				"anonymous":    "true",
				"source":       "creator_page",
			},
		},
		{
			name: "undirected payment omits empty fields",
			req:  CreateSessionRequest{Source: "dashboard_card"},
			want: map[string]string{"source": "dashboard_card"},
		},
		{
			name: "non-anonymous omits the flag entirely",
			req:  CreateSessionRequest{Creator: "alice", Anonymous: false},
			want: map[string]string{"creator": "alice"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSessionMetadata(tt.req)
			if len(got) != len(tt.want) {
				t.Errorf("metadata length = %d, want %d (%v)", len(got), len(tt.want), got)
			}
			for key, want := range tt.want {
				if got[key] != want {
					t.Errorf("metadata[%q] = %q, want %q", key, got[key], want)
				}
			}
		})
	}
}

func TestCollectSessionMetadata_OrderedFallback(t *testing.T) {
	sessionMeta := map[string]string{"creator": "from-session"}
	intentMeta := map[string]string{"creator": "from-intent"}
	chargeMeta := map[string]string{"creator": "from-charge"}

	tests := []struct {
		name    string
		session *stripeapi.CheckoutSession
		want    string
	}{
		{
			name: "session metadata wins",
			session: &stripeapi.CheckoutSession{
				Metadata: sessionMeta,
				PaymentIntent: &stripeapi.PaymentIntent{
					Metadata: intentMeta,
				},
			},
			want: "from-session",
		},
		{
			name: "falls back to payment intent",
			session: &stripeapi.CheckoutSession{
				PaymentIntent: &stripeapi.PaymentIntent{
					Metadata: intentMeta,
					Charges: &stripeapi.ChargeList{
						Data: []*stripeapi.Charge{{Metadata: chargeMeta}},
					},
				},
			},
			want: "from-intent",
		},
		{
			name: "falls back to first charge",
			session: &stripeapi.CheckoutSession{
				PaymentIntent: &stripeapi.PaymentIntent{
					Charges: &stripeapi.ChargeList{
						Data: []*stripeapi.Charge{{Metadata: chargeMeta}},
					},
				},
			},
			want: "from-charge",
		},
		{
			name:    "nothing populated yields empty bag",
			session: &stripeapi.CheckoutSession{},
			want:    "",
		},
		{
			name: "unexpanded intent with no metadata yields empty bag",
			session: &stripeapi.CheckoutSession{
				PaymentIntent: &stripeapi.PaymentIntent{ID: "pi_1"},
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collectSessionMetadata(tt.session)
			if got == nil {
				t.Fatal("collectSessionMetadata() = nil, want non-nil map")
			}
			if got["creator"] != tt.want {
				t.Errorf("metadata[creator] = %q, want %q", got["creator"], tt.want)
			}
		})
	}
}

func TestCollectSessionMetadata_PerKeyFallback(t *testing.T) {
	tests := []struct {
		name    string
		session *stripeapi.CheckoutSession
		want    map[string]string
	}{
		{
			name: "gift fields only on the intent survive a populated session bag",
			session: &stripeapi.CheckoutSession{
				Metadata: map[string]string{"source": "dashboard_card"},
				PaymentIntent: &stripeapi.PaymentIntent{
					Metadata: map[string]string{"creator": "alice", "gift_name": "Bob"},
				},
			},
			want: map[string]string{
				"source":    "dashboard_card",
				"creator":   "alice",
				"gift_name": "Bob",
			},
		},
		{
			name: "keys split across all three sources",
			session: &stripeapi.CheckoutSession{
				Metadata: map[string]string{"creator": "alice"},
				PaymentIntent: &stripeapi.PaymentIntent{
					Metadata: map[string]string{"gift_name": "Bob"},
					Charges: &stripeapi.ChargeList{
						Data: []*stripeapi.Charge{{Metadata: map[string]string{"gift_message": "thanks"}}},
					},
				},
			},
			want: map[string]string{
				"creator":      "alice",
				"gift_name":    "Bob",
				"gift_message": "thanks",
			},
		},
		{
			name: "empty session value falls through to the intent's",
			session: &stripeapi.CheckoutSession{
				Metadata: map[string]string{"creator": "", "source": "creator_page"},
				PaymentIntent: &stripeapi.PaymentIntent{
					Metadata: map[string]string{"creator": "alice"},
				},
			},
			want: map[string]string{
				"creator": "alice",
				"source":  "creator_page",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collectSessionMetadata(tt.session)
			if len(got) != len(tt.want) {
				t.Errorf("metadata length = %d, want %d (%v)", len(got), len(tt.want), got)
			}
			for key, want := range tt.want {
				if got[key] != want {
					t.Errorf("metadata[%q] = %q, want %q", key, got[key], want)
				}
			}
		})
	}
}

func TestParseAnonymous(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"True", false},
		{"TRUE", false},
		{"1", false},
		{"yes", false},
		{"", false},
		{"false", false},
	}

	for _, tt := range tests {
		if got := parseAnonymous(tt.value); got != tt.want {
			t.Errorf("parseAnonymous(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

package models

import (
	"errors"
	"fmt"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/goccy/go-json"
)

// PushSubscription is a browser PushSubscription as returned by PushManager.subscribe().
// Only the endpoint is read by the dispatcher; the raw JSON is kept as is so that
// relay specific fields (keys, expirationTime...) survive a round trip.
type PushSubscription struct {
	webpush.Subscription
	Raw json.RawMessage `json:"-"`
}

// ParsePushSubscription decodes and validates a subscription record.
func ParsePushSubscription(data []byte) (*PushSubscription, error) {
	if len(data) == 0 {
		return nil, errors.New("empty subscription")
	}
	sub := &PushSubscription{}
	if err := json.Unmarshal(data, &sub.Subscription); err != nil {
		return nil, fmt.Errorf("decoding subscription: %w", err)
	}
	if err := validate.Var(sub.Endpoint, "required,url,startswith=http"); err != nil {
		return nil, fmt.Errorf("invalid subscription endpoint %q: %w", sub.Endpoint, err)
	}
	sub.Raw = append(json.RawMessage(nil), data...)
	return sub, nil
}

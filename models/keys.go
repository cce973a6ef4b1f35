package models

import "strings"

// Store key scheme. Device and subscription records share the device ID suffix.
const (
	DeviceKeyPrefix       = "user:"
	SubscriptionKeyPrefix = "sub:"
	CampaignKey           = "lastCampaign"
)

func DeviceKey(deviceID string) string {
	return DeviceKeyPrefix + deviceID
}

func SubscriptionKey(deviceID string) string {
	return SubscriptionKeyPrefix + deviceID
}

// DeviceIDFromSubscriptionKey extracts the owning device ID from a `sub:` key.
func DeviceIDFromSubscriptionKey(key string) (string, bool) {
	if !strings.HasPrefix(key, SubscriptionKeyPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(key, SubscriptionKeyPrefix)
	return id, id != ""
}

package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/m-barthelemy/wakepush/models"
	"github.com/m-barthelemy/wakepush/services/store"
	log "github.com/sirupsen/logrus"
)

const (
	maxDeviceIDLength   = 120
	maxUsernameLength   = 64
	maxClientInfoLength = 32
	maxPermissionLength = 16

	DefaultPageLimit = 50
	MaxPageLimit     = 200
	searchPageSize   = 1000
)

var invalidIDChars = regexp.MustCompile(`[^\w\-:]`)

// DeviceInput is a device registration as sent by the client.
type DeviceInput struct {
	DeviceID   string `json:"deviceId"`
	Username   string `json:"username"`
	Platform   string `json:"platform"`
	Browser    string `json:"browser"`
	Installed  bool   `json:"installed"`
	Permission string `json:"permission"`
	Subscribed bool   `json:"subscribed"`
}

// DevicePage is one page of the device listing. Cursor is empty on the last page.
type DevicePage struct {
	Users  []*models.DeviceRecord
	Cursor string
}

type DeviceManager struct {
	store     store.Store
	config    *models.Config
	protector *DataProtector
	now       func() time.Time
}

// NewDeviceManager creates an instance of DeviceManager
func NewDeviceManager(st store.Store, config *models.Config) *DeviceManager {
	return &DeviceManager{store: st, config: config, protector: NewDataProtector(config), now: time.Now}
}

// NormalizeDeviceID keeps letters, digits, '_', '-' and ':' and cuts the ID to its maximum length.
func NormalizeDeviceID(id string) string {
	id = invalidIDChars.ReplaceAllString(strings.TrimSpace(id), "")
	if len(id) > maxDeviceIDLength {
		id = id[:maxDeviceIDLength]
	}
	return id
}

// NormalizeUsername cuts the username to its maximum length and removes all whitespace.
func NormalizeUsername(username string) string {
	return strings.Join(strings.Fields(models.Truncate(username, maxUsernameLength)), "")
}

func normalizePermission(permission string) string {
	permission = models.Truncate(permission, maxPermissionLength)
	switch permission {
	case models.PermissionDefault, models.PermissionGranted, models.PermissionDenied:
		return permission
	}
	return ""
}

// UpsertDevice creates or replaces a device profile. FirstSeen is kept from the existing record.
func (m *DeviceManager) UpsertDevice(ctx context.Context, input DeviceInput) (*models.DeviceRecord, error) {
	deviceID := NormalizeDeviceID(input.DeviceID)
	username := NormalizeUsername(input.Username)
	if deviceID == "" || username == "" {
		return nil, fmt.Errorf("%w: deviceId + username required", ErrInvalidInput)
	}

	now := m.now().UnixMilli()
	device := &models.DeviceRecord{
		DeviceID:   deviceID,
		Username:   username,
		Platform:   models.Truncate(input.Platform, maxClientInfoLength),
		Browser:    models.Truncate(input.Browser, maxClientInfoLength),
		Installed:  input.Installed,
		Permission: normalizePermission(input.Permission),
		Subscribed: input.Subscribed,
		FirstSeen:  now,
		LastSeen:   now,
	}

	previous, err := m.getDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if previous != nil && previous.FirstSeen > 0 {
		device.FirstSeen = previous.FirstSeen
	}

	if err := m.putDevice(ctx, device); err != nil {
		return nil, err
	}
	if previous == nil {
		log.Infof("DeviceManager: Registered new device %s for %s", deviceID, username)
	}
	return device, nil
}

// Subscribe stores the push subscription of a device and marks the device as subscribed.
// An existing subscription for the same device is replaced.
func (m *DeviceManager) Subscribe(ctx context.Context, deviceID string, username string, subscription []byte) error {
	deviceID = NormalizeDeviceID(deviceID)
	username = NormalizeUsername(username)
	if deviceID == "" || username == "" || len(subscription) == 0 || string(subscription) == "null" {
		return fmt.Errorf("%w: deviceId, username and subscription required", ErrInvalidInput)
	}
	sub, err := models.ParsePushSubscription(subscription)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	sealed, err := m.protector.Seal(sub.Raw)
	if err != nil {
		return err
	}
	subKey := models.SubscriptionKey(deviceID)
	if err := m.store.Put(ctx, subKey, sealed); err != nil {
		return &StoreError{Op: "put", Key: subKey, Err: err}
	}

	now := m.now().UnixMilli()
	device, err := m.getDevice(ctx, deviceID)
	if err != nil {
		return err
	}
	if device == nil {
		device = &models.DeviceRecord{DeviceID: deviceID, FirstSeen: now}
	}
	device.Username = username
	device.Subscribed = true
	device.Permission = models.PermissionGranted
	device.LastSeen = now

	if err := m.putDevice(ctx, device); err != nil {
		return err
	}
	log.Infof("DeviceManager: Saved Web push subscription for device %s (%s)", deviceID, username)
	return nil
}

// ListDevices returns one page of devices, most recently seen first.
func (m *DeviceManager) ListDevices(ctx context.Context, cursor string, limit int) (*DevicePage, error) {
	if cursor != "" && !strings.HasPrefix(cursor, models.DeviceKeyPrefix) {
		return nil, fmt.Errorf("%w: bad cursor", ErrInvalidInput)
	}
	limit = clampLimit(limit)

	page, err := m.store.List(ctx, models.DeviceKeyPrefix, cursor, limit)
	if err != nil {
		return nil, &StoreError{Op: "list", Key: models.DeviceKeyPrefix, Err: err}
	}
	users, err := m.loadDevices(ctx, page.Keys, nil, 0)
	if err != nil {
		return nil, err
	}
	sortByLastSeen(users)

	result := &DevicePage{Users: users}
	if !page.Complete {
		result.Cursor = page.Cursor
	}
	return result, nil
}

// SearchDevices scans all devices for usernames containing query, case insensitively,
// and stops once limit matches are found.
func (m *DeviceManager) SearchDevices(ctx context.Context, query string, limit int) ([]*models.DeviceRecord, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	found := make([]*models.DeviceRecord, 0)
	if query == "" {
		return found, nil
	}
	limit = clampLimit(limit)

	match := func(d *models.DeviceRecord) bool {
		return strings.Contains(strings.ToLower(d.Username), query)
	}

	cursor := ""
	for len(found) < limit {
		page, err := m.store.List(ctx, models.DeviceKeyPrefix, cursor, searchPageSize)
		if err != nil {
			return nil, &StoreError{Op: "list", Key: models.DeviceKeyPrefix, Err: err}
		}
		matches, err := m.loadDevices(ctx, page.Keys, match, limit-len(found))
		if err != nil {
			return nil, err
		}
		found = append(found, matches...)
		if page.Complete {
			break
		}
		cursor = page.Cursor
	}

	sortByLastSeen(found)
	return found, nil
}

// LastCampaign returns the current campaign, or the default one if nothing was sent yet.
func (m *DeviceManager) LastCampaign(ctx context.Context) (*models.Campaign, error) {
	raw, err := m.store.Get(ctx, models.CampaignKey)
	if errors.Is(err, store.ErrNotFound) {
		return models.EmptyCampaign(), nil
	}
	if err != nil {
		return nil, &StoreError{Op: "get", Key: models.CampaignKey, Err: err}
	}
	campaign, err := models.ParseCampaign(raw)
	if err != nil {
		log.Warnf("DeviceManager: ignoring malformed campaign record: %s", err)
		return models.EmptyCampaign(), nil
	}
	return campaign, nil
}

// loadDevices reads the device records behind keys, ignoring missing or malformed ones.
// When match is set only matching records are kept, at most max of them (0 = no max).
func (m *DeviceManager) loadDevices(ctx context.Context, keys []string, match func(*models.DeviceRecord) bool, max int) ([]*models.DeviceRecord, error) {
	devices := make([]*models.DeviceRecord, 0, len(keys))
	for _, key := range keys {
		raw, err := m.store.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, &StoreError{Op: "get", Key: key, Err: err}
		}
		device, err := models.ParseDeviceRecord(raw)
		if err != nil {
			log.Debugf("DeviceManager: ignoring malformed device %s: %s", key, err)
			continue
		}
		if match != nil && !match(device) {
			continue
		}
		devices = append(devices, device)
		if max > 0 && len(devices) >= max {
			break
		}
	}
	return devices, nil
}

func (m *DeviceManager) getDevice(ctx context.Context, deviceID string) (*models.DeviceRecord, error) {
	key := models.DeviceKey(deviceID)
	raw, err := m.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "get", Key: key, Err: err}
	}
	device, err := models.ParseDeviceRecord(raw)
	if err != nil {
		log.Warnf("DeviceManager: overwriting malformed device %s: %s", key, err)
		return nil, nil
	}
	return device, nil
}

func (m *DeviceManager) putDevice(ctx context.Context, device *models.DeviceRecord) error {
	data, err := device.Encode()
	if err != nil {
		return err
	}
	key := models.DeviceKey(device.DeviceID)
	if err := m.store.Put(ctx, key, data); err != nil {
		return &StoreError{Op: "put", Key: key, Err: err}
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

func sortByLastSeen(devices []*models.DeviceRecord) {
	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].LastSeen > devices[j].LastSeen
	})
}

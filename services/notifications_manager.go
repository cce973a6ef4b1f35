package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/gofrs/uuid"
	"github.com/m-barthelemy/wakepush/models"
	"github.com/m-barthelemy/wakepush/services/store"
	"github.com/m-barthelemy/wakepush/services/vapid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Event bus topics published by the dispatcher.
const (
	// Argument: device ID (string)
	TopicSubscriptionPruned = "subscription:pruned"
	// Argument: *Report
	TopicCampaignDispatched = "campaign:dispatched"
)

// Relay response bodies and transport errors are cut to this many characters in reports.
const maxDiagnosticBody = 120

// defaultPushTimeout bounds a send when the configured timeout is unusable.
const defaultPushTimeout = 10 * time.Second

type NotificationsManager struct {
	store     store.Store
	config    *models.Config
	bus       *EventBus.Bus
	key       *vapid.KeyHandle
	client    *http.Client
	protector *DataProtector
	timeout   time.Duration
}

// RelayResult is what the push relay answered.
type RelayResult struct {
	Status int
	Body   string
}

// Success reports whether the relay accepted the push.
func (r *RelayResult) Success() bool {
	return r.Status >= 200 && r.Status < 300
}

// Gone reports whether the relay says the subscription no longer exists.
func (r *RelayResult) Gone() bool {
	return r.Status == http.StatusNotFound || r.Status == http.StatusGone
}

// DispatchError is the diagnostic kept for a subscriber that could not be notified.
// Status is 0 when no HTTP response was received.
type DispatchError struct {
	Key    string `json:"key"`
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// Report is the outcome of a campaign dispatch.
type Report struct {
	OK      int             `json:"ok"`
	Fail    int             `json:"fail"`
	Pruned  int             `json:"pruned"`
	Skipped int             `json:"skipped"`
	Errors  []DispatchError `json:"errors"`

	Campaign *models.Campaign `json:"-"`
	mu       sync.Mutex
}

func (r *Report) success() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.OK++
	pushResults.WithLabelValues("ok").Inc()
}

func (r *Report) failure(key string, status int, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Fail++
	r.Errors = append(r.Errors, DispatchError{Key: key, Status: status, Body: models.Truncate(body, maxDiagnosticBody)})
	pushResults.WithLabelValues("failed").Inc()
}

func (r *Report) gone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Fail++
	r.Pruned++
	pushResults.WithLabelValues("pruned").Inc()
}

// cleanupFailure records a prune that could not be completed.
// The subscriber was already counted by gone().
func (r *Report) cleanupFailure(key string, status int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, DispatchError{Key: key, Status: status, Body: models.Truncate("cleanup failed: "+err.Error(), maxDiagnosticBody)})
}

func (r *Report) skip() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skipped++
	pushResults.WithLabelValues("skipped").Inc()
}

// NewNotificationsManager creates the push dispatcher. key may be nil, in which case
// every dispatch fails its pre-flight check.
func NewNotificationsManager(st store.Store, config *models.Config, bus *EventBus.Bus, key *vapid.KeyHandle) *NotificationsManager {
	timeout := config.PushTimeout
	if timeout <= 0 {
		timeout = defaultPushTimeout
	}
	return &NotificationsManager{
		store:     st,
		config:    config,
		bus:       bus,
		key:       key,
		client:    &http.Client{Timeout: timeout},
		protector: NewDataProtector(config),
		timeout:   timeout,
	}
}

// SendWake sends one payload-less push to the subscription endpoint.
// A relay error status is not an error: it is returned in the RelayResult for the caller to classify.
func (n *NotificationsManager) SendWake(ctx context.Context, sub *models.PushSubscription, key *vapid.KeyHandle, publicKey string) (*RelayResult, error) {
	audience, err := vapid.Audience(sub.Endpoint)
	if err != nil {
		return nil, &TransportError{Endpoint: sub.Endpoint, Err: err}
	}
	token, err := vapid.NewSigner(key).Sign(audience, n.config.VapidSubject)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, nil)
	if err != nil {
		return nil, &TransportError{Endpoint: sub.Endpoint, Err: err}
	}
	req.Header.Set("Authorization", "WebPush "+token)
	req.Header.Set("Crypto-Key", "p256ecdsa="+publicKey)
	req.Header.Set("TTL", strconv.Itoa(n.config.PushTTL))

	start := time.Now()
	resp, err := n.client.Do(req)
	pushLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &TransportError{Endpoint: sub.Endpoint, Err: err}
	}
	defer resp.Body.Close()

	// Relays answer errors with short diagnostics; don't read more than needed for the report.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*maxDiagnosticBody))
	return &RelayResult{Status: resp.StatusCode, Body: models.Truncate(string(body), maxDiagnosticBody)}, nil
}

// DispatchCampaign stores the campaign then wakes every subscribed device.
// Per subscriber failures end up in the report. A store failure while enumerating
// stops the dispatch and returns the partial report along with a *StoreError.
func (n *NotificationsManager) DispatchCampaign(ctx context.Context, title string, body string) (*Report, error) {
	if n.key == nil {
		return nil, &vapid.KeyImportError{Reason: "no VAPID key loaded"}
	}

	start := time.Now()
	runID, _ := uuid.NewV4()
	campaign, err := models.NewCampaign(title, body, start)
	if err != nil {
		return nil, err
	}
	data, err := campaign.Encode()
	if err != nil {
		return nil, err
	}
	// Clients fetch the campaign when woken up, so it has to be there before the first push.
	if err := n.store.Put(ctx, models.CampaignKey, data); err != nil {
		return nil, &StoreError{Op: "put", Key: models.CampaignKey, Err: err}
	}
	log.Debugf("NotificationsManager: dispatch %s started for campaign %s", runID, campaign.ID)

	report := &Report{Errors: []DispatchError{}, Campaign: campaign}
	publicKey := n.key.PublicKeyBase64()

	cursor := ""
	for {
		page, err := n.store.List(ctx, models.SubscriptionKeyPrefix, cursor, n.config.PageSize)
		if err != nil {
			err = &StoreError{Op: "list", Key: models.SubscriptionKeyPrefix, Err: err}
			log.Errorf("NotificationsManager: dispatch %s interrupted: %s", runID, err)
			return report, err
		}
		if err := n.dispatchPage(ctx, page.Keys, report, publicKey); err != nil {
			log.Errorf("NotificationsManager: dispatch %s interrupted: %s", runID, err)
			return report, err
		}
		if page.Complete {
			break
		}
		cursor = page.Cursor
	}

	elapsed := time.Since(start)
	dispatchDuration.Observe(elapsed.Seconds())
	lastDispatch.SetToCurrentTime()
	log.Infof("NotificationsManager: dispatch %s done in %v: %d ok, %d failed (%d pruned), %d skipped", runID, elapsed, report.OK, report.Fail, report.Pruned, report.Skipped)

	n.publish(TopicCampaignDispatched, report)
	return report, nil
}

func (n *NotificationsManager) dispatchPage(ctx context.Context, keys []string, report *Report, publicKey string) error {
	if n.config.Workers <= 1 {
		for _, key := range keys {
			if err := n.dispatchOne(ctx, key, report, publicKey); err != nil {
				return err
			}
		}
		return nil
	}

	// gctx only stops scheduling after a store failure. Sends already started keep
	// the parent context so they are not reported as relay failures.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.config.Workers)
	for _, key := range keys {
		if gctx.Err() != nil {
			break
		}
		key := key
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return n.dispatchOne(ctx, key, report, publicKey)
		})
	}
	return g.Wait()
}

// dispatchOne only returns an error when the store fails.
func (n *NotificationsManager) dispatchOne(ctx context.Context, key string, report *Report, publicKey string) error {
	deviceID, ok := models.DeviceIDFromSubscriptionKey(key)
	if !ok {
		log.Warnf("NotificationsManager: skipping unexpected key %s", key)
		report.skip()
		return nil
	}

	raw, err := n.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		// Removed since the page was listed.
		return nil
	}
	if err != nil {
		return &StoreError{Op: "get", Key: key, Err: err}
	}

	raw, err = n.protector.Open(raw)
	if err != nil {
		log.Warnf("NotificationsManager: skipping unreadable subscription %s: %s", key, err)
		report.skip()
		return nil
	}
	sub, err := models.ParsePushSubscription(raw)
	if err != nil {
		log.Warnf("NotificationsManager: skipping malformed subscription %s: %s", key, err)
		report.skip()
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
	result, err := n.SendWake(sendCtx, sub, n.key, publicKey)
	cancel()
	if err != nil {
		log.Debugf("NotificationsManager: push for %s failed: %s", key, err)
		report.failure(key, 0, err.Error())
		return nil
	}

	switch {
	case result.Success():
		report.success()
	case result.Gone():
		report.gone()
		if err := n.prune(ctx, deviceID); err != nil {
			log.Errorf("NotificationsManager: could not prune expired subscription %s: %s", key, err)
			report.cleanupFailure(key, result.Status, err)
		}
	default:
		log.Debugf("NotificationsManager: relay answered %d for %s", result.Status, key)
		report.failure(key, result.Status, result.Body)
	}
	return nil
}

// prune deletes an expired subscription and flags its device as unsubscribed.
func (n *NotificationsManager) prune(ctx context.Context, deviceID string) error {
	subKey := models.SubscriptionKey(deviceID)
	if err := n.store.Delete(ctx, subKey); err != nil {
		return &StoreError{Op: "delete", Key: subKey, Err: err}
	}
	n.publish(TopicSubscriptionPruned, deviceID)

	deviceKey := models.DeviceKey(deviceID)
	raw, err := n.store.Get(ctx, deviceKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return &StoreError{Op: "get", Key: deviceKey, Err: err}
	}
	device, err := models.ParseDeviceRecord(raw)
	if err != nil {
		log.Warnf("NotificationsManager: not updating malformed device %s: %s", deviceKey, err)
		return nil
	}
	device.Subscribed = false
	data, err := device.Encode()
	if err != nil {
		return err
	}
	if err := n.store.Put(ctx, deviceKey, data); err != nil {
		return &StoreError{Op: "put", Key: deviceKey, Err: err}
	}
	return nil
}

func (n *NotificationsManager) publish(topic string, arg interface{}) {
	if n.bus == nil {
		return
	}
	bus := *n.bus
	bus.Publish(topic, arg)
}

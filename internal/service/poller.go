package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/water-softener-worker/internal/anomaly"
	"github.com/septivank/water-softener-worker/internal/bwt"
	"github.com/septivank/water-softener-worker/internal/config"
	"github.com/septivank/water-softener-worker/internal/db"
	"github.com/septivank/water-softener-worker/internal/logging"
	"github.com/septivank/water-softener-worker/internal/mq"
	"github.com/septivank/water-softener-worker/internal/repository"
	"github.com/septivank/water-softener-worker/internal/sensor"
	"github.com/septivank/water-softener-worker/internal/validator"
	"go.uber.org/zap"
)

// PollRequest is an on-demand refresh command from the host platform.
// An empty device key means "the configured device".
type PollRequest struct {
	DeviceKey string `json:"device_key"`
}

// Poller owns one client handle for the configured device and drives
// the poll cycle: fetch, validate, monitor, persist, publish. Scheduled
// ticks and on-demand requests are serialized; at most one poll runs at
// a time per device.
type Poller struct {
	client    *bwt.Client
	repo      *repository.Repository
	publisher *mq.Publisher
	detector  *anomaly.Detector
	validator *validator.Validator
	cfg       *config.Config
	logger    *zap.Logger

	mu sync.Mutex
}

// NewPoller creates a new poller service
func NewPoller(
	client *bwt.Client,
	repo *repository.Repository,
	publisher *mq.Publisher,
	detector *anomaly.Detector,
	validator *validator.Validator,
	cfg *config.Config,
	logger *zap.Logger,
) *Poller {
	return &Poller{
		client:    client,
		repo:      repo,
		publisher: publisher,
		detector:  detector,
		validator: validator,
		cfg:       cfg,
		logger:    logging.WithDeviceKey(logger, cfg.BWT.DeviceKey),
	}
}

// Run polls immediately, then on every tick of the configured interval
// until the context is cancelled. Poll failures are reported downstream
// and retried on the next tick; nothing here is fatal.
func (p *Poller) Run(ctx context.Context) {
	interval := time.Duration(p.cfg.BWT.PollIntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("poller started", zap.Duration("interval", interval))

	if last, err := p.repo.GetSnapshot(ctx, p.cfg.BWT.DeviceKey); err == nil {
		p.logger.Info("resuming from last known snapshot",
			zap.Time("polled_at", last.PolledAt),
			zap.Float64("water_liters", last.WaterLiters),
			zap.String("validation_status", last.ValidationStatus),
		)
	}

	if err := p.PollOnce(ctx); err != nil {
		p.logger.Warn("initial poll failed, will retry on next tick", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return
		case <-ticker.C:
			if err := p.PollOnce(ctx); err != nil {
				p.logger.Warn("poll failed, will retry on next tick", zap.Error(err))
			}
		}
	}
}

// HandlePollRequest processes an on-demand refresh command from the
// command queue.
func (p *Poller) HandlePollRequest(ctx context.Context, body []byte) error {
	var req PollRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return fmt.Errorf("failed to unmarshal poll request: %w", err)
	}

	if req.DeviceKey != "" && req.DeviceKey != p.cfg.BWT.DeviceKey {
		// Misrouted request for a device this worker does not own.
		p.logger.Warn("ignoring poll request for unknown device",
			zap.String("requested_device_key", req.DeviceKey),
		)
		return nil
	}

	return p.PollOnce(ctx)
}

// PollOnce runs one full poll cycle. A nil error with no fresh data
// (device has no history yet) still notifies consumers so they mark
// the sensors unavailable.
func (p *Poller) PollOnce(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	polledAt := time.Now().UTC()

	snapshot, err := p.client.FetchData(ctx)
	if err != nil {
		p.logger.Error("failed to fetch device data", zap.Error(err))
		p.publishPollFailed(ctx, errorKind(err), err.Error(), polledAt)
		return err
	}

	if snapshot == nil {
		p.logger.Info("device has no history yet")
		p.publishPollFailed(ctx, "no_data", "device returned an empty history", polledAt)
		return nil
	}

	readingTime, validation := p.validator.ValidateSnapshot(snapshot, polledAt)
	if readingTime.IsZero() {
		readingTime = polledAt
	}

	validationStatus := "valid"
	var anomalyReason *string

	if !validation.IsValid {
		validationStatus = "invalid"
		anomalyReason = &validation.Reason
		p.logger.Warn("snapshot failed validation", zap.String("reason", validation.Reason))
	} else {
		// Counter anomaly check against the previous poll's window.
		// Read before the window is replaced below.
		recent, err := p.repo.RecentWaterReadings(ctx, p.cfg.BWT.DeviceKey, 10)
		if err != nil {
			p.logger.Warn("failed to get recent readings for anomaly detection", zap.Error(err))
		} else if isAnomaly, reason := p.detector.DetectAnomaly(snapshot.WaterLiters, recent); isAnomaly {
			// Annotate only. A counter reset is a legitimate device
			// event, not a reason to withhold the snapshot.
			anomalyReason = &reason
			p.logger.Warn("counter anomaly detected", zap.String("reason", reason))
		}
	}

	cubicMeters := sensor.CubicMeters(snapshot.WaterLiters)
	cost := sensor.Cost(snapshot.WaterLiters, p.cfg.BWT.WaterPricePerM3)

	if err := p.store(ctx, snapshot, readingTime, cubicMeters, cost, validationStatus, anomalyReason, polledAt); err != nil {
		p.logger.Error("failed to store snapshot", zap.Error(err))
		return err
	}

	event := mq.SnapshotEvent{
		EventID:           uuid.New().String(),
		DeviceKey:         p.cfg.BWT.DeviceKey,
		Date:              snapshot.Date,
		WaterConsumption:  snapshot.WaterLiters,
		WaterCubicMeters:  cubicMeters,
		EstimatedCost:     cost,
		RegenerationCount: snapshot.RegenerationCount,
		PowerOutage:       snapshot.PowerOutage,
		SaltAlarm:         snapshot.SaltAlarm,
		Online:            snapshot.Online,
		Connected:         snapshot.Connected,
		LastSeen:          snapshot.LastSeen,
		History:           snapshot.History,
		Readings:          sensor.Readings(snapshot, p.cfg.BWT.WaterPricePerM3),
		ValidationStatus:  validationStatus,
		PolledAt:          polledAt,
	}
	if anomalyReason != nil {
		event.AnomalyReason = *anomalyReason
	}

	if err := p.publisher.PublishSnapshotEvent(ctx, event, p.cfg.RabbitMQ.SnapshotRoutingKey); err != nil {
		// The snapshot is already stored; consumers catch up next tick.
		p.logger.Error("failed to publish snapshot event", zap.Error(err))
	}

	p.logger.Info("poll completed",
		zap.String("date", snapshot.Date),
		zap.Float64("water_liters", snapshot.WaterLiters),
		zap.Int("regeneration_count", snapshot.RegenerationCount),
		zap.String("validation_status", validationStatus),
	)

	return nil
}

func (p *Poller) store(
	ctx context.Context,
	snapshot *bwt.DeviceSnapshot,
	readingTime time.Time,
	cubicMeters, cost float64,
	validationStatus string,
	anomalyReason *string,
	polledAt time.Time,
) error {
	tx, err := p.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := &db.SoftenerSnapshot{
		DeviceKey:         p.cfg.BWT.DeviceKey,
		ReadingDate:       readingTime,
		WaterLiters:       snapshot.WaterLiters,
		WaterCubicMeters:  cubicMeters,
		EstimatedCost:     cost,
		RegenerationCount: snapshot.RegenerationCount,
		PowerOutage:       snapshot.PowerOutage,
		SaltAlarm:         snapshot.SaltAlarm,
		Online:            snapshot.Online,
		Connected:         snapshot.Connected,
		LastSeen:          snapshot.LastSeen,
		ValidationStatus:  validationStatus,
		AnomalyReason:     anomalyReason,
		PolledAt:          polledAt,
	}

	if err := p.repo.UpsertSnapshotTx(ctx, tx, row); err != nil {
		return err
	}

	historyRows := make([]db.SoftenerHistoryRow, 0, len(snapshot.History))
	for i, entry := range snapshot.History {
		historyRows = append(historyRows, db.SoftenerHistoryRow{
			DeviceKey:         p.cfg.BWT.DeviceKey,
			Position:          i,
			ReadingDate:       entry.Date,
			WaterLiters:       entry.WaterLiters,
			RegenerationCount: entry.RegenerationCount,
			PowerOutage:       entry.PowerOutage,
			SaltAlarm:         entry.SaltAlarm,
			PolledAt:          polledAt,
		})
	}

	if err := p.repo.ReplaceHistoryWindowTx(ctx, tx, p.cfg.BWT.DeviceKey, historyRows); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (p *Poller) publishPollFailed(ctx context.Context, kind, message string, polledAt time.Time) {
	event := mq.PollFailedEvent{
		EventID:   uuid.New().String(),
		DeviceKey: p.cfg.BWT.DeviceKey,
		ErrorKind: kind,
		Error:     message,
		PolledAt:  polledAt,
	}

	if err := p.publisher.PublishPollFailed(ctx, event, p.cfg.RabbitMQ.PollFailedRoutingKey); err != nil {
		p.logger.Error("failed to publish poll-failed event", zap.Error(err))
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, bwt.ErrAuthentication):
		return "authentication"
	case errors.Is(err, bwt.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, bwt.ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}

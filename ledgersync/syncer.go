// Package ledgersync pushes reconciled tax report rows into the accounting
// ledger as a single all-or-nothing transaction.
package ledgersync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/taxsales_validator/config"
	"github.com/mmdatafocus/taxsales_validator/models"
	"github.com/mmdatafocus/taxsales_validator/reconcile"
	"github.com/mmdatafocus/taxsales_validator/salesmap"
	"github.com/mmdatafocus/taxsales_validator/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("taxsales-ledgersync")

const (
	DefaultAmountTolerancePct = 0.5
	DefaultChunkSize          = 100
	DefaultTimeout            = 300 * time.Second
)

type ProgressEvent struct {
	Chunk  int
	Chunks int
	Done   int
	Total  int
}

type Options struct {
	DryRun bool
	// Override skips the discrepancy and amount tolerance gates. Store checks always apply.
	Override           bool
	AmountTolerancePct float64
	// ChunkSize only paces progress reporting; the whole batch is one transaction.
	ChunkSize int
	Timeout   time.Duration
	// AuditRuns records real runs through the store when it implements RunRecorder.
	AuditRuns bool
	Progress  func(ProgressEvent)
}

func DefaultOptions() Options {
	return Options{
		DryRun:             true,
		AmountTolerancePct: DefaultAmountTolerancePct,
		ChunkSize:          DefaultChunkSize,
		Timeout:            DefaultTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.AmountTolerancePct <= 0 {
		o.AmountTolerancePct = DefaultAmountTolerancePct
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Syncer runs one sync per Sync call. It holds no state between calls.
type Syncer struct {
	store  Store
	mapper *salesmap.Mapper
	opts   Options
	logger *logrus.Logger
	now    func() time.Time
}

// NewSyncer accepts a nil store; Sync then blocks with BlockStoreNotConfigured.
func NewSyncer(store Store, mapper *salesmap.Mapper, opts Options, logger *logrus.Logger) *Syncer {
	if logger == nil {
		logger = logrus.New()
	}
	if mapper == nil {
		mapper = salesmap.NewMapper(logger)
	}
	return &Syncer{
		store:  store,
		mapper: mapper,
		opts:   opts.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

func (s *Syncer) Options() Options {
	return s.opts
}

// CheckPrerequisites evaluates the gates in order and returns the first that fails.
// An empty reason means the sync may proceed.
func (s *Syncer) CheckPrerequisites(ctx context.Context, stats reconcile.ComparisonStats) (BlockReason, string) {
	if s.store == nil {
		return BlockStoreNotConfigured, "accounting database is not configured"
	}
	if err := s.store.TestConnection(ctx); err != nil {
		return BlockStoreUnreachable, err.Error()
	}
	if s.opts.Override {
		return "", ""
	}
	if n := stats.Discrepancies(); n > 0 {
		return BlockDiscrepancies, fmt.Sprintf("%d invoices only in tax report, %d only in inventory", stats.OnlySource, stats.OnlyReference)
	}
	if stats.MismatchAmountPct > s.opts.AmountTolerancePct {
		return BlockAmountTolerance, fmt.Sprintf("amount mismatches add up to %.2f%% of the tax report total, limit %.2f%%", stats.MismatchAmountPct, s.opts.AmountTolerancePct)
	}
	return "", ""
}

// Sync maps the sync-eligible rows of result and writes them to the store.
// The returned result is never nil; use its State or Err to branch.
func (s *Syncer) Sync(ctx context.Context, result *reconcile.ComparisonResult, stats reconcile.ComparisonStats) *SyncResult {
	res := &SyncResult{
		RunId:     runIdFrom(ctx),
		Mode:      ModeReal,
		StartedAt: s.now(),
	}
	if period, ok := utils.GetPeriodFromContext(ctx); ok {
		res.Period = period
	}
	if s.opts.DryRun {
		res.Mode = ModeDryRun
	}

	ctx, span := tracer.Start(ctx, "ledgersync.Sync", trace.WithAttributes(
		attribute.String("sync.run_id", res.RunId),
		attribute.String("sync.mode", string(res.Mode)),
	))
	defer span.End()

	log := s.logger.WithFields(logrus.Fields{"module": "ledgersync", "run_id": res.RunId, "mode": res.Mode})
	s.transition(log, res, StateIdle)

	defer func() {
		res.Duration = s.now().Sub(res.StartedAt)
		endSpan(span, res)
	}()

	if reason, detail := s.CheckPrerequisites(ctx, stats); reason != "" {
		res.BlockReason = reason
		res.BlockDetail = detail
		s.transition(log, res, StateBlocked)
		log.WithFields(logrus.Fields{"reason": reason}).Warn(detail)
		return res
	}
	s.transition(log, res, StatePrerequisitesChecked)

	s.transition(log, res, StateMapping)
	var eligible []models.InvoiceRecord
	if result != nil {
		eligible = result.SyncEligible()
	}
	records, report := s.mapper.MapAll(eligible)
	res.Mapping = report
	res.Attempted = len(records)

	rowByKey := make(map[string]int, len(eligible))
	for _, row := range eligible {
		rowByKey[reconcile.NormalizeKey(row.AuthorizationCode)] = row.Row
	}

	if s.opts.DryRun {
		if err := s.simulate(ctx, records, res); err != nil {
			res.Cause = err
			s.transition(log, res, StateRolledBack)
			log.WithError(err).Error("dry run probe failed")
			return res
		}
		s.transition(log, res, StateSimulated)
		return res
	}

	s.transition(log, res, StateSyncing)
	counts, err := s.write(ctx, records)
	if err != nil {
		res.Cause = err
		var rowErr *RowWriteError
		if errors.As(err, &rowErr) {
			res.FailedKey = rowErr.Key
			res.FailedRow = rowByKey[reconcile.NormalizeKey(rowErr.Key)]
		}
		s.transition(log, res, StateRolledBack)
		config.LogError(s.logger, "ledgersync", "Sync", res.RunId, map[string]interface{}{
			"failed_row": res.FailedRow,
			"failed_key": res.FailedKey,
			"attempted":  res.Attempted,
		}, err)
	} else {
		res.Inserted = counts.Inserted
		res.Updated = counts.Updated
		s.transition(log, res, StateCommitted)
		log.WithFields(logrus.Fields{
			"attempted": res.Attempted,
			"inserted":  res.Inserted,
			"updated":   res.Updated,
		}).Info("ledger sync committed")
	}

	s.record(ctx, log, res)
	return res
}

// simulate estimates inserts and updates with a read-only probe.
func (s *Syncer) simulate(ctx context.Context, records []models.SalesRegister, res *SyncResult) error {
	if len(records) == 0 {
		return nil
	}
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.AuthorizationCode
	}
	existing, err := s.store.ProbeExisting(ctx, keys)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if _, ok := existing[k]; ok {
			res.Updated++
		} else {
			res.Inserted++
		}
	}
	return nil
}

// write runs the whole batch in one transaction bounded by the configured timeout.
func (s *Syncer) write(ctx context.Context, records []models.SalesRegister) (UpsertCounts, error) {
	if len(records) == 0 {
		return UpsertCounts{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	chunks := (len(records) + s.opts.ChunkSize - 1) / s.opts.ChunkSize
	var total UpsertCounts
	err := s.store.WithinTransaction(ctx, func(tx Tx) error {
		total = UpsertCounts{}
		for c := 0; c < chunks; c++ {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("sync timed out after %d of %d records: %w", total.Inserted+total.Updated, len(records), err)
			}
			start := c * s.opts.ChunkSize
			end := min(start+s.opts.ChunkSize, len(records))

			counts, err := tx.Upsert(ctx, records[start:end])
			if err != nil {
				var rowErr *RowWriteError
				if errors.As(err, &rowErr) {
					return &RowWriteError{Index: start + rowErr.Index, Key: rowErr.Key, Err: rowErr.Err}
				}
				return err
			}
			total = total.Add(counts)

			if s.opts.Progress != nil {
				s.opts.Progress(ProgressEvent{Chunk: c + 1, Chunks: chunks, Done: end, Total: len(records)})
			}
		}
		return nil
	})
	if err != nil {
		return UpsertCounts{}, err
	}
	return total, nil
}

func (s *Syncer) record(ctx context.Context, log *logrus.Entry, res *SyncResult) {
	if !s.opts.AuditRuns {
		return
	}
	recorder, ok := s.store.(RunRecorder)
	if !ok {
		return
	}
	// The audit row must survive a rolled back or expired sync context.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := recorder.RecordRun(ctx, res); err != nil {
		log.WithError(err).Warn("failed to record sync run")
	}
}

func (s *Syncer) transition(log *logrus.Entry, res *SyncResult, next State) {
	prev := res.State
	res.State = next
	res.Transitions = append(res.Transitions, next)
	log.WithFields(logrus.Fields{"from": prev, "to": next}).Debug("sync state changed")
}

func endSpan(span trace.Span, res *SyncResult) {
	span.SetAttributes(
		attribute.String("sync.state", string(res.State)),
		attribute.Int("sync.attempted", res.Attempted),
		attribute.Int("sync.inserted", res.Inserted),
		attribute.Int("sync.updated", res.Updated),
	)
	if err := res.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func runIdFrom(ctx context.Context) string {
	if id, ok := utils.GetRunIdFromContext(ctx); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

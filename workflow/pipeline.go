package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/taxsales_validator/authcode"
	"github.com/mmdatafocus/taxsales_validator/config"
	"github.com/mmdatafocus/taxsales_validator/ingest"
	"github.com/mmdatafocus/taxsales_validator/inventory"
	"github.com/mmdatafocus/taxsales_validator/ledgersync"
	"github.com/mmdatafocus/taxsales_validator/notify"
	"github.com/mmdatafocus/taxsales_validator/reconcile"
	"github.com/mmdatafocus/taxsales_validator/report"
	"github.com/mmdatafocus/taxsales_validator/utils"
	"github.com/sirupsen/logrus"
)

// Pipeline wires one reconciliation run. Engine and Inventory are required;
// every other stage is skipped when left nil or empty.
type Pipeline struct {
	Engine    *reconcile.Engine
	Inventory inventory.Loader
	Syncer    *ledgersync.Syncer
	Archiver  *report.Archiver
	Publisher *notify.Publisher
	ReportDir string
	Logger    *logrus.Logger
	Now       func() time.Time
}

type Input struct {
	SourcePath string
	Period     inventory.Period
}

// Outcome holds everything a run produced. Sync is nil when no syncer was configured.
type Outcome struct {
	RunId      string
	Period     string
	Decode     authcode.FillStats
	Result     *reconcile.ComparisonResult
	Stats      reconcile.ComparisonStats
	ReportPath string
	ArchivedAs string
	Sync       *ledgersync.SyncResult
}

// Run executes decode, reconcile, report and the optional sync in order.
// Failing to archive the report or publish the sync event is logged, not returned.
// A blocked or rolled back sync is reported through Outcome.Sync, not as an error.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Outcome, error) {
	logger := p.Logger
	if logger == nil {
		logger = logrus.New()
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	runId := uuid.NewString()
	if id, ok := utils.GetRunIdFromContext(ctx); ok && id != "" {
		runId = id
	}
	ctx = utils.SetRunIdInContext(ctx, runId)
	ctx = utils.SetPeriodInContext(ctx, in.Period.String())
	out := &Outcome{RunId: runId, Period: in.Period.String()}
	log := logger.WithFields(utils.LogFields(ctx))

	source, err := ingest.LoadInvoices(in.SourcePath)
	if err != nil {
		config.LogError(logger, "pipeline.go", "Run", "loading tax report", in.SourcePath, err)
		return nil, fmt.Errorf("load tax report: %w", err)
	}
	log.WithField("rows", len(source)).Info("tax report loaded")

	out.Decode = authcode.DecodeAll(source, logger)

	reference, err := p.Inventory.Load(ctx, in.Period)
	if err != nil {
		config.LogError(logger, "pipeline.go", "Run", "loading inventory", in.Period.String(), err)
		return nil, fmt.Errorf("load inventory: %w", err)
	}

	out.Result, out.Stats, err = p.Engine.Run(source, reference)
	if err != nil {
		return nil, err
	}

	if p.ReportDir != "" {
		out.ReportPath, err = report.WriteWorkbook(p.ReportDir, out.Result, out.Stats, now())
		if err != nil {
			config.LogError(logger, "pipeline.go", "Run", "writing report", p.ReportDir, err)
			return nil, err
		}
		log.WithField("path", out.ReportPath).Info("report written")

		if p.Archiver != nil {
			if name, err := p.Archiver.Archive(ctx, out.Period, out.ReportPath); err != nil {
				log.WithError(err).Warn("report archive failed")
			} else {
				out.ArchivedAs = name
			}
		}
	}

	if p.Syncer == nil {
		return out, nil
	}
	out.Sync = p.Syncer.Sync(ctx, out.Result, out.Stats)

	if p.Publisher != nil {
		if _, err := p.Publisher.Publish(ctx, out.Sync); err != nil {
			log.WithError(err).Warn("sync event not published")
		}
	}
	return out, nil
}

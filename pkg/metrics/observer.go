package metrics

import (
	"context"
	"time"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
)

// LedgerObserver bundles the collector, tracer and logger a ledger reports
// to. Each On* method starts a span and returns the function that ends it
// and records the outcome.
type LedgerObserver struct {
	collector *Collector
	tracer    Tracer
	logger    *Logger
	ledgerID  string
}

// LedgerObserverConfig configures a ledger observer. Nil fields fall back
// to the package globals.
type LedgerObserverConfig struct {
	Collector *Collector
	Tracer    Tracer
	Logger    *Logger
	LedgerID  string
}

// NewLedgerObserver creates a ledger observer.
func NewLedgerObserver(cfg LedgerObserverConfig) *LedgerObserver {
	if cfg.Collector == nil {
		cfg.Collector = Global()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = GetTracer()
	}
	if cfg.Logger == nil {
		cfg.Logger = GetLogger()
	}
	return &LedgerObserver{
		collector: cfg.Collector,
		tracer:    cfg.Tracer,
		logger:    cfg.Logger.Named("ledger").With(Fields{"ledger_id": cfg.LedgerID}),
		ledgerID:  cfg.LedgerID,
	}
}

func (o *LedgerObserver) scope() SpanAttributes {
	return SpanAttributes{LedgerID: o.ledgerID}
}

// Step starts a child span for one step of an operation on entry index.
func (o *LedgerObserver) Step(ctx context.Context, name string, index uint64) (context.Context, SpanEnder) {
	return o.tracer.StartSpan(ctx, name, o.scope().ForEntry(index))
}

// OnOpen traces creating or opening a ledger holding entries entries.
func (o *LedgerObserver) OnOpen(ctx context.Context, created bool, entries uint64) (context.Context, func(error)) {
	name := SpanLedgerOpen
	if created {
		name = SpanLedgerCreate
	}
	attrs := o.scope()
	attrs.Entries = int(entries)
	ctx, endSpan := o.tracer.StartSpan(ctx, name, attrs)
	return ctx, func(err error) {
		if err != nil {
			o.logger.Error("ledger open failed", Fields{"error": err.Error()})
		} else {
			o.collector.SetEntries(entries)
			o.logger.Info("ledger ready", Fields{"entries": entries, "created": created})
		}
		endSpan(err)
	}
}

// OnCommit traces a commit of plaintextLen bytes at index.
func (o *LedgerObserver) OnCommit(ctx context.Context, index uint64, plaintextLen int, kemMode, sigMode string) (context.Context, func(error)) {
	start := time.Now()
	attrs := o.scope().ForEntry(index)
	attrs.KEMMode, attrs.SigMode = kemMode, sigMode
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanLedgerCommit, attrs)

	return ctx, func(err error) {
		switch {
		case err == nil:
			o.collector.CommitSucceeded(plaintextLen, time.Since(start))
			o.logger.Debug("entry committed", Fields{"index": index, "kem_mode": kemMode, "sig_mode": sigMode})
		case qerrors.IsPolicy(err):
			o.collector.PolicyDenied()
			o.logger.Info("commit denied by policy", Fields{"index": index})
		default:
			o.collector.CommitFailed()
			o.logger.Warn("commit failed", Fields{"index": index, "error": err.Error()})
		}
		endSpan(err)
	}
}

// OnRead traces reading the entry at index.
func (o *LedgerObserver) OnRead(ctx context.Context, index uint64) (context.Context, func(error)) {
	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanLedgerRead, o.scope().ForEntry(index))

	return ctx, func(err error) {
		switch {
		case err == nil:
			o.collector.RecordRead(time.Since(start))
		case qerrors.Is(err, qerrors.ErrWrongEraKey) || qerrors.Is(err, qerrors.ErrKeyRetired):
			o.collector.RecordWrongEraKey()
			o.logger.Debug("read with key of another era", Fields{"index": index, "error": err.Error()})
		case qerrors.IsCrypto(err):
			o.collector.RecordReadFailure()
			o.logger.Warn("entry failed authentication", Fields{"index": index})
		}
		endSpan(err)
	}
}

// OnVerify traces a full chain verification over entries entries.
func (o *LedgerObserver) OnVerify(ctx context.Context, entries int) (context.Context, func(error)) {
	start := time.Now()
	attrs := o.scope()
	attrs.Entries = entries
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanLedgerVerify, attrs)

	return ctx, func(err error) {
		o.collector.RecordVerification(err == nil, time.Since(start))
		if err != nil {
			o.logger.Warn("chain verification failed", Fields{"entries": entries, "error": err.Error()})
		} else {
			o.logger.Debug("chain verified", Fields{"entries": entries})
		}
		endSpan(err)
	}
}

// MigrationKind distinguishes KEM from signature migrations.
type MigrationKind string

const (
	MigrationKEM       MigrationKind = "kem"
	MigrationSignature MigrationKind = "signature"
)

// OnMigrate traces a mode migration from one mode to another.
func (o *LedgerObserver) OnMigrate(ctx context.Context, kind MigrationKind, from, to string) (context.Context, func(epoch uint32, err error)) {
	attrs := o.scope()
	attrs.Migration, attrs.From, attrs.To = string(kind), from, to
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanLedgerMigrate, attrs)

	return ctx, func(epoch uint32, err error) {
		fields := Fields{"kind": string(kind), "from": from, "to": to}
		if err != nil {
			fields["error"] = err.Error()
			o.logger.Error("migration failed", fields)
			endSpan(err)
			return
		}
		switch kind {
		case MigrationKEM:
			o.collector.KEMMigrated()
		case MigrationSignature:
			o.collector.SignatureMigrated()
		}
		fields["epoch"] = epoch
		o.logger.Info("migrated", fields)
		endSpan(nil)
	}
}

// OnRetire traces the erasure of a KEM epoch secret.
func (o *LedgerObserver) OnRetire(ctx context.Context, epoch uint32) (context.Context, func(error)) {
	attrs := o.scope()
	attrs.Epoch = epoch
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanLedgerRetire, attrs)

	return ctx, func(err error) {
		if err != nil {
			o.logger.Error("kem epoch retirement failed", Fields{"epoch": epoch, "error": err.Error()})
		} else {
			o.collector.EpochRetired()
			o.logger.Warn("kem epoch retired, its entries are no longer readable", Fields{"epoch": epoch})
		}
		endSpan(err)
	}
}

// Logger returns the observer's logger.
func (o *LedgerObserver) Logger() *Logger {
	return o.logger
}

// Collector returns the observer's collector.
func (o *LedgerObserver) Collector() *Collector {
	return o.collector
}

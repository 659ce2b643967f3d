// Package orchestrator is the single entry point that turns a progress event
// into a committed XP award.
//
// Each Award call runs load → rollover → novelty → dimension update → caps
// → progress → commit → gates, in that order, under a per-user lock. The
// state write and the ledger append commit in one transaction; a version
// conflict reloads state and reruns the whole pipeline.
package orchestrator

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/danielpatrickdp/progression-engine/internal/caps"
	"github.com/danielpatrickdp/progression-engine/internal/gate"
	"github.com/danielpatrickdp/progression-engine/internal/ledger"
	"github.com/danielpatrickdp/progression-engine/internal/novelty"
	"github.com/danielpatrickdp/progression-engine/internal/progress"
	"github.com/danielpatrickdp/progression-engine/internal/rollover"
	"github.com/danielpatrickdp/progression-engine/internal/state"
	"github.com/danielpatrickdp/progression-engine/internal/update"
)

// #endregion

const tracerName = "github.com/danielpatrickdp/progression-engine/internal/orchestrator"

// #region engine-struct

// Engine sequences the scoring stages for every award.
type Engine struct {
	store   StateStore
	ledger  LedgerReader
	novelty *novelty.Detector
	gate    *gate.Gate
	cfg     Config
	locks   *userLocks

	now    func() time.Time
	logger *slog.Logger
	tracer trace.Tracer
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracerProvider sets the tracer provider used for award spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// #endregion

// #region constructor

// New wires an engine over store and led.
func New(store StateStore, led LedgerReader, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		ledger:  led,
		novelty: novelty.NewDetector(led, cfg.Novelty),
		gate:    gate.NewGate(cfg.Gates),
		cfg:     cfg,
		locks:   newUserLocks(),
		now:     func() time.Time { return time.Now().UTC() },
		logger:  slog.Default(),
		tracer:  otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// #endregion

// #region award

// Award validates req and commits one award. On validation failure nothing
// is written and the error wraps ErrInvalidInput; malformed requests are
// rejected before any read. On storage
// failure, or after exhausting conflict retries, nothing is committed and
// the error wraps ErrTransient.
func (e *Engine) Award(ctx context.Context, req AwardRequest) (AwardResult, error) {
	ev, err := validate(req)
	if err != nil {
		e.logger.Debug("award rejected", "user_id", req.UserID, "err", err)
		return AwardResult{}, err
	}
	if !ev.at.IsZero() && ev.at.After(e.now()) {
		return AwardResult{}, fmt.Errorf("%w: event time %s is in the future", ErrInvalidInput,
			ev.at.Format(time.RFC3339))
	}

	ctx, span := e.tracer.Start(ctx, "progression.award", trace.WithAttributes(
		attribute.String("user.id", ev.userID),
		attribute.StringSlice("award.kinds", ev.kinds),
		attribute.String("award.source", ev.source),
	))
	defer span.End()

	release := e.locks.lock(ev.userID)
	defer release()

	attempts := e.cfg.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := e.awardOnce(ctx, span, ev)
		if err == nil {
			res.Attempts = attempt
			span.SetAttributes(
				attribute.Float64("award.delta_xp", res.DeltaXP),
				attribute.Float64("award.progress_percent", res.ProgressPercent),
				attribute.Int("award.attempts", attempt),
			)
			return res, nil
		}
		if errors.Is(err, ErrInvalidInput) {
			span.SetStatus(codes.Error, "award rejected")
			e.logger.Debug("award rejected", "user_id", ev.userID, "err", err)
			return AwardResult{}, err
		}
		if !errors.Is(err, state.ErrConflict) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "award failed")
			e.logger.Error("award failed", "user_id", ev.userID, "attempt", attempt, "err", err)
			return AwardResult{}, fmt.Errorf("%w: %w", ErrTransient, err)
		}
		lastErr = err
		span.AddEvent("conflict", trace.WithAttributes(attribute.Int("attempt", attempt)))
		e.logger.Warn("conflict, retrying", "user_id", ev.userID, "attempt", attempt)
	}

	span.SetStatus(codes.Error, "conflict retries exhausted")
	return AwardResult{}, fmt.Errorf("%w: %d attempts: %w", ErrTransient, attempts, lastErr)
}

// awardOnce runs the pipeline against freshly loaded state. Window
// markers only move forward: an explicit event time before the last event
// is rejected, and an engine clock behind it is held at the last event.
func (e *Engine) awardOnce(ctx context.Context, span trace.Span, ev event) (AwardResult, error) {
	now := ev.at
	if now.IsZero() {
		now = e.now()
	}
	log := e.logger.With("user_id", ev.userID)

	// 1. Load, seeding on first access.
	cur, err := e.store.Load(ctx, ev.userID)
	if errors.Is(err, state.ErrNotFound) {
		cur = state.NewUserState(ev.userID, e.cfg.Seed, now)
		log.Debug("seeding state", "xp_total", cur.XPTotal)
	} else if err != nil {
		return AwardResult{}, err
	}
	if now.Before(cur.LastEventAt) {
		if !ev.at.IsZero() {
			return AwardResult{}, fmt.Errorf("%w: event time %s precedes last event at %s", ErrInvalidInput,
				ev.at.Format(time.RFC3339), cur.LastEventAt.Format(time.RFC3339))
		}
		log.Warn("clock behind last event, holding windows", "now", now, "last_event_at", cur.LastEventAt)
		now = cur.LastEventAt
	}

	// 2. Rollover.
	next, rep := rollover.Apply(cur, now, e.cfg.Rollover)
	if rep.Any() {
		log.Debug("rollover applied", "session", rep.Session, "day", rep.Day, "week", rep.Week,
			"today", rep.Today, "week_key", rep.ThisWeek)
	}
	span.AddEvent("rollover", trace.WithAttributes(
		attribute.Bool("session", rep.Session),
		attribute.Bool("day", rep.Day),
		attribute.Bool("week", rep.Week),
	))

	// 3. Novelty.
	nov, err := e.novelty.Check(ctx, ev.userID, ev.kinds, now)
	if err != nil {
		return AwardResult{}, err
	}
	log.Debug("novelty decision", "novel", nov.Novel, "multiplier", nov.Multiplier,
		"seen", nov.Seen, "sampled", nov.Sampled)
	span.AddEvent("novelty", trace.WithAttributes(
		attribute.Bool("novel", nov.Novel),
		attribute.Float64("multiplier", nov.Multiplier),
	))

	// 4. Dimension update.
	upd := update.Apply(next.DimScores, ev.dims, ev.quality, nov.Multiplier, e.cfg.Update)
	if upd.EventTotal == 0 {
		log.Debug("no positive dimensions, zero contribution", "dims", len(ev.dims))
	}
	span.AddEvent("dimension_update", trace.WithAttributes(
		attribute.Float64("event_total", upd.EventTotal),
		attribute.Bool("diversity", upd.Diversity),
	))
	next.DimScores = upd.Scores
	if upd.TouchedADP {
		next.LastADPAt = now
	}

	// 5. Caps, always session → day → week.
	delta, stages := caps.Apply(upd.EventTotal, e.cfg.Limits, caps.Usage{
		Session: next.SessionXP,
		Day:     next.DailyXP,
		Week:    next.WeeklyXP,
	})
	for _, st := range stages {
		if st.Throttled() > 0 {
			log.Debug("cap throttled", "window", string(st.Window), "base", st.In, "out", st.Out,
				"throttled", st.Throttled(), "current", st.Current, "cap", st.Cap)
		}
		span.AddEvent("cap", trace.WithAttributes(
			attribute.String("window", string(st.Window)),
			attribute.Float64("in", st.In),
			attribute.Float64("out", st.Out),
		))
	}
	if delta > 0 {
		next.XPTotal += delta
		next.SessionXP += delta
		next.DailyXP += delta
		next.WeeklyXP += delta
		for _, k := range ev.kinds {
			next.RepeatsToday[k]++
		}
	} else {
		delta = 0
	}
	next.LastEventAt = now
	next.UpdatedAt = now

	// 6. Progress and milestone, from the total about to be committed.
	pct := progress.Percent(next.XPTotal, e.cfg.Progress)
	milestone := 0
	if tier := progress.Milestone(pct, e.cfg.Progress); tier > next.LastMilestoneHit {
		milestone = tier
		next.LastMilestoneHit = tier
	}

	// 7. Commit state and ledger together.
	entry, err := e.store.CommitAward(ctx, next, ledger.Entry{
		OccurredAt:   now,
		DeltaXP:      delta,
		XPTotalAfter: next.XPTotal,
		Dims:         ev.rawDims(),
		Quality:      upd.Quality,
		Kinds:        ev.kinds,
		Note:         ev.source,
	})
	if err != nil {
		return AwardResult{}, err
	}
	span.AddEvent("commit", trace.WithAttributes(attribute.String("entry.id", entry.ID)))
	log.Info("award committed", "delta_xp", delta, "xp_total", next.XPTotal,
		"percent", pct, "source", ev.source, "entry_id", entry.ID)

	// 8. Gates.
	dec := e.gate.Evaluate(pct, next.DimScores, next.LastADPAt, now)
	if !dec.Pass {
		log.Info("gate blocked", "tier", dec.Tier, "reason", dec.Reason)
	}
	span.AddEvent("gates", trace.WithAttributes(
		attribute.Bool("pass", dec.Pass),
		attribute.String("reason", dec.Reason),
	))

	return AwardResult{
		DeltaXP:         delta,
		NewXPTotal:      next.XPTotal,
		ProgressPercent: pct,
		TopContributors: topContributors(upd.Contributions, upd.EventTotal, delta),
		PassesGates:     dec.Pass,
		BlockedReason:   dec.Reason,
		Novel:           nov.Novel,
		Milestone:       milestone,
		EntryID:         entry.ID,
		Stages:          stages,
	}, nil
}

// #endregion

// #region reads

// State returns the user's state rolled over to now, without persisting
// the rollover, together with its percent and gate decision.
func (e *Engine) State(ctx context.Context, userID string) (Snapshot, error) {
	cur, err := e.store.Load(ctx, userID)
	if err != nil {
		return Snapshot{}, readErr(err)
	}
	now := e.now()
	if now.Before(cur.LastEventAt) {
		now = cur.LastEventAt
	}
	rolled, _ := rollover.Apply(cur, now, e.cfg.Rollover)
	pct := progress.Percent(rolled.XPTotal, e.cfg.Progress)
	return Snapshot{
		State:   rolled,
		Percent: pct,
		Gate:    e.gate.Evaluate(pct, rolled.DimScores, rolled.LastADPAt, now),
	}, nil
}

// Ledger lists the user's most recent ledger entries.
func (e *Engine) Ledger(ctx context.Context, userID string, limit int) ([]ledger.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	entries, err := e.ledger.List(ctx, userID, limit)
	if err != nil {
		return nil, readErr(err)
	}
	return entries, nil
}

// Reconcile checks xp_total - seed against the ledger sum.
func (e *Engine) Reconcile(ctx context.Context, userID string) (state.Reconciliation, error) {
	rec, err := e.store.Reconcile(ctx, userID)
	if err != nil {
		return state.Reconciliation{}, readErr(err)
	}
	if !rec.Consistent() {
		e.logger.Error("ledger drift", "user_id", userID, "drift", rec.Drift,
			"xp_total", rec.XPTotal, "ledger_sum", rec.LedgerSum)
	}
	return rec, nil
}

// #endregion

// #region helpers

// readErr marks storage failures on the read paths transient. Unknown
// users stay ErrNotFound.
func readErr(err error) error {
	if errors.Is(err, state.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// topContributors ranks contributions and apportions delta to them in
// proportion to their pre-cap share.
func topContributors(contribs []update.Contribution, eventTotal, delta float64) []Contributor {
	if len(contribs) == 0 || eventTotal <= 0 {
		return nil
	}
	ranked := make([]update.Contribution, len(contribs))
	copy(ranked, contribs)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].XP > ranked[j].XP })
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}
	out := make([]Contributor, len(ranked))
	for i, c := range ranked {
		out[i] = Contributor{Dimension: c.Dimension, XP: c.XP / eventTotal * delta}
	}
	return out
}

// #endregion

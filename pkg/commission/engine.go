package commission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/guidepost/pkg/audit"
	"github.com/platinummonkey/guidepost/pkg/observability"
	"github.com/platinummonkey/guidepost/pkg/orders"
	"github.com/platinummonkey/guidepost/pkg/resellers"
)

// DefaultMaturationWindow is the delay between completion and release
const DefaultMaturationWindow = 14 * 24 * time.Hour

// DefaultReferralRewardBPS is the referrer's share of a commission
const DefaultReferralRewardBPS = 1000

// sweepBatchSize bounds one recovery sweep
const sweepBatchSize = 500

// Resellers is the registry surface the engine needs
type Resellers interface {
	Get(ctx context.Context, id string) (*resellers.Reseller, error)
	ListIDs(ctx context.Context) ([]string, error)
	SetCommissionTier(ctx context.Context, id, tier string, at time.Time) error
}

// Config tunes the engine. A zero ReferralRewardBPS means the default
// rate; set DisableReferralRewards to turn the cascade off.
type Config struct {
	MaturationWindow       time.Duration
	ReferralRewardBPS      int
	DisableReferralRewards bool
	ReleaseWorkers         int
	ResetWorkers           int
	Schedule               Schedule
}

func (c Config) withDefaults() Config {
	if c.MaturationWindow <= 0 {
		c.MaturationWindow = DefaultMaturationWindow
	}
	if c.ReferralRewardBPS <= 0 {
		c.ReferralRewardBPS = DefaultReferralRewardBPS
	}
	if c.ReleaseWorkers <= 0 {
		c.ReleaseWorkers = 4
	}
	if c.ResetWorkers <= 0 {
		c.ResetWorkers = 4
	}
	if len(c.Schedule) == 0 {
		c.Schedule = DefaultSchedule()
	}
	c.Schedule = c.Schedule.Normalize()
	return c
}

// Engine drives the commission ledger state machine
type Engine struct {
	store     Store
	resellers Resellers
	config    Config
	metrics   *observability.Metrics
	audit     audit.Logger
	logger    *observability.Logger
	now       func() time.Time
}

// NewEngine creates a new commission engine
func NewEngine(store Store, rs Resellers, config Config, metrics *observability.Metrics, auditLogger audit.Logger, logger *observability.Logger) *Engine {
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Engine{
		store:     store,
		resellers: rs,
		config:    config.withDefaults(),
		metrics:   metrics,
		audit:     auditLogger,
		logger:    logger.WithField("component", "commission"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Tiers returns the volume schedule and the partner rate for display
func (e *Engine) Tiers() TierTable {
	return TierTable{
		Currency:       orders.Currency,
		PartnerRateBPS: PartnerRateBPS,
		Schedule:       append(Schedule(nil), e.config.Schedule...),
	}
}

// TierTable is the public view of the rate schedule
type TierTable struct {
	Currency       string   `json:"currency"`
	PartnerRateBPS int      `json:"partner_rate_bps"`
	Schedule       Schedule `json:"schedule"`
}

// Calculate computes and records the commission of a completed order.
// Calling it again after the commission left pending returns the stored
// order unchanged.
func (e *Engine) Calculate(ctx context.Context, orderID string) (o *orders.Order, err error) {
	ctx, span := observability.Tracer("commission").Start(ctx, "commission.Calculate")
	span.SetAttributes(attribute.String("order.id", orderID))
	defer func() { observability.EndSpan(span, err) }()

	o, err = e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != orders.StatusCompleted {
		return o, ErrOrderNotReady
	}
	if o.Commission.Status != orders.CommissionPending {
		return o, nil
	}
	if o.ResellerID == nil || *o.ResellerID == "" {
		return o, ErrNoReseller
	}

	if o.SpendAmount == nil || *o.SpendAmount <= 0 {
		if ferr := e.store.FlagForReview(ctx, o.ID, "missing spend amount"); ferr != nil {
			return o, ferr
		}
		e.record(ctx, audit.EventTypeCommissionFlagged, audit.EventStatusFailure, *o.ResellerID, audit.ResourceTypeOrder, o.ID,
			"commission flagged for review: missing spend amount", nil)
		return o, ErrMissingSpend
	}

	reseller, err := e.resellers.Get(ctx, *o.ResellerID)
	if err != nil {
		return o, fmt.Errorf("failed to load reseller: %w", err)
	}

	now := e.now()
	completedAt := now
	if o.CompletedAt != nil {
		completedAt = *o.CompletedAt
	}
	rate, tier := e.config.Schedule.ResolveRate(reseller)
	calc := Calculation{
		OrderID:      o.ID,
		ResellerID:   reseller.ID,
		RateBPS:      rate,
		Tier:         tier,
		Amount:       CeilAmount(*o.SpendAmount, rate),
		CalculatedAt: now,
		AvailableAt:  completedAt.Add(e.config.MaturationWindow),
	}
	if !e.config.DisableReferralRewards && reseller.ReferrerID != nil && *reseller.ReferrerID != "" && *reseller.ReferrerID != reseller.ID {
		if reward := CeilAmount(calc.Amount, e.config.ReferralRewardBPS); reward > 0 {
			calc.Reward = &ReferralReward{
				ReferrerID:       *reseller.ReferrerID,
				SourceOrderID:    o.ID,
				SourceResellerID: reseller.ID,
				Amount:           reward,
				Status:           RewardPending,
				AvailableAt:      calc.AvailableAt,
			}
		}
	}

	applied, err := e.store.ApplyCalculation(ctx, calc)
	if err != nil {
		return o, err
	}
	if applied {
		e.metrics.RecordCommissionTransition(string(orders.CommissionCalculated), 1)
		if calc.Reward != nil {
			e.metrics.RecordReferralReward()
		}
		meta := map[string]interface{}{"rate_bps": rate, "tier": tier, "amount": calc.Amount}
		if calc.Reward != nil {
			meta["referral_reward"] = calc.Reward.Amount
			meta["referrer_id"] = calc.Reward.ReferrerID
		}
		e.record(ctx, audit.EventTypeCommissionCalculated, audit.EventStatusSuccess, reseller.ID, audit.ResourceTypeOrder, o.ID,
			fmt.Sprintf("commission calculated: ¥%d at %d bps", calc.Amount, rate), meta)
	}

	return e.store.GetOrder(ctx, o.ID)
}

// SetSpend records the spend of a completed order that is still pending,
// typically one flagged for review, and calculates its commission
func (e *Engine) SetSpend(ctx context.Context, orderID string, amount int64, actor string) (*orders.Order, error) {
	if amount <= 0 {
		return nil, ErrInvalidSpend
	}
	if err := e.store.RecordSpend(ctx, orderID, amount); err != nil {
		return nil, err
	}
	e.recordAs(ctx, actor, audit.EventTypeCommissionSpendSet, "", audit.ResourceTypeOrder, orderID,
		fmt.Sprintf("spend recorded: ¥%d", amount), map[string]interface{}{"spend_amount": amount})
	return e.Calculate(ctx, orderID)
}

// ReleaseMatured moves every matured commission and referral reward to
// available. A failing reseller is logged and counted; the rest proceed.
func (e *Engine) ReleaseMatured(ctx context.Context, now time.Time) (report ReleaseReport, err error) {
	ctx, span := observability.Tracer("commission").Start(ctx, "commission.ReleaseMatured")
	defer func() { observability.EndSpan(span, err) }()

	ids, err := e.store.DueBeneficiaries(ctx, now)
	if err != nil {
		return report, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.ReleaseWorkers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			summary, rerr := e.store.ReleaseForReseller(gctx, id, now)
			mu.Lock()
			defer mu.Unlock()
			if rerr != nil {
				report.Failures++
				e.metrics.RecordBatchError("release")
				e.logger.WithError(rerr).WithField("reseller_id", id).Error("release failed for reseller")
				return nil
			}
			report.Resellers++
			report.Commissions += summary.Commissions
			report.Rewards += summary.Rewards
			report.Amount += summary.Amount
			if summary.Amount > 0 {
				e.record(ctx, audit.EventTypeCommissionReleased, audit.EventStatusSuccess, id, audit.ResourceTypeReseller, id,
					fmt.Sprintf("released ¥%d", summary.Amount), map[string]interface{}{
						"commissions": summary.Commissions,
						"rewards":     summary.Rewards,
						"amount":      summary.Amount,
					})
			}
			return nil
		})
	}
	_ = g.Wait()

	e.metrics.RecordCommissionTransition(string(orders.CommissionAvailable), report.Commissions)
	e.metrics.RecordReleasedAmount(report.Amount)
	span.SetAttributes(
		attribute.Int("release.resellers", report.Resellers),
		attribute.Int("release.failures", report.Failures),
		attribute.Int64("release.amount", report.Amount),
	)
	e.logger.WithFields(map[string]interface{}{
		"resellers":   report.Resellers,
		"commissions": report.Commissions,
		"rewards":     report.Rewards,
		"amount":      report.Amount,
		"failures":    report.Failures,
	}).Info("release run finished")
	return report, nil
}

// MarkPaid records the payout of an available commission
func (e *Engine) MarkPaid(ctx context.Context, orderID, payoutRef, actor string) (int64, error) {
	if payoutRef == "" {
		return 0, ErrPayoutReference
	}
	amount, err := e.store.MarkPaid(ctx, orderID, payoutRef, e.now())
	if err != nil {
		return 0, err
	}
	e.metrics.RecordCommissionTransition(string(orders.CommissionPaid), 1)
	e.recordAs(ctx, actor, audit.EventTypeCommissionPaid, "", audit.ResourceTypeOrder, orderID,
		fmt.Sprintf("commission paid: ¥%d", amount), map[string]interface{}{"payout_reference": payoutRef, "amount": amount})
	return amount, nil
}

// MarkRewardPaid records the payout of an available referral reward
func (e *Engine) MarkRewardPaid(ctx context.Context, rewardID, payoutRef, actor string) (int64, error) {
	if payoutRef == "" {
		return 0, ErrPayoutReference
	}
	amount, err := e.store.MarkRewardPaid(ctx, rewardID, payoutRef, e.now())
	if err != nil {
		return 0, err
	}
	e.recordAs(ctx, actor, audit.EventTypeReferralRewardPaid, "", audit.ResourceTypeReward, rewardID,
		fmt.Sprintf("referral reward paid: ¥%d", amount), map[string]interface{}{"payout_reference": payoutRef, "amount": amount})
	return amount, nil
}

// Void cancels an unpaid commission
func (e *Engine) Void(ctx context.Context, orderID, reason, actor string) (VoidSummary, error) {
	summary, err := e.store.Void(ctx, orderID, reason, e.now())
	if err != nil {
		return summary, err
	}
	if summary.PreviousStatus == orders.CommissionVoid {
		return summary, nil
	}
	e.metrics.RecordCommissionTransition(string(orders.CommissionVoid), 1)
	e.recordAs(ctx, actor, audit.EventTypeCommissionVoided, "", audit.ResourceTypeOrder, orderID,
		"commission voided: "+reason, map[string]interface{}{
			"previous_status": string(summary.PreviousStatus),
			"debited":         summary.Debited,
			"reward_voided":   summary.RewardVoided,
		})
	return summary, nil
}

// ResetQuarterlyTiers recomputes every reseller's tier code from the
// trailing quarter's completed sales. Stored commissions are never touched.
func (e *Engine) ResetQuarterlyTiers(ctx context.Context, now time.Time) (report ResetReport, err error) {
	ctx, span := observability.Tracer("commission").Start(ctx, "commission.ResetQuarterlyTiers")
	defer func() { observability.EndSpan(span, err) }()

	ids, err := e.resellers.ListIDs(ctx)
	if err != nil {
		return report, err
	}
	from, to := TrailingQuarter(now)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.ResetWorkers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			changed, rerr := e.resetOne(gctx, id, from, to, now)
			mu.Lock()
			defer mu.Unlock()
			if rerr != nil {
				report.Failures++
				e.metrics.RecordBatchError("quarterly_reset")
				e.logger.WithError(rerr).WithField("reseller_id", id).Error("tier reset failed for reseller")
				return nil
			}
			report.Resellers++
			if changed {
				report.Changed++
			}
			return nil
		})
	}
	_ = g.Wait()

	e.logger.WithFields(map[string]interface{}{
		"quarter_start": from.Format(time.RFC3339),
		"quarter_end":   to.Format(time.RFC3339),
		"resellers":     report.Resellers,
		"changed":       report.Changed,
		"failures":      report.Failures,
	}).Info("quarterly tier reset finished")
	return report, nil
}

func (e *Engine) resetOne(ctx context.Context, id string, from, to, now time.Time) (bool, error) {
	r, err := e.resellers.Get(ctx, id)
	if err != nil {
		return false, err
	}
	sales, err := e.store.TrailingSales(ctx, id, from, to)
	if err != nil {
		return false, err
	}
	tier := e.config.Schedule.ForSales(sales)
	if tier.Code == r.CommissionTier {
		return false, nil
	}
	if err := e.resellers.SetCommissionTier(ctx, id, tier.Code, now); err != nil {
		return false, err
	}
	e.record(ctx, audit.EventTypeTierReset, audit.EventStatusSuccess, id, audit.ResourceTypeReseller, id,
		fmt.Sprintf("commission tier %s -> %s", r.CommissionTier, tier.Code), map[string]interface{}{
			"previous_tier":  r.CommissionTier,
			"tier":           tier.Code,
			"quarter_sales":  sales,
			"quarter_starts": from.Format("2006-01-02"),
		})
	return true, nil
}

// SweepPending calculates completed orders whose commission was never
// calculated, covering hook failures at completion time
func (e *Engine) SweepPending(ctx context.Context) (int, error) {
	ids, err := e.store.PendingCompleted(ctx, sweepBatchSize)
	if err != nil {
		return 0, err
	}
	calculated := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return calculated, ctx.Err()
		}
		if _, err := e.Calculate(ctx, id); err != nil {
			if !errors.Is(err, ErrMissingSpend) {
				e.metrics.RecordBatchError("sweep")
				e.logger.WithError(err).WithField("order_id", id).Warn("pending commission sweep failed")
			}
			continue
		}
		calculated++
	}
	return calculated, nil
}

// Balance returns a reseller's ledger balance
func (e *Engine) Balance(ctx context.Context, resellerID string) (*Balance, error) {
	return e.store.GetBalance(ctx, resellerID)
}

// OnCompleted calculates the commission when an order completes. Orders
// without a reseller earn nothing.
func (e *Engine) OnCompleted(ctx context.Context, orderID string) error {
	_, err := e.Calculate(ctx, orderID)
	if errors.Is(err, ErrNoReseller) {
		return nil
	}
	return err
}

// OnCancelled voids the commission of a cancelled order
func (e *Engine) OnCancelled(ctx context.Context, orderID, reason string) error {
	if reason == "" {
		reason = "order cancelled"
	}
	_, err := e.Void(ctx, orderID, reason, "system")
	return err
}

func (e *Engine) record(ctx context.Context, t audit.EventType, status audit.EventStatus, resellerID string, rt audit.ResourceType, rid, msg string, meta map[string]interface{}) {
	e.recordWith(ctx, "system", t, status, resellerID, rt, rid, msg, meta)
}

func (e *Engine) recordAs(ctx context.Context, actor string, t audit.EventType, resellerID string, rt audit.ResourceType, rid, msg string, meta map[string]interface{}) {
	if actor == "" {
		actor = "admin"
	}
	e.recordWith(ctx, actor, t, audit.EventStatusSuccess, resellerID, rt, rid, msg, meta)
}

func (e *Engine) recordWith(ctx context.Context, actor string, t audit.EventType, status audit.EventStatus, resellerID string, rt audit.ResourceType, rid, msg string, meta map[string]interface{}) {
	event := audit.NewEvent(ctx, t, status)
	event.Actor = actor
	event.ResellerID = resellerID
	event.ResourceType = rt
	event.ResourceID = rid
	event.Message = msg
	for k, v := range meta {
		event.Metadata[k] = v
	}
	audit.Record(ctx, e.audit, event)
}

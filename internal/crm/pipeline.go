package crm

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	sideEffectsAttempted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_side_effects_attempted_total",
		Help: "Side-effect executions attempted, by effect.",
	}, []string{"effect"})
	sideEffectsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_side_effects_failed_total",
		Help: "Side-effect executions that failed, by effect.",
	}, []string{"effect"})
)

// jobTimeout bounds one queued job end to end, covering the CRM calls and
// the webhook fan-out it performs.
const jobTimeout = 30 * time.Second

// Pipeline runs CRM synchronization and webhook fan-out off the request
// path. Jobs are queued and executed by a single background worker; a full
// queue drops the job with a log line rather than blocking the caller.
// Every job runs under its own recover so a panic in one side effect never
// takes the worker down.
type Pipeline struct {
	hubspot  *HubSpot
	webhooks *WebhookNotifier
	log      zerolog.Logger

	jobs chan func(context.Context)
	done chan struct{}
}

// NewPipeline builds and starts the pipeline worker.
func NewPipeline(hubspot *HubSpot, webhooks *WebhookNotifier, log zerolog.Logger) *Pipeline {
	p := &Pipeline{
		hubspot:  hubspot,
		webhooks: webhooks,
		log:      log,
		jobs:     make(chan func(context.Context), 256),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// Close stops accepting jobs and waits for queued ones to drain.
func (p *Pipeline) Close() {
	close(p.jobs)
	<-p.done
}

func (p *Pipeline) run() {
	defer close(p.done)
	for job := range p.jobs {
		p.execute(job)
	}
}

func (p *Pipeline) execute(job func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("side-effect job panicked")
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	job(ctx)
}

func (p *Pipeline) enqueue(job func(context.Context)) {
	select {
	case p.jobs <- job:
	default:
		p.log.Warn().Msg("side-effect queue full, dropping job")
	}
}

// OrderCreated queues contact upsert, deal creation, and the order.created
// webhook fan-out for a freshly placed order. Orders without a customer
// phone skip the CRM steps; the webhook fan-out always runs.
func (p *Pipeline) OrderCreated(o OrderSummary) {
	p.enqueue(func(ctx context.Context) {
		if p.hubspot.Configured() && o.CustomerPhone != "" {
			sideEffectsAttempted.WithLabelValues("crm_order_created").Inc()
			if err := p.syncNewOrder(ctx, o); err != nil {
				sideEffectsFailed.WithLabelValues("crm_order_created").Inc()
				p.log.Warn().Err(err).Str("order_id", o.OrderID).Msg("crm sync failed for new order")
			}
		}

		sideEffectsAttempted.WithLabelValues("webhook_order_created").Inc()
		if failed := p.webhooks.Notify(ctx, EventOrderCreated, o); failed > 0 {
			sideEffectsFailed.WithLabelValues("webhook_order_created").Inc()
		}
	})
}

func (p *Pipeline) syncNewOrder(ctx context.Context, o OrderSummary) error {
	contact, err := p.hubspot.UpsertContact(ctx, o.CustomerPhone, o.CustomerName)
	if err != nil {
		return err
	}
	contactID := ""
	if contact != nil {
		contactID = contact.ID
	}
	deal, err := p.hubspot.CreateDeal(ctx, o, contactID)
	if err != nil {
		return err
	}
	if deal != nil {
		p.log.Info().Str("order_id", o.OrderID).Str("deal_id", deal.ID).Msg("order synced to crm")
	}
	return nil
}

// StatusChanged queues the CRM deal-stage update and the
// order.status_changed webhook fan-out for an order whose status moved.
func (p *Pipeline) StatusChanged(o OrderSummary) {
	p.enqueue(func(ctx context.Context) {
		if p.hubspot.Configured() {
			sideEffectsAttempted.WithLabelValues("crm_status_changed").Inc()
			if err := p.syncStatus(ctx, o); err != nil {
				sideEffectsFailed.WithLabelValues("crm_status_changed").Inc()
				p.log.Warn().Err(err).Str("order_id", o.OrderID).
					Str("status", string(o.Status)).Msg("crm stage update failed")
			}
		}

		sideEffectsAttempted.WithLabelValues("webhook_status_changed").Inc()
		if failed := p.webhooks.Notify(ctx, EventOrderStatusChanged, o); failed > 0 {
			sideEffectsFailed.WithLabelValues("webhook_status_changed").Inc()
		}
	})
}

func (p *Pipeline) syncStatus(ctx context.Context, o OrderSummary) error {
	deal, err := p.hubspot.FindDealByOrderID(ctx, o.OrderID)
	if err != nil {
		return err
	}
	if deal == nil {
		p.log.Debug().Str("order_id", o.OrderID).Msg("no crm deal for order, skipping stage update")
		return nil
	}
	return p.hubspot.UpdateDealStage(ctx, deal.ID, DealStageFor(o.Status))
}

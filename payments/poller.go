package payments

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Anandhu-731/BookNest/gateway"
	"github.com/Anandhu-731/BookNest/utils"
)

// Poller is the pull-based safety net for lost callbacks: it periodically
// re-drives Reconcile for pending bills older than a threshold. A single
// coarse run-lock keeps two sweeps from walking the same bill set.
type Poller struct {
	engine   *Engine
	ledger   Ledger
	interval time.Duration
	minAge   time.Duration
	batch    int

	sweepMu sync.Mutex
	stop    chan struct{}
	done    chan struct{}
}

func NewPoller(engine *Engine, ledger Ledger, interval, minAge time.Duration, batch int) *Poller {
	if batch <= 0 {
		batch = 50
	}
	return &Poller{
		engine:   engine,
		ledger:   ledger,
		interval: interval,
		minAge:   minAge,
		batch:    batch,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop in the background until Stop is called.
func (p *Poller) Start() {
	go p.run()
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (p *Poller) Stop() {
	close(p.stop)
	<-p.done
}

func (p *Poller) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	utils.LogInfo("Status poller started (interval %v, min age %v)", p.interval, p.minAge)
	for {
		select {
		case <-p.stop:
			utils.LogInfo("Status poller stopped")
			return
		case <-ticker.C:
			if _, err := p.Sweep(context.Background()); err != nil {
				utils.LogError("Status poll sweep failed: %v", err)
			}
		}
	}
}

// Sweep reconciles one batch of stale pending bills and returns how many
// settlements were applied. A failure on one bill is logged and the sweep
// moves on; only a failure to list the bills aborts it. Returns immediately
// when another sweep is still running.
func (p *Poller) Sweep(ctx context.Context) (int, error) {
	if !p.sweepMu.TryLock() {
		utils.LogDebug("Status poll sweep already running, skipping")
		return 0, nil
	}
	defer p.sweepMu.Unlock()

	cutoff := time.Now().Add(-p.minAge)
	bills, err := p.ledger.StalePendingBills(ctx, cutoff, p.batch)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, bill := range bills {
		outcome, err := p.engine.Reconcile(ctx, bill.BillCode)
		switch {
		case errors.Is(err, gateway.ErrGatewayUnreachable):
			// Transient; the next sweep retries this bill.
			utils.LogError("Status poll: gateway unreachable for bill %s: %v", bill.BillCode, err)
		case err != nil:
			utils.LogError("Status poll: reconciliation of bill %s failed: %v", bill.BillCode, err)
		case outcome == OutcomeApplied:
			applied++
		}
	}

	if len(bills) > 0 {
		utils.LogInfo("Status poll sweep checked %d bills, applied %d settlements", len(bills), applied)
	}
	return applied, nil
}

package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	uuid "github.com/satori/go.uuid"

	"gitlab.com/navguard/navguard"
)

// CapabilityHeader tags main-frame requests to the cooperating search
// engine when rewards participation is on
const CapabilityHeader = "X-Search-Capability"

// backupSentinel is the page-side contract: query the sentinel global; if
// undefined the page hasn't loaded, do nothing; otherwise deliver the
// backup JSON or the literal null.
const backupSentinel = "typeof window.__receiveBackupResults"

// BackupQuery asynchronously supplies fallback search results to a frame.
// Delivery has two independent firing points (inline when results beat the
// page load, on demand afterwards); the delivered flag guarantees the frame
// sees the payload exactly once per navigation epoch.
type BackupQuery struct {
	epoch string
	frame navguard.FrameScripter

	mu        sync.Mutex
	result    *string
	delivered bool
	cancelled bool
	ready     chan struct{}
}

// NewBackupQuery opens a fresh delivery epoch for one main-frame load
func NewBackupQuery(frame navguard.FrameScripter) *BackupQuery {
	return &BackupQuery{
		epoch: uuid.NewV4().String(),
		frame: frame,
		ready: make(chan struct{}),
	}
}

// Epoch identifies this query's navigation generation
func (b *BackupQuery) Epoch() string { return b.epoch }

// Cancel discards the lookup; a later main-frame navigation started, so the
// stale result must never reach the new page
func (b *BackupQuery) Cancel() {
	b.mu.Lock()
	b.cancelled = true
	b.mu.Unlock()
}

// SupplyResult hands over the backup JSON, or "" when the lookup failed and
// the page gets the literal null
func (b *BackupQuery) SupplyResult(json string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancelled || b.result != nil {
		return
	}
	b.result = &json
	close(b.ready)
}

// Deliver pushes the payload into the frame if the page is ready for it.
// Safe to call from both firing points; only the first delivery lands.
func (b *BackupQuery) Deliver(ctx context.Context) {
	b.mu.Lock()
	if b.cancelled || b.delivered || b.result == nil {
		b.mu.Unlock()
		return
	}
	payload := *b.result
	b.mu.Unlock()

	state, err := b.frame.Evaluate(ctx, backupSentinel)
	if err != nil {
		log.Warn().Err(err).Msg("backup sentinel query failed")
		return
	}
	if state == "undefined" || state == `"undefined"` {
		// page hasn't loaded; the on-demand firing point picks it up later
		return
	}

	b.mu.Lock()
	if b.delivered || b.cancelled {
		b.mu.Unlock()
		return
	}
	b.delivered = true
	b.mu.Unlock()

	if payload == "" {
		payload = "null"
	}
	if _, err := b.frame.Evaluate(ctx, fmt.Sprintf("window.__receiveBackupResults(%s)", payload)); err != nil {
		log.Warn().Err(err).Str("epoch", b.epoch).Msg("backup result delivery failed")
	}
}

// Ready is closed once a result has been supplied
func (b *BackupQuery) Ready() <-chan struct{} { return b.ready }

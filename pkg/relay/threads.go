// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/aiku/phonedesk-bridge/pkg/helpdesk"
)

// recentThreadLimit bounds the continuity lookup to the single most recently
// created thread; the policy never needs more history than that.
const recentThreadLimit = 1

// findReusableThread returns the customer's most recently created thread if
// it was updated strictly within the continuity window, else nil. Read-only
// and safe to call unconditionally before any write decision. The platform's
// created-descending ordering is authoritative and is not re-sorted here;
// threads sharing a createdAt keep the platform's tie-break.
func (b *Bridge) findReusableThread(ctx context.Context, customerID string) (*helpdesk.Thread, error) {
	threads, err := b.helpdesk.ListRecentThreads(ctx, customerID, recentThreadLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: list threads: %v", ErrUpstreamUnavailable, err)
	}
	if len(threads) == 0 {
		return nil, nil
	}

	thread := threads[0]
	age := time.Since(thread.UpdatedAt)
	if age < b.cfg.Window() {
		b.log.Debug().
			Str("thread_id", thread.ID).
			Dur("age", age).
			Msg("Reusing recent thread")
		return &thread, nil
	}
	b.log.Debug().
		Str("thread_id", thread.ID).
		Dur("age", age).
		Msg("Most recent thread outside continuity window")
	return nil, nil
}

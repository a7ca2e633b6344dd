package ratelimit

import "context"

// BatchPlan chunks a total page count into batch_size-sized groups
// separated by batch_delay_seconds, when enable_batch_processing is set
// (§4.3). Disabled, it returns a single batch covering every page.
func (g *Governor) BatchPlan(totalPages int) [][2]int {
	if totalPages <= 0 {
		return nil
	}
	if !g.cfg.EnableBatchProcessing || g.cfg.BatchSize <= 0 {
		return [][2]int{{0, totalPages}}
	}
	var batches [][2]int
	for start := 0; start < totalPages; start += g.cfg.BatchSize {
		end := start + g.cfg.BatchSize
		if end > totalPages {
			end = totalPages
		}
		batches = append(batches, [2]int{start, end})
	}
	return batches
}

// WaitBetweenBatches sleeps batch_delay_seconds between batch iterations,
// a no-op when batch processing is disabled.
func (g *Governor) WaitBetweenBatches(ctx context.Context) error {
	if !g.cfg.EnableBatchProcessing || g.cfg.BatchDelay <= 0 {
		return nil
	}
	return sleepCtx(ctx, g.cfg.BatchDelay)
}

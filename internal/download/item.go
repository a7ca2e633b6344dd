package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/snapetech/bili-sync/internal/db"
	"github.com/snapetech/bili-sync/internal/status"
	"github.com/snapetech/bili-sync/internal/upstream"
)

// deleteItemPayload is the task_data JSON for a C4 DeleteItem task auto-
// emitted on a ChargeOnly(87007) verdict (§4.8.1, §7).
type deleteItemPayload struct {
	ItemID int64 `json:"item_id"`
}

// RunItem runs one item's 5-subtask DAG (§4.8): cover, info-xml,
// uploader-avatar, uploader-info, then pages-aggregate. Each subtask is
// skipped (logged at debug) if already Succeeded. A RiskControl verdict from
// any subtask returns upstream.ErrAbortPipeline immediately, leaving
// remaining subtasks untouched for the next tick. A ChargeOnly(87007)
// verdict emits a guarded DeleteItem task and forces pages-aggregate to
// Failed for this run, but otherwise lets the item's other subtasks finish.
func (p *Pipeline) RunItem(ctx context.Context, src db.Source, it db.Item, allItems []db.Item, isBangumi, isCollection bool) error {
	word := it.DownloadStatus

	root, err := p.itemRoot(src, it, isBangumi)
	if err != nil {
		return fmt.Errorf("download: item %d root: %w", it.ID, err)
	}

	chargeOnly := false

	run := func(t status.ItemSubtask, fn SubtaskFunc) error {
		current := status.ItemGet(word, t)
		if current == status.Succeeded {
			log.Printf("download: item %d subtask %s already succeeded, skipping", it.ID, t)
			return nil
		}
		outcome := RunSubtask(ctx, fn, p.Options.MaxRetries, func() {
			if p.Governor != nil {
				p.Governor.RecordOutcome(src.ID, upstream.RateLimit)
			}
		})
		word = status.ItemSet(word, t, outcome.State)
		p.Metrics.ObserveSubtaskResult(t.String(), outcome.State.String())
		if err := p.Store.UpdateItemStatus(it.ID, word); err != nil {
			return fmt.Errorf("download: persist item %d subtask %s: %w", it.ID, t, err)
		}
		if outcome.Invalid {
			if err := p.Store.MarkInvalid(it.ID); err != nil {
				log.Printf("download: item %d mark invalid: %v", it.ID, err)
			}
		}
		if outcome.ChargeOnly {
			chargeOnly = true
			if err := p.emitDeleteItem(it.ID); err != nil {
				log.Printf("download: item %d emit DeleteItem: %v", it.ID, err)
			}
		}
		if outcome.Abort {
			return upstream.ErrAbortPipeline
		}
		return nil
	}

	if err := run(status.ItemCover, func(ctx context.Context) error {
		if err := p.beforeRequest(ctx, src.ID, false); err != nil {
			return classifyCollaboratorErr(err)
		}
		return classifyCollaboratorErr(p.Downloader.Download(ctx, it.Cover, coverDestination(root, it.Cover), 1))
	}); err != nil {
		return err
	}

	if err := run(status.ItemInfoXML, func(ctx context.Context) error {
		meta := ItemMetadata{
			Title:         it.Name,
			UploaderName:  it.UploaderName,
			SeasonNumber:  it.SeasonNumber,
			EpisodeNumber: it.EpisodeNumber,
		}
		if t, err := p.itemContext(it).FormattedTime(); err == nil {
			meta.PubTime = t
		}
		return classifyCollaboratorErr(p.Metadata.RenderItemInfo(ctx, meta, root))
	}); err != nil {
		return err
	}

	if err := run(status.ItemUploaderAvatar, func(ctx context.Context) error {
		// The avatar URL itself is upstream-protocol detail (§1); the
		// Downloader collaborator resolves this opaque identifier on its
		// own, the same way it resolves a stream URL.
		url := fmt.Sprintf("uploader-avatar:%s", it.UploaderID)
		dest := fmt.Sprintf("%s/%s", p.Options.UpperPath, it.UploaderID)
		if err := p.beforeRequest(ctx, src.ID, false); err != nil {
			return classifyCollaboratorErr(err)
		}
		return classifyCollaboratorErr(p.Downloader.Download(ctx, url, dest, 1))
	}); err != nil {
		return err
	}

	if err := run(status.ItemUploaderInfo, func(ctx context.Context) error {
		return classifyCollaboratorErr(p.Metadata.RenderUploaderInfo(ctx, it.UploaderID, it.UploaderName, p.Options.UpperPath))
	}); err != nil {
		return err
	}

	if chargeOnly {
		word = status.ItemSet(word, status.ItemPagesAggregate, status.Failed)
		if err := p.Store.UpdateItemStatus(it.ID, word); err != nil {
			return fmt.Errorf("download: persist item %d pages-aggregate: %w", it.ID, err)
		}
		return nil
	}

	pagesErr := p.runPagesAggregate(ctx, src, it, root, allItems, isCollection)
	if errors.Is(pagesErr, upstream.ErrAbortPipeline) {
		// Leave pages-aggregate as-is; §4.10's reset rule (not this subtask
		// machine) governs what happens to in-flight page state on abort.
		return pagesErr
	}
	final := status.Succeeded
	if pagesErr != nil {
		final = status.Failed
	}
	word = status.ItemSet(word, status.ItemPagesAggregate, final)
	if err := p.Store.UpdateItemStatus(it.ID, word); err != nil {
		return fmt.Errorf("download: persist item %d pages-aggregate: %w", it.ID, err)
	}
	return pagesErr
}

func (p *Pipeline) emitDeleteItem(itemID int64) error {
	payload, err := json.Marshal(deleteItemPayload{ItemID: itemID})
	if err != nil {
		return err
	}
	pending, err := p.Queue.HasPending(db.TaskDeleteItem, string(payload))
	if err != nil {
		return err
	}
	if pending {
		return nil
	}
	_, err = p.Queue.Enqueue(db.TaskDeleteItem, string(payload))
	return err
}

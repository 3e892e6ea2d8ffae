// Package display drives the shared presentation screen: the idle loop /
// video / scoreboard state machine, the video request queue, and the
// watchdog that keeps a stuck player from freezing the display.
package display

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scanquest/orchestrator/internal/catalog"
	"github.com/scanquest/orchestrator/internal/errors"
	"github.com/scanquest/orchestrator/internal/events"
	"github.com/scanquest/orchestrator/internal/logger"
	"github.com/scanquest/orchestrator/internal/models"
	"github.com/scanquest/orchestrator/pkg/videoplayer"
)

// Orchestrator owns the display state. IDLE_LOOP and SCOREBOARD are the two
// persistent modes; VIDEO is always transient and records which persistent
// mode to restore on exit.
type Orchestrator struct {
	log     logger.Logger
	bus     *events.Bus
	catalog *catalog.Catalog
	player  videoplayer.Client

	mu        sync.Mutex
	mode      models.DisplayMode
	returnsTo models.DisplayMode
	current   *models.VideoQueueItem
	queue     []models.VideoQueueItem
}

// New creates a display orchestrator starting in the idle loop
func New(log logger.Logger, cat *catalog.Catalog, player videoplayer.Client, bus *events.Bus) *Orchestrator {
	return &Orchestrator{
		log:       log,
		bus:       bus,
		catalog:   cat,
		player:    player,
		mode:      models.ModeIdleLoop,
		returnsTo: models.ModeIdleLoop,
	}
}

// State returns a point-in-time snapshot of the display state
func (o *Orchestrator) State() models.DisplayState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

func (o *Orchestrator) stateLocked() models.DisplayState {
	s := models.DisplayState{
		Mode:          o.mode,
		ReturnsToMode: o.returnsTo,
		Queue:         append([]models.VideoQueueItem(nil), o.queue...),
	}
	if o.current != nil {
		c := *o.current
		s.CurrentVideo = &c
	}
	return s
}

// EnqueueVideo queues the video attached to a token and starts playback if
// the display is free
func (o *Orchestrator) EnqueueVideo(ctx context.Context, tokenID, requestedBy string) (models.VideoQueueItem, error) {
	token, ok := o.catalog.Get(tokenID)
	if !ok {
		return models.VideoQueueItem{}, errors.NotFoundf("token %s not found", tokenID)
	}
	if token.MediaRefs.Video == "" {
		return models.VideoQueueItem{}, errors.Validationf("token %s has no video", tokenID)
	}

	item := models.VideoQueueItem{
		ID:          uuid.NewString(),
		TokenID:     tokenID,
		RequestedBy: requestedBy,
		RequestTime: time.Now(),
		Status:      models.VideoPending,
	}

	o.mu.Lock()
	o.queue = append(o.queue, item)
	o.mu.Unlock()

	o.log.Info("Video queued", "token_id", tokenID, "requested_by", requestedBy, "item_id", item.ID)
	o.bus.Publish(events.VideoStatus, item)

	o.Advance(ctx)
	return item, nil
}

// Advance starts the next pending video when nothing is playing. On entry to
// VIDEO it records which persistent mode was active so completion or failure
// can restore it.
func (o *Orchestrator) Advance(ctx context.Context) {
	for {
		o.mu.Lock()
		if o.current != nil || len(o.queue) == 0 {
			o.mu.Unlock()
			return
		}

		item := o.queue[0]
		o.queue = o.queue[1:]

		now := time.Now()
		item.Status = models.VideoPlaying
		item.PlaybackStart = &now
		if o.mode != models.ModeVideo {
			o.returnsTo = o.mode
		}
		o.mode = models.ModeVideo
		o.current = &item

		token, _ := o.catalog.Get(item.TokenID)
		path := token.MediaRefs.Video
		state := o.stateLocked()
		o.mu.Unlock()

		o.log.Info("Video starting", "item_id", item.ID, "token_id", item.TokenID, "path", path)
		o.bus.Publish(events.VideoStatus, item)
		o.bus.Publish(events.DisplayMode, state)

		itemID := item.ID
		err := o.player.Play(ctx, path, func(playErr error) {
			o.finishPlayback(itemID, playErr)
		})
		if err == nil {
			return
		}

		// Player refused the clip outright; mark it failed and try the next
		// one rather than leaving the display stuck in VIDEO.
		o.log.Error("Video playback failed to start", "item_id", item.ID, "error", err)
		o.finishPlaybackNoAdvance(itemID, err)
	}
}

// finishPlayback handles a completion or error callback from the player,
// restores the persistent mode, and advances the queue
func (o *Orchestrator) finishPlayback(itemID string, playErr error) {
	if !o.finishPlaybackNoAdvance(itemID, playErr) {
		return
	}
	o.Advance(context.Background())
}

// finishPlaybackNoAdvance finalizes the current item and reverts the display.
// Returns false for stale callbacks (item no longer current, e.g. after a
// watchdog timeout already moved on).
func (o *Orchestrator) finishPlaybackNoAdvance(itemID string, playErr error) bool {
	o.mu.Lock()
	if o.current == nil || o.current.ID != itemID {
		o.mu.Unlock()
		return false
	}

	now := time.Now()
	item := o.current
	item.PlaybackEnd = &now
	if playErr != nil {
		item.Status = models.VideoFailed
		item.Error = playErr.Error()
	} else {
		item.Status = models.VideoCompleted
	}
	finished := *item

	o.mode = o.returnsTo
	o.current = nil
	state := o.stateLocked()
	o.mu.Unlock()

	if playErr != nil {
		o.log.Warn("Video failed", "item_id", itemID, "error", playErr)
	} else {
		o.log.Info("Video completed", "item_id", itemID)
	}
	o.bus.Publish(events.VideoStatus, finished)
	o.bus.Publish(events.DisplayMode, state)
	return true
}

// SetIdleLoop switches the display to the idle loop. During playback it only
// updates the mode to restore afterwards; an in-progress video is never
// preempted.
func (o *Orchestrator) SetIdleLoop() models.DisplayState {
	return o.setPersistentMode(models.ModeIdleLoop)
}

// SetScoreboard switches the display to the scoreboard, with the same
// no-preemption rule as SetIdleLoop
func (o *Orchestrator) SetScoreboard() models.DisplayState {
	return o.setPersistentMode(models.ModeScoreboard)
}

func (o *Orchestrator) setPersistentMode(mode models.DisplayMode) models.DisplayState {
	o.mu.Lock()
	if o.mode == models.ModeVideo {
		o.returnsTo = mode
	} else {
		o.mode = mode
		o.returnsTo = mode
	}
	state := o.stateLocked()
	o.mu.Unlock()

	o.log.Info("Display mode set", "mode", mode, "deferred", state.Mode == models.ModeVideo)
	o.bus.Publish(events.DisplayMode, state)
	return state
}

// ClearQueue drops every pending video. The current playback is unaffected.
func (o *Orchestrator) ClearQueue() int {
	o.mu.Lock()
	n := len(o.queue)
	o.queue = nil
	state := o.stateLocked()
	o.mu.Unlock()

	if n > 0 {
		o.log.Info("Video queue cleared", "dropped", n)
		o.bus.Publish(events.DisplayMode, state)
	}
	return n
}

// ShouldTimeout reports whether the current playback has exceeded the bound
func (o *Orchestrator) ShouldTimeout(maxDuration time.Duration) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil || o.current.Status != models.VideoPlaying || o.current.PlaybackStart == nil {
		return false
	}
	return time.Since(*o.current.PlaybackStart) > maxDuration
}

// Watchdog force-advances past videos that run longer than maxDuration,
// treating the overrun as a playback failure. Runs until ctx is cancelled.
func (o *Orchestrator) Watchdog(ctx context.Context, interval, maxDuration time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.log.Info("Display watchdog stopped")
			return
		case <-ticker.C:
			if !o.ShouldTimeout(maxDuration) {
				continue
			}
			o.mu.Lock()
			var itemID string
			if o.current != nil {
				itemID = o.current.ID
			}
			o.mu.Unlock()
			if itemID == "" {
				continue
			}

			o.log.Warn("Video playback timed out, forcing advance", "item_id", itemID, "max_duration", maxDuration)
			if err := o.player.Stop(ctx); err != nil {
				o.log.Warn("Player stop failed during timeout", "error", err)
			}
			o.finishPlayback(itemID, fmt.Errorf("playback exceeded %s watchdog bound", maxDuration))
		}
	}
}

package httpapi

import (
	"context"
	"time"

	"madrasa/internal/attendance"
	"madrasa/internal/cache"
	"madrasa/internal/logger"
	"madrasa/internal/queue"
)

// SavedHook drops cached reports of the saved class-day and announces the
// save on q. Both steps are best effort; the roll-call is already committed.
func SavedHook(reports *cache.Reports, q queue.Queue) attendance.SavedFunc {
	return func(ctx context.Context, classID string, date attendance.Date) {
		if err := reports.Invalidate(ctx, classID, date); err != nil {
			logger.Warn().Err(err).Str("class_id", classID).Str("date", date.String()).Msg("report cache invalidation failed")
		}
		if q == nil {
			return
		}
		pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := q.Publish(pubCtx, queue.NewAttendanceSaved(classID, date.String())); err != nil {
			logger.Warn().Err(err).Str("class_id", classID).Msg("queue publish failed")
		}
	}
}

// rosterChanged drops the cached reports of classIDs after a student write.
func (h *Handler) rosterChanged(ctx context.Context, classIDs ...string) {
	seen := map[string]bool{}
	for _, id := range classIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if err := h.Reports.InvalidateClass(ctx, id); err != nil {
			logger.Warn().Err(err).Str("class_id", id).Msg("report cache invalidation failed")
		}
	}
}

// teachersChanged drops every cached report after a teacher rename or delete.
func (h *Handler) teachersChanged(ctx context.Context) {
	if err := h.Reports.InvalidateAll(ctx); err != nil {
		logger.Warn().Err(err).Msg("report cache invalidation failed")
	}
}

// Package worker rebuilds cached reports after roll-calls are saved.
package worker

import (
	"context"

	"madrasa/internal/attendance"
	"madrasa/internal/cache"
	"madrasa/internal/logger"
	"madrasa/internal/queue"
	"madrasa/internal/school"
)

// Warmer consumes attendance.saved events.
type Warmer struct {
	engine  *attendance.Engine
	school  *school.Service
	reports *cache.Reports
}

// NewWarmer creates a warmer.
func NewWarmer(engine *attendance.Engine, svc *school.Service, reports *cache.Reports) *Warmer {
	return &Warmer{engine: engine, school: svc, reports: reports}
}

// Run processes messages until ctx is done or the queue closes.
func (w *Warmer) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	logger.Info().Msg("worker started, waiting for messages")
	for msg := range messages {
		if err := w.Handle(ctx, msg); err != nil {
			logger.Warn().Err(err).Str("type", msg.Type).Msg("event processing failed")
		}
	}
	logger.Info().Msg("worker stopped")
	return nil
}

// Handle rebuilds the unfiltered report of the saved class-day. Other message
// types are ignored.
func (w *Warmer) Handle(ctx context.Context, msg queue.Message) error {
	if msg.Type != queue.TypeAttendanceSaved {
		return nil
	}
	evt, err := queue.DecodeAttendanceSaved(msg)
	if err != nil {
		return err
	}
	date, err := attendance.ParseDate(evt.Date)
	if err != nil {
		return err
	}

	gen := w.reports.Generation(ctx, evt.ClassID)
	dir, err := w.school.TeacherDirectory(ctx)
	if err != nil {
		return err
	}
	req := attendance.ReportRequest{ClassID: evt.ClassID, Date: date}
	rep, err := w.engine.BuildReport(ctx, req, dir)
	if err != nil {
		return err
	}
	w.reports.Set(ctx, req, rep, gen)
	logger.Debug().Str("class_id", evt.ClassID).Str("date", evt.Date).Int("students", rep.TotalStudents).Msg("report rebuilt")
	return nil
}

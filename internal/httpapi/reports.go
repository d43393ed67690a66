package httpapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"madrasa/internal/apperrors"
	"madrasa/internal/attendance"
	"madrasa/internal/export"
)

type reportQuery struct {
	ClassID   string `form:"class_id"`
	Date      string `form:"date" binding:"omitempty,civildate"`
	TeacherID string `form:"teacher_id"`
}

func (q reportQuery) request() attendance.ReportRequest {
	return attendance.ReportRequest{ClassID: q.ClassID, Date: attendance.Date(q.Date), TeacherID: q.TeacherID}
}

// buildReport serves from the cache when possible.
func (h *Handler) buildReport(ctx context.Context, req attendance.ReportRequest) (*attendance.Report, error) {
	if rep, ok := h.Reports.Get(ctx, req); ok {
		h.Metrics.ObserveReport(true)
		return rep, nil
	}
	gen := h.Reports.Generation(ctx, req.ClassID)
	dir, err := h.School.TeacherDirectory(ctx)
	if err != nil {
		return nil, err
	}
	rep, err := h.Engine.BuildReport(ctx, req, dir)
	if err != nil {
		return nil, err
	}
	h.Reports.Set(ctx, req, rep, gen)
	h.Metrics.ObserveReport(false)
	return rep, nil
}

func (h *Handler) attendanceReport(c *gin.Context) {
	var q reportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	rep, err := h.buildReport(c.Request.Context(), q.request())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": rep, "percentages": rep.Percentages()})
}

func (h *Handler) exportReport(c *gin.Context) {
	var q reportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	ctx := c.Request.Context()
	rep, err := h.buildReport(ctx, q.request())
	if err != nil {
		respondError(c, err)
		return
	}

	className := rep.ClassID
	cls, err := h.School.Store().GetClass(ctx, rep.ClassID)
	switch {
	case err == nil:
		className = cls.Name
	case !errors.Is(err, apperrors.ErrNotFound):
		respondError(c, apperrors.Store("Failed to load class", err))
		return
	}

	var buf bytes.Buffer
	if err := export.WriteReport(&buf, className, rep); err != nil {
		respondError(c, apperrors.Store("Failed to export report", err))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(className, rep)+`"`)
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

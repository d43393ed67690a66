package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"madrasa/internal/attendance"
)

type dayQuery struct {
	ClassID string `form:"class_id"`
	Date    string `form:"date" binding:"omitempty,civildate"`
}

type rollCallRequest struct {
	ClassID  string            `json:"class_id"`
	Date     string            `json:"date" binding:"omitempty,civildate"`
	Statuses map[string]string `json:"statuses"`
}

type rollCallView struct {
	ClassID        string                  `json:"class_id"`
	Date           attendance.Date         `json:"date"`
	Entries        []attendance.Entry      `json:"entries"`
	Stats          attendance.SessionStats `json:"stats"`
	PersistPending bool                    `json:"persist_pending"`
	// Degraded is set when stored attendance could not be read.
	Degraded bool `json:"degraded"`
}

func (h *Handler) viewOf(s *attendance.Session) rollCallView {
	return rollCallView{
		ClassID:        s.ClassID,
		Date:           s.Date,
		Entries:        s.Entries(),
		Stats:          s.Stats(),
		PersistPending: h.Engine.PersistsPending(),
		Degraded:       s.Degraded(),
	}
}

func (h *Handler) teacherClasses(c *gin.Context) {
	list, err := h.Assignments.Classes(c.Request.Context(), claims(c).Subject)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": list})
}

func (h *Handler) loadRollCall(c *gin.Context) {
	var q dayQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	s, err := h.Engine.LoadSession(c.Request.Context(), q.ClassID, attendance.Date(q.Date))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.viewOf(s))
}

// saveRollCall reloads the class-day, applies the submitted decisions on top
// of what is stored and writes the whole roster back.
func (h *Handler) saveRollCall(c *gin.Context) {
	var req rollCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ctx := c.Request.Context()
	s, err := h.Engine.LoadSession(ctx, req.ClassID, attendance.Date(req.Date))
	if err != nil {
		respondError(c, err)
		return
	}
	for studentID, raw := range req.Statuses {
		status, err := attendance.ParseStatus(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := s.SetStatus(studentID, status); err != nil {
			respondError(c, err)
			return
		}
	}

	res, err := h.Engine.SaveSession(ctx, s, claims(c).Subject)
	h.Metrics.ObserveSave(res.Created, res.Updated, res.Skipped, err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Attendance saved successfully!",
		"created": res.Created,
		"updated": res.Updated,
		"skipped": res.Skipped,
		"session": h.viewOf(s),
	})
}

func (h *Handler) history(c *gin.Context) {
	var q dayQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	hist, err := h.Engine.History(c.Request.Context(), q.ClassID, attendance.Date(q.Date))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, hist)
}

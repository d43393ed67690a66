package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"madrasa/internal/apperrors"
	"madrasa/internal/logger"
	"madrasa/internal/school"
)

const maxPhotoBytes = 5 << 20

type classRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	AcademicYear string `json:"academic_year"`
}

func (r classRequest) model() school.ClassSection {
	return school.ClassSection{Name: r.Name, Description: r.Description, AcademicYear: r.AcademicYear}
}

type studentRequest struct {
	Name            string `json:"name"`
	ClassID         string `json:"class_id"`
	GuardianName    string `json:"guardian_name"`
	GuardianContact string `json:"guardian_contact"`
	PhotoURL        string `json:"photo_url" binding:"omitempty,url"`
	DateOfBirth     string `json:"date_of_birth" binding:"omitempty,civildate"`
}

func (r studentRequest) model() school.Student {
	return school.Student{
		Name:            r.Name,
		ClassID:         r.ClassID,
		GuardianName:    r.GuardianName,
		GuardianContact: r.GuardianContact,
		PhotoURL:        r.PhotoURL,
		DateOfBirth:     r.DateOfBirth,
	}
}

type teacherRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type assignmentsRequest struct {
	ClassIDs []string `json:"class_ids"`
}

func sortParam(c *gin.Context) school.Sort {
	if c.Query("sort") == "name" {
		return school.SortName
	}
	return school.SortNewest
}

func (h *Handler) overview(c *gin.Context) {
	o, err := h.School.Store().Overview(c.Request.Context())
	if err != nil {
		respondError(c, apperrors.Store("Failed to load overview", err))
		return
	}
	c.JSON(http.StatusOK, o)
}

// ---- classes

func (h *Handler) listClasses(c *gin.Context) {
	list, err := h.School.Store().ListClasses(c.Request.Context(), sortParam(c))
	if err != nil {
		respondError(c, apperrors.Store("Failed to load classes", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": list})
}

func (h *Handler) getClass(c *gin.Context) {
	cls, err := h.School.Store().GetClass(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.Store("Failed to load class", err))
		return
	}
	c.JSON(http.StatusOK, cls)
}

func (h *Handler) createClass(c *gin.Context) {
	var req classRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	cls, err := h.School.CreateClass(c.Request.Context(), req.model())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cls)
}

func (h *Handler) updateClass(c *gin.Context) {
	var req classRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	cls, err := h.School.UpdateClass(c.Request.Context(), c.Param("id"), req.model())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cls)
}

func (h *Handler) deleteClass(c *gin.Context) {
	id := c.Param("id")
	if err := h.School.DeleteClass(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	h.rosterChanged(c.Request.Context(), id)
	c.Status(http.StatusNoContent)
}

// ---- students

func (h *Handler) listStudents(c *gin.Context) {
	var (
		list []school.Student
		err  error
	)
	if classID := c.Query("class_id"); classID != "" {
		list, err = h.School.Store().ListStudentsByClass(c.Request.Context(), classID)
	} else {
		list, err = h.School.Store().ListStudents(c.Request.Context())
	}
	if err != nil {
		respondError(c, apperrors.Store("Failed to load students", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": list})
}

func (h *Handler) getStudent(c *gin.Context) {
	st, err := h.School.Store().GetStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.Store("Failed to load student", err))
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) createStudent(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	st, err := h.School.CreateStudent(c.Request.Context(), req.model())
	if err != nil {
		respondError(c, err)
		return
	}
	h.rosterChanged(c.Request.Context(), st.ClassID)
	c.JSON(http.StatusCreated, st)
}

func (h *Handler) updateStudent(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ctx := c.Request.Context()
	prev, _ := h.School.Store().GetStudent(ctx, c.Param("id"))
	st, err := h.School.UpdateStudent(ctx, c.Param("id"), req.model())
	if err != nil {
		respondError(c, err)
		return
	}
	h.rosterChanged(ctx, prev.ClassID, st.ClassID)
	c.JSON(http.StatusOK, st)
}

func (h *Handler) deleteStudent(c *gin.Context) {
	ctx := c.Request.Context()
	prev, _ := h.School.Store().GetStudent(ctx, c.Param("id"))
	if err := h.School.DeleteStudent(ctx, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	h.rosterChanged(ctx, prev.ClassID)
	c.Status(http.StatusNoContent)
}

func (h *Handler) uploadStudentPhoto(c *gin.Context) {
	if h.Photos == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured", "code": "unavailable"})
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.School.Store().GetStudent(ctx, id); err != nil {
		respondError(c, apperrors.Store("Failed to load student", err))
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondError(c, apperrors.Validation("file field required"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
	if err != nil {
		respondError(c, apperrors.Validation("could not read upload"))
		return
	}
	if len(data) > maxPhotoBytes {
		respondError(c, apperrors.Validation("photo must be 5MB or smaller"))
		return
	}

	res, err := h.Photos.UploadStudentPhoto(ctx, id, data, header.Filename)
	if err != nil {
		logger.Error().Err(err).Str("student_id", id).Msg("photo upload failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed", "code": "upload_failed"})
		return
	}
	if err := h.School.Store().SetStudentPhoto(ctx, id, res.SecureURL); err != nil {
		respondError(c, apperrors.Store("Failed to update student", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"photo_url": res.SecureURL, "public_id": res.PublicID})
}

// ---- teachers

func (h *Handler) listTeachers(c *gin.Context) {
	list, err := h.School.Store().ListTeachers(c.Request.Context(), sortParam(c))
	if err != nil {
		respondError(c, apperrors.Store("Failed to load teachers", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"teachers": list})
}

func (h *Handler) createTeacher(c *gin.Context) {
	var req teacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	u, err := h.School.CreateTeacher(c.Request.Context(), school.NewTeacher{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *Handler) renameTeacher(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	u, err := h.School.RenameTeacher(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	h.teachersChanged(c.Request.Context())
	c.JSON(http.StatusOK, u)
}

func (h *Handler) deleteTeacher(c *gin.Context) {
	if err := h.School.DeleteTeacher(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	h.teachersChanged(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *Handler) getAssignments(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.School.Teacher(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	list, err := h.Assignments.Current(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": list})
}

func (h *Handler) replaceAssignments(c *gin.Context) {
	var req assignmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.School.Teacher(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	list, err := h.Assignments.Replace(ctx, id, req.ClassIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": list})
}

// Package httpapi exposes the portal over JSON/HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"madrasa/internal/apperrors"
	"madrasa/internal/assignment"
	"madrasa/internal/attendance"
	"madrasa/internal/auth"
	"madrasa/internal/cache"
	"madrasa/internal/cloudinary"
	"madrasa/internal/logger"
	"madrasa/internal/metrics"
	"madrasa/internal/school"
)

// PhotoUploader stores student photos and returns their public result.
type PhotoUploader interface {
	UploadStudentPhoto(ctx context.Context, studentID string, data []byte, filename string) (*cloudinary.UploadResult, error)
}

// Deps are the collaborators of the API. Reports, Photos and Metrics may be nil.
type Deps struct {
	Engine      *attendance.Engine
	School      *school.Service
	Assignments *assignment.Replacer
	Auth        *auth.Provider
	Reports     *cache.Reports
	Photos      PhotoUploader
	Metrics     *metrics.Metrics

	SigningKey string
	Issuer     string
}

// Handler serves the /v1 routes.
type Handler struct {
	Deps
}

// New creates a handler.
func New(d Deps) *Handler {
	return &Handler{Deps: d}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/v1")

	v1.POST("/auth/login", h.login)
	v1.POST("/auth/refresh", h.refresh)
	v1.POST("/auth/logout", h.logout)

	authed := v1.Group("", auth.Authenticate(h.SigningKey, h.Issuer))
	authed.GET("/me", h.me)

	admin := authed.Group("/admin", auth.RequireRole(school.RoleSuperAdmin))
	admin.GET("/overview", h.overview)

	admin.GET("/classes", h.listClasses)
	admin.POST("/classes", h.createClass)
	admin.GET("/classes/:id", h.getClass)
	admin.PUT("/classes/:id", h.updateClass)
	admin.DELETE("/classes/:id", h.deleteClass)

	admin.GET("/students", h.listStudents)
	admin.POST("/students", h.createStudent)
	admin.GET("/students/:id", h.getStudent)
	admin.PUT("/students/:id", h.updateStudent)
	admin.DELETE("/students/:id", h.deleteStudent)
	admin.POST("/students/:id/photo", h.uploadStudentPhoto)

	admin.GET("/teachers", h.listTeachers)
	admin.POST("/teachers", h.createTeacher)
	admin.PUT("/teachers/:id", h.renameTeacher)
	admin.DELETE("/teachers/:id", h.deleteTeacher)
	admin.GET("/teachers/:id/assignments", h.getAssignments)
	admin.PUT("/teachers/:id/assignments", h.replaceAssignments)

	admin.GET("/reports/attendance", h.attendanceReport)
	admin.GET("/reports/attendance/export", h.exportReport)

	teacher := authed.Group("/teacher", auth.RequireRole(school.RoleTeacher))
	teacher.GET("/classes", h.teacherClasses)
	teacher.GET("/rollcall", h.loadRollCall)
	teacher.PUT("/rollcall", h.saveRollCall)
	teacher.GET("/history", h.history)
}

// RegisterValidators adds the civildate rule to gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("httpapi: unexpected validator engine")
	}
	return v.RegisterValidation("civildate", func(fl validator.FieldLevel) bool {
		_, err := attendance.ParseDate(fl.Field().String())
		return err == nil
	})
}

func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": apperrors.Code(err)})
}

// bindError turns a binding failure into a validation error.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := fe.Field() + " is invalid"
		switch fe.Tag() {
		case "required":
			msg = fe.Field() + " is required"
		case "civildate":
			msg = "date must be formatted as YYYY-MM-DD"
		case "email":
			msg = "A valid email is required."
		}
		respondError(c, apperrors.Validation(msg))
		return
	}
	respondError(c, apperrors.Validation("malformed request body"))
}

func claims(c *gin.Context) auth.Claims {
	cl, _ := auth.ClaimsFrom(c)
	return cl
}

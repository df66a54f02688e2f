package handler

import (
	"fmt"
	"net/http"

	"edvora.com/lms/internal/middleware"
	courseDto "edvora.com/lms/internal/modules/course/dto"
	"edvora.com/lms/internal/modules/course/service"
	"edvora.com/lms/pkg/apperror"
	"edvora.com/lms/pkg/response"
	"edvora.com/lms/pkg/validator"
	"github.com/gin-gonic/gin"
)

type CourseHandler struct {
	service service.Service
}

func NewCourseHandler(service service.Service) *CourseHandler {
	return &CourseHandler{service: service}
}

func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var req courseDto.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, fmt.Errorf("%s: %w", validator.FormatValidationError(err), apperror.ErrInvalidInput))
		return
	}

	course, err := h.service.CreateCourse(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusCreated, gin.H{"course": course})
}

func (h *CourseHandler) EditCourse(c *gin.Context) {
	var req courseDto.EditCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, fmt.Errorf("%s: %w", validator.FormatValidationError(err), apperror.ErrInvalidInput))
		return
	}

	course, err := h.service.EditCourse(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, gin.H{"course": course})
}

func (h *CourseHandler) GetCourse(c *gin.Context) {
	course, err := h.service.GetCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, gin.H{"course": course})
}

func (h *CourseHandler) GetCourses(c *gin.Context) {
	courses, err := h.service.GetCourses(c.Request.Context(), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, gin.H{"courses": courses})
}

func (h *CourseHandler) GetCourseContent(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized)
		return
	}

	content, err := h.service.GetCourseContent(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, gin.H{"content": content})
}

func (h *CourseHandler) AddQuestion(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized)
		return
	}

	var req courseDto.AddQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, fmt.Errorf("%s: %w", validator.FormatValidationError(err), apperror.ErrInvalidInput))
		return
	}

	course, err := h.service.AddQuestion(c.Request.Context(), user, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, gin.H{"course": course})
}

func (h *CourseHandler) AddAnswer(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized)
		return
	}

	var req courseDto.AddAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, fmt.Errorf("%s: %w", validator.FormatValidationError(err), apperror.ErrInvalidInput))
		return
	}

	course, err := h.service.AddAnswer(c.Request.Context(), user, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, gin.H{"course": course})
}

func (h *CourseHandler) AddReview(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized)
		return
	}

	var req courseDto.AddReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, fmt.Errorf("%s: %w", validator.FormatValidationError(err), apperror.ErrInvalidInput))
		return
	}

	course, err := h.service.AddReview(c.Request.Context(), user, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, gin.H{"course": course})
}

func (h *CourseHandler) AddReviewReply(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized)
		return
	}

	var req courseDto.AddReviewReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, fmt.Errorf("%s: %w", validator.FormatValidationError(err), apperror.ErrInvalidInput))
		return
	}

	course, err := h.service.AddReviewReply(c.Request.Context(), user, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, gin.H{"course": course})
}

func (h *CourseHandler) GetAllCourses(c *gin.Context) {
	courses, err := h.service.GetAllCoursesAdmin(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, gin.H{"courses": courses})
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"edvora.com/lms/internal/entity"
	courseDto "edvora.com/lms/internal/modules/course/dto"
	repo "edvora.com/lms/internal/modules/course/repository"
	notification "edvora.com/lms/internal/modules/notification/service"
	search "edvora.com/lms/internal/modules/search/service"
	"edvora.com/lms/pkg/apperror"
	"edvora.com/lms/pkg/cache"
	"edvora.com/lms/pkg/mailer"
	"edvora.com/lms/pkg/storage"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	thumbnailFolder = "courses"

	// catalogCacheKey is the fixed key the whole course listing is cached
	// under.
	catalogCacheKey = "allCourses"
)

type Service interface {
	CreateCourse(ctx context.Context, req courseDto.CreateCourseRequest) (*entity.Course, error)
	EditCourse(ctx context.Context, courseID string, req courseDto.EditCourseRequest) (*entity.Course, error)
	GetCourse(ctx context.Context, courseID string) (*entity.Course, error)
	GetCourses(ctx context.Context, query string) ([]entity.Course, error)
	GetCourseContent(ctx context.Context, actor *entity.User, courseID string) ([]entity.CourseSection, error)
	AddQuestion(ctx context.Context, actor *entity.User, req courseDto.AddQuestionRequest) (*entity.Course, error)
	AddAnswer(ctx context.Context, actor *entity.User, req courseDto.AddAnswerRequest) (*entity.Course, error)
	AddReview(ctx context.Context, actor *entity.User, courseID string, req courseDto.AddReviewRequest) (*entity.Course, error)
	AddReviewReply(ctx context.Context, actor *entity.User, req courseDto.AddReviewReplyRequest) (*entity.Course, error)
	GetAllCoursesAdmin(ctx context.Context) ([]entity.Course, error)
}

type service struct {
	courseRepo   repo.CourseRepository
	cacheStore   cache.Store
	imageStorage storage.ImageStorage
	mail         mailer.Mailer
	notifier     notification.NotificationService
	meili        search.SearchService
	sanitizer    *bluemonday.Policy
}

func NewService(courseRepo repo.CourseRepository, cacheStore cache.Store, imageStorage storage.ImageStorage, mail mailer.Mailer, notifier notification.NotificationService, meili search.SearchService) Service {
	return &service{
		courseRepo:   courseRepo,
		cacheStore:   cacheStore,
		imageStorage: imageStorage,
		mail:         mail,
		notifier:     notifier,
		meili:        meili,
		sanitizer:    bluemonday.UGCPolicy(),
	}
}

func (s *service) CreateCourse(ctx context.Context, req courseDto.CreateCourseRequest) (*entity.Course, error) {
	course := &entity.Course{
		Name:           req.Name,
		Description:    req.Description,
		Price:          req.Price,
		EstimatedPrice: req.EstimatedPrice,
		Tags:           req.Tags,
		Level:          req.Level,
		DemoURL:        req.DemoURL,
		CourseData:     buildSections(req.CourseData),
	}

	if req.Thumbnail != "" {
		uploaded, err := s.imageStorage.Upload(ctx, req.Thumbnail, thumbnailFolder)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, apperror.ErrUpstream)
		}
		course.Thumbnail = datatypes.NewJSONType(entity.Avatar{PublicID: uploaded.PublicID, URL: uploaded.URL})
	}

	if err := s.courseRepo.Create(ctx, course); err != nil {
		return nil, err
	}

	if s.meili != nil {
		if err := s.meili.IndexCourse(course); err != nil {
			log.Printf("failed to index course: %v", err)
		}
	}

	return course, nil
}

func (s *service) EditCourse(ctx context.Context, courseID string, req courseDto.EditCourseRequest) (*entity.Course, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	if req.Thumbnail != "" {
		// Old asset is destroyed before the replacement goes up.
		if old := course.Thumbnail.Data(); old.PublicID != "" {
			if err := s.imageStorage.Destroy(ctx, old.PublicID); err != nil {
				return nil, fmt.Errorf("%v: %w", err, apperror.ErrUpstream)
			}
		}

		uploaded, err := s.imageStorage.Upload(ctx, req.Thumbnail, thumbnailFolder)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, apperror.ErrUpstream)
		}
		course.Thumbnail = datatypes.NewJSONType(entity.Avatar{PublicID: uploaded.PublicID, URL: uploaded.URL})
	}

	if req.Name != "" {
		course.Name = req.Name
	}
	if req.Description != "" {
		course.Description = req.Description
	}
	if req.Price != 0 {
		course.Price = req.Price
	}
	if req.EstimatedPrice != 0 {
		course.EstimatedPrice = req.EstimatedPrice
	}
	if req.Tags != "" {
		course.Tags = req.Tags
	}
	if req.Level != "" {
		course.Level = req.Level
	}
	if req.DemoURL != "" {
		course.DemoURL = req.DemoURL
	}
	if req.CourseData != nil {
		course.CourseData = buildSections(req.CourseData)
	}

	if err := s.courseRepo.Save(ctx, course); err != nil {
		return nil, err
	}

	if s.meili != nil {
		if err := s.meili.IndexCourse(course); err != nil {
			log.Printf("failed to reindex course: %v", err)
		}
	}

	return course, nil
}

// GetCourse serves the unauthenticated single-course read, cache-aside by
// course id. Mutation paths do not touch this key, so a cached snapshot stays
// stale until the next overwrite.
func (s *service) GetCourse(ctx context.Context, courseID string) (*entity.Course, error) {
	if s.cacheStore != nil {
		cached, found, err := s.cacheStore.Get(ctx, courseID)
		if err != nil {
			return nil, err
		}
		if found {
			var course entity.Course
			if err := json.Unmarshal([]byte(cached), &course); err == nil {
				return &course, nil
			}
		}
	}

	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	stripRestrictedFields(course)

	if s.cacheStore != nil {
		payload, err := json.Marshal(course)
		if err != nil {
			return nil, err
		}
		if err := s.cacheStore.Set(ctx, courseID, string(payload)); err != nil {
			return nil, err
		}
	}

	return course, nil
}

// GetCourses serves the catalog listing under a single fixed cache key. A
// non-empty query goes through the search index instead and bypasses the
// cache.
func (s *service) GetCourses(ctx context.Context, query string) ([]entity.Course, error) {
	if query != "" && s.meili != nil {
		return s.searchCourses(ctx, query)
	}

	if s.cacheStore != nil {
		cached, found, err := s.cacheStore.Get(ctx, catalogCacheKey)
		if err != nil {
			return nil, err
		}
		if found {
			var courses []entity.Course
			if err := json.Unmarshal([]byte(cached), &courses); err == nil {
				return courses, nil
			}
		}
	}

	courses, err := s.courseRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range courses {
		stripRestrictedFields(&courses[i])
	}

	if s.cacheStore != nil {
		payload, err := json.Marshal(courses)
		if err != nil {
			return nil, err
		}
		if err := s.cacheStore.Set(ctx, catalogCacheKey, string(payload)); err != nil {
			return nil, err
		}
	}

	return courses, nil
}

func (s *service) searchCourses(ctx context.Context, query string) ([]entity.Course, error) {
	ids, err := s.meili.SearchCourses(query)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperror.ErrUpstream)
	}

	all, err := s.courseRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]entity.Course, len(all))
	for i := range all {
		stripRestrictedFields(&all[i])
		byID[all[i].ID.String()] = all[i]
	}

	matched := make([]entity.Course, 0, len(ids))
	for _, id := range ids {
		if course, ok := byID[id]; ok {
			matched = append(matched, course)
		}
	}
	return matched, nil
}

// GetCourseContent is the purchaser-only read: full sections, video URLs and
// question threads included.
func (s *service) GetCourseContent(ctx context.Context, actor *entity.User, courseID string) ([]entity.CourseSection, error) {
	id, err := uuid.Parse(courseID)
	if err != nil {
		return nil, fmt.Errorf("course not found: %w", apperror.ErrNotFound)
	}

	if !actor.Owns(id) {
		return nil, fmt.Errorf("you are not eligible to access this course: %w", apperror.ErrForbidden)
	}

	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	return course.CourseData, nil
}

func (s *service) AddQuestion(ctx context.Context, actor *entity.User, req courseDto.AddQuestionRequest) (*entity.Course, error) {
	course, err := s.loadCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}

	contentID, err := uuid.Parse(req.ContentID)
	if err != nil {
		return nil, fmt.Errorf("invalid content id: %w", apperror.ErrBadRequest)
	}

	section := course.Section(contentID)
	if section == nil {
		return nil, fmt.Errorf("invalid content id: %w", apperror.ErrBadRequest)
	}

	section.Questions = append(section.Questions, entity.Question{
		ID:        uuid.New(),
		User:      actor.Snapshot(),
		Question:  s.sanitizer.Sanitize(req.Question),
		Replies:   []entity.QuestionReply{},
		CreatedAt: time.Now(),
	})

	if err := s.courseRepo.Save(ctx, course); err != nil {
		return nil, err
	}

	notif := &entity.Notification{
		UserID:  actor.ID,
		Title:   "New Question Received",
		Message: fmt.Sprintf("You have a new question in %s", section.Title),
	}
	if err := s.notifier.CreateNotification(ctx, notif); err != nil {
		return nil, err
	}

	return course, nil
}

// AddAnswer appends a reply under the addressed question and then dispatches
// the side effect: a notification when the replier owns the question, a mail
// to the question's author otherwise. The reply is committed before dispatch,
// so a mail failure surfaces as a request failure with the data change kept.
func (s *service) AddAnswer(ctx context.Context, actor *entity.User, req courseDto.AddAnswerRequest) (*entity.Course, error) {
	course, err := s.loadCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}

	contentID, err := uuid.Parse(req.ContentID)
	if err != nil {
		return nil, fmt.Errorf("invalid content id: %w", apperror.ErrBadRequest)
	}
	section := course.Section(contentID)
	if section == nil {
		return nil, fmt.Errorf("invalid content id: %w", apperror.ErrBadRequest)
	}

	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("invalid question id: %w", apperror.ErrBadRequest)
	}
	question := section.QuestionByID(questionID)
	if question == nil {
		return nil, fmt.Errorf("invalid question id: %w", apperror.ErrBadRequest)
	}

	question.Replies = append(question.Replies, entity.QuestionReply{
		ID:        uuid.New(),
		User:      actor.Snapshot(),
		Answer:    s.sanitizer.Sanitize(req.Answer),
		CreatedAt: time.Now(),
	})

	if err := s.courseRepo.Save(ctx, course); err != nil {
		return nil, err
	}

	if actor.ID == question.User.ID {
		notif := &entity.Notification{
			UserID:  actor.ID,
			Title:   "New Question Reply Received",
			Message: fmt.Sprintf("You have a new question reply in %s", section.Title),
		}
		if err := s.notifier.CreateNotification(ctx, notif); err != nil {
			return nil, err
		}
	} else {
		mailData := map[string]any{
			"Name":  question.User.Name,
			"Title": section.Title,
		}
		if err := s.mail.Send(question.User.Email, "Question Reply", "question-reply", mailData); err != nil {
			return nil, fmt.Errorf("%v: %w", err, apperror.ErrUpstream)
		}
	}

	return course, nil
}

// AddReview appends a review and recomputes the course rating over the full
// review list. Rating bounds are stored as the client sent them.
func (s *service) AddReview(ctx context.Context, actor *entity.User, courseID string, req courseDto.AddReviewRequest) (*entity.Course, error) {
	id, err := uuid.Parse(courseID)
	if err != nil {
		return nil, fmt.Errorf("course not found: %w", apperror.ErrNotFound)
	}

	if !actor.Owns(id) {
		return nil, fmt.Errorf("you are not eligible to access this course: %w", apperror.ErrForbidden)
	}

	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	course.Reviews = append(course.Reviews, entity.Review{
		ID:        uuid.New(),
		User:      actor.Snapshot(),
		Comment:   s.sanitizer.Sanitize(req.Review),
		Rating:    req.Rating,
		CreatedAt: time.Now(),
	})
	course.RecomputeRating()

	if err := s.courseRepo.Save(ctx, course); err != nil {
		return nil, err
	}

	notif := &entity.Notification{
		UserID:  actor.ID,
		Title:   "New Review Received",
		Message: fmt.Sprintf("%s has given a review in %s", actor.Name, course.Name),
	}
	if err := s.notifier.CreateNotification(ctx, notif); err != nil {
		return nil, err
	}

	return course, nil
}

func (s *service) AddReviewReply(ctx context.Context, actor *entity.User, req courseDto.AddReviewReplyRequest) (*entity.Course, error) {
	course, err := s.loadCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}

	reviewID, err := uuid.Parse(req.ReviewID)
	if err != nil {
		return nil, fmt.Errorf("review not found: %w", apperror.ErrNotFound)
	}
	review := course.ReviewByID(reviewID)
	if review == nil {
		return nil, fmt.Errorf("review not found: %w", apperror.ErrNotFound)
	}

	// Reply list is created lazily on first reply.
	if review.Replies == nil {
		review.Replies = []entity.ReviewReply{}
	}
	review.Replies = append(review.Replies, entity.ReviewReply{
		ID:        uuid.New(),
		User:      actor.Snapshot(),
		Comment:   s.sanitizer.Sanitize(req.Comment),
		CreatedAt: time.Now(),
	})

	if err := s.courseRepo.Save(ctx, course); err != nil {
		return nil, err
	}

	return course, nil
}

func (s *service) GetAllCoursesAdmin(ctx context.Context) ([]entity.Course, error) {
	return s.courseRepo.FindAll(ctx)
}

// loadCourse resolves a course identifier to the aggregate. A syntactically
// invalid id fails before any store read happens.
func (s *service) loadCourse(ctx context.Context, courseID string) (*entity.Course, error) {
	id, err := uuid.Parse(courseID)
	if err != nil {
		return nil, fmt.Errorf("course not found: %w", apperror.ErrNotFound)
	}

	course, err := s.courseRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("course not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}
	return course, nil
}

func buildSections(inputs []courseDto.SectionInput) []entity.CourseSection {
	sections := make([]entity.CourseSection, 0, len(inputs))
	for _, in := range inputs {
		links := make([]entity.Link, 0, len(in.Links))
		for _, l := range in.Links {
			links = append(links, entity.Link{Title: l.Title, URL: l.URL})
		}
		sections = append(sections, entity.CourseSection{
			ID:          uuid.New(),
			Title:       in.Title,
			Description: in.Description,
			VideoURL:    in.VideoURL,
			VideoLength: in.VideoLength,
			Suggestion:  in.Suggestion,
			Links:       links,
			Questions:   []entity.Question{},
		})
	}
	return sections
}

// stripRestrictedFields removes the fields the public read paths must not
// expose: video URLs, suggestions, links and the question threads.
func stripRestrictedFields(course *entity.Course) {
	for i := range course.CourseData {
		course.CourseData[i].VideoURL = ""
		course.CourseData[i].Suggestion = ""
		course.CourseData[i].Links = nil
		course.CourseData[i].Questions = nil
	}
}

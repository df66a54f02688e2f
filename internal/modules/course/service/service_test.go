package service

import (
	"context"
	"errors"
	"testing"

	"edvora.com/lms/internal/entity"
	courseDto "edvora.com/lms/internal/modules/course/dto"
	"edvora.com/lms/pkg/apperror"
	"edvora.com/lms/pkg/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeCourseRepo struct {
	courses   map[uuid.UUID]*entity.Course
	findCalls int
	saveCalls int
}

func newFakeCourseRepo(courses ...*entity.Course) *fakeCourseRepo {
	r := &fakeCourseRepo{courses: make(map[uuid.UUID]*entity.Course)}
	for _, c := range courses {
		r.courses[c.ID] = c
	}
	return r
}

func (r *fakeCourseRepo) Create(_ context.Context, course *entity.Course) error {
	if course.ID == uuid.Nil {
		course.ID = uuid.New()
	}
	r.courses[course.ID] = course
	return nil
}

func (r *fakeCourseRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Course, error) {
	r.findCalls++
	course, ok := r.courses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return course, nil
}

func (r *fakeCourseRepo) FindAll(_ context.Context) ([]entity.Course, error) {
	out := make([]entity.Course, 0, len(r.courses))
	for _, c := range r.courses {
		out = append(out, *c)
	}
	return out, nil
}

func (r *fakeCourseRepo) Save(_ context.Context, course *entity.Course) error {
	r.saveCalls++
	r.courses[course.ID] = course
	return nil
}

type memStore struct {
	data map[string]string
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	val, ok := s.data[key]
	return val, ok, nil
}

func (s *memStore) Set(_ context.Context, key, value string) error {
	s.data[key] = value
	return nil
}

func (s *memStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

type fakeStorage struct {
	uploads  []string
	destroys []string
}

func (f *fakeStorage) Upload(_ context.Context, payload, folder string) (*storage.UploadedImage, error) {
	f.uploads = append(f.uploads, payload)
	return &storage.UploadedImage{PublicID: folder + "/asset", URL: "https://cdn.example.com/" + folder + "/asset"}, nil
}

func (f *fakeStorage) Destroy(_ context.Context, publicID string) error {
	f.destroys = append(f.destroys, publicID)
	return nil
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

type sentMail struct {
	to       string
	subject  string
	template string
}

func (f *fakeMailer) Send(to, subject, templateName string, _ any) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, template: templateName})
	return nil
}

type fakeNotifier struct {
	created []entity.Notification
}

func (f *fakeNotifier) CreateNotification(_ context.Context, n *entity.Notification) error {
	f.created = append(f.created, *n)
	return nil
}

func (f *fakeNotifier) GetNotifications(_ context.Context) ([]entity.Notification, error) {
	return f.created, nil
}

func (f *fakeNotifier) MarkAsRead(_ context.Context, _ uuid.UUID) ([]entity.Notification, error) {
	return f.created, nil
}

func (f *fakeNotifier) PruneRead(_ context.Context) (int64, error) {
	return 0, nil
}

type courseFixture struct {
	svc      Service
	repo     *fakeCourseRepo
	store    *memStore
	storage  *fakeStorage
	mailer   *fakeMailer
	notifier *fakeNotifier
}

func newCourseFixture(courses ...*entity.Course) *courseFixture {
	f := &courseFixture{
		repo:     newFakeCourseRepo(courses...),
		store:    newMemStore(),
		storage:  &fakeStorage{},
		mailer:   &fakeMailer{},
		notifier: &fakeNotifier{},
	}
	f.svc = NewService(f.repo, f.store, f.storage, f.mailer, f.notifier, nil)
	return f
}

func buyer(courseIDs ...uuid.UUID) *entity.User {
	return &entity.User{
		ID:      uuid.New(),
		Name:    "Ada",
		Email:   "ada@example.com",
		Role:    entity.RoleUser,
		Courses: courseIDs,
	}
}

func courseWithSection() (*entity.Course, uuid.UUID) {
	sectionID := uuid.New()
	course := &entity.Course{
		ID:   uuid.New(),
		Name: "Go from Scratch",
		CourseData: []entity.CourseSection{
			{ID: sectionID, Title: "Getting Started", VideoURL: "https://videos.example.com/1", Questions: []entity.Question{}},
		},
	}
	return course, sectionID
}

func TestAddQuestionAppendsToSection(t *testing.T) {
	course, sectionID := courseWithSection()
	f := newCourseFixture(course)
	actor := buyer()

	updated, err := f.svc.AddQuestion(context.Background(), actor, courseDto.AddQuestionRequest{
		Question:  "How do I install the toolchain?",
		CourseID:  course.ID.String(),
		ContentID: sectionID.String(),
	})
	require.NoError(t, err)

	section := updated.Section(sectionID)
	require.NotNil(t, section)
	require.Len(t, section.Questions, 1)
	assert.Equal(t, "How do I install the toolchain?", section.Questions[0].Question)
	assert.Equal(t, actor.ID, section.Questions[0].User.ID)
	assert.NotEqual(t, uuid.Nil, section.Questions[0].ID)

	assert.Equal(t, 1, f.repo.saveCalls)
	require.Len(t, f.notifier.created, 1)
	assert.Equal(t, "New Question Received", f.notifier.created[0].Title)
}

func TestAddQuestionUnknownSection(t *testing.T) {
	course, _ := courseWithSection()
	f := newCourseFixture(course)

	_, err := f.svc.AddQuestion(context.Background(), buyer(), courseDto.AddQuestionRequest{
		Question:  "hello?",
		CourseID:  course.ID.String(),
		ContentID: uuid.NewString(),
	})

	assert.ErrorIs(t, err, apperror.ErrBadRequest)
	assert.Equal(t, 0, f.repo.saveCalls)
}

func TestAddQuestionInvalidCourseID(t *testing.T) {
	f := newCourseFixture()

	_, err := f.svc.AddQuestion(context.Background(), buyer(), courseDto.AddQuestionRequest{
		Question:  "hello?",
		CourseID:  "not-a-uuid",
		ContentID: uuid.NewString(),
	})

	assert.ErrorIs(t, err, apperror.ErrNotFound)
	// A malformed id never reaches the database.
	assert.Equal(t, 0, f.repo.findCalls)
}

func TestAddAnswerSelfReplyCreatesNotification(t *testing.T) {
	course, sectionID := courseWithSection()
	actor := buyer()
	questionID := uuid.New()
	course.CourseData[0].Questions = []entity.Question{
		{ID: questionID, User: actor.Snapshot(), Question: "why?"},
	}
	f := newCourseFixture(course)

	updated, err := f.svc.AddAnswer(context.Background(), actor, courseDto.AddAnswerRequest{
		Answer:     "Answering my own question.",
		CourseID:   course.ID.String(),
		ContentID:  sectionID.String(),
		QuestionID: questionID.String(),
	})
	require.NoError(t, err)

	question := updated.Section(sectionID).QuestionByID(questionID)
	require.NotNil(t, question)
	require.Len(t, question.Replies, 1)
	assert.Equal(t, "Answering my own question.", question.Replies[0].Answer)

	require.Len(t, f.notifier.created, 1)
	assert.Equal(t, "New Question Reply Received", f.notifier.created[0].Title)
	assert.Empty(t, f.mailer.sent)
}

func TestAddAnswerForeignReplySendsMail(t *testing.T) {
	course, sectionID := courseWithSection()
	author := buyer()
	questionID := uuid.New()
	course.CourseData[0].Questions = []entity.Question{
		{ID: questionID, User: author.Snapshot(), Question: "why?"},
	}
	f := newCourseFixture(course)

	replier := buyer()
	_, err := f.svc.AddAnswer(context.Background(), replier, courseDto.AddAnswerRequest{
		Answer:     "Here is the reason.",
		CourseID:   course.ID.String(),
		ContentID:  sectionID.String(),
		QuestionID: questionID.String(),
	})
	require.NoError(t, err)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, author.Email, f.mailer.sent[0].to)
	assert.Equal(t, "question-reply", f.mailer.sent[0].template)
	assert.Empty(t, f.notifier.created)
}

func TestAddAnswerMailFailureFailsRequestAfterSave(t *testing.T) {
	course, sectionID := courseWithSection()
	author := buyer()
	questionID := uuid.New()
	course.CourseData[0].Questions = []entity.Question{
		{ID: questionID, User: author.Snapshot(), Question: "why?"},
	}
	f := newCourseFixture(course)
	f.mailer.err = errors.New("smtp unreachable")

	_, err := f.svc.AddAnswer(context.Background(), buyer(), courseDto.AddAnswerRequest{
		Answer:     "reply",
		CourseID:   course.ID.String(),
		ContentID:  sectionID.String(),
		QuestionID: questionID.String(),
	})

	assert.ErrorIs(t, err, apperror.ErrUpstream)
	// The reply is committed before dispatch, so the write sticks.
	assert.Equal(t, 1, f.repo.saveCalls)
	assert.Len(t, f.repo.courses[course.ID].CourseData[0].Questions[0].Replies, 1)
}

func TestAddReviewRecomputesRating(t *testing.T) {
	course, _ := courseWithSection()
	course.Reviews = []entity.Review{{ID: uuid.New(), Rating: 5}}
	f := newCourseFixture(course)
	actor := buyer(course.ID)

	updated, err := f.svc.AddReview(context.Background(), actor, course.ID.String(), courseDto.AddReviewRequest{
		Review: "Solid material.",
		Rating: 4,
	})
	require.NoError(t, err)

	assert.Equal(t, 4.5, updated.Ratings)
	require.Len(t, updated.Reviews, 2)
	assert.Equal(t, actor.ID, updated.Reviews[1].User.ID)

	require.Len(t, f.notifier.created, 1)
	assert.Equal(t, "New Review Received", f.notifier.created[0].Title)
}

func TestAddReviewRequiresPurchase(t *testing.T) {
	course, _ := courseWithSection()
	f := newCourseFixture(course)

	_, err := f.svc.AddReview(context.Background(), buyer(), course.ID.String(), courseDto.AddReviewRequest{
		Review: "never bought it",
		Rating: 1,
	})

	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.Equal(t, 0, f.repo.saveCalls)
}

func TestAddReviewReply(t *testing.T) {
	course, _ := courseWithSection()
	reviewID := uuid.New()
	course.Reviews = []entity.Review{{ID: reviewID, Rating: 5, Comment: "great"}}
	f := newCourseFixture(course)

	admin := buyer()
	updated, err := f.svc.AddReviewReply(context.Background(), admin, courseDto.AddReviewReplyRequest{
		Comment:  "Thanks for the feedback.",
		CourseID: course.ID.String(),
		ReviewID: reviewID.String(),
	})
	require.NoError(t, err)

	review := updated.ReviewByID(reviewID)
	require.NotNil(t, review)
	require.Len(t, review.Replies, 1)
	assert.Equal(t, "Thanks for the feedback.", review.Replies[0].Comment)
}

func TestAddReviewReplyUnknownReview(t *testing.T) {
	course, _ := courseWithSection()
	f := newCourseFixture(course)

	_, err := f.svc.AddReviewReply(context.Background(), buyer(), courseDto.AddReviewReplyRequest{
		Comment:  "reply",
		CourseID: course.ID.String(),
		ReviewID: uuid.NewString(),
	})

	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestGetCourseStripsRestrictedFields(t *testing.T) {
	course, sectionID := courseWithSection()
	course.CourseData[0].Suggestion = "watch twice"
	course.CourseData[0].Links = []entity.Link{{Title: "docs", URL: "https://example.com"}}
	course.CourseData[0].Questions = []entity.Question{{ID: uuid.New(), Question: "hidden"}}
	f := newCourseFixture(course)

	got, err := f.svc.GetCourse(context.Background(), course.ID.String())
	require.NoError(t, err)

	section := got.Section(sectionID)
	require.NotNil(t, section)
	assert.Empty(t, section.VideoURL)
	assert.Empty(t, section.Suggestion)
	assert.Empty(t, section.Links)
	assert.Empty(t, section.Questions)
}

func TestGetCourseServesStaleCacheAfterMutation(t *testing.T) {
	course, _ := courseWithSection()
	f := newCourseFixture(course)

	first, err := f.svc.GetCourse(context.Background(), course.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Go from Scratch", first.Name)

	// Mutations do not invalidate the per-course key.
	course.Name = "Go from Scratch, 2nd Edition"
	require.NoError(t, f.repo.Save(context.Background(), course))

	second, err := f.svc.GetCourse(context.Background(), course.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Go from Scratch", second.Name)
}

func TestGetCoursesUsesCatalogKey(t *testing.T) {
	course, _ := courseWithSection()
	f := newCourseFixture(course)

	courses, err := f.svc.GetCourses(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, courses, 1)

	_, cached := f.store.data["allCourses"]
	assert.True(t, cached)
}

func TestGetCourseContentRequiresPurchase(t *testing.T) {
	course, _ := courseWithSection()
	f := newCourseFixture(course)

	_, err := f.svc.GetCourseContent(context.Background(), buyer(), course.ID.String())
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	content, err := f.svc.GetCourseContent(context.Background(), buyer(course.ID), course.ID.String())
	require.NoError(t, err)
	require.Len(t, content, 1)
	assert.Equal(t, "https://videos.example.com/1", content[0].VideoURL)
}

func TestCreateCourseUploadsThumbnailAndBuildsSections(t *testing.T) {
	f := newCourseFixture()

	course, err := f.svc.CreateCourse(context.Background(), courseDto.CreateCourseRequest{
		Name:        "Distributed Systems",
		Description: "From logs to consensus",
		Price:       49,
		Thumbnail:   "data:image/png;base64,xxxx",
		CourseData: []courseDto.SectionInput{
			{Title: "Clocks", VideoURL: "https://videos.example.com/clocks"},
		},
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, course.ID)
	require.Len(t, course.CourseData, 1)
	assert.NotEqual(t, uuid.Nil, course.CourseData[0].ID)
	assert.NotNil(t, course.CourseData[0].Questions)

	require.Len(t, f.storage.uploads, 1)
	assert.Equal(t, "courses/asset", course.Thumbnail.Data().PublicID)
}

func TestEditCourseReplacesThumbnail(t *testing.T) {
	course, _ := courseWithSection()
	f := newCourseFixture(course)

	// Seed an existing asset so the replace path destroys it.
	created, err := f.svc.CreateCourse(context.Background(), courseDto.CreateCourseRequest{
		Name:        "Networking",
		Description: "Sockets up",
		Price:       29,
		Thumbnail:   "data:image/png;base64,old",
	})
	require.NoError(t, err)

	_, err = f.svc.EditCourse(context.Background(), created.ID.String(), courseDto.EditCourseRequest{
		Thumbnail: "data:image/png;base64,new",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"courses/asset"}, f.storage.destroys)
	assert.Len(t, f.storage.uploads, 2)
}

package entity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSectionLookup(t *testing.T) {
	first := uuid.New()
	second := uuid.New()

	course := &Course{
		CourseData: []CourseSection{
			{ID: first, Title: "Intro"},
			{ID: second, Title: "Setup"},
		},
	}

	section := course.Section(second)
	assert.NotNil(t, section)
	assert.Equal(t, "Setup", section.Title)

	assert.Nil(t, course.Section(uuid.New()))
}

func TestSectionLookupReturnsLiveReference(t *testing.T) {
	id := uuid.New()
	course := &Course{CourseData: []CourseSection{{ID: id}}}

	course.Section(id).Questions = append(course.Section(id).Questions, Question{ID: uuid.New()})

	assert.Len(t, course.CourseData[0].Questions, 1)
}

func TestQuestionLookup(t *testing.T) {
	questionID := uuid.New()
	section := &CourseSection{
		Questions: []Question{
			{ID: uuid.New(), Question: "first"},
			{ID: questionID, Question: "second"},
		},
	}

	q := section.QuestionByID(questionID)
	assert.NotNil(t, q)
	assert.Equal(t, "second", q.Question)

	assert.Nil(t, section.QuestionByID(uuid.New()))
}

func TestReviewLookup(t *testing.T) {
	reviewID := uuid.New()
	course := &Course{Reviews: []Review{{ID: reviewID, Comment: "great"}}}

	review := course.ReviewByID(reviewID)
	assert.NotNil(t, review)
	assert.Equal(t, "great", review.Comment)

	assert.Nil(t, course.ReviewByID(uuid.New()))
}

func TestRecomputeRating(t *testing.T) {
	course := &Course{}

	course.RecomputeRating()
	assert.Equal(t, 0.0, course.Ratings)

	course.Reviews = append(course.Reviews, Review{ID: uuid.New(), Rating: 3})
	course.RecomputeRating()
	assert.Equal(t, 3.0, course.Ratings)

	course.Reviews = append(course.Reviews, Review{ID: uuid.New(), Rating: 5}, Review{ID: uuid.New(), Rating: 4})
	course.RecomputeRating()
	assert.Equal(t, 4.0, course.Ratings)
}

func TestUserOwns(t *testing.T) {
	owned := uuid.New()
	user := &User{Courses: []uuid.UUID{owned}}

	assert.True(t, user.Owns(owned))
	assert.False(t, user.Owns(uuid.New()))
}

func TestUserSnapshot(t *testing.T) {
	user := &User{
		ID:    uuid.New(),
		Name:  "Ada",
		Email: "ada@example.com",
	}

	snap := user.Snapshot()
	assert.Equal(t, user.ID, snap.ID)
	assert.Equal(t, "Ada", snap.Name)
	assert.Equal(t, "ada@example.com", snap.Email)
}

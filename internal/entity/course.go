package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Course is the aggregate root. Sections, questions, replies and reviews are
// embedded JSONB documents owned exclusively by the course row; every mutation
// rewrites the whole document (last write wins, no version column).
type Course struct {
	ID             uuid.UUID                          `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string                             `gorm:"size:255;not null" json:"name"`
	Description    string                             `gorm:"type:text" json:"description"`
	Price          float64                            `gorm:"not null" json:"price"`
	EstimatedPrice float64                            `json:"estimated_price,omitempty"`
	Tags           string                             `gorm:"size:255" json:"tags,omitempty"`
	Level          string                             `gorm:"size:50" json:"level,omitempty"`
	DemoURL        string                             `gorm:"size:512" json:"demo_url,omitempty"`
	Thumbnail      datatypes.JSONType[Avatar]         `json:"thumbnail"`
	Ratings        float64                            `gorm:"default:0" json:"ratings"`
	Purchased      int                                `gorm:"default:0" json:"purchased"`
	CourseData     datatypes.JSONSlice[CourseSection] `json:"course_data"`
	Reviews        datatypes.JSONSlice[Review]        `json:"reviews"`
	CreatedAt      time.Time                          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time                          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Course) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID, err = uuid.NewV7()
	}
	return
}

// CourseSection is one content block (video plus its question thread).
type CourseSection struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	VideoURL    string     `json:"video_url,omitempty"`
	VideoLength int        `json:"video_length,omitempty"`
	Suggestion  string     `json:"suggestion,omitempty"`
	Links       []Link     `json:"links,omitempty"`
	Questions   []Question `json:"questions"`
}

type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Question struct {
	ID        uuid.UUID       `json:"id"`
	User      UserSnapshot    `json:"user"`
	Question  string          `json:"question"`
	Replies   []QuestionReply `json:"question_replies"`
	CreatedAt time.Time       `json:"created_at"`
}

type QuestionReply struct {
	ID        uuid.UUID    `json:"id"`
	User      UserSnapshot `json:"user"`
	Answer    string       `json:"answer"`
	CreatedAt time.Time    `json:"created_at"`
}

type Review struct {
	ID        uuid.UUID     `json:"id"`
	User      UserSnapshot  `json:"user"`
	Comment   string        `json:"comment"`
	Rating    int           `json:"rating"`
	Replies   []ReviewReply `json:"comment_replies,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

type ReviewReply struct {
	ID        uuid.UUID    `json:"id"`
	User      UserSnapshot `json:"user"`
	Comment   string       `json:"comment"`
	CreatedAt time.Time    `json:"created_at"`
}

// Section locates a content section by id. Linear scan; identifiers are only
// assumed unique within their parent list.
func (c *Course) Section(id uuid.UUID) *CourseSection {
	for i := range c.CourseData {
		if c.CourseData[i].ID == id {
			return &c.CourseData[i]
		}
	}
	return nil
}

// QuestionByID locates a question inside the section.
func (s *CourseSection) QuestionByID(id uuid.UUID) *Question {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return &s.Questions[i]
		}
	}
	return nil
}

// ReviewByID locates a review by id.
func (c *Course) ReviewByID(id uuid.UUID) *Review {
	for i := range c.Reviews {
		if c.Reviews[i].ID == id {
			return &c.Reviews[i]
		}
	}
	return nil
}

// RecomputeRating folds the full review list into the average. Full recompute
// on every review add, O(n); rating values are stored as the client sent them.
func (c *Course) RecomputeRating() {
	if len(c.Reviews) == 0 {
		c.Ratings = 0
		return
	}
	sum := 0
	for _, rev := range c.Reviews {
		sum += rev.Rating
	}
	c.Ratings = float64(sum) / float64(len(c.Reviews))
}

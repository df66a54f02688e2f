package search

import (
	"encoding/json"
	"fmt"

	"edvora.com/lms/internal/entity"
	"github.com/meilisearch/meilisearch-go"
)

const courseIndex = "courses"

// CourseDocument is the flattened view of a course that lives in the search
// index. Embedded Q&A and reviews stay out of it.
type CourseDocument struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Tags        string  `json:"tags"`
	Level       string  `json:"level"`
	Price       float64 `json:"price"`
	Ratings     float64 `json:"ratings"`
}

type SearchService interface {
	IndexCourse(course *entity.Course) error
	SearchCourses(query string) ([]string, error)
}

type meiliSearchService struct {
	client meilisearch.ServiceManager
}

func NewMeiliSearchService(client meilisearch.ServiceManager) SearchService {
	return &meiliSearchService{client: client}
}

func (s *meiliSearchService) IndexCourse(course *entity.Course) error {
	doc := CourseDocument{
		ID:          course.ID.String(),
		Name:        course.Name,
		Description: course.Description,
		Tags:        course.Tags,
		Level:       course.Level,
		Price:       course.Price,
		Ratings:     course.Ratings,
	}

	if _, err := s.client.Index(courseIndex).AddDocuments([]CourseDocument{doc}, strPtr("id")); err != nil {
		return fmt.Errorf("failed to index course %s: %w", doc.ID, err)
	}
	return nil
}

// SearchCourses returns the matching course ids, best match first.
func (s *meiliSearchService) SearchCourses(query string) ([]string, error) {
	res, err := s.client.Index(courseIndex).Search(query, &meilisearch.SearchRequest{Limit: 50})
	if err != nil {
		return nil, fmt.Errorf("course search failed: %w", err)
	}

	raw, err := json.Marshal(res.Hits)
	if err != nil {
		return nil, err
	}
	var docs []CourseDocument
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

func strPtr(s string) *string {
	return &s
}

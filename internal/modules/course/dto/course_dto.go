package dto

type SectionInput struct {
	Title       string      `json:"title" binding:"required"`
	Description string      `json:"description"`
	VideoURL    string      `json:"video_url"`
	VideoLength int         `json:"video_length"`
	Suggestion  string      `json:"suggestion"`
	Links       []LinkInput `json:"links"`
}

type LinkInput struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type CreateCourseRequest struct {
	Name           string         `json:"name" binding:"required,max=255"`
	Description    string         `json:"description" binding:"required"`
	Price          float64        `json:"price" binding:"required"`
	EstimatedPrice float64        `json:"estimated_price"`
	Tags           string         `json:"tags"`
	Level          string         `json:"level"`
	DemoURL        string         `json:"demo_url"`
	Thumbnail      string         `json:"thumbnail"`
	CourseData     []SectionInput `json:"course_data"`
}

type EditCourseRequest struct {
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Price          float64        `json:"price"`
	EstimatedPrice float64        `json:"estimated_price"`
	Tags           string         `json:"tags"`
	Level          string         `json:"level"`
	DemoURL        string         `json:"demo_url"`
	Thumbnail      string         `json:"thumbnail"`
	CourseData     []SectionInput `json:"course_data"`
}

type AddQuestionRequest struct {
	Question  string `json:"question" binding:"required"`
	CourseID  string `json:"course_id" binding:"required"`
	ContentID string `json:"content_id" binding:"required"`
}

type AddAnswerRequest struct {
	Answer     string `json:"answer" binding:"required"`
	CourseID   string `json:"course_id" binding:"required"`
	ContentID  string `json:"content_id" binding:"required"`
	QuestionID string `json:"question_id" binding:"required"`
}

type AddReviewRequest struct {
	Review string `json:"review" binding:"required"`
	Rating int    `json:"rating" binding:"required"`
}

type AddReviewReplyRequest struct {
	Comment  string `json:"comment" binding:"required"`
	CourseID string `json:"course_id" binding:"required"`
	ReviewID string `json:"review_id" binding:"required"`
}

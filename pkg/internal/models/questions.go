package models

import "time"

type Question struct {
	BaseModel

	Identifier  string     `json:"identifier" gorm:"uniqueIndex;size:128"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	IsActive    bool       `json:"is_active"`
	ShowResults bool       `json:"show_results"`
	VotingEndAt *time.Time `json:"voting_end_at"`

	Options []Option `json:"options"`
}

// Ended reports whether the question's voting deadline has passed.
func (q Question) Ended(now time.Time) bool {
	return q.VotingEndAt != nil && !now.Before(*q.VotingEndAt)
}

type Option struct {
	BaseModel

	QuestionID  uint    `json:"question_id" gorm:"uniqueIndex:idx_options_question_identifier"`
	Identifier  string  `json:"identifier" gorm:"uniqueIndex:idx_options_question_identifier;size:128"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Weight      int     `json:"weight"`
	ImageURL    *string `json:"image_url"`
}

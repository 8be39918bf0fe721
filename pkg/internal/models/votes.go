package models

// Vote is the ledger record of one user's choice on one question.
// The composite unique index is what makes the duplicate-check-and-insert
// race safe: the second concurrent writer fails on commit.
type Vote struct {
	BaseModel

	QuestionID uint   `json:"question_id" gorm:"uniqueIndex:idx_votes_question_user"`
	OptionID   uint   `json:"option_id" gorm:"index"`
	UserID     string `json:"user_id" gorm:"uniqueIndex:idx_votes_question_user;size:128"`

	Question Question `json:"question"`
	Option   Option   `json:"option"`
}

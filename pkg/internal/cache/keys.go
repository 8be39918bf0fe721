package cache

import (
	"fmt"
	"time"
)

const (
	ActiveQuestionsTTL = 3600 * time.Second
	QuestionTTL        = 1800 * time.Second
	ResultsTTL         = 300 * time.Second

	TagQuestionList    = "question_list"
	TagQuestionResults = "question_results"

	KeyActiveQuestions = "questions#active"
)

func KeyQuestion(identifier string) string {
	return fmt.Sprintf("questions#one:%s", identifier)
}

func KeyResults(identifier string) string {
	return fmt.Sprintf("questions#results:%s", identifier)
}

func TagQuestion(identifier string) string {
	return fmt.Sprintf("question:%s", identifier)
}

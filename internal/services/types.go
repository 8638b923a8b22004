package services

import "time"

// Survey captures the fields the recorder needs from a stored survey.
type Survey struct {
	ID    int64
	Title string
}

// Question is a survey prompt. AnswerGroupID zero means the question offers
// no selectable answers.
type Question struct {
	ID            int64
	Text          string
	AnswerGroupID int64
}

// Answer is one selectable option and one edge of the survey graph.
// NextQuestionID zero marks a terminal answer.
type Answer struct {
	ID             int64
	NumberAnswer   int
	Text           string
	QuestionID     int64
	GroupID        int64
	NextQuestionID int64
}

// Session is the persisted conversation state for one (user, survey) pair.
type Session struct {
	UserID            int64
	SurveyID          int64
	CurrentQuestionID int64 // zero = no current question
	Completed         bool
	UpdatedAt         time.Time
}

// Statistic is one recorded response event.
type Statistic struct {
	ID                 int64
	UserID             int64
	SurveyID           int64
	QuestionShownID    int64
	QuestionAnsweredID int64
	AnswerID           int64
	Timestamp          time.Time
}

// PromptOption is one answer offered with a prompt.
type PromptOption struct {
	ID           int64
	NumberAnswer int
	Text         string
}

// Prompt is a question ready to be served to a participant.
type Prompt struct {
	QuestionID int64
	Text       string
	Options    []PromptOption
}

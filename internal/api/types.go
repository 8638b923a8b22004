package api

import "time"

// Survey is a named collection of branching questions with a participant set.
// Participants and questions live in join tables; see Store.
type Survey struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Question is a single prompt. AnswerGroupID selects the set of answers a
// participant may choose from; zero means the question has no selectable
// answers and cannot be advanced past. ParentQuestionID is informational.
type Question struct {
	ID               int64  `json:"id"`
	Text             string `json:"text"`
	AnswerGroupID    int64  `json:"answer_group_id,omitempty"`
	ParentQuestionID int64  `json:"parent_question_id,omitempty"`
}

// AnswerGroup is a reusable set of selectable answers shared across questions.
type AnswerGroup struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Answer is one selectable option. NumberAnswer is the value a participant
// submits; it is unique only within a group. NextQuestionID is the forward
// edge of the survey graph; zero means the answer ends the survey.
type Answer struct {
	ID             int64  `json:"id"`
	NumberAnswer   int    `json:"number_answer"`
	Text           string `json:"text"`
	QuestionID     int64  `json:"question_id"`
	GroupID        int64  `json:"group_id,omitempty"`
	NextQuestionID int64  `json:"next_question_id,omitempty"`
}

// UserStatistic is one audit-log row: who answered what, where, and when.
// Rows are upserted on (user, survey, question shown, question answered).
type UserStatistic struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	SurveyID           int64     `json:"survey_id"`
	QuestionShownID    int64     `json:"questions_shown"`
	QuestionAnsweredID int64     `json:"questions_answered"`
	AnswerID           int64     `json:"answers_given"`
	Timestamp          time.Time `json:"timestamp"`
}

// SurveySession is the explicit conversation state for one (user, survey)
// pair. CurrentQuestionID zero together with Completed means the participant
// walked off the end of the graph.
type SurveySession struct {
	UserID            int64     `json:"user_id"`
	SurveyID          int64     `json:"survey_id"`
	CurrentQuestionID int64     `json:"current_question_id,omitempty"`
	Completed         bool      `json:"completed"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// AnswerCountRow is one survey-statistics group: how many times a given
// answer was recorded for a given question.
type AnswerCountRow struct {
	QuestionID   int64  `json:"-"`
	QuestionText string `json:"question_text"`
	AnswerID     int64  `json:"-"`
	AnswerText   string `json:"answer_text"`
	AnswerCount  int    `json:"answer_count"`
}

// AnswerUsersRow counts distinct respondents that picked one answer.
type AnswerUsersRow struct {
	AnswerID   int64  `json:"answer_id"`
	AnswerText string `json:"answer_text"`
	UserCount  int    `json:"user_count"`
}

// QuestionUsersRow counts responses recorded against one question.
type QuestionUsersRow struct {
	QuestionID int64 `json:"question_id"`
	TotalUsers int   `json:"total_users"`
}

package api

type Store interface {
	AddSurvey(s *Survey) *Survey
	GetSurvey(id int64) *Survey
	AddSurveyParticipant(surveyID, userID int64) bool
	AttachQuestion(surveyID, questionID int64) bool

	AddQuestion(q *Question) *Question
	GetQuestion(id int64) *Question
	// SurveyQuestions returns the survey's questions in attachment order,
	// followed by any questions reachable only through next-question edges.
	SurveyQuestions(surveyID int64) []*Question

	AddAnswerGroup(g *AnswerGroup) *AnswerGroup
	GetAnswerGroup(id int64) *AnswerGroup

	AddAnswer(a *Answer) *Answer
	GetAnswer(id int64) *Answer
	// SurveyAnswers returns every answer selectable somewhere in the survey
	// graph: answers owned by a survey question or belonging to the answer
	// group of one.
	SurveyAnswers(surveyID int64) []*Answer

	GetSession(userID, surveyID int64) *SurveySession
	PutSession(sess *SurveySession) error

	LatestStatistic(userID, surveyID int64) *UserStatistic
	UpsertStatistic(st *UserStatistic) error
	ListStatistics(surveyID int64) []*UserStatistic

	// Aggregations for the statistics engine. Count rows come back ordered
	// by count descending; rank and percentage arithmetic live in services.
	SurveyAnswerCounts(surveyID int64) []AnswerCountRow
	AnswerDistribution(surveyID, questionID int64) []AnswerUsersRow
	QuestionResponseCounts(surveyID int64) []QuestionUsersRow
	CountParticipants(surveyID int64) int
	CountRespondents(surveyID, questionID int64) int
}

var _ Store = (*memoryStore)(nil)

package api

import "github.com/grigorin/opros/internal/services"

type statsStoreAdapter struct {
	store Store
}

func newStatsStoreAdapter(store Store) services.StatsStore {
	return &statsStoreAdapter{store: store}
}

func (a *statsStoreAdapter) SurveyAnswerCounts(surveyID int64) []services.AnswerCount {
	rows := a.store.SurveyAnswerCounts(surveyID)
	out := make([]services.AnswerCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, services.AnswerCount{
			QuestionText: row.QuestionText,
			AnswerText:   row.AnswerText,
			Count:        row.AnswerCount,
		})
	}
	return out
}

func (a *statsStoreAdapter) AnswerDistribution(surveyID, questionID int64) []services.AnswerUsers {
	rows := a.store.AnswerDistribution(surveyID, questionID)
	out := make([]services.AnswerUsers, 0, len(rows))
	for _, row := range rows {
		out = append(out, services.AnswerUsers{
			AnswerID:   row.AnswerID,
			AnswerText: row.AnswerText,
			UserCount:  row.UserCount,
		})
	}
	return out
}

func (a *statsStoreAdapter) QuestionResponseCounts(surveyID int64) []services.QuestionUsers {
	rows := a.store.QuestionResponseCounts(surveyID)
	out := make([]services.QuestionUsers, 0, len(rows))
	for _, row := range rows {
		out = append(out, services.QuestionUsers{QuestionID: row.QuestionID, TotalUsers: row.TotalUsers})
	}
	return out
}

func (a *statsStoreAdapter) CountParticipants(surveyID int64) int {
	return a.store.CountParticipants(surveyID)
}

func (a *statsStoreAdapter) CountRespondents(surveyID, questionID int64) int {
	return a.store.CountRespondents(surveyID, questionID)
}

var _ services.StatsStore = (*statsStoreAdapter)(nil)

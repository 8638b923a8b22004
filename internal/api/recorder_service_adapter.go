package api

import "github.com/grigorin/opros/internal/services"

type recorderStoreAdapter struct {
	store Store
}

func newRecorderStoreAdapter(store Store) services.RecorderStore {
	return &recorderStoreAdapter{store: store}
}

func (a *recorderStoreAdapter) GetSurvey(id int64) *services.Survey {
	sv := a.store.GetSurvey(id)
	if sv == nil {
		return nil
	}
	return &services.Survey{ID: sv.ID, Title: sv.Title}
}

func (a *recorderStoreAdapter) SurveyQuestions(surveyID int64) []services.Question {
	qs := a.store.SurveyQuestions(surveyID)
	out := make([]services.Question, 0, len(qs))
	for _, q := range qs {
		out = append(out, services.Question{ID: q.ID, Text: q.Text, AnswerGroupID: q.AnswerGroupID})
	}
	return out
}

func (a *recorderStoreAdapter) SurveyAnswers(surveyID int64) []services.Answer {
	answers := a.store.SurveyAnswers(surveyID)
	out := make([]services.Answer, 0, len(answers))
	for _, ans := range answers {
		out = append(out, services.Answer{
			ID:             ans.ID,
			NumberAnswer:   ans.NumberAnswer,
			Text:           ans.Text,
			QuestionID:     ans.QuestionID,
			GroupID:        ans.GroupID,
			NextQuestionID: ans.NextQuestionID,
		})
	}
	return out
}

func (a *recorderStoreAdapter) GetSession(userID, surveyID int64) *services.Session {
	sess := a.store.GetSession(userID, surveyID)
	if sess == nil {
		return nil
	}
	return &services.Session{
		UserID:            sess.UserID,
		SurveyID:          sess.SurveyID,
		CurrentQuestionID: sess.CurrentQuestionID,
		Completed:         sess.Completed,
		UpdatedAt:         sess.UpdatedAt,
	}
}

func (a *recorderStoreAdapter) PutSession(sess *services.Session) error {
	return a.store.PutSession(&SurveySession{
		UserID:            sess.UserID,
		SurveyID:          sess.SurveyID,
		CurrentQuestionID: sess.CurrentQuestionID,
		Completed:         sess.Completed,
		UpdatedAt:         sess.UpdatedAt,
	})
}

func (a *recorderStoreAdapter) LatestStatistic(userID, surveyID int64) *services.Statistic {
	st := a.store.LatestStatistic(userID, surveyID)
	if st == nil {
		return nil
	}
	return &services.Statistic{
		ID:                 st.ID,
		UserID:             st.UserID,
		SurveyID:           st.SurveyID,
		QuestionShownID:    st.QuestionShownID,
		QuestionAnsweredID: st.QuestionAnsweredID,
		AnswerID:           st.AnswerID,
		Timestamp:          st.Timestamp,
	}
}

func (a *recorderStoreAdapter) UpsertStatistic(st *services.Statistic) error {
	rec := &UserStatistic{
		UserID:             st.UserID,
		SurveyID:           st.SurveyID,
		QuestionShownID:    st.QuestionShownID,
		QuestionAnsweredID: st.QuestionAnsweredID,
		AnswerID:           st.AnswerID,
		Timestamp:          st.Timestamp,
	}
	if err := a.store.UpsertStatistic(rec); err != nil {
		return err
	}
	st.ID = rec.ID
	return nil
}

var _ services.RecorderStore = (*recorderStoreAdapter)(nil)

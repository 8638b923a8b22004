package services

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recorderStatKey struct {
	userID, surveyID, shownID, answeredID int64
}

type stubRecorderStore struct {
	mu        sync.Mutex
	survey    *Survey
	questions []Question
	answers   []Answer
	sessions  map[lockKey]*Session
	stats     map[recorderStatKey]*Statistic
	order     []recorderStatKey
}

func newStubRecorderStore() *stubRecorderStore {
	return &stubRecorderStore{
		survey:   &Survey{ID: 1, Title: "Опрос"},
		sessions: map[lockKey]*Session{},
		stats:    map[recorderStatKey]*Statistic{},
	}
}

func (s *stubRecorderStore) GetSurvey(id int64) *Survey {
	if s.survey != nil && s.survey.ID == id {
		return s.survey
	}
	return nil
}

func (s *stubRecorderStore) SurveyQuestions(int64) []Question { return s.questions }
func (s *stubRecorderStore) SurveyAnswers(int64) []Answer     { return s.answers }

func (s *stubRecorderStore) GetSession(userID, surveyID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.sessions[lockKey{userID, surveyID}]; sess != nil {
		cp := *sess
		return &cp
	}
	return nil
}

func (s *stubRecorderStore) PutSession(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[lockKey{sess.UserID, sess.SurveyID}] = &cp
	return nil
}

func (s *stubRecorderStore) LatestStatistic(userID, surveyID int64) *Statistic {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *Statistic
	for _, key := range s.order {
		st := s.stats[key]
		if st.UserID != userID || st.SurveyID != surveyID {
			continue
		}
		if latest == nil || !st.Timestamp.Before(latest.Timestamp) {
			latest = st
		}
	}
	if latest == nil {
		return nil
	}
	cp := *latest
	return &cp
}

func (s *stubRecorderStore) UpsertStatistic(st *Statistic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recorderStatKey{st.UserID, st.SurveyID, st.QuestionShownID, st.QuestionAnsweredID}
	if existing := s.stats[key]; existing != nil {
		existing.AnswerID = st.AnswerID
		existing.Timestamp = st.Timestamp
		st.ID = existing.ID
		return nil
	}
	st.ID = int64(len(s.stats) + 1)
	cp := *st
	s.stats[key] = &cp
	s.order = append(s.order, key)
	return nil
}

func (s *stubRecorderStore) rowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stats)
}

func fixtureStore() *stubRecorderStore {
	store := newStubRecorderStore()
	store.questions, store.answers = branchingFixture()
	return store
}

func TestSubmitAdvancesToNextQuestion(t *testing.T) {
	store := fixtureStore()
	svc := NewRecorderService(store)

	outcome, err := svc.Submit(7, 1, 1)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if outcome.State != StateNextQuestion {
		t.Fatalf("state = %v, want StateNextQuestion", outcome.State)
	}
	if outcome.Next.Text != "Что можно улучшить?" {
		t.Fatalf("next question text = %q", outcome.Next.Text)
	}
	if len(outcome.Next.Options) != 2 || outcome.Next.Options[0].ID != 102 || outcome.Next.Options[1].ID != 103 {
		t.Fatalf("next options = %+v, want answers 102,103", outcome.Next.Options)
	}
	if store.rowCount() != 1 {
		t.Fatalf("statistics rows = %d, want 1", store.rowCount())
	}
	sess := store.GetSession(7, 1)
	if sess == nil || sess.CurrentQuestionID != 2 || sess.Completed {
		t.Fatalf("session after submit = %+v, want current question 2", sess)
	}
}

func TestSubmitTerminalAnswerFinishes(t *testing.T) {
	store := fixtureStore()
	svc := NewRecorderService(store)

	outcome, err := svc.Submit(7, 1, 2)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if outcome.State != StateFinished {
		t.Fatalf("state = %v, want StateFinished", outcome.State)
	}
	if store.rowCount() != 1 {
		t.Fatalf("statistics rows = %d, want 1", store.rowCount())
	}

	// A follow-up submission resolves no current question and records nothing.
	outcome, err = svc.Submit(7, 1, 1)
	if err != nil {
		t.Fatalf("second Submit returned error: %v", err)
	}
	if outcome.State != StateNoQuestions {
		t.Fatalf("state after completion = %v, want StateNoQuestions", outcome.State)
	}
	if store.rowCount() != 1 {
		t.Fatalf("statistics rows after completion = %d, want 1", store.rowCount())
	}
}

func TestSubmitUnknownNumber(t *testing.T) {
	store := fixtureStore()
	svc := NewRecorderService(store)

	_, err := svc.Submit(7, 1, 9)
	if !errors.Is(err, ErrAnswerNotFound) {
		t.Fatalf("expected ErrAnswerNotFound, got %v", err)
	}
	if store.rowCount() != 0 {
		t.Fatalf("statistics rows = %d, want 0 after failed resolution", store.rowCount())
	}
	if store.GetSession(7, 1) != nil {
		t.Fatalf("session written on failed resolution")
	}
}

func TestSubmitSurveyMissing(t *testing.T) {
	svc := NewRecorderService(newStubRecorderStore())
	if _, err := svc.Submit(7, 99, 1); !errors.Is(err, ErrSurveyNotFound) {
		t.Fatalf("expected ErrSurveyNotFound, got %v", err)
	}
}

func TestSubmitEmptySurvey(t *testing.T) {
	store := newStubRecorderStore()
	svc := NewRecorderService(store)
	outcome, err := svc.Submit(7, 1, 1)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if outcome.State != StateNoQuestions {
		t.Fatalf("state = %v, want StateNoQuestions for empty survey", outcome.State)
	}
}

func TestSubmitFallsBackToLatestStatistic(t *testing.T) {
	store := fixtureStore()
	// No session: the newest log row points at answer 100, whose forward
	// edge is question 2.
	_ = store.UpsertStatistic(&Statistic{
		UserID: 7, SurveyID: 1,
		QuestionShownID: 1, QuestionAnsweredID: 1, AnswerID: 100,
		Timestamp: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	})
	svc := NewRecorderService(store)

	outcome, err := svc.Submit(7, 1, 1)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if outcome.State != StateNextQuestion {
		t.Fatalf("state = %v, want StateNextQuestion", outcome.State)
	}
	// Current question was 2; number 1 resolves to answer 102 (terminal).
	st := store.stats[recorderStatKey{7, 1, 2, 2}]
	if st == nil || st.AnswerID != 102 {
		t.Fatalf("expected upsert against question 2 with answer 102, got %+v", st)
	}
}

func TestSubmitIdempotentUnderRetry(t *testing.T) {
	store := newStubRecorderStore()
	store.questions = []Question{{ID: 1, Text: "Ещё раз?", AnswerGroupID: 10}}
	// Self-referencing edge keeps the upsert key stable across retries.
	store.answers = []Answer{{ID: 100, NumberAnswer: 1, Text: "да", QuestionID: 1, GroupID: 10, NextQuestionID: 1}}
	svc := NewRecorderService(store)

	for i := 0; i < 3; i++ {
		if _, err := svc.Submit(7, 1, 1); err != nil {
			t.Fatalf("Submit %d returned error: %v", i, err)
		}
	}
	if store.rowCount() != 1 {
		t.Fatalf("statistics rows = %d, want 1 after retries", store.rowCount())
	}
}

func TestSubmitSerializesPerUserSurvey(t *testing.T) {
	store := newStubRecorderStore()
	store.questions = []Question{{ID: 1, Text: "Ещё раз?", AnswerGroupID: 10}}
	store.answers = []Answer{{ID: 100, NumberAnswer: 1, Text: "да", QuestionID: 1, GroupID: 10, NextQuestionID: 1}}
	svc := NewRecorderService(store)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Submit(7, 1, 1); err != nil {
				t.Errorf("concurrent Submit returned error: %v", err)
			}
		}()
	}
	wg.Wait()
	if store.rowCount() != 1 {
		t.Fatalf("statistics rows = %d, want 1 after concurrent submissions", store.rowCount())
	}
}

func TestFirstPrompt(t *testing.T) {
	store := fixtureStore()
	svc := NewRecorderService(store)

	prompt, err := svc.FirstPrompt(1)
	if err != nil {
		t.Fatalf("FirstPrompt returned error: %v", err)
	}
	if prompt.Text != "Вам нравится наш сервис?" {
		t.Fatalf("first prompt text = %q", prompt.Text)
	}
	if len(prompt.Options) != 2 {
		t.Fatalf("first prompt options = %+v, want 2", prompt.Options)
	}
}

func TestFirstPromptEmptySurvey(t *testing.T) {
	svc := NewRecorderService(newStubRecorderStore())
	prompt, err := svc.FirstPrompt(1)
	if err != nil {
		t.Fatalf("FirstPrompt returned error: %v", err)
	}
	if prompt.Text != "" || len(prompt.Options) != 0 {
		t.Fatalf("empty survey prompt = %+v, want empty", prompt)
	}
}

func TestFirstPromptSurveyMissing(t *testing.T) {
	svc := NewRecorderService(newStubRecorderStore())
	if _, err := svc.FirstPrompt(99); !errors.Is(err, ErrSurveyNotFound) {
		t.Fatalf("expected ErrSurveyNotFound, got %v", err)
	}
}

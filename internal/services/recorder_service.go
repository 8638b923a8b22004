package services

import (
	"errors"
	"log"
	"sync"
	"time"
)

// RecorderStore abstracts persistence operations required by RecorderService.
type RecorderStore interface {
	GetSurvey(id int64) *Survey
	SurveyQuestions(surveyID int64) []Question
	SurveyAnswers(surveyID int64) []Answer
	GetSession(userID, surveyID int64) *Session
	PutSession(sess *Session) error
	LatestStatistic(userID, surveyID int64) *Statistic
	UpsertStatistic(st *Statistic) error
}

var (
	// ErrSurveyNotFound is returned when a submission references a missing survey.
	ErrSurveyNotFound = errors.New("survey not found")
	// ErrAnswerNotFound is returned when the submitted number matches no answer
	// in the current question's group.
	ErrAnswerNotFound = errors.New("answer not found")
)

// User-facing messages; these are part of the wire contract.
const (
	MsgSurveyFinished = "Опрос окончен"
	MsgInvalidData    = "Неверные данные."
	MsgNoQuestions    = "Вопросов нет"
)

// SubmitState classifies the outcome of a submission.
type SubmitState int

const (
	// StateNextQuestion means the answer advanced the participant to Next.
	StateNextQuestion SubmitState = iota
	// StateFinished means the answer had no forward edge.
	StateFinished
	// StateNoQuestions means no current question could be resolved.
	StateNoQuestions
)

// SubmitOutcome is the result of one recorded answer. Next is set only for
// StateNextQuestion.
type SubmitOutcome struct {
	State SubmitState
	Next  *Prompt
}

type lockKey struct {
	userID   int64
	surveyID int64
}

// keyedMutex serializes submissions per (user, survey) so concurrent retries
// cannot race the read-modify-write between session lookup and upsert.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[lockKey]*sync.Mutex
}

func (k *keyedMutex) lock(userID, surveyID int64) func() {
	key := lockKey{userID, surveyID}
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[lockKey]*sync.Mutex{}
	}
	m := k.locks[key]
	if m == nil {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// RecorderService resolves a participant's current question, validates the
// submitted answer number, and appends to the statistics log.
type RecorderService struct {
	store RecorderStore
	now   func() time.Time
	locks keyedMutex
}

// NewRecorderService constructs a service bound to the provided persistence interface.
func NewRecorderService(store RecorderStore) *RecorderService {
	return &RecorderService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *RecorderService) loadGraph(surveyID int64) *Graph {
	g := BuildGraph(s.store.SurveyQuestions(surveyID), s.store.SurveyAnswers(surveyID))
	if g.HasCycle() {
		log.Printf("recorder: survey %d answer graph contains a cycle", surveyID)
	}
	return g
}

// FirstPrompt serves a survey's first question with its selectable answers.
// A survey without questions yields an empty prompt.
func (s *RecorderService) FirstPrompt(surveyID int64) (*Prompt, error) {
	if s.store.GetSurvey(surveyID) == nil {
		return nil, ErrSurveyNotFound
	}
	g := s.loadGraph(surveyID)
	first, ok := g.First()
	if !ok {
		return &Prompt{Options: []PromptOption{}}, nil
	}
	return promptFor(g, first), nil
}

// Submit records one answer for the participant's current question and
// reports what to show next. Exactly one statistics row is created or
// updated per successful call.
func (s *RecorderService) Submit(userID, surveyID int64, numberAnswer int) (*SubmitOutcome, error) {
	unlock := s.locks.lock(userID, surveyID)
	defer unlock()

	if s.store.GetSurvey(surveyID) == nil {
		return nil, ErrSurveyNotFound
	}
	g := s.loadGraph(surveyID)

	current, ok := s.currentQuestion(userID, surveyID, g)
	if !ok {
		return &SubmitOutcome{State: StateNoQuestions}, nil
	}

	answer, ok := g.Resolve(current.ID, numberAnswer)
	if !ok {
		return nil, ErrAnswerNotFound
	}

	now := s.now()
	st := &Statistic{
		UserID:             userID,
		SurveyID:           surveyID,
		QuestionShownID:    current.ID,
		QuestionAnsweredID: answer.QuestionID,
		AnswerID:           answer.ID,
		Timestamp:          now,
	}
	if err := s.store.UpsertStatistic(st); err != nil {
		return nil, err
	}

	sess := &Session{UserID: userID, SurveyID: surveyID, UpdatedAt: now}
	next, ok := g.NextQuestion(answer)
	if !ok {
		sess.Completed = true
		if err := s.store.PutSession(sess); err != nil {
			return nil, err
		}
		return &SubmitOutcome{State: StateFinished}, nil
	}
	sess.CurrentQuestionID = next.ID
	if err := s.store.PutSession(sess); err != nil {
		return nil, err
	}
	return &SubmitOutcome{State: StateNextQuestion, Next: promptFor(g, next)}, nil
}

// currentQuestion resolves where the participant stands: the session wins,
// then the newest statistics row (for sessions predating the session table),
// then the survey's first question.
func (s *RecorderService) currentQuestion(userID, surveyID int64, g *Graph) (Question, bool) {
	if sess := s.store.GetSession(userID, surveyID); sess != nil {
		if sess.Completed || sess.CurrentQuestionID == 0 {
			return Question{}, false
		}
		// A question deleted after the session was written leaves no
		// current question.
		return g.Question(sess.CurrentQuestionID)
	}
	if last := s.store.LatestStatistic(userID, surveyID); last != nil {
		a, ok := g.Answer(last.AnswerID)
		if !ok {
			// The recorded answer left the graph; start over.
			return g.First()
		}
		return g.NextQuestion(a)
	}
	return g.First()
}

func promptFor(g *Graph, q Question) *Prompt {
	return &Prompt{QuestionID: q.ID, Text: q.Text, Options: g.PromptOptions(q.ID)}
}

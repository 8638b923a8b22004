package api

import (
	"sort"
	"sync"
)

type statKey struct {
	userID     int64
	surveyID   int64
	shownID    int64
	answeredID int64
}

type sessionKey struct {
	userID   int64
	surveyID int64
}

type memoryStore struct {
	mu             sync.RWMutex
	nextID         int64
	surveys        map[int64]*Survey
	questions      map[int64]*Question
	groups         map[int64]*AnswerGroup
	answers        map[int64]*Answer
	surveyQs       map[int64][]int64 // attachment order
	participants   map[int64][]int64 // survey -> user ids
	sessions       map[sessionKey]*SurveySession
	statistics     []*UserStatistic
	statisticByKey map[statKey]*UserStatistic
}

// NewMemoryStore returns an in-process Store. It backs the handler tests and
// runs the server when no SQLite path is configured.
func NewMemoryStore() Store {
	return newMemoryStore()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		surveys:        map[int64]*Survey{},
		questions:      map[int64]*Question{},
		groups:         map[int64]*AnswerGroup{},
		answers:        map[int64]*Answer{},
		surveyQs:       map[int64][]int64{},
		participants:   map[int64][]int64{},
		sessions:       map[sessionKey]*SurveySession{},
		statisticByKey: map[statKey]*UserStatistic{},
	}
}

func (s *memoryStore) allocID() int64 {
	s.nextID++
	return s.nextID
}

func (s *memoryStore) AddSurvey(sv *Survey) *Survey {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sv.ID == 0 {
		sv.ID = s.allocID()
	}
	s.surveys[sv.ID] = sv
	return sv
}

func (s *memoryStore) GetSurvey(id int64) *Survey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.surveys[id]
}

func (s *memoryStore) AddSurveyParticipant(surveyID, userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surveys[surveyID] == nil {
		return false
	}
	for _, uid := range s.participants[surveyID] {
		if uid == userID {
			return true
		}
	}
	s.participants[surveyID] = append(s.participants[surveyID], userID)
	return true
}

func (s *memoryStore) AttachQuestion(surveyID, questionID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surveys[surveyID] == nil || s.questions[questionID] == nil {
		return false
	}
	for _, qid := range s.surveyQs[surveyID] {
		if qid == questionID {
			return true
		}
	}
	s.surveyQs[surveyID] = append(s.surveyQs[surveyID], questionID)
	return true
}

func (s *memoryStore) AddQuestion(q *Question) *Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.ID == 0 {
		q.ID = s.allocID()
	}
	s.questions[q.ID] = q
	return q
}

func (s *memoryStore) GetQuestion(id int64) *Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questions[id]
}

// SurveyQuestions walks the attachment list first, then follows next-question
// edges so branch targets outside the attachment list still reach the graph.
func (s *memoryStore) SurveyQuestions(surveyID int64) []*Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[int64]bool{}
	out := []*Question{}
	queue := append([]int64(nil), s.surveyQs[surveyID]...)
	for len(queue) > 0 {
		qid := queue[0]
		queue = queue[1:]
		if seen[qid] {
			continue
		}
		seen[qid] = true
		q := s.questions[qid]
		if q == nil {
			continue
		}
		out = append(out, q)
		for _, a := range s.answers {
			if a.NextQuestionID == 0 || seen[a.NextQuestionID] {
				continue
			}
			if a.QuestionID == qid || (q.AnswerGroupID != 0 && a.GroupID == q.AnswerGroupID) {
				queue = append(queue, a.NextQuestionID)
			}
		}
	}
	return out
}

func (s *memoryStore) AddAnswerGroup(g *AnswerGroup) *AnswerGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == 0 {
		g.ID = s.allocID()
	}
	s.groups[g.ID] = g
	return g
}

func (s *memoryStore) GetAnswerGroup(id int64) *AnswerGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groups[id]
}

func (s *memoryStore) AddAnswer(a *Answer) *Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.allocID()
	}
	s.answers[a.ID] = a
	return a
}

func (s *memoryStore) GetAnswer(id int64) *Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answers[id]
}

func (s *memoryStore) SurveyAnswers(surveyID int64) []*Answer {
	questions := s.SurveyQuestions(surveyID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	qids := map[int64]bool{}
	gids := map[int64]bool{}
	for _, q := range questions {
		qids[q.ID] = true
		if q.AnswerGroupID != 0 {
			gids[q.AnswerGroupID] = true
		}
	}
	out := []*Answer{}
	for _, a := range s.answers {
		if qids[a.QuestionID] || (a.GroupID != 0 && gids[a.GroupID]) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memoryStore) GetSession(userID, surveyID int64) *SurveySession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess := s.sessions[sessionKey{userID, surveyID}]; sess != nil {
		cp := *sess
		return &cp
	}
	return nil
}

func (s *memoryStore) PutSession(sess *SurveySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sessionKey{sess.UserID, sess.SurveyID}] = &cp
	return nil
}

func (s *memoryStore) LatestStatistic(userID, surveyID int64) *UserStatistic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *UserStatistic
	for _, st := range s.statistics {
		if st.UserID != userID || st.SurveyID != surveyID {
			continue
		}
		if latest == nil || st.Timestamp.After(latest.Timestamp) ||
			(st.Timestamp.Equal(latest.Timestamp) && st.ID > latest.ID) {
			latest = st
		}
	}
	if latest == nil {
		return nil
	}
	cp := *latest
	return &cp
}

func (s *memoryStore) UpsertStatistic(st *UserStatistic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := statKey{st.UserID, st.SurveyID, st.QuestionShownID, st.QuestionAnsweredID}
	if existing := s.statisticByKey[key]; existing != nil {
		existing.AnswerID = st.AnswerID
		existing.Timestamp = st.Timestamp
		st.ID = existing.ID
		return nil
	}
	st.ID = s.allocID()
	cp := *st
	s.statistics = append(s.statistics, &cp)
	s.statisticByKey[key] = &cp
	return nil
}

func (s *memoryStore) ListStatistics(surveyID int64) []*UserStatistic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*UserStatistic{}
	for _, st := range s.statistics {
		if st.SurveyID == surveyID {
			cp := *st
			out = append(out, &cp)
		}
	}
	return out
}

func (s *memoryStore) SurveyAnswerCounts(surveyID int64) []AnswerCountRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type groupKey struct{ questionID, answerID int64 }
	counts := map[groupKey]int{}
	for _, st := range s.statistics {
		if st.SurveyID == surveyID {
			counts[groupKey{st.QuestionAnsweredID, st.AnswerID}]++
		}
	}
	out := make([]AnswerCountRow, 0, len(counts))
	for k, n := range counts {
		row := AnswerCountRow{QuestionID: k.questionID, AnswerID: k.answerID, AnswerCount: n}
		if q := s.questions[k.questionID]; q != nil {
			row.QuestionText = q.Text
		}
		if a := s.answers[k.answerID]; a != nil {
			row.AnswerText = a.Text
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AnswerCount != out[j].AnswerCount {
			return out[i].AnswerCount > out[j].AnswerCount
		}
		if out[i].QuestionID != out[j].QuestionID {
			return out[i].QuestionID < out[j].QuestionID
		}
		return out[i].AnswerID < out[j].AnswerID
	})
	return out
}

func (s *memoryStore) AnswerDistribution(surveyID, questionID int64) []AnswerUsersRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := map[int64]map[int64]bool{} // answer -> distinct users
	for _, st := range s.statistics {
		if st.SurveyID != surveyID || st.QuestionAnsweredID != questionID {
			continue
		}
		if users[st.AnswerID] == nil {
			users[st.AnswerID] = map[int64]bool{}
		}
		users[st.AnswerID][st.UserID] = true
	}
	out := make([]AnswerUsersRow, 0, len(users))
	for aid, set := range users {
		row := AnswerUsersRow{AnswerID: aid, UserCount: len(set)}
		if a := s.answers[aid]; a != nil {
			row.AnswerText = a.Text
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserCount != out[j].UserCount {
			return out[i].UserCount > out[j].UserCount
		}
		return out[i].AnswerID < out[j].AnswerID
	})
	return out
}

func (s *memoryStore) QuestionResponseCounts(surveyID int64) []QuestionUsersRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[int64]int{}
	for _, st := range s.statistics {
		if st.SurveyID == surveyID {
			counts[st.QuestionAnsweredID]++
		}
	}
	out := make([]QuestionUsersRow, 0, len(counts))
	for qid, n := range counts {
		out = append(out, QuestionUsersRow{QuestionID: qid, TotalUsers: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalUsers != out[j].TotalUsers {
			return out[i].TotalUsers > out[j].TotalUsers
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out
}

func (s *memoryStore) CountParticipants(surveyID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants[surveyID])
}

func (s *memoryStore) CountRespondents(surveyID, questionID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := map[int64]bool{}
	for _, st := range s.statistics {
		if st.SurveyID == surveyID && st.QuestionAnsweredID == questionID {
			users[st.UserID] = true
		}
	}
	return len(users)
}

package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/grigorin/opros/internal/api"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func NewStore(db *sql.DB) (api.Store, error) {
	return NewSQLiteStore(db)
}

func (s *SQLiteStore) logErr(prefix string, err error) {
	if err != nil {
		log.Printf("sqlite store: %s: %v", prefix, err)
	}
}

func toNullID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// reachableCTE enumerates every question reachable in a survey: the attached
// questions plus any question a selectable answer branches to.
const reachableCTE = `WITH RECURSIVE reachable(id) AS (
    SELECT question_id FROM survey_questions WHERE survey_id = ?
    UNION
    SELECT a.next_question_id
    FROM reachable r
    JOIN questions q ON q.id = r.id
    JOIN answers a ON (a.question_id = q.id OR (q.answer_group_id IS NOT NULL AND a.group_id = q.answer_group_id))
    WHERE a.next_question_id IS NOT NULL
)`

// --- Surveys ---

func (s *SQLiteStore) AddSurvey(sv *api.Survey) *api.Survey {
	if sv == nil {
		return nil
	}
	res, err := s.db.Exec(`INSERT INTO surveys (title) VALUES (?)`, sv.Title)
	if err != nil {
		s.logErr("AddSurvey", err)
		return nil
	}
	if id, err := res.LastInsertId(); err == nil {
		sv.ID = id
	}
	return sv
}

func (s *SQLiteStore) GetSurvey(id int64) *api.Survey {
	row := s.db.QueryRow(`SELECT id, title FROM surveys WHERE id = ?`, id)
	var sv api.Survey
	if err := row.Scan(&sv.ID, &sv.Title); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logErr("GetSurvey", err)
		}
		return nil
	}
	return &sv
}

func (s *SQLiteStore) AddSurveyParticipant(surveyID, userID int64) bool {
	_, err := s.db.Exec(`INSERT INTO survey_participants (survey_id, user_id) VALUES (?, ?)
      ON CONFLICT(survey_id, user_id) DO NOTHING`, surveyID, userID)
	s.logErr("AddSurveyParticipant", err)
	return err == nil
}

func (s *SQLiteStore) AttachQuestion(surveyID, questionID int64) bool {
	_, err := s.db.Exec(`INSERT INTO survey_questions (survey_id, question_id, position)
      VALUES (?, ?, COALESCE((SELECT MAX(position) + 1 FROM survey_questions WHERE survey_id = ?), 0))
      ON CONFLICT(survey_id, question_id) DO NOTHING`, surveyID, questionID, surveyID)
	s.logErr("AttachQuestion", err)
	return err == nil
}

// --- Questions ---

func (s *SQLiteStore) AddQuestion(q *api.Question) *api.Question {
	if q == nil {
		return nil
	}
	res, err := s.db.Exec(`INSERT INTO questions (text, answer_group_id, parent_question_id) VALUES (?, ?, ?)`,
		q.Text, toNullID(q.AnswerGroupID), toNullID(q.ParentQuestionID))
	if err != nil {
		s.logErr("AddQuestion", err)
		return nil
	}
	if id, err := res.LastInsertId(); err == nil {
		q.ID = id
	}
	return q
}

func (s *SQLiteStore) GetQuestion(id int64) *api.Question {
	row := s.db.QueryRow(`SELECT id, text, COALESCE(answer_group_id, 0), COALESCE(parent_question_id, 0)
      FROM questions WHERE id = ?`, id)
	var q api.Question
	if err := row.Scan(&q.ID, &q.Text, &q.AnswerGroupID, &q.ParentQuestionID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logErr("GetQuestion", err)
		}
		return nil
	}
	return &q
}

func (s *SQLiteStore) SurveyQuestions(surveyID int64) []*api.Question {
	rows, err := s.db.Query(reachableCTE+`
      SELECT q.id, q.text, COALESCE(q.answer_group_id, 0), COALESCE(q.parent_question_id, 0)
      FROM questions q
      JOIN reachable r ON r.id = q.id
      LEFT JOIN survey_questions sq ON sq.question_id = q.id AND sq.survey_id = ?
      ORDER BY sq.position IS NULL, sq.position, q.id`, surveyID, surveyID)
	if err != nil {
		s.logErr("SurveyQuestions: query", err)
		return nil
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.logErr("SurveyQuestions: rows.Close", cerr)
		}
	}()
	out := []*api.Question{}
	for rows.Next() {
		var q api.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.AnswerGroupID, &q.ParentQuestionID); err == nil {
			out = append(out, &q)
		}
	}
	if err := rows.Err(); err != nil {
		s.logErr("SurveyQuestions: rows.Err", err)
	}
	return out
}

// --- Answer groups ---

func (s *SQLiteStore) AddAnswerGroup(g *api.AnswerGroup) *api.AnswerGroup {
	if g == nil {
		return nil
	}
	res, err := s.db.Exec(`INSERT INTO answer_groups (name) VALUES (?)`, g.Name)
	if err != nil {
		s.logErr("AddAnswerGroup", err)
		return nil
	}
	if id, err := res.LastInsertId(); err == nil {
		g.ID = id
	}
	return g
}

func (s *SQLiteStore) GetAnswerGroup(id int64) *api.AnswerGroup {
	row := s.db.QueryRow(`SELECT id, name FROM answer_groups WHERE id = ?`, id)
	var g api.AnswerGroup
	if err := row.Scan(&g.ID, &g.Name); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logErr("GetAnswerGroup", err)
		}
		return nil
	}
	return &g
}

// --- Answers ---

func (s *SQLiteStore) AddAnswer(a *api.Answer) *api.Answer {
	if a == nil {
		return nil
	}
	res, err := s.db.Exec(`INSERT INTO answers (number_answer, text, question_id, next_question_id, group_id)
      VALUES (?, ?, ?, ?, ?)`,
		a.NumberAnswer, a.Text, a.QuestionID, toNullID(a.NextQuestionID), toNullID(a.GroupID))
	if err != nil {
		s.logErr("AddAnswer", err)
		return nil
	}
	if id, err := res.LastInsertId(); err == nil {
		a.ID = id
	}
	return a
}

func (s *SQLiteStore) GetAnswer(id int64) *api.Answer {
	row := s.db.QueryRow(`SELECT id, number_answer, text, question_id, COALESCE(group_id, 0), COALESCE(next_question_id, 0)
      FROM answers WHERE id = ?`, id)
	var a api.Answer
	if err := row.Scan(&a.ID, &a.NumberAnswer, &a.Text, &a.QuestionID, &a.GroupID, &a.NextQuestionID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logErr("GetAnswer", err)
		}
		return nil
	}
	return &a
}

func (s *SQLiteStore) SurveyAnswers(surveyID int64) []*api.Answer {
	rows, err := s.db.Query(reachableCTE+`
      SELECT DISTINCT a.id, a.number_answer, a.text, a.question_id, COALESCE(a.group_id, 0), COALESCE(a.next_question_id, 0)
      FROM answers a
      WHERE a.question_id IN (SELECT id FROM reachable)
         OR a.group_id IN (SELECT q.answer_group_id FROM questions q
                           WHERE q.id IN (SELECT id FROM reachable) AND q.answer_group_id IS NOT NULL)
      ORDER BY a.id`, surveyID)
	if err != nil {
		s.logErr("SurveyAnswers: query", err)
		return nil
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.logErr("SurveyAnswers: rows.Close", cerr)
		}
	}()
	out := []*api.Answer{}
	for rows.Next() {
		var a api.Answer
		if err := rows.Scan(&a.ID, &a.NumberAnswer, &a.Text, &a.QuestionID, &a.GroupID, &a.NextQuestionID); err == nil {
			out = append(out, &a)
		}
	}
	if err := rows.Err(); err != nil {
		s.logErr("SurveyAnswers: rows.Err", err)
	}
	return out
}

// --- Sessions ---

func (s *SQLiteStore) GetSession(userID, surveyID int64) *api.SurveySession {
	row := s.db.QueryRow(`SELECT user_id, survey_id, COALESCE(current_question_id, 0), completed, updated_at
      FROM survey_sessions WHERE user_id = ? AND survey_id = ?`, userID, surveyID)
	var sess api.SurveySession
	var completed int64
	var updated string
	if err := row.Scan(&sess.UserID, &sess.SurveyID, &sess.CurrentQuestionID, &completed, &updated); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logErr("GetSession", err)
		}
		return nil
	}
	sess.Completed = completed != 0
	sess.UpdatedAt = parseTime(updated)
	return &sess
}

func (s *SQLiteStore) PutSession(sess *api.SurveySession) error {
	if sess == nil {
		return errors.New("nil session")
	}
	completed := int64(0)
	if sess.Completed {
		completed = 1
	}
	_, err := s.db.Exec(`INSERT INTO survey_sessions (user_id, survey_id, current_question_id, completed, updated_at)
      VALUES (?, ?, ?, ?, ?)
      ON CONFLICT(user_id, survey_id) DO UPDATE SET
        current_question_id = excluded.current_question_id,
        completed = excluded.completed,
        updated_at = excluded.updated_at`,
		sess.UserID, sess.SurveyID, toNullID(sess.CurrentQuestionID), completed, formatTime(sess.UpdatedAt))
	return err
}

// --- Statistics log ---

func (s *SQLiteStore) LatestStatistic(userID, surveyID int64) *api.UserStatistic {
	row := s.db.QueryRow(`SELECT id, user_id, survey_id, questions_shown_id, questions_answered_id, answers_given_id, timestamp
      FROM user_statistics WHERE user_id = ? AND survey_id = ?
      ORDER BY timestamp DESC, id DESC LIMIT 1`, userID, surveyID)
	return scanStatistic(row, s)
}

func scanStatistic(row *sql.Row, s *SQLiteStore) *api.UserStatistic {
	var st api.UserStatistic
	var ts string
	if err := row.Scan(&st.ID, &st.UserID, &st.SurveyID, &st.QuestionShownID, &st.QuestionAnsweredID, &st.AnswerID, &ts); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logErr("scanStatistic", err)
		}
		return nil
	}
	st.Timestamp = parseTime(ts)
	return &st
}

func (s *SQLiteStore) UpsertStatistic(st *api.UserStatistic) error {
	if st == nil {
		return errors.New("nil statistic")
	}
	_, err := s.db.Exec(`INSERT INTO user_statistics (user_id, survey_id, questions_shown_id, questions_answered_id, answers_given_id, timestamp)
      VALUES (?, ?, ?, ?, ?, ?)
      ON CONFLICT(user_id, survey_id, questions_shown_id, questions_answered_id) DO UPDATE SET
        answers_given_id = excluded.answers_given_id,
        timestamp = excluded.timestamp`,
		st.UserID, st.SurveyID, st.QuestionShownID, st.QuestionAnsweredID, st.AnswerID, formatTime(st.Timestamp))
	if err != nil {
		return err
	}
	row := s.db.QueryRow(`SELECT id FROM user_statistics
      WHERE user_id = ? AND survey_id = ? AND questions_shown_id = ? AND questions_answered_id = ?`,
		st.UserID, st.SurveyID, st.QuestionShownID, st.QuestionAnsweredID)
	if err := row.Scan(&st.ID); err != nil {
		s.logErr("UpsertStatistic: id", err)
	}
	return nil
}

func (s *SQLiteStore) ListStatistics(surveyID int64) []*api.UserStatistic {
	rows, err := s.db.Query(`SELECT id, user_id, survey_id, questions_shown_id, questions_answered_id, answers_given_id, timestamp
      FROM user_statistics WHERE survey_id = ? ORDER BY id`, surveyID)
	if err != nil {
		s.logErr("ListStatistics: query", err)
		return nil
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.logErr("ListStatistics: rows.Close", cerr)
		}
	}()
	out := []*api.UserStatistic{}
	for rows.Next() {
		var st api.UserStatistic
		var ts string
		if err := rows.Scan(&st.ID, &st.UserID, &st.SurveyID, &st.QuestionShownID, &st.QuestionAnsweredID, &st.AnswerID, &ts); err == nil {
			st.Timestamp = parseTime(ts)
			out = append(out, &st)
		}
	}
	if err := rows.Err(); err != nil {
		s.logErr("ListStatistics: rows.Err", err)
	}
	return out
}

// --- Aggregations ---

func (s *SQLiteStore) SurveyAnswerCounts(surveyID int64) []api.AnswerCountRow {
	rows, err := s.db.Query(`SELECT us.questions_answered_id, COALESCE(q.text, ''), us.answers_given_id, COALESCE(a.text, ''), COUNT(us.id) AS answer_count
      FROM user_statistics us
      LEFT JOIN questions q ON q.id = us.questions_answered_id
      LEFT JOIN answers a ON a.id = us.answers_given_id
      WHERE us.survey_id = ?
      GROUP BY us.questions_answered_id, us.answers_given_id
      ORDER BY answer_count DESC, us.questions_answered_id, us.answers_given_id`, surveyID)
	if err != nil {
		s.logErr("SurveyAnswerCounts: query", err)
		return nil
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.logErr("SurveyAnswerCounts: rows.Close", cerr)
		}
	}()
	out := []api.AnswerCountRow{}
	for rows.Next() {
		var row api.AnswerCountRow
		if err := rows.Scan(&row.QuestionID, &row.QuestionText, &row.AnswerID, &row.AnswerText, &row.AnswerCount); err == nil {
			out = append(out, row)
		}
	}
	if err := rows.Err(); err != nil {
		s.logErr("SurveyAnswerCounts: rows.Err", err)
	}
	return out
}

func (s *SQLiteStore) AnswerDistribution(surveyID, questionID int64) []api.AnswerUsersRow {
	rows, err := s.db.Query(`SELECT a.id, a.text, COUNT(DISTINCT us.user_id) AS user_count
      FROM answers a
      JOIN user_statistics us ON us.answers_given_id = a.id
      WHERE us.survey_id = ? AND us.questions_answered_id = ?
      GROUP BY a.id, a.text
      ORDER BY user_count DESC, a.id`, surveyID, questionID)
	if err != nil {
		s.logErr("AnswerDistribution: query", err)
		return nil
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.logErr("AnswerDistribution: rows.Close", cerr)
		}
	}()
	out := []api.AnswerUsersRow{}
	for rows.Next() {
		var row api.AnswerUsersRow
		if err := rows.Scan(&row.AnswerID, &row.AnswerText, &row.UserCount); err == nil {
			out = append(out, row)
		}
	}
	if err := rows.Err(); err != nil {
		s.logErr("AnswerDistribution: rows.Err", err)
	}
	return out
}

func (s *SQLiteStore) QuestionResponseCounts(surveyID int64) []api.QuestionUsersRow {
	rows, err := s.db.Query(`SELECT us.questions_answered_id, COUNT(us.id) AS total_users
      FROM user_statistics us
      WHERE us.survey_id = ?
      GROUP BY us.questions_answered_id
      ORDER BY total_users DESC, us.questions_answered_id`, surveyID)
	if err != nil {
		s.logErr("QuestionResponseCounts: query", err)
		return nil
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.logErr("QuestionResponseCounts: rows.Close", cerr)
		}
	}()
	out := []api.QuestionUsersRow{}
	for rows.Next() {
		var row api.QuestionUsersRow
		if err := rows.Scan(&row.QuestionID, &row.TotalUsers); err == nil {
			out = append(out, row)
		}
	}
	if err := rows.Err(); err != nil {
		s.logErr("QuestionResponseCounts: rows.Err", err)
	}
	return out
}

func (s *SQLiteStore) CountParticipants(surveyID int64) int {
	row := s.db.QueryRow(`SELECT COUNT(DISTINCT user_id) FROM survey_participants WHERE survey_id = ?`, surveyID)
	var n int
	if err := row.Scan(&n); err != nil {
		s.logErr("CountParticipants", err)
		return 0
	}
	return n
}

func (s *SQLiteStore) CountRespondents(surveyID, questionID int64) int {
	row := s.db.QueryRow(`SELECT COUNT(DISTINCT user_id) FROM user_statistics WHERE survey_id = ? AND questions_answered_id = ?`, surveyID, questionID)
	var n int
	if err := row.Scan(&n); err != nil {
		s.logErr("CountRespondents", err)
		return 0
	}
	return n
}

var _ api.Store = (*SQLiteStore)(nil)

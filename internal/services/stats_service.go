package services

import (
	"fmt"
	"math"
)

// StatsStore abstracts the aggregation queries behind the statistics engine.
// Count rows arrive ordered by count descending; rank and percentage
// arithmetic stay here so every store implementation shares one semantic.
type StatsStore interface {
	SurveyAnswerCounts(surveyID int64) []AnswerCount
	AnswerDistribution(surveyID, questionID int64) []AnswerUsers
	QuestionResponseCounts(surveyID int64) []QuestionUsers
	CountParticipants(surveyID int64) int
	CountRespondents(surveyID, questionID int64) int
}

// AnswerCount is one survey-statistics group: a question/answer pair and how
// many times it was recorded.
type AnswerCount struct {
	QuestionText string
	AnswerText   string
	Count        int
}

// AnswerUsers counts distinct respondents that picked one answer.
type AnswerUsers struct {
	AnswerID   int64
	AnswerText string
	UserCount  int
}

// QuestionUsers counts responses recorded against one question.
type QuestionUsers struct {
	QuestionID int64
	TotalUsers int
}

// AnswerRate is one response-rate row: respondent count plus its share of
// the question's total, rounded to two decimals.
type AnswerRate struct {
	AnswerID       int64
	AnswerText     string
	UserCount      int
	UserPercentage float64
}

// ResponseRateReport carries the per-answer rates and the grand total.
type ResponseRateReport struct {
	Rates      []AnswerRate
	TotalUsers int
}

// QuestionRank is one ordering row: response volume with a dense rank.
type QuestionRank struct {
	QuestionID int64
	TotalUsers int
	Rank       int
}

// CoverageReport relates a question's respondents to the survey's
// participant set.
type CoverageReport struct {
	TotalRespondents      int
	PercentageRespondents string
}

// StatsService computes read-only aggregates over the statistics log.
type StatsService struct {
	store StatsStore
}

// NewStatsService constructs a service bound to the provided store.
func NewStatsService(store StatsStore) *StatsService {
	return &StatsService{store: store}
}

// SurveyStatistics groups the survey's log rows by answered question and
// answer, with human-readable texts joined in.
func (s *StatsService) SurveyStatistics(surveyID int64) []AnswerCount {
	return s.store.SurveyAnswerCounts(surveyID)
}

// ResponseRate reports, per answer of one question, how many distinct
// respondents picked it and its share of the question total. A question with
// no responses yields an empty rate list and a zero total.
func (s *StatsService) ResponseRate(surveyID, questionID int64) *ResponseRateReport {
	rows := s.store.AnswerDistribution(surveyID, questionID)
	total := 0
	for _, row := range rows {
		total += row.UserCount
	}
	rates := make([]AnswerRate, 0, len(rows))
	for _, row := range rows {
		rate := AnswerRate{AnswerID: row.AnswerID, AnswerText: row.AnswerText, UserCount: row.UserCount}
		if total > 0 {
			rate.UserPercentage = round2(float64(row.UserCount) / float64(total) * 100)
		}
		rates = append(rates, rate)
	}
	return &ResponseRateReport{Rates: rates, TotalUsers: total}
}

// QuestionOrdering ranks the survey's questions by response volume with
// dense-rank semantics: equal counts share a rank and rank values stay
// contiguous.
func (s *StatsService) QuestionOrdering(surveyID int64) []QuestionRank {
	rows := s.store.QuestionResponseCounts(surveyID)
	out := make([]QuestionRank, 0, len(rows))
	rank := 0
	prev := -1
	for _, row := range rows {
		if row.TotalUsers != prev {
			rank++
			prev = row.TotalUsers
		}
		out = append(out, QuestionRank{QuestionID: row.QuestionID, TotalUsers: row.TotalUsers, Rank: rank})
	}
	return out
}

// Respondents returns the survey's distinct participant count.
func (s *StatsService) Respondents(surveyID int64) int {
	return s.store.CountParticipants(surveyID)
}

// QuestionCoverage relates distinct respondents of one question to the
// survey's participant total. Zero participants yields "0.00%", never an
// error.
func (s *StatsService) QuestionCoverage(surveyID, questionID int64) *CoverageReport {
	respondents := s.store.CountRespondents(surveyID, questionID)
	participants := s.store.CountParticipants(surveyID)
	pct := 0.0
	if participants > 0 {
		pct = float64(respondents) / float64(participants) * 100
	}
	return &CoverageReport{
		TotalRespondents:      respondents,
		PercentageRespondents: fmt.Sprintf("%.2f%%", pct),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

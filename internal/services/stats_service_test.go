package services

import (
	"math"
	"testing"
)

type stubStatsStore struct {
	answerCounts   []AnswerCount
	distribution   []AnswerUsers
	questionCounts []QuestionUsers
	participants   int
	respondents    int
}

func (s *stubStatsStore) SurveyAnswerCounts(int64) []AnswerCount        { return s.answerCounts }
func (s *stubStatsStore) AnswerDistribution(int64, int64) []AnswerUsers { return s.distribution }
func (s *stubStatsStore) QuestionResponseCounts(int64) []QuestionUsers  { return s.questionCounts }
func (s *stubStatsStore) CountParticipants(int64) int                   { return s.participants }
func (s *stubStatsStore) CountRespondents(int64, int64) int             { return s.respondents }

func TestQuestionOrderingDenseRank(t *testing.T) {
	store := &stubStatsStore{questionCounts: []QuestionUsers{
		{QuestionID: 1, TotalUsers: 10},
		{QuestionID: 2, TotalUsers: 10},
		{QuestionID: 3, TotalUsers: 7},
		{QuestionID: 4, TotalUsers: 3},
	}}
	svc := NewStatsService(store)

	ranks := svc.QuestionOrdering(1)
	want := []int{1, 1, 2, 3}
	if len(ranks) != len(want) {
		t.Fatalf("ordering rows = %d, want %d", len(ranks), len(want))
	}
	seen := map[int]bool{}
	for i, rk := range ranks {
		if rk.Rank != want[i] {
			t.Fatalf("rank[%d] = %d, want %d (rows %+v)", i, rk.Rank, want[i], ranks)
		}
		seen[rk.Rank] = true
	}
	// Dense ranks are contiguous: every value from 1 to max is present.
	for r := 1; r <= 3; r++ {
		if !seen[r] {
			t.Fatalf("rank %d missing from %v", r, ranks)
		}
	}
}

func TestQuestionOrderingEmpty(t *testing.T) {
	svc := NewStatsService(&stubStatsStore{})
	if ranks := svc.QuestionOrdering(1); len(ranks) != 0 {
		t.Fatalf("ordering of empty survey = %+v, want empty", ranks)
	}
}

func TestResponseRatePercentagesSumTo100(t *testing.T) {
	store := &stubStatsStore{distribution: []AnswerUsers{
		{AnswerID: 1, AnswerText: "да", UserCount: 3},
		{AnswerID: 2, AnswerText: "нет", UserCount: 2},
		{AnswerID: 3, AnswerText: "не знаю", UserCount: 1},
	}}
	svc := NewStatsService(store)

	report := svc.ResponseRate(1, 1)
	if report.TotalUsers != 6 {
		t.Fatalf("total users = %d, want 6", report.TotalUsers)
	}
	sum := 0.0
	for _, rate := range report.Rates {
		sum += rate.UserPercentage
	}
	if math.Abs(sum-100) > 0.01 {
		t.Fatalf("percentages sum to %v, want 100±0.01", sum)
	}
	if report.Rates[0].UserPercentage != 50 {
		t.Fatalf("top answer percentage = %v, want 50", report.Rates[0].UserPercentage)
	}
	if report.Rates[1].UserPercentage != 33.33 {
		t.Fatalf("second answer percentage = %v, want 33.33", report.Rates[1].UserPercentage)
	}
}

func TestResponseRateNoRespondents(t *testing.T) {
	svc := NewStatsService(&stubStatsStore{})
	report := svc.ResponseRate(1, 1)
	if report.TotalUsers != 0 || len(report.Rates) != 0 {
		t.Fatalf("empty question report = %+v, want zero total and no rates", report)
	}
}

func TestResponseRateZeroTotalPercentage(t *testing.T) {
	// A store bug could hand back zero counts; percentages must stay zero
	// rather than dividing by zero.
	store := &stubStatsStore{distribution: []AnswerUsers{{AnswerID: 1, UserCount: 0}}}
	report := NewStatsService(store).ResponseRate(1, 1)
	if report.Rates[0].UserPercentage != 0 {
		t.Fatalf("percentage with zero total = %v, want 0", report.Rates[0].UserPercentage)
	}
}

func TestQuestionCoverage(t *testing.T) {
	store := &stubStatsStore{participants: 3, respondents: 1}
	report := NewStatsService(store).QuestionCoverage(1, 1)
	if report.TotalRespondents != 1 {
		t.Fatalf("respondents = %d, want 1", report.TotalRespondents)
	}
	if report.PercentageRespondents != "33.33%" {
		t.Fatalf("percentage = %q, want 33.33%%", report.PercentageRespondents)
	}
}

func TestQuestionCoverageZeroParticipants(t *testing.T) {
	report := NewStatsService(&stubStatsStore{respondents: 0}).QuestionCoverage(1, 1)
	if report.TotalRespondents != 0 || report.PercentageRespondents != "0.00%" {
		t.Fatalf("zero-participant coverage = %+v, want 0 and 0.00%%", report)
	}
}

func TestRespondents(t *testing.T) {
	if n := NewStatsService(&stubStatsStore{participants: 95}).Respondents(1); n != 95 {
		t.Fatalf("participants = %d, want 95", n)
	}
	if n := NewStatsService(&stubStatsStore{}).Respondents(1); n != 0 {
		t.Fatalf("participants of empty survey = %d, want 0", n)
	}
}

func TestSurveyStatisticsPassThrough(t *testing.T) {
	store := &stubStatsStore{answerCounts: []AnswerCount{
		{QuestionText: "Вам нравится наш сервис?", AnswerText: "да", Count: 4},
		{QuestionText: "Вам нравится наш сервис?", AnswerText: "нет", Count: 2},
	}}
	rows := NewStatsService(store).SurveyStatistics(1)
	if len(rows) != 2 || rows[0].Count != 4 || rows[1].AnswerText != "нет" {
		t.Fatalf("survey statistics = %+v", rows)
	}
}

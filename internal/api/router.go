package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/grigorin/opros/internal/middleware"
	"github.com/grigorin/opros/internal/services"
)

type Router struct {
	store    Store
	recorder *services.RecorderService
	stats    *services.StatsService
}

// NewRouter wires the survey services on top of the given store.
func NewRouter(store Store) *Router {
	return &Router{
		store:    store,
		recorder: services.NewRecorderService(newRecorderStoreAdapter(store)),
		stats:    services.NewStatsService(newStatsStoreAdapter(store)),
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.Handle("/api/seed", middleware.RequireAuth(http.HandlerFunc(rt.handleSeed))) // POST
	mux.HandleFunc("/survey/", rt.handleSurveyScoped)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleSurveyScoped dispatches everything under /survey/:
//
//	GET/POST /survey/{id}/
//	GET      /survey/{id}/respondents/
//	GET      /survey/{id}/respondents/{question_id}/
//	GET      /survey/{id}/ordering/
//	GET      /survey/{id}/response_rate/{question_id}/
//	GET      /survey/{id}/statistics/
func (rt *Router) handleSurveyScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/survey/")
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}
	parts := strings.Split(rest, "/")

	surveyID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		// The statistics endpoint promises an explicit 400 on a malformed id.
		if len(parts) == 2 && parts[1] == "statistics" {
			writeError(w, http.StatusBadRequest, "Неверный survey_id")
			return
		}
		http.NotFound(w, r)
		return
	}

	switch len(parts) {
	case 1:
		switch r.Method {
		case http.MethodGet:
			rt.handleFirstQuestion(w, surveyID)
		case http.MethodPost:
			rt.handleSubmitAnswer(w, r, surveyID)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	case 2:
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		switch parts[1] {
		case "respondents":
			writeJSON(w, http.StatusOK, map[string]int{"total_participants": rt.stats.Respondents(surveyID)})
		case "ordering":
			rt.handleOrdering(w, surveyID)
		case "statistics":
			rt.handleStatistics(w, surveyID)
		default:
			http.NotFound(w, r)
		}
	case 3:
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		questionID, qerr := strconv.ParseInt(parts[2], 10, 64)
		if qerr != nil {
			http.NotFound(w, r)
			return
		}
		switch parts[1] {
		case "respondents":
			rt.handleCoverage(w, surveyID, questionID)
		case "response_rate":
			rt.handleResponseRate(w, surveyID, questionID)
		default:
			http.NotFound(w, r)
		}
	default:
		http.NotFound(w, r)
	}
}

// GET /survey/{id}/ — the survey's first question. Answers are present only
// once the question has an answer group.
func (rt *Router) handleFirstQuestion(w http.ResponseWriter, surveyID int64) {
	prompt, err := rt.recorder.FirstPrompt(surveyID)
	if err != nil {
		if errors.Is(err, services.ErrSurveyNotFound) {
			writeError(w, http.StatusNotFound, "опрос не найден")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	type outAnswer struct {
		NumberAnswer int    `json:"number_answer"`
		Text         string `json:"text"`
	}
	answers := make([]outAnswer, 0, len(prompt.Options))
	for _, opt := range prompt.Options {
		answers = append(answers, outAnswer{NumberAnswer: opt.NumberAnswer, Text: opt.Text})
	}
	writeJSON(w, http.StatusOK, map[string]any{"text": prompt.Text, "answers": answers})
}

// POST /survey/{id}/ — record the authenticated user's answer and return the
// next prompt or a terminal message.
func (rt *Router) handleSubmitAnswer(w http.ResponseWriter, r *http.Request, surveyID int64) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req struct {
		NumberAnswer *int `json:"number_answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NumberAnswer == nil {
		writeJSON(w, http.StatusOK, map[string]string{"message": services.MsgInvalidData})
		return
	}

	outcome, err := rt.recorder.Submit(userID, surveyID, *req.NumberAnswer)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSurveyNotFound):
			writeError(w, http.StatusNotFound, "опрос не найден")
		case errors.Is(err, services.ErrAnswerNotFound):
			writeError(w, http.StatusBadRequest, "ответ не найден")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	switch outcome.State {
	case services.StateFinished:
		writeJSON(w, http.StatusOK, map[string]string{"message": services.MsgSurveyFinished})
	case services.StateNoQuestions:
		writeJSON(w, http.StatusOK, map[string]string{"message": services.MsgNoQuestions})
	default:
		type outAnswer struct {
			ID   int64  `json:"id"`
			Text string `json:"текст"`
		}
		answers := make([]outAnswer, 0, len(outcome.Next.Options))
		for _, opt := range outcome.Next.Options {
			answers = append(answers, outAnswer{ID: opt.ID, Text: opt.Text})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"вопрос": outcome.Next.Text,
			"ответы": answers,
		})
	}
}

// GET /survey/{id}/respondents/{question_id}/
func (rt *Router) handleCoverage(w http.ResponseWriter, surveyID, questionID int64) {
	report := rt.stats.QuestionCoverage(surveyID, questionID)
	writeJSON(w, http.StatusOK, map[string]any{
		"total_respondents":      report.TotalRespondents,
		"percentage_respondents": report.PercentageRespondents,
	})
}

// GET /survey/{id}/ordering/
func (rt *Router) handleOrdering(w http.ResponseWriter, surveyID int64) {
	type outRank struct {
		QuestionID int64 `json:"question_id"`
		TotalUsers int   `json:"total_users"`
		Rank       int   `json:"rank"`
	}
	ranks := rt.stats.QuestionOrdering(surveyID)
	out := make([]outRank, 0, len(ranks))
	for _, rk := range ranks {
		out = append(out, outRank{QuestionID: rk.QuestionID, TotalUsers: rk.TotalUsers, Rank: rk.Rank})
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /survey/{id}/response_rate/{question_id}/ — rate rows followed by a
// trailing grand-total element, the shape the original front end consumes.
func (rt *Router) handleResponseRate(w http.ResponseWriter, surveyID, questionID int64) {
	type outRate struct {
		AnswerID       int64   `json:"answer_id"`
		AnswerText     string  `json:"answer_text"`
		UserCount      int     `json:"user_count"`
		UserPercentage float64 `json:"user_percentage"`
	}
	report := rt.stats.ResponseRate(surveyID, questionID)
	out := make([]any, 0, len(report.Rates)+1)
	for _, rate := range report.Rates {
		out = append(out, outRate{
			AnswerID:       rate.AnswerID,
			AnswerText:     rate.AnswerText,
			UserCount:      rate.UserCount,
			UserPercentage: rate.UserPercentage,
		})
	}
	out = append(out, map[string]int{"total_users_count": report.TotalUsers})
	writeJSON(w, http.StatusOK, out)
}

// GET /survey/{id}/statistics/
func (rt *Router) handleStatistics(w http.ResponseWriter, surveyID int64) {
	rows := rt.stats.SurveyStatistics(surveyID)
	out := make([]AnswerCountRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, AnswerCountRow{
			QuestionText: row.QuestionText,
			AnswerText:   row.AnswerText,
			AnswerCount:  row.Count,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /api/seed — create a small branching sample survey so a fresh server
// is playable. The caller becomes a participant.
func (rt *Router) handleSeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())

	sv := rt.store.AddSurvey(&Survey{Title: "Опрос качества обслуживания"})
	g1 := rt.store.AddAnswerGroup(&AnswerGroup{Name: "да/нет"})
	g2 := rt.store.AddAnswerGroup(&AnswerGroup{Name: "что улучшить"})

	q1 := rt.store.AddQuestion(&Question{Text: "Вам нравится наш сервис?", AnswerGroupID: g1.ID})
	q2 := rt.store.AddQuestion(&Question{Text: "Что можно улучшить?", AnswerGroupID: g2.ID, ParentQuestionID: q1.ID})
	rt.store.AttachQuestion(sv.ID, q1.ID)
	rt.store.AttachQuestion(sv.ID, q2.ID)

	rt.store.AddAnswer(&Answer{NumberAnswer: 1, Text: "да", QuestionID: q1.ID, GroupID: g1.ID})
	rt.store.AddAnswer(&Answer{NumberAnswer: 2, Text: "нет", QuestionID: q1.ID, GroupID: g1.ID, NextQuestionID: q2.ID})
	rt.store.AddAnswer(&Answer{NumberAnswer: 1, Text: "качество", QuestionID: q2.ID, GroupID: g2.ID})
	rt.store.AddAnswer(&Answer{NumberAnswer: 2, Text: "скорость", QuestionID: q2.ID, GroupID: g2.ID})

	rt.store.AddSurveyParticipant(sv.ID, userID)

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "survey_id": sv.ID})
}

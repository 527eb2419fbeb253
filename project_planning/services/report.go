package services

import (
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Matgc04/dssd-2025/project_planning/auth"
	"github.com/Matgc04/dssd-2025/project_planning/lifecycle"
	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/Matgc04/dssd-2025/utils"
	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const (
	defaultDelayDays = 7
	maxDelayDays     = 36500
)

type ReportService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *ReportService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.RoleOnly(schema.RoleCouncil))

		r.Get("/request-summary", s.RequestSummary)
		r.Get("/project-status-distribution", s.ProjectStatusDistribution)
		r.Get("/delayed-observations", s.DelayedObservations)
	})

	return r
}

type requestTypeSummary struct {
	Type       schema.RequestType `json:"type"`
	Total      int64              `json:"total"`
	Open       int64              `json:"open"`
	InProgress int64              `json:"inProgress"`
	Done       int64              `json:"done"`
}

type requestSummaryResponse struct {
	ByType []requestTypeSummary `json:"byType"`
	Total  int64                `json:"total"`
}

func (s *ReportService) RequestSummary(w http.ResponseWriter, r *http.Request) {
	var rows []struct {
		Type  schema.RequestType
		State lifecycle.State
		Count int64
	}

	result := s.db.Model(&schema.Request{}).
		Select("type, state, count(*) as count").
		Group("type").Group("state").
		Find(&rows)
	if result.Error != nil {
		writeError(w, dbError("sql error summarizing requests", result.Error))
		return
	}

	byType := make(map[schema.RequestType]*requestTypeSummary)
	for _, t := range []schema.RequestType{schema.Economic, schema.Materials, schema.Labor, schema.Other} {
		byType[t] = &requestTypeSummary{Type: t}
	}

	res := requestSummaryResponse{}
	for _, row := range rows {
		summary, ok := byType[row.Type]
		if !ok {
			summary = &requestTypeSummary{Type: row.Type}
			byType[row.Type] = summary
		}
		switch row.State {
		case lifecycle.Open:
			summary.Open += row.Count
		case lifecycle.InProgress:
			summary.InProgress += row.Count
		case lifecycle.Done:
			summary.Done += row.Count
		}
		summary.Total += row.Count
		res.Total += row.Count
	}

	res.ByType = lo.Map(lo.Values(byType), func(s *requestTypeSummary, _ int) requestTypeSummary { return *s })
	slices.SortFunc(res.ByType, func(a, b requestTypeSummary) int {
		return strings.Compare(string(a.Type), string(b.Type))
	})

	utils.WriteJsonResponse(w, res)
}

type statusDistributionResponse struct {
	Pending   int64 `json:"pending"`
	Executing int64 `json:"executing"`
	Completed int64 `json:"completed"`
	Total     int64 `json:"total"`
}

func (s *ReportService) ProjectStatusDistribution(w http.ResponseWriter, r *http.Request) {
	var rows []struct {
		Status lifecycle.ProjectStatus
		Count  int64
	}

	result := s.db.Model(&schema.Project{}).Select("status, count(*) as count").Group("status").Find(&rows)
	if result.Error != nil {
		writeError(w, dbError("sql error counting projects by status", result.Error))
		return
	}

	res := statusDistributionResponse{}
	for _, row := range rows {
		switch row.Status {
		case lifecycle.Pending:
			res.Pending = row.Count
		case lifecycle.Executing:
			res.Executing = row.Count
		case lifecycle.Completed:
			res.Completed = row.Count
		}
		res.Total += row.Count
	}

	utils.WriteJsonResponse(w, res)
}

type delayedObservation struct {
	observationInfo
	DaysOpen int `json:"daysOpen"`
}

type delayedObservationsResponse struct {
	Days         int                  `json:"days"`
	Observations []delayedObservation `json:"observations"`
}

func (s *ReportService) DelayedObservations(w http.ResponseWriter, r *http.Request) {
	days := defaultDelayDays
	if value := r.URL.Query().Get("days"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 || parsed > maxDelayDays {
			http.Error(w, fmt.Sprintf("invalid days parameter '%v'", value), http.StatusBadRequest)
			return
		}
		days = parsed
	}

	now := time.Now().UTC()
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	var open []schema.Observation
	result := s.db.Where("is_completed = ?", false).Order("created_at ASC").Find(&open)
	if result.Error != nil {
		writeError(w, dbError("sql error listing delayed observations", result.Error))
		return
	}

	// Compared in go, sqlite stores timestamps as text with the writer's offset.
	observations := lo.Filter(open, func(o schema.Observation, _ int) bool {
		return o.CreatedAt.Before(cutoff)
	})

	utils.WriteJsonResponse(w, delayedObservationsResponse{
		Days: days,
		Observations: lo.Map(observations, func(o schema.Observation, _ int) delayedObservation {
			return delayedObservation{
				observationInfo: convertToObservationInfo(o),
				DaysOpen:        int(math.Floor(now.Sub(o.CreatedAt).Hours() / 24)),
			}
		}),
	})
}

package services

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/Matgc04/dssd-2025/utils"
	"github.com/Matgc04/dssd-2025/utils/logging"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type addObservationPayload struct {
	ObservationId  json.RawMessage `json:"observationId"`
	ObservationIdS json.RawMessage `json:"observation_id"`
	Id             json.RawMessage `json:"id"`
	ProjectId      json.RawMessage `json:"projectId"`
	ProjectIdS     json.RawMessage `json:"project_id"`
	Content        json.RawMessage `json:"content"`
}

func (s *ProjectService) AddObservation(w http.ResponseWriter, r *http.Request) {
	var params addObservationPayload
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	projectId, err := coerceString(firstPresent(params.ProjectId, params.ProjectIdS))
	if err != nil || projectId == "" {
		http.Error(w, "projectId is required", http.StatusBadRequest)
		return
	}

	observationId, err := coerceString(firstPresent(params.ObservationId, params.ObservationIdS, params.Id))
	if err != nil {
		http.Error(w, "observationId must be a string", http.StatusBadRequest)
		return
	}
	if observationId == "" {
		observationId = uuid.NewString()
	}

	content, err := coerceString(params.Content)
	if err != nil {
		http.Error(w, "content must be a string", http.StatusBadRequest)
		return
	}

	obs := schema.Observation{Id: observationId, ProjectId: projectId, Content: content}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetProject(projectId, txn, false); err != nil {
			return lookupError(err)
		}

		if content == "" {
			return validationError("content cannot be empty")
		}

		if result := txn.Create(&obs); result.Error != nil {
			return dbError("sql error creating observation", result.Error, "observation_id", obs.Id)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("observation added", "code", logging.OBSERVATION, "observation_id", obs.Id, "project_id", projectId)

	utils.WriteJsonResponseStatus(w, http.StatusCreated, convertToObservationInfo(obs))
}

type completeObservationPayload struct {
	ObservationId  json.RawMessage `json:"observationId"`
	ObservationIdS json.RawMessage `json:"observation_id"`
	Id             json.RawMessage `json:"id"`
}

func (s *ProjectService) CompleteObservation(w http.ResponseWriter, r *http.Request) {
	var params completeObservationPayload
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	observationId, err := coerceString(firstPresent(params.ObservationId, params.ObservationIdS, params.Id))
	if err != nil || observationId == "" {
		http.Error(w, "observationId is required", http.StatusBadRequest)
		return
	}

	var obs schema.Observation
	err = s.db.Transaction(func(txn *gorm.DB) error {
		obs, err = schema.GetObservation(observationId, txn)
		if err != nil {
			return lookupError(err)
		}

		// Completing twice keeps the first completion time.
		if obs.IsCompleted {
			return nil
		}

		now := time.Now().UTC()
		obs.IsCompleted = true
		obs.CompletedAt = &now

		result := txn.Model(&obs).Updates(map[string]interface{}{"is_completed": true, "completed_at": now})
		if result.Error != nil {
			return dbError("sql error completing observation", result.Error, "observation_id", obs.Id)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("observation completed", "code", logging.OBSERVATION, "observation_id", obs.Id, "project_id", obs.ProjectId)

	utils.WriteJsonResponse(w, convertToObservationInfo(obs))
}

type observationsResponse struct {
	Observations []observationInfo `json:"observations"`
}

func (s *ProjectService) ListObservations(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.QueryParam(r, "projectId", "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := schema.GetProject(projectId, s.db, false); err != nil {
		writeError(w, lookupError(err))
		return
	}

	var observations []schema.Observation
	result := s.db.Where("project_id = ?", projectId).Order("created_at ASC").Find(&observations)
	if result.Error != nil {
		writeError(w, dbError("sql error listing observations", result.Error, "project_id", projectId))
		return
	}

	utils.WriteJsonResponse(w, observationsResponse{
		Observations: lo.Map(observations, func(o schema.Observation, _ int) observationInfo {
			return convertToObservationInfo(o)
		}),
	})
}

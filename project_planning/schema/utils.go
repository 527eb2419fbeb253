package schema

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Matgc04/dssd-2025/project_planning/lifecycle"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrProjectNotFound       = errors.New("project not found")
	ErrStageNotFound         = errors.New("stage not found")
	ErrRequestNotFound       = errors.New("request not found")
	ErrCollaborationNotFound = errors.New("collaboration not found")
	ErrObservationNotFound   = errors.New("observation not found")
	ErrDbAccessFailed        = errors.New("db access failed")
)

func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetUserByUsername(username string, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user by username", "username", username, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func orderedStages(db *gorm.DB) *gorm.DB {
	return db.Order("display_order ASC").Order("created_at ASC")
}

func orderedRequests(db *gorm.DB) *gorm.DB {
	return db.Order("display_order ASC").Order("created_at ASC")
}

func GetProject(projectId string, db *gorm.DB, loadStages bool) (Project, error) {
	var project Project

	var result *gorm.DB = db
	if loadStages {
		result = result.Preload("Stages", orderedStages).Preload("Stages.Requests", orderedRequests)
	}
	result = result.First(&project, "id = ?", projectId)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return project, ErrProjectNotFound
		}
		slog.Error("sql error in get project", "project_id", projectId, "error", result.Error)
		return project, ErrDbAccessFailed
	}

	return project, nil
}

func ProjectExists(projectId string, db *gorm.DB) (bool, error) {
	var count int64
	result := db.Model(&Project{}).Where("id = ?", projectId).Count(&count)
	if result.Error != nil {
		slog.Error("sql error checking if project exists", "project_id", projectId, "error", result.Error)
		return false, ErrDbAccessFailed
	}
	return count > 0, nil
}

func GetStage(projectId, stageId string, db *gorm.DB) (Stage, error) {
	var stage Stage

	result := db.First(&stage, "project_id = ? AND id = ?", projectId, stageId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return stage, ErrStageNotFound
		}
		slog.Error("sql error in get stage", "project_id", projectId, "stage_id", stageId, "error", result.Error)
		return stage, ErrDbAccessFailed
	}

	return stage, nil
}

func GetRequest(projectId, requestId string, db *gorm.DB) (Request, error) {
	var request Request

	result := db.First(&request, "project_id = ? AND id = ?", projectId, requestId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return request, ErrRequestNotFound
		}
		slog.Error("sql error in get request", "project_id", projectId, "request_id", requestId, "error", result.Error)
		return request, ErrDbAccessFailed
	}

	return request, nil
}

func GetCollaboration(collaborationId string, db *gorm.DB) (Collaboration, error) {
	var collab Collaboration

	result := db.First(&collab, "id = ?", collaborationId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return collab, ErrCollaborationNotFound
		}
		slog.Error("sql error in get collaboration", "collaboration_id", collaborationId, "error", result.Error)
		return collab, ErrDbAccessFailed
	}

	return collab, nil
}

func GetObservation(observationId string, db *gorm.DB) (Observation, error) {
	var obs Observation

	result := db.First(&obs, "id = ?", observationId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return obs, ErrObservationNotFound
		}
		slog.Error("sql error in get observation", "observation_id", observationId, "error", result.Error)
		return obs, ErrDbAccessFailed
	}

	return obs, nil
}

// TransitionRequest applies event to the request with a single conditional
// update, so concurrent callers cannot both move the request out of the same
// state. When no row matches, the request is re-read to tell a missing
// request apart from one in a state that forbids the event.
func TransitionRequest(projectId, requestId string, event lifecycle.Event, db *gorm.DB) (lifecycle.State, error) {
	sources := lifecycle.SourceStates(event)
	if len(sources) == 0 {
		return "", fmt.Errorf("%w: %q", lifecycle.ErrUnknownEvent, event)
	}

	// Every allowed source state reaches the same target for a given event.
	target, err := lifecycle.Transition(sources[0], event)
	if err != nil {
		return "", err
	}

	result := db.Model(&Request{}).
		Where("project_id = ? AND id = ? AND state IN ?", projectId, requestId, sources).
		Update("state", target)
	if result.Error != nil {
		slog.Error("sql error updating request state", "project_id", projectId, "request_id", requestId, "event", event, "error", result.Error)
		return "", ErrDbAccessFailed
	}

	if result.RowsAffected == 1 {
		return target, nil
	}

	current, err := GetRequest(projectId, requestId, db)
	if err != nil {
		return "", err
	}

	if _, err := lifecycle.Transition(current.State, event); err != nil {
		return current.State, err
	}

	// The row matched a source state on re-read, so it changed under us between
	// the update and the read. Report it as a conflict rather than retrying.
	return current.State, fmt.Errorf("%w: request %v changed concurrently", lifecycle.ErrAlreadyInProgress, requestId)
}

package services

import (
	"time"

	"github.com/Matgc04/dssd-2025/project_planning/lifecycle"
	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const dateFormat = "2006-01-02"

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateFormat)
	return &s
}

type requestInfo struct {
	Id               string             `json:"id"`
	StageId          string             `json:"stageId"`
	Type             schema.RequestType `json:"type"`
	Description      string             `json:"description"`
	Amount           *float64           `json:"amount"`
	Currency         *string            `json:"currency"`
	Quantity         *float64           `json:"quantity"`
	Unit             *string            `json:"unit"`
	Order            int                `json:"order"`
	State            lifecycle.State    `json:"state"`
	IsComplete       bool               `json:"isComplete"`
	IsBeingCompleted bool               `json:"isBeingCompleted"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

func convertToRequestInfo(request schema.Request) requestInfo {
	return requestInfo{
		Id:               request.Id,
		StageId:          request.StageId,
		Type:             request.Type,
		Description:      request.Description,
		Amount:           decimalToFloat(request.Amount),
		Currency:         request.Currency,
		Quantity:         decimalToFloat(request.Quantity),
		Unit:             request.Unit,
		Order:            request.Order,
		State:            request.State,
		IsComplete:       request.IsComplete(),
		IsBeingCompleted: request.IsBeingCompleted(),
		CreatedAt:        request.CreatedAt,
		UpdatedAt:        request.UpdatedAt,
	}
}

type stageInfo struct {
	Id          string        `json:"id"`
	Name        string        `json:"name"`
	Description *string       `json:"description"`
	StartDate   *string       `json:"startDate"`
	EndDate     *string       `json:"endDate"`
	Order       int           `json:"order"`
	Requests    []requestInfo `json:"requests"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

func convertToStageInfo(stage schema.Stage) stageInfo {
	return stageInfo{
		Id:          stage.Id,
		Name:        stage.Name,
		Description: stage.Description,
		StartDate:   formatDate(stage.StartDate),
		EndDate:     formatDate(stage.EndDate),
		Order:       stage.Order,
		Requests: lo.Map(stage.Requests, func(r schema.Request, _ int) requestInfo {
			return convertToRequestInfo(r)
		}),
		CreatedAt: stage.CreatedAt,
		UpdatedAt: stage.UpdatedAt,
	}
}

type projectInfo struct {
	ProjectId    string                  `json:"projectId"`
	OrgId        string                  `json:"orgId"`
	BonitaCaseId *string                 `json:"bonitaCaseId"`
	Status       lifecycle.ProjectStatus `json:"status"`
	Observation  *string                 `json:"observation"`
	Stages       []stageInfo             `json:"stages"`
	CreatedAt    time.Time               `json:"createdAt"`
	UpdatedAt    time.Time               `json:"updatedAt"`
}

func convertToProjectInfo(project schema.Project) projectInfo {
	return projectInfo{
		ProjectId:    project.Id,
		OrgId:        project.OrgId,
		BonitaCaseId: project.BonitaCaseId,
		Status:       project.Status,
		Observation:  project.Observation,
		Stages: lo.Map(project.Stages, func(s schema.Stage, _ int) stageInfo {
			return convertToStageInfo(s)
		}),
		CreatedAt: project.CreatedAt,
		UpdatedAt: project.UpdatedAt,
	}
}

type collaborationInfo struct {
	Id                   string                     `json:"id"`
	ProjectId            string                     `json:"projectId"`
	StageId              string                     `json:"stageId"`
	RequestId            string                     `json:"requestId"`
	OrgId                string                     `json:"orgId"`
	CommittedAmount      *float64                   `json:"committedAmount"`
	CommittedCurrency    *string                    `json:"committedCurrency"`
	CommittedQuantity    *float64                   `json:"committedQuantity"`
	CommittedUnit        *string                    `json:"committedUnit"`
	Notes                *string                    `json:"notes"`
	ExpectedDeliveryDate *string                    `json:"expectedDeliveryDate"`
	Status               schema.CollaborationStatus `json:"status"`
	CreatedAt            time.Time                  `json:"createdAt"`
	UpdatedAt            time.Time                  `json:"updatedAt"`
}

func convertToCollaborationInfo(collab schema.Collaboration) collaborationInfo {
	return collaborationInfo{
		Id:                   collab.Id,
		ProjectId:            collab.ProjectId,
		StageId:              collab.StageId,
		RequestId:            collab.RequestId,
		OrgId:                collab.OrgId,
		CommittedAmount:      decimalToFloat(collab.CommittedAmount),
		CommittedCurrency:    collab.CommittedCurrency,
		CommittedQuantity:    decimalToFloat(collab.CommittedQuantity),
		CommittedUnit:        collab.CommittedUnit,
		Notes:                collab.Notes,
		ExpectedDeliveryDate: formatDate(collab.ExpectedDeliveryDate),
		Status:               collab.Status,
		CreatedAt:            collab.CreatedAt,
		UpdatedAt:            collab.UpdatedAt,
	}
}

type observationInfo struct {
	Id          string     `json:"id"`
	ProjectId   string     `json:"projectId"`
	Content     string     `json:"content"`
	IsCompleted bool       `json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func convertToObservationInfo(obs schema.Observation) observationInfo {
	return observationInfo{
		Id:          obs.Id,
		ProjectId:   obs.ProjectId,
		Content:     obs.Content,
		IsCompleted: obs.IsCompleted,
		CompletedAt: obs.CompletedAt,
		CreatedAt:   obs.CreatedAt,
		UpdatedAt:   obs.UpdatedAt,
	}
}

type userInfo struct {
	Id         uuid.UUID   `json:"id"`
	Username   string      `json:"username"`
	Email      string      `json:"email"`
	Role       schema.Role `json:"role"`
	IsSysadmin bool        `json:"isSysadmin"`
	IsActive   bool        `json:"isActive"`
	CreatedAt  time.Time   `json:"createdAt"`
	DeletedAt  *time.Time  `json:"deletedAt"`
}

func convertToUserInfo(user schema.User) userInfo {
	return userInfo{
		Id:         user.Id,
		Username:   user.Username,
		Email:      user.Email,
		Role:       user.Role,
		IsSysadmin: user.IsSysadmin,
		IsActive:   user.IsActive,
		CreatedAt:  user.CreatedAt,
		DeletedAt:  user.DeletedAt,
	}
}

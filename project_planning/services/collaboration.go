package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Matgc04/dssd-2025/project_planning/auth"
	"github.com/Matgc04/dssd-2025/project_planning/lifecycle"
	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/Matgc04/dssd-2025/utils"
	"github.com/Matgc04/dssd-2025/utils/logging"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const maxNotesLength = 500

type proposeCollaborationPayload struct {
	CollaborationId      json.RawMessage `json:"collaborationId"`
	Id                   json.RawMessage `json:"id"`
	OrgId                json.RawMessage `json:"orgId"`
	OrgIdS               json.RawMessage `json:"org_id"`
	ProjectId            json.RawMessage `json:"projectId"`
	ProjectIdS           json.RawMessage `json:"project_id"`
	StageId              json.RawMessage `json:"stageId"`
	StageIdS             json.RawMessage `json:"stage_id"`
	HelpRequestId        json.RawMessage `json:"helpRequestId"`
	HelpRequestIdS       json.RawMessage `json:"help_request_id"`
	RequestId            json.RawMessage `json:"requestId"`
	CommittedAmount      json.RawMessage `json:"committedAmount"`
	CommittedCurrency    json.RawMessage `json:"committedCurrency"`
	CommittedQuantity    json.RawMessage `json:"committedQuantity"`
	CommittedUnit        json.RawMessage `json:"committedUnit"`
	Notes                json.RawMessage `json:"notes"`
	ExpectedDeliveryDate json.RawMessage `json:"expectedDeliveryDate"`
}

// normalize builds the pending collaboration described by the payload.
// defaultOrg is used when the payload does not name the organization.
func (p *proposeCollaborationPayload) normalize(defaultOrg string) (schema.Collaboration, error) {
	ids := map[string]json.RawMessage{
		"projectId":     firstPresent(p.ProjectId, p.ProjectIdS),
		"stageId":       firstPresent(p.StageId, p.StageIdS),
		"helpRequestId": firstPresent(p.HelpRequestId, p.HelpRequestIdS, p.RequestId),
	}
	values := make(map[string]string, len(ids))
	for field, raw := range ids {
		value, err := coerceString(raw)
		if err != nil {
			return schema.Collaboration{}, validationError("%v: %v", field, err)
		}
		if value == "" {
			return schema.Collaboration{}, validationError("projectId, stageId and helpRequestId are required")
		}
		values[field] = value
	}

	collabId, err := coerceString(firstPresent(p.CollaborationId, p.Id))
	if err != nil {
		return schema.Collaboration{}, validationError("collaborationId: %v", err)
	}
	if collabId == "" {
		collabId = uuid.NewString()
	}

	orgId, err := coerceString(firstPresent(p.OrgId, p.OrgIdS))
	if err != nil {
		return schema.Collaboration{}, validationError("orgId: %v", err)
	}
	if orgId == "" {
		orgId = defaultOrg
	}

	amount, err := coerceDecimal(p.CommittedAmount, schema.AmountScale)
	if err != nil {
		return schema.Collaboration{}, validationError("committedAmount: %v", err)
	}
	quantity, err := coerceDecimal(p.CommittedQuantity, schema.QuantityScale)
	if err != nil {
		return schema.Collaboration{}, validationError("committedQuantity: %v", err)
	}
	if !amount.Valid && !quantity.Valid {
		return schema.Collaboration{}, validationError("either committedAmount or committedQuantity is required")
	}
	if (amount.Valid && !amount.Decimal.IsPositive()) || (quantity.Valid && !quantity.Decimal.IsPositive()) {
		return schema.Collaboration{}, validationError("committed amounts must be positive")
	}

	currency, err := coerceOptionalString(p.CommittedCurrency)
	if err != nil {
		return schema.Collaboration{}, validationError("committedCurrency: %v", err)
	}
	if currency != nil && len(*currency) > 3 {
		return schema.Collaboration{}, validationError("committedCurrency must have at most 3 characters")
	}

	unit, err := coerceOptionalString(p.CommittedUnit)
	if err != nil {
		return schema.Collaboration{}, validationError("committedUnit: %v", err)
	}

	notes, err := coerceOptionalString(p.Notes)
	if err != nil {
		return schema.Collaboration{}, validationError("notes: %v", err)
	}
	if notes != nil && len(*notes) > maxNotesLength {
		return schema.Collaboration{}, validationError("notes must have at most %d characters", maxNotesLength)
	}

	delivery, err := coerceDate(p.ExpectedDeliveryDate)
	if err != nil {
		return schema.Collaboration{}, validationError("expectedDeliveryDate: %v", err)
	}

	return schema.Collaboration{
		Id:                   collabId,
		ProjectId:            values["projectId"],
		StageId:              values["stageId"],
		RequestId:            values["helpRequestId"],
		OrgId:                orgId,
		CommittedAmount:      amount,
		CommittedCurrency:    currency,
		CommittedQuantity:    quantity,
		CommittedUnit:        unit,
		Notes:                notes,
		ExpectedDeliveryDate: delivery,
		Status:               schema.CollaborationPending,
	}, nil
}

// transitionRequest applies the event through the conditional update and
// records the outcome.
func transitionRequest(projectId, requestId string, event lifecycle.Event, txn *gorm.DB) error {
	_, err := schema.TransitionRequest(projectId, requestId, event, txn)
	recordTransition(string(event), err)
	if err != nil {
		return lookupError(err)
	}
	return nil
}

func (s *ProjectService) ProposeCollaboration(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var params proposeCollaborationPayload
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	collab, err := params.normalize(user.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetStage(collab.ProjectId, collab.StageId, txn); err != nil {
			return lookupError(err)
		}

		request, err := schema.GetRequest(collab.ProjectId, collab.RequestId, txn)
		if err != nil {
			return lookupError(err)
		}
		if request.StageId != collab.StageId {
			return CodedError(fmt.Errorf("%w: request %v is not part of stage %v", schema.ErrRequestNotFound, request.Id, collab.StageId), http.StatusNotFound)
		}

		if err := transitionRequest(collab.ProjectId, collab.RequestId, lifecycle.Propose, txn); err != nil {
			return err
		}

		if result := txn.Create(&collab); result.Error != nil {
			return dbError("sql error creating collaboration", result.Error, "collaboration_id", collab.Id)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("collaboration proposed", "code", logging.COLLABORATION_PROPOSE, "collaboration_id", collab.Id, "project_id", collab.ProjectId, "request_id", collab.RequestId, "org_id", collab.OrgId)

	utils.WriteJsonResponse(w, convertToCollaborationInfo(collab))
}

type decideCollaborationPayload struct {
	ProjectId       json.RawMessage `json:"projectId"`
	ProjectIdS      json.RawMessage `json:"project_id"`
	RequestId       json.RawMessage `json:"requestId"`
	HelpRequestId   json.RawMessage `json:"helpRequestId"`
	HelpRequestIdS  json.RawMessage `json:"help_request_id"`
	CollaborationId json.RawMessage `json:"collaborationId"`
	CollabIdS       json.RawMessage `json:"collaboration_id"`
	Accepted        json.RawMessage `json:"accepted"`
}

func (s *ProjectService) DecideCollaboration(w http.ResponseWriter, r *http.Request) {
	var params decideCollaborationPayload
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	projectId, err1 := coerceString(firstPresent(params.ProjectId, params.ProjectIdS))
	requestId, err2 := coerceString(firstPresent(params.RequestId, params.HelpRequestId, params.HelpRequestIdS))
	collabId, err3 := coerceString(firstPresent(params.CollaborationId, params.CollabIdS))
	if err1 != nil || err2 != nil || err3 != nil || projectId == "" || requestId == "" || collabId == "" || isNull(params.Accepted) {
		http.Error(w, "projectId, requestId, collaborationId and accepted are required", http.StatusBadRequest)
		return
	}

	accepted, err := coerceBool(params.Accepted, false)
	if err != nil {
		http.Error(w, fmt.Sprintf("accepted: %v", err), http.StatusBadRequest)
		return
	}

	event, status := lifecycle.Reject, schema.CollaborationRejected
	if accepted {
		event, status = lifecycle.Accept, schema.CollaborationAccepted
	}

	var request schema.Request
	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetProject(projectId, txn, false); err != nil {
			return lookupError(err)
		}

		request, err = schema.GetRequest(projectId, requestId, txn)
		if err != nil {
			return lookupError(err)
		}

		collab, err := schema.GetCollaboration(collabId, txn)
		if err != nil {
			return lookupError(err)
		}
		if collab.ProjectId != projectId || collab.RequestId != requestId {
			return CodedError(fmt.Errorf("%w: collaboration %v is not linked to request %v", schema.ErrCollaborationNotFound, collabId, requestId), http.StatusNotFound)
		}

		if request.IsComplete() {
			return CodedError(fmt.Errorf("%w: request %v", lifecycle.ErrAlreadyDone, requestId), http.StatusConflict)
		}
		if collab.Status != schema.CollaborationPending {
			return CodedError(fmt.Errorf("collaboration %v was already %v", collabId, collab.Status), http.StatusConflict)
		}

		if err := transitionRequest(projectId, requestId, event, txn); err != nil {
			return err
		}

		result := txn.Model(&schema.Collaboration{}).
			Where("id = ? AND status = ?", collabId, schema.CollaborationPending).
			Update("status", status)
		if result.Error != nil {
			return dbError("sql error updating collaboration status", result.Error, "collaboration_id", collabId)
		}
		if result.RowsAffected != 1 {
			return CodedError(fmt.Errorf("collaboration %v changed concurrently", collabId), http.StatusConflict)
		}

		request, err = schema.GetRequest(projectId, requestId, txn)
		if err != nil {
			return lookupError(err)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("collaboration decided", "code", logging.COLLABORATION_DECIDE, "collaboration_id", collabId, "accepted", accepted, "request_state", request.State)

	utils.WriteJsonResponse(w, convertToRequestInfo(request))
}

type completeCollaborationPayload struct {
	CollaborationId json.RawMessage `json:"collaborationId"`
	CollabIdS       json.RawMessage `json:"collaboration_id"`
	Id              json.RawMessage `json:"id"`
}

func (s *ProjectService) CompleteCollaboration(w http.ResponseWriter, r *http.Request) {
	var params completeCollaborationPayload
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	collabId, err := coerceString(firstPresent(params.CollaborationId, params.CollabIdS, params.Id))
	if err != nil || collabId == "" {
		http.Error(w, "collaborationId is required", http.StatusBadRequest)
		return
	}

	var collab schema.Collaboration
	err = s.db.Transaction(func(txn *gorm.DB) error {
		collab, err = schema.GetCollaboration(collabId, txn)
		if err != nil {
			return lookupError(err)
		}

		request, err := schema.GetRequest(collab.ProjectId, collab.RequestId, txn)
		if err != nil {
			return lookupError(err)
		}
		if request.IsComplete() {
			return CodedError(fmt.Errorf("%w: request %v", lifecycle.ErrAlreadyDone, request.Id), http.StatusConflict)
		}
		if collab.Status == schema.CollaborationRejected {
			return CodedError(fmt.Errorf("collaboration %v was rejected", collabId), http.StatusConflict)
		}

		return transitionRequest(collab.ProjectId, collab.RequestId, lifecycle.Complete, txn)
	})
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("collaboration completed", "code", logging.COLLABORATION_COMPLETE, "collaboration_id", collab.Id, "project_id", collab.ProjectId, "request_id", collab.RequestId)

	utils.WriteJsonResponse(w, convertToCollaborationInfo(collab))
}

type collaborationsResponse struct {
	Collaborations []collaborationInfo `json:"collaborations"`
}

func (s *ProjectService) ListCollaborations(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.QueryParam(r, "projectId", "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := schema.GetProject(projectId, s.db, false); err != nil {
		writeError(w, lookupError(err))
		return
	}

	query := s.db.Where("project_id = ?", projectId)
	if requestId := r.URL.Query().Get("requestId"); requestId != "" {
		query = query.Where("request_id = ?", requestId)
	}

	var collabs []schema.Collaboration
	if result := query.Order("created_at ASC").Find(&collabs); result.Error != nil {
		writeError(w, dbError("sql error listing collaborations", result.Error, "project_id", projectId))
		return
	}

	utils.WriteJsonResponse(w, collaborationsResponse{
		Collaborations: lo.Map(collabs, func(c schema.Collaboration, _ int) collaborationInfo {
			return convertToCollaborationInfo(c)
		}),
	})
}

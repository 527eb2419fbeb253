package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Matgc04/dssd-2025/project_planning/lifecycle"
	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/shopspring/decimal"
)

// Payload fields are kept as raw json and coerced after filtering, so that a
// request entry that is going to be dropped cannot fail the whole call.

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || string(trimmed) == "null"
}

// firstPresent returns the first non null value, used to resolve aliases such
// as projectId and project_id.
func firstPresent(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		if !isNull(v) {
			return v
		}
	}
	return nil
}

func validationError(format string, args ...interface{}) error {
	return CodedError(fmt.Errorf(format, args...), http.StatusBadRequest)
}

// coerceString accepts json strings and numbers. Missing values and blank
// strings become "".
func coerceString(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}

	return "", fmt.Errorf("expected a string, got %s", raw)
}

func coerceOptionalString(raw json.RawMessage) (*string, error) {
	s, err := coerceString(raw)
	if err != nil || s == "" {
		return nil, err
	}
	return &s, nil
}

// coerceDecimal parses a json number or numeric string and rounds it half up
// to scale digits.
func coerceDecimal(raw json.RawMessage, scale int32) (decimal.NullDecimal, error) {
	s, err := coerceString(raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if s == "" {
		return decimal.NullDecimal{}, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid decimal value '%v'", s)
	}

	return decimal.NewNullDecimal(roundHalfUp(d, scale)), nil
}

// roundHalfUp rounds ties away from zero, which for the non negative amounts
// handled here is the same as rounding half up.
func roundHalfUp(d decimal.Decimal, scale int32) decimal.Decimal {
	return d.Round(scale)
}

func coerceInt(raw json.RawMessage, defaultValue int) (int, error) {
	s, err := coerceString(raw)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return defaultValue, nil
	}

	if i, err := strconv.Atoi(s); err == nil {
		return i, nil
	}

	// Integral floats such as 1.0 are accepted.
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() || !d.Equal(decimal.NewFromInt(d.IntPart())) {
		return 0, fmt.Errorf("invalid integer value '%v'", s)
	}
	return int(d.IntPart()), nil
}

func coerceBool(raw json.RawMessage, defaultValue bool) (bool, error) {
	if isNull(raw) {
		return defaultValue, nil
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}

	s, err := coerceString(raw)
	if err != nil {
		return false, err
	}

	switch strings.ToLower(s) {
	case "":
		return defaultValue, nil
	case "true", "1", "yes", "y":
		return true, nil
	case "false", "0", "no", "n":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value '%v'", s)
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// coerceDate accepts ISO dates and date-times, keeping only the date part.
func coerceDate(raw json.RawMessage) (*time.Time, error) {
	s, err := coerceString(raw)
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &date, nil
		}
	}
	return nil, fmt.Errorf("invalid date value '%v'", s)
}

var requestTypeNames = map[string]schema.RequestType{
	"MONETARIO":    schema.Economic,
	"MATERIALES":   schema.Materials,
	"MANO_DE_OBRA": schema.Labor,
	"OTRO":         schema.Other,
}

// parseRequestType matches either the stored value ("economic") or the
// constant name ("MONETARIO").
func parseRequestType(value string) (schema.RequestType, error) {
	switch t := schema.RequestType(strings.ToLower(value)); t {
	case schema.Economic, schema.Materials, schema.Labor, schema.Other:
		return t, nil
	}

	if t, ok := requestTypeNames[strings.ToUpper(strings.ReplaceAll(value, " ", "_"))]; ok {
		return t, nil
	}

	return "", fmt.Errorf("invalid request type '%v'", value)
}

type requestPayload struct {
	Id          json.RawMessage `json:"id"`
	RequestId   json.RawMessage `json:"requestId"`
	Type        json.RawMessage `json:"type"`
	RequestType json.RawMessage `json:"requestType"`
	Description json.RawMessage `json:"description"`
	Amount      json.RawMessage `json:"amount"`
	Currency    json.RawMessage `json:"currency"`
	Quantity    json.RawMessage `json:"quantity"`
	Unit        json.RawMessage `json:"unit"`
	Order       json.RawMessage `json:"order"`
	IsComplete  json.RawMessage `json:"isComplete"`
	IsCompleteS json.RawMessage `json:"is_complete"`
}

type stagePayload struct {
	Id          json.RawMessage `json:"id"`
	StageId     json.RawMessage `json:"stageId"`
	Name        json.RawMessage `json:"name"`
	Description json.RawMessage `json:"description"`
	StartDate   json.RawMessage `json:"startDate"`
	StartDateS  json.RawMessage `json:"start_date"`
	EndDate     json.RawMessage `json:"endDate"`
	EndDateS    json.RawMessage `json:"end_date"`
	Order       json.RawMessage `json:"order"`
	Requests    json.RawMessage `json:"requests"`
}

type registerHelpRequestPayload struct {
	ProjectId     json.RawMessage `json:"projectId"`
	ProjectIdS    json.RawMessage `json:"project_id"`
	OrgId         json.RawMessage `json:"orgId"`
	OrgIdS        json.RawMessage `json:"org_id"`
	BonitaCaseId  json.RawMessage `json:"bonitaCaseId"`
	BonitaCaseIdS json.RawMessage `json:"bonita_case_id"`
	Stages        json.RawMessage `json:"stages"`
}

// decodeList decodes raw as a json array, reporting a validation error that
// names the field otherwise.
func decodeList(raw json.RawMessage, field string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if isNull(raw) || json.Unmarshal(raw, &items) != nil {
		return nil, validationError("%v must be a list", field)
	}
	return items, nil
}

// hasValue reports whether a raw field is present and not blank.
func hasValue(raw json.RawMessage) bool {
	s, err := coerceString(raw)
	return err == nil && s != ""
}

func (p *requestPayload) complete() bool {
	return hasValue(firstPresent(p.Type, p.RequestType)) && hasValue(p.Description) && hasValue(firstPresent(p.Id, p.RequestId))
}

func (p *requestPayload) toRequest(projectId, stageId string) (schema.Request, error) {
	id, err := coerceString(firstPresent(p.Id, p.RequestId))
	if err != nil {
		return schema.Request{}, err
	}

	typeValue, err := coerceString(firstPresent(p.Type, p.RequestType))
	if err != nil {
		return schema.Request{}, err
	}
	requestType, err := parseRequestType(typeValue)
	if err != nil {
		return schema.Request{}, err
	}

	description, err := coerceString(p.Description)
	if err != nil {
		return schema.Request{}, err
	}

	amount, err := coerceDecimal(p.Amount, schema.AmountScale)
	if err != nil {
		return schema.Request{}, fmt.Errorf("amount: %w", err)
	}

	quantity, err := coerceDecimal(p.Quantity, schema.QuantityScale)
	if err != nil {
		return schema.Request{}, fmt.Errorf("quantity: %w", err)
	}

	currency, err := coerceOptionalString(p.Currency)
	if err != nil {
		return schema.Request{}, fmt.Errorf("currency: %w", err)
	}
	if currency != nil && len(*currency) > 3 {
		return schema.Request{}, fmt.Errorf("currency '%v' must have at most 3 characters", *currency)
	}

	unit, err := coerceOptionalString(p.Unit)
	if err != nil {
		return schema.Request{}, fmt.Errorf("unit: %w", err)
	}

	order, err := coerceInt(p.Order, 0)
	if err != nil {
		return schema.Request{}, fmt.Errorf("order: %w", err)
	}

	isComplete, err := coerceBool(firstPresent(p.IsComplete, p.IsCompleteS), false)
	if err != nil {
		return schema.Request{}, fmt.Errorf("isComplete: %w", err)
	}

	state := lifecycle.Open
	if isComplete {
		state = lifecycle.Done
	}

	return schema.Request{
		ProjectId:   projectId,
		Id:          id,
		StageId:     stageId,
		Type:        requestType,
		Description: description,
		Amount:      amount,
		Currency:    currency,
		Quantity:    quantity,
		Unit:        unit,
		Order:       order,
		State:       state,
	}, nil
}

func (p *stagePayload) toStage(projectId, stageId string, requests []schema.Request) (schema.Stage, error) {
	name, err := coerceString(p.Name)
	if err != nil {
		return schema.Stage{}, fmt.Errorf("name: %w", err)
	}
	if name == "" {
		return schema.Stage{}, errors.New("name is required")
	}

	description, err := coerceOptionalString(p.Description)
	if err != nil {
		return schema.Stage{}, fmt.Errorf("description: %w", err)
	}

	startDate, err := coerceDate(firstPresent(p.StartDate, p.StartDateS))
	if err != nil {
		return schema.Stage{}, fmt.Errorf("startDate: %w", err)
	}

	endDate, err := coerceDate(firstPresent(p.EndDate, p.EndDateS))
	if err != nil {
		return schema.Stage{}, fmt.Errorf("endDate: %w", err)
	}

	order, err := coerceInt(p.Order, 0)
	if err != nil {
		return schema.Stage{}, fmt.Errorf("order: %w", err)
	}

	return schema.Stage{
		ProjectId:   projectId,
		Id:          stageId,
		Name:        name,
		Description: description,
		StartDate:   startDate,
		EndDate:     endDate,
		Order:       order,
		Requests:    requests,
	}, nil
}

// normalize applies the filtering rules for help request registration and
// returns the project to create with its stages and requests.
func (p *registerHelpRequestPayload) normalize() (schema.Project, error) {
	projectId, err := coerceString(firstPresent(p.ProjectId, p.ProjectIdS))
	if err != nil {
		return schema.Project{}, validationError("projectId: %v", err)
	}
	orgId, err := coerceString(firstPresent(p.OrgId, p.OrgIdS))
	if err != nil {
		return schema.Project{}, validationError("orgId: %v", err)
	}
	if projectId == "" || orgId == "" || isNull(p.Stages) {
		return schema.Project{}, validationError("projectId, orgId and stages are required")
	}

	bonitaCaseId, err := coerceOptionalString(firstPresent(p.BonitaCaseId, p.BonitaCaseIdS))
	if err != nil {
		return schema.Project{}, validationError("bonitaCaseId: %v", err)
	}

	rawStages, err := decodeList(p.Stages, "stages")
	if err != nil {
		return schema.Project{}, err
	}

	stages := make([]schema.Stage, 0, len(rawStages))
	stageIds := make(map[string]bool)
	requestIds := make(map[string]bool)

	for index, rawStage := range rawStages {
		var stage stagePayload
		if err := json.Unmarshal(rawStage, &stage); err != nil {
			return schema.Project{}, validationError("stage at position %d must be an object", index)
		}

		rawRequests := []json.RawMessage{}
		if !isNull(stage.Requests) {
			rawRequests, err = decodeList(stage.Requests, fmt.Sprintf("requests of stage %d", index))
			if err != nil {
				return schema.Project{}, err
			}
		}

		valid := make([]requestPayload, 0, len(rawRequests))
		for requestIndex, rawRequest := range rawRequests {
			var request requestPayload
			if err := json.Unmarshal(rawRequest, &request); err != nil {
				return schema.Project{}, validationError("request %d of stage %d must be an object", requestIndex, index)
			}
			if request.complete() {
				valid = append(valid, request)
			}
		}

		if len(valid) == 0 {
			continue
		}

		stageId, err := coerceString(firstPresent(stage.Id, stage.StageId))
		if err != nil || stageId == "" {
			return schema.Project{}, validationError("stage at position %d has valid requests but no id", index)
		}
		if stageIds[stageId] {
			return schema.Project{}, validationError("stage id %v is repeated", stageId)
		}
		stageIds[stageId] = true

		requests := make([]schema.Request, 0, len(valid))
		for _, rp := range valid {
			request, err := rp.toRequest(projectId, stageId)
			if err != nil {
				return schema.Project{}, validationError("invalid request in stage %v: %v", stageId, err)
			}
			if requestIds[request.Id] {
				return schema.Project{}, validationError("request id %v is repeated", request.Id)
			}
			requestIds[request.Id] = true
			requests = append(requests, request)
		}

		newStage, err := stage.toStage(projectId, stageId, requests)
		if err != nil {
			return schema.Project{}, validationError("invalid stage %v: %v", stageId, err)
		}
		stages = append(stages, newStage)
	}

	if len(stages) == 0 {
		return schema.Project{}, validationError("no stages with valid requests were sent")
	}

	return schema.Project{
		Id:           projectId,
		OrgId:        orgId,
		BonitaCaseId: bonitaCaseId,
		Status:       lifecycle.Pending,
		Stages:       stages,
	}, nil
}

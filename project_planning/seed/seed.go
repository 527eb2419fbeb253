package seed

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Matgc04/dssd-2025/project_planning/auth"
	"github.com/Matgc04/dssd-2025/project_planning/lifecycle"
	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

const dateFormat = "2006-01-02"

//go:embed default_seed.yaml
var defaultSeed []byte

type File struct {
	Users          []User          `json:"users" yaml:"users"`
	Projects       []Project       `json:"projects" yaml:"projects"`
	Collaborations []Collaboration `json:"collaborations,omitempty" yaml:"collaborations,omitempty"`
	Observations   []Observation   `json:"observations,omitempty" yaml:"observations,omitempty"`
}

type User struct {
	Username string `json:"username" yaml:"username"`
	Email    string `json:"email" yaml:"email"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Role     string `json:"role" yaml:"role"`
	Sysadmin bool   `json:"sysadmin,omitempty" yaml:"sysadmin,omitempty"`
	Deleted  bool   `json:"deleted,omitempty" yaml:"deleted,omitempty"`
}

type Project struct {
	Id           string  `json:"id" yaml:"id"`
	OrgId        string  `json:"orgId" yaml:"orgId"`
	BonitaCaseId string  `json:"bonitaCaseId,omitempty" yaml:"bonitaCaseId,omitempty"`
	Status       string  `json:"status,omitempty" yaml:"status,omitempty"`
	Stages       []Stage `json:"stages" yaml:"stages"`
}

type Stage struct {
	Id          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	StartDate   string    `json:"startDate,omitempty" yaml:"startDate,omitempty"`
	EndDate     string    `json:"endDate,omitempty" yaml:"endDate,omitempty"`
	Order       int       `json:"order,omitempty" yaml:"order,omitempty"`
	Requests    []Request `json:"requests" yaml:"requests"`
}

type Request struct {
	Id          string `json:"id" yaml:"id"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Amount      string `json:"amount,omitempty" yaml:"amount,omitempty"`
	Currency    string `json:"currency,omitempty" yaml:"currency,omitempty"`
	Quantity    string `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Unit        string `json:"unit,omitempty" yaml:"unit,omitempty"`
	Order       int    `json:"order,omitempty" yaml:"order,omitempty"`
	State       string `json:"state,omitempty" yaml:"state,omitempty"`
}

type Collaboration struct {
	Id        string `json:"id" yaml:"id"`
	ProjectId string `json:"projectId" yaml:"projectId"`
	RequestId string `json:"requestId" yaml:"requestId"`
	OrgId     string `json:"orgId" yaml:"orgId"`
	Amount    string `json:"amount,omitempty" yaml:"amount,omitempty"`
	Currency  string `json:"currency,omitempty" yaml:"currency,omitempty"`
	Quantity  string `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Unit      string `json:"unit,omitempty" yaml:"unit,omitempty"`
	Notes     string `json:"notes,omitempty" yaml:"notes,omitempty"`
	Status    string `json:"status,omitempty" yaml:"status,omitempty"`
}

type Observation struct {
	Id        string `json:"id" yaml:"id"`
	ProjectId string `json:"projectId" yaml:"projectId"`
	Content   string `json:"content" yaml:"content"`
	Completed bool   `json:"completed,omitempty" yaml:"completed,omitempty"`
}

func Default() (File, error) {
	return Parse(defaultSeed)
}

func Parse(data []byte) (File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("error parsing seed file: %w", err)
	}
	return file, nil
}

func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("error reading seed file: %w", err)
	}
	return Parse(data)
}

type Counts struct {
	Users          int
	Projects       int
	Stages         int
	Requests       int
	Collaborations int
	Observations   int
}

// Apply inserts the contents of the seed file in a single transaction. Users
// that already exist by username are skipped, every other row must be new.
func Apply(db *gorm.DB, file File) (Counts, error) {
	var counts Counts

	err := db.Transaction(func(txn *gorm.DB) error {
		for _, u := range file.Users {
			created, err := seedUser(txn, u)
			if err != nil {
				return fmt.Errorf("user '%v': %w", u.Username, err)
			}
			if created {
				counts.Users++
			}
		}

		for _, p := range file.Projects {
			project, err := p.toSchema()
			if err != nil {
				return fmt.Errorf("project '%v': %w", p.Id, err)
			}
			if err := txn.Create(&project).Error; err != nil {
				return fmt.Errorf("error creating project '%v': %w", p.Id, err)
			}
			counts.Projects++
			counts.Stages += len(project.Stages)
			for _, stage := range project.Stages {
				counts.Requests += len(stage.Requests)
			}
		}

		for _, c := range file.Collaborations {
			request, err := schema.GetRequest(c.ProjectId, c.RequestId, txn)
			if err != nil {
				return fmt.Errorf("collaboration '%v': %w", c.Id, err)
			}
			collab, err := c.toSchema(request.StageId)
			if err != nil {
				return fmt.Errorf("collaboration '%v': %w", c.Id, err)
			}
			if err := txn.Create(&collab).Error; err != nil {
				return fmt.Errorf("error creating collaboration '%v': %w", c.Id, err)
			}
			counts.Collaborations++
		}

		for _, o := range file.Observations {
			obs := o.toSchema()
			if err := txn.Create(&obs).Error; err != nil {
				return fmt.Errorf("error creating observation '%v': %w", o.Id, err)
			}
			counts.Observations++
		}

		return nil
	})

	return counts, err
}

func seedUser(txn *gorm.DB, u User) (bool, error) {
	if u.Username == "" || u.Email == "" || u.Password == "" {
		return false, fmt.Errorf("username, email and password are required")
	}

	role, err := auth.ParseRole(u.Role)
	if err != nil {
		return false, err
	}

	_, err = schema.GetUserByUsername(u.Username, txn)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, schema.ErrUserNotFound) {
		return false, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("error encrypting password: %w", err)
	}

	user := schema.User{
		Id:         uuid.New(),
		Username:   u.Username,
		Email:      u.Email,
		Password:   hashed,
		Role:       role,
		IsSysadmin: u.Sysadmin,
		IsActive:   true,
	}
	if u.Deleted {
		user.MarkDeleted(time.Now().UTC())
	}

	if err := txn.Create(&user).Error; err != nil {
		return false, fmt.Errorf("error creating user: %w", err)
	}
	return true, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func parseDecimal(value string, scale int32) (decimal.NullDecimal, error) {
	if value == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid number '%v'", value)
	}
	return decimal.NewNullDecimal(d.Round(scale)), nil
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateFormat, value)
	if err != nil {
		return nil, fmt.Errorf("invalid date '%v', expected %v", value, dateFormat)
	}
	return &t, nil
}

func parseRequestType(value string) (schema.RequestType, error) {
	t := schema.RequestType(strings.ToLower(value))
	switch t {
	case schema.Economic, schema.Materials, schema.Labor, schema.Other:
		return t, nil
	}
	return "", fmt.Errorf("invalid request type '%v'", value)
}

func (p Project) toSchema() (schema.Project, error) {
	status := lifecycle.ProjectStatus(lo.Ternary(p.Status == "", string(lifecycle.Pending), p.Status))
	switch status {
	case lifecycle.Pending, lifecycle.Executing, lifecycle.Completed:
	default:
		return schema.Project{}, fmt.Errorf("invalid status '%v'", p.Status)
	}

	if p.Id == "" || p.OrgId == "" {
		return schema.Project{}, fmt.Errorf("id and orgId are required")
	}

	project := schema.Project{
		Id:           p.Id,
		OrgId:        p.OrgId,
		BonitaCaseId: optional(p.BonitaCaseId),
		Status:       status,
	}

	for _, s := range p.Stages {
		stage, err := s.toSchema(p.Id)
		if err != nil {
			return schema.Project{}, fmt.Errorf("stage '%v': %w", s.Id, err)
		}
		project.Stages = append(project.Stages, stage)
	}

	return project, nil
}

func (s Stage) toSchema(projectId string) (schema.Stage, error) {
	start, err := parseDate(s.StartDate)
	if err != nil {
		return schema.Stage{}, err
	}
	end, err := parseDate(s.EndDate)
	if err != nil {
		return schema.Stage{}, err
	}

	stage := schema.Stage{
		ProjectId:   projectId,
		Id:          s.Id,
		Name:        s.Name,
		Description: optional(s.Description),
		StartDate:   start,
		EndDate:     end,
		Order:       s.Order,
	}

	for _, r := range s.Requests {
		request, err := r.toSchema(projectId, s.Id)
		if err != nil {
			return schema.Stage{}, fmt.Errorf("request '%v': %w", r.Id, err)
		}
		stage.Requests = append(stage.Requests, request)
	}

	return stage, nil
}

func (r Request) toSchema(projectId, stageId string) (schema.Request, error) {
	requestType, err := parseRequestType(r.Type)
	if err != nil {
		return schema.Request{}, err
	}
	amount, err := parseDecimal(r.Amount, schema.AmountScale)
	if err != nil {
		return schema.Request{}, err
	}
	quantity, err := parseDecimal(r.Quantity, schema.QuantityScale)
	if err != nil {
		return schema.Request{}, err
	}

	state := lifecycle.State(lo.Ternary(r.State == "", string(lifecycle.Open), r.State))
	if !state.Valid() {
		return schema.Request{}, fmt.Errorf("invalid state '%v'", r.State)
	}

	return schema.Request{
		ProjectId:   projectId,
		Id:          r.Id,
		StageId:     stageId,
		Type:        requestType,
		Description: r.Description,
		Amount:      amount,
		Currency:    optional(r.Currency),
		Quantity:    quantity,
		Unit:        optional(r.Unit),
		Order:       r.Order,
		State:       state,
	}, nil
}

func (c Collaboration) toSchema(stageId string) (schema.Collaboration, error) {
	amount, err := parseDecimal(c.Amount, schema.AmountScale)
	if err != nil {
		return schema.Collaboration{}, err
	}
	quantity, err := parseDecimal(c.Quantity, schema.QuantityScale)
	if err != nil {
		return schema.Collaboration{}, err
	}

	status := schema.CollaborationStatus(lo.Ternary(c.Status == "", string(schema.CollaborationPending), c.Status))
	switch status {
	case schema.CollaborationPending, schema.CollaborationAccepted, schema.CollaborationRejected:
	default:
		return schema.Collaboration{}, fmt.Errorf("invalid status '%v'", c.Status)
	}

	return schema.Collaboration{
		Id:                lo.Ternary(c.Id == "", uuid.NewString(), c.Id),
		ProjectId:         c.ProjectId,
		RequestId:         c.RequestId,
		StageId:           stageId,
		OrgId:             c.OrgId,
		CommittedAmount:   amount,
		CommittedCurrency: optional(c.Currency),
		CommittedQuantity: quantity,
		CommittedUnit:     optional(c.Unit),
		Notes:             optional(c.Notes),
		Status:            status,
	}, nil
}

func (o Observation) toSchema() schema.Observation {
	obs := schema.Observation{
		Id:          lo.Ternary(o.Id == "", uuid.NewString(), o.Id),
		ProjectId:   o.ProjectId,
		Content:     o.Content,
		IsCompleted: o.Completed,
	}
	if o.Completed {
		now := time.Now().UTC()
		obs.CompletedAt = &now
	}
	return obs
}

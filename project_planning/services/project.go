package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Matgc04/dssd-2025/client"
	"github.com/Matgc04/dssd-2025/project_planning/auth"
	"github.com/Matgc04/dssd-2025/project_planning/lifecycle"
	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/Matgc04/dssd-2025/utils"
	"github.com/Matgc04/dssd-2025/utils/logging"
	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type ProjectService struct {
	db          *gorm.DB
	userAuth    auth.IdentityProvider
	workflow    Workflow
	processName string
}

func (s *ProjectService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/etapasNecesitanColaboracion", s.StagesNeedingCollaboration)
		r.Get("/pendientesNecesitanColaboracion", s.PendingProjects)
		r.Get("/detalle", s.Detail)
		r.Get("/colaboraciones", s.ListCollaborations)
		r.Get("/observaciones", s.ListObservations)

		r.Post("/", s.StartCase)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.RoleOnly(schema.RoleOriginating))

		r.Post("/registrarPedidoAyuda", s.RegisterHelpRequest)
		r.Patch("/completarObservacion", s.CompleteObservation)
		r.Post("/ejecutarProyecto", s.Execute)
		r.Post("/finalizarProyecto", s.Finish)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.With(auth.RoleOnly(schema.RoleCollaborating, schema.RoleNetwork)).Post("/quieroColaborar", s.ProposeCollaboration)
		r.With(auth.RoleOnly(schema.RoleOriginating, schema.RoleBonita)).Patch("/aceptaColaboracion", s.DecideCollaboration)
		r.With(auth.RoleOnly(schema.RoleOriginating, schema.RoleNetwork, schema.RoleBonita)).Post("/terminoColaboracion", s.CompleteCollaboration)
		r.With(auth.RoleOnly(schema.RoleCouncil)).Post("/hacerObservacion", s.AddObservation)
		r.With(auth.RoleOnly(schema.RoleCouncil)).Get("/enEjecucion", s.RunningProjects)
	})

	return r
}

func (s *ProjectService) RegisterHelpRequest(w http.ResponseWriter, r *http.Request) {
	var params registerHelpRequestPayload
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	project, err := params.normalize()
	if err != nil {
		writeError(w, err)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		exists, err := schema.ProjectExists(project.Id, txn)
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if exists {
			return CodedError(fmt.Errorf("project %v already exists", project.Id), http.StatusBadRequest)
		}

		if result := txn.Create(&project); result.Error != nil {
			if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
				return CodedError(fmt.Errorf("project %v already exists", project.Id), http.StatusBadRequest)
			}
			return dbError("sql error creating project", result.Error, "project_id", project.Id)
		}

		project, err = schema.GetProject(project.Id, txn, true)
		if err != nil {
			return lookupError(err)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	projectsRegisteredMetric.Inc()
	slog.Info("registered help request", "code", logging.PROJECT_REGISTER, "project_id", project.Id, "org_id", project.OrgId, "stages", len(project.Stages))

	utils.WriteJsonResponse(w, convertToProjectInfo(project))
}

func openRequests(db *gorm.DB) *gorm.DB {
	return db.Where("state = ?", lifecycle.Open).Order("display_order ASC").Order("created_at ASC")
}

// stagesWithOpenRequests keeps only the stages that still need help, each
// carrying only its open requests.
func stagesWithOpenRequests(db *gorm.DB, projectIds ...string) ([]schema.Stage, error) {
	var stages []schema.Stage
	result := db.
		Preload("Requests", openRequests).
		Where("project_id IN ?", projectIds).
		Order("display_order ASC").Order("created_at ASC").
		Find(&stages)
	if result.Error != nil {
		return nil, dbError("sql error listing stages", result.Error)
	}

	return lo.Filter(stages, func(stage schema.Stage, _ int) bool {
		return len(stage.Requests) > 0
	}), nil
}

type stagesResponse struct {
	Stages []stageInfo `json:"stages"`
}

func (s *ProjectService) StagesNeedingCollaboration(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.QueryParam(r, "projectId", "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := schema.GetProject(projectId, s.db, false); err != nil {
		writeError(w, lookupError(err))
		return
	}

	stages, err := stagesWithOpenRequests(s.db, projectId)
	if err != nil {
		writeError(w, err)
		return
	}

	utils.WriteJsonResponse(w, stagesResponse{Stages: lo.Map(stages, func(stage schema.Stage, _ int) stageInfo {
		return convertToStageInfo(stage)
	})})
}

type projectsResponse struct {
	Projects []projectInfo `json:"projects"`
}

func (s *ProjectService) PendingProjects(w http.ResponseWriter, r *http.Request) {
	withOpenRequests := s.db.Model(&schema.Request{}).Select("project_id").Where("state = ?", lifecycle.Open)

	var projects []schema.Project
	result := s.db.
		Where("status <> ?", lifecycle.Completed).
		Where("id IN (?)", withOpenRequests).
		Order("created_at ASC").
		Find(&projects)
	if result.Error != nil {
		writeError(w, dbError("sql error listing pending projects", result.Error))
		return
	}

	ids := lo.Map(projects, func(p schema.Project, _ int) string { return p.Id })
	stages := []schema.Stage{}
	if len(ids) > 0 {
		var err error
		stages, err = stagesWithOpenRequests(s.db, ids...)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	byProject := lo.GroupBy(stages, func(stage schema.Stage) string { return stage.ProjectId })

	res := projectsResponse{Projects: make([]projectInfo, 0, len(projects))}
	for _, project := range projects {
		project.Stages = byProject[project.Id]
		res.Projects = append(res.Projects, convertToProjectInfo(project))
	}

	utils.WriteJsonResponse(w, res)
}

const maxRunningProjects = 100

// RunningProjects lists executing projects, newest first, without stages.
func (s *ProjectService) RunningProjects(w http.ResponseWriter, r *http.Request) {
	var projects []schema.Project
	result := s.db.
		Where("status = ?", lifecycle.Executing).
		Order("created_at DESC").
		Limit(maxRunningProjects).
		Find(&projects)
	if result.Error != nil {
		writeError(w, dbError("sql error listing running projects", result.Error))
		return
	}

	utils.WriteJsonResponse(w, projectsResponse{Projects: lo.Map(projects, func(p schema.Project, _ int) projectInfo {
		return convertToProjectInfo(p)
	})})
}

func (s *ProjectService) Detail(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.QueryParam(r, "projectId", "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	project, err := schema.GetProject(projectId, s.db, true)
	if err != nil {
		writeError(w, lookupError(err))
		return
	}

	utils.WriteJsonResponse(w, convertToProjectInfo(project))
}

type executeProjectPayload struct {
	ProjectId  json.RawMessage        `json:"projectId"`
	ProjectIdS json.RawMessage        `json:"project_id"`
	TaskName   string                 `json:"taskName"`
	Contract   map[string]interface{} `json:"contract"`
	Variables  []client.CaseVariable  `json:"variables"`
}

func (p *executeProjectPayload) projectId() (string, error) {
	projectId, err := coerceString(firstPresent(p.ProjectId, p.ProjectIdS))
	if err != nil {
		return "", validationError("projectId: %v", err)
	}
	if projectId == "" {
		return "", validationError("projectId is required")
	}
	return projectId, nil
}

// ownedProject loads the project and checks that the caller's organization
// created it. Sysadmins can act on any project.
func ownedProject(r *http.Request, projectId string, db *gorm.DB) (schema.Project, error) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		return schema.Project{}, CodedError(err, http.StatusUnauthorized)
	}

	project, err := schema.GetProject(projectId, db, false)
	if err != nil {
		return schema.Project{}, lookupError(err)
	}

	if project.OrgId != user.Username && !user.IsSysadmin {
		return schema.Project{}, CodedError(fmt.Errorf("project %v does not belong to %v", projectId, user.Username), http.StatusForbidden)
	}

	return project, nil
}

func updateProjectStatus(project schema.Project, to lifecycle.ProjectStatus, db *gorm.DB) error {
	result := db.Model(&schema.Project{}).
		Where("id = ? AND status = ?", project.Id, project.Status).
		Update("status", to)
	if result.Error != nil {
		return dbError("sql error updating project status", result.Error, "project_id", project.Id)
	}
	if result.RowsAffected != 1 {
		return CodedError(fmt.Errorf("%w: project %v changed concurrently", lifecycle.ErrInvalidProjectStatus, project.Id), http.StatusConflict)
	}
	return nil
}

func (s *ProjectService) Execute(w http.ResponseWriter, r *http.Request) {
	var params executeProjectPayload
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	projectId, err := params.projectId()
	if err != nil {
		writeError(w, err)
		return
	}

	project, err := ownedProject(r, projectId, s.db)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := lifecycle.AdvanceProject(project.Status, lifecycle.Executing); err != nil {
		writeError(w, lookupError(err))
		return
	}

	if project.BonitaCaseId != nil {
		caseId := *project.BonitaCaseId
		for _, v := range params.Variables {
			if err := s.workflow.SetVariable(r.Context(), caseId, v.Name, v.Value, v.Type); err != nil {
				writeError(w, workflowError(err))
				return
			}
		}

		task, err := s.workflow.AdvanceCase(r.Context(), caseId, params.TaskName, params.Contract)
		if err != nil {
			writeError(w, workflowError(err))
			return
		}
		slog.Info("advanced project case", "code", logging.WORKFLOW, "project_id", project.Id, "case_id", caseId, "task", task.Name)
	}

	if err := updateProjectStatus(project, lifecycle.Executing, s.db); err != nil {
		writeError(w, err)
		return
	}

	slog.Info("project is executing", "code", logging.PROJECT_STATUS, "project_id", project.Id)
	s.writeProject(w, project.Id)
}

func (s *ProjectService) Finish(w http.ResponseWriter, r *http.Request) {
	var params executeProjectPayload
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	projectId, err := params.projectId()
	if err != nil {
		writeError(w, err)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		project, err := ownedProject(r, projectId, txn)
		if err != nil {
			return err
		}

		if err := lifecycle.AdvanceProject(project.Status, lifecycle.Completed); err != nil {
			return lookupError(err)
		}

		var unfinished int64
		result := txn.Model(&schema.Request{}).
			Where("project_id = ? AND state <> ?", project.Id, lifecycle.Done).
			Count(&unfinished)
		if result.Error != nil {
			return dbError("sql error counting unfinished requests", result.Error, "project_id", project.Id)
		}
		if unfinished > 0 {
			return CodedError(fmt.Errorf("project %v still has %d unfinished requests", project.Id, unfinished), http.StatusConflict)
		}

		return updateProjectStatus(project, lifecycle.Completed, txn)
	})
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("project completed", "code", logging.PROJECT_STATUS, "project_id", projectId)
	s.writeProject(w, projectId)
}

func (s *ProjectService) writeProject(w http.ResponseWriter, projectId string) {
	project, err := schema.GetProject(projectId, s.db, true)
	if err != nil {
		writeError(w, lookupError(err))
		return
	}
	utils.WriteJsonResponse(w, convertToProjectInfo(project))
}

type startCaseRequest struct {
	CreatedByOrgId json.RawMessage `json:"createdByOrgId"`
	Requests       json.RawMessage `json:"requests"`
}

type startCaseResponse struct {
	CaseId string `json:"caseId"`
}

// StartCase starts a planning case for an organization without storing a
// project, for clients that drive the process directly.
func (s *ProjectService) StartCase(w http.ResponseWriter, r *http.Request) {
	var params startCaseRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	orgId, err := coerceString(params.CreatedByOrgId)
	if err != nil || orgId == "" {
		http.Error(w, "createdByOrgId is required", http.StatusBadRequest)
		return
	}

	requests, err := coerceInt(params.Requests, 0)
	if err != nil || requests <= 0 {
		http.Error(w, "requests must be a positive integer", http.StatusBadRequest)
		return
	}

	caseId, err := s.workflow.StartCase(r.Context(), s.processName, []client.CaseVariable{
		{Name: "id", Value: orgId, Type: "java.lang.String"},
		{Name: "pedidosTotales", Value: requests, Type: "java.lang.Integer"},
		{Name: "pedidosActuales", Value: 0, Type: "java.lang.Integer"},
	})
	if err != nil {
		writeError(w, workflowError(err))
		return
	}

	slog.Info("started planning case", "code", logging.WORKFLOW, "org_id", orgId, "case_id", caseId)
	utils.WriteJsonResponseStatus(w, http.StatusCreated, startCaseResponse{CaseId: caseId})
}

package services

import (
	"log"
	"net/http"
	"os"

	"github.com/Matgc04/dssd-2025/project_planning/auth"
	"github.com/Matgc04/dssd-2025/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type ProjectPlanning struct {
	user    UserService
	project ProjectService
	report  ReportService
}

func NewProjectPlanning(db *gorm.DB, userAuth auth.IdentityProvider, workflow Workflow, processName string) ProjectPlanning {
	return ProjectPlanning{
		user: UserService{db: db, userAuth: userAuth},
		project: ProjectService{
			db:          db,
			userAuth:    userAuth,
			workflow:    workflow,
			processName: processName,
		},
		report: ReportService{db: db, userAuth: userAuth},
	}
}

func (p *ProjectPlanning) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/auth", p.user.Routes())
	r.Mount("/projects", p.project.Routes())
	r.Mount("/reports", p.report.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}

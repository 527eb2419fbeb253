// Package bonitatest provides an in-process fake of the parts of the Bonita
// REST API used by the platform.
package bonitatest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

const (
	Username    = "walter.bates"
	Password    = "bpm"
	ProcessName = "ProjectPlanning"
	ProcessId   = "8311"
	SessionUser = "4"
)

type Variable struct {
	Value interface{}
	Type  string
}

type Task struct {
	Id         string
	Name       string
	CaseId     string
	AssignedId string
	Executed   bool
	Contract   map[string]interface{}
}

type Fake struct {
	Server *httptest.Server

	mu        sync.Mutex
	logins    int
	sessionId string
	apiToken  string
	nextCase  int
	nextTask  int
	cases     map[string]map[string]Variable
	tasks     []*Task
}

func New() *Fake {
	f := &Fake{
		nextCase: 1000,
		nextTask: 50,
		cases:    make(map[string]map[string]Variable),
	}

	r := chi.NewRouter()
	r.Post("/bonita/loginservice", f.login)
	r.Route("/bonita/API", func(r chi.Router) {
		r.Use(f.requireSession)
		r.Get("/bpm/process", f.searchProcess)
		r.Post("/bpm/process/{process_id}/instantiation", f.instantiate)
		r.Get("/bpm/caseVariable/{case_id}/{name}", f.getVariable)
		r.Put("/bpm/caseVariable/{case_id}/{name}", f.setVariable)
		r.Get("/bpm/humanTask", f.searchTasks)
		r.Get("/system/session/unusedid", f.session)
		r.Put("/bpm/userTask/{task_id}", f.assignTask)
		r.Post("/bpm/userTask/{task_id}/execution", f.executeTask)
	})

	f.Server = httptest.NewServer(r)
	return f
}

func (f *Fake) Close() {
	f.Server.Close()
}

func (f *Fake) URL() string {
	return f.Server.URL
}

func (f *Fake) Logins() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

// ExpireSession makes the engine reject the current session with 401.
func (f *Fake) ExpireSession() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionId = ""
	f.apiToken = ""
}

func (f *Fake) Variable(caseId, name string) (Variable, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.cases[caseId][name]
	return v, ok
}

func (f *Fake) CaseIds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.cases))
	for id := range f.cases {
		ids = append(ids, id)
	}
	return ids
}

// AddCase registers a case directly, as if it was started outside the platform.
func (f *Fake) AddCase() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextCase++
	caseId := fmt.Sprint(f.nextCase)
	f.cases[caseId] = make(map[string]Variable)
	return caseId
}

func (f *Fake) AddTask(caseId, name string) *Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTask++
	task := &Task{Id: fmt.Sprint(f.nextTask), Name: name, CaseId: caseId}
	f.tasks = append(f.tasks, task)
	return task
}

func (f *Fake) Task(taskId string) (Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.Id == taskId {
			return *t, true
		}
	}
	return Task{}, false
}

func writeJson(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (f *Fake) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("username") != Username || r.PostForm.Get("password") != Password {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
		return
	}

	f.mu.Lock()
	f.logins++
	f.sessionId = fmt.Sprintf("session-%d", f.logins)
	f.apiToken = fmt.Sprintf("token-%d", f.logins)
	sessionId, apiToken := f.sessionId, f.apiToken
	f.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: sessionId, Path: "/bonita"})
	http.SetCookie(w, &http.Cookie{Name: "X-Bonita-API-Token", Value: apiToken, Path: "/bonita"})
	w.WriteHeader(http.StatusNoContent)
}

func (f *Fake) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("JSESSIONID")

		f.mu.Lock()
		valid := err == nil && f.sessionId != "" && cookie.Value == f.sessionId && r.Header.Get("X-Bonita-API-Token") == f.apiToken
		f.mu.Unlock()

		if !valid {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func filters(r *http.Request) map[string]string {
	out := make(map[string]string)
	for _, f := range r.URL.Query()["f"] {
		if key, value, ok := strings.Cut(f, "="); ok {
			out[key] = value
		}
	}
	return out
}

func (f *Fake) searchProcess(w http.ResponseWriter, r *http.Request) {
	filter := filters(r)
	if filter["name"] != ProcessName || filter["activationState"] != "ENABLED" {
		writeJson(w, []interface{}{})
		return
	}
	writeJson(w, []map[string]string{{"id": ProcessId, "name": ProcessName}})
}

func (f *Fake) instantiate(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "process_id") != ProcessId {
		http.Error(w, "process not found", http.StatusNotFound)
		return
	}

	var body struct {
		Variables []struct {
			Name  string      `json:"name"`
			Value interface{} `json:"value"`
			Type  string      `json:"type"`
		} `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.nextCase++
	caseNum := f.nextCase
	vars := make(map[string]Variable)
	for _, v := range body.Variables {
		vars[v.Name] = Variable{Value: v.Value, Type: v.Type}
	}
	f.cases[fmt.Sprint(caseNum)] = vars
	f.mu.Unlock()

	// The engine returns the case id as a number.
	writeJson(w, map[string]int{"caseId": caseNum})
}

func (f *Fake) getVariable(w http.ResponseWriter, r *http.Request) {
	caseId, name := chi.URLParam(r, "case_id"), chi.URLParam(r, "name")

	f.mu.Lock()
	v, ok := f.cases[caseId][name]
	f.mu.Unlock()

	if !ok {
		http.Error(w, "variable not found", http.StatusNotFound)
		return
	}
	writeJson(w, map[string]interface{}{"name": name, "value": v.Value, "type": v.Type})
}

func (f *Fake) setVariable(w http.ResponseWriter, r *http.Request) {
	caseId, name := chi.URLParam(r, "case_id"), chi.URLParam(r, "name")

	var body struct {
		Value interface{} `json:"value"`
		Type  string      `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	vars, ok := f.cases[caseId]
	if !ok {
		http.Error(w, "case not found", http.StatusNotFound)
		return
	}
	vars[name] = Variable{Value: body.Value, Type: body.Type}
	w.WriteHeader(http.StatusOK)
}

func (f *Fake) searchTasks(w http.ResponseWriter, r *http.Request) {
	filter := filters(r)

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]map[string]string, 0)
	for _, t := range f.tasks {
		if t.CaseId != filter["caseId"] || t.Executed {
			continue
		}
		out = append(out, map[string]string{
			"id": t.Id, "name": t.Name, "displayName": t.Name, "state": "ready",
			"caseId": t.CaseId, "assigned_id": t.AssignedId,
		})
	}
	writeJson(w, out)
}

func (f *Fake) session(w http.ResponseWriter, r *http.Request) {
	writeJson(w, map[string]string{"user_id": SessionUser, "user_name": Username})
}

func (f *Fake) findTask(taskId string) *Task {
	for _, t := range f.tasks {
		if t.Id == taskId {
			return t
		}
	}
	return nil
}

func (f *Fake) assignTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AssignedId string `json:"assigned_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	task := f.findTask(chi.URLParam(r, "task_id"))
	if task == nil {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	task.AssignedId = body.AssignedId
	w.WriteHeader(http.StatusOK)
}

func (f *Fake) executeTask(w http.ResponseWriter, r *http.Request) {
	var contract map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&contract); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	task := f.findTask(chi.URLParam(r, "task_id"))
	if task == nil {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	if task.AssignedId == "" {
		http.Error(w, "task is not assigned", http.StatusBadRequest)
		return
	}
	task.Executed = true
	task.Contract = contract
	w.WriteHeader(http.StatusNoContent)
}

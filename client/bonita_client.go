package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var bonitaCallMetric = promauto.NewSummaryVec(
	prometheus.SummaryOpts{Name: "bonita_call_seconds", Help: "Duration of calls to the Bonita REST API"},
	[]string{"operation", "outcome"},
)

var (
	ErrProcessNotFound = errors.New("no enabled bonita process with given name")
	ErrNoReadyTask     = errors.New("no ready task available for case")
	ErrMissingSession  = errors.New("bonita login did not return a session")
)

const (
	sessionCookie  = "JSESSIONID"
	apiTokenCookie = "X-Bonita-API-Token"
	apiTokenHeader = "X-Bonita-API-Token"
)

type CaseVariable struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
	Type  string      `json:"type"`
}

type HumanTask struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	State       string `json:"state"`
	CaseId      string `json:"caseId"`
	AssignedId  string `json:"assigned_id"`
}

// bonitaId accepts ids encoded either as json strings or numbers.
type bonitaId string

func (id *bonitaId) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("empty bonita id")
	}
	*id = bonitaId(data)
	return nil
}

type bonitaSession struct {
	sessionId string
	apiToken  string
}

// BonitaClient is a session based client of the Bonita REST API. The session
// is created on first use and replaced when the engine answers 401.
type BonitaClient struct {
	baseUrl  string
	username string
	password string
	http     *http.Client

	mu      sync.Mutex
	session *bonitaSession
}

func NewBonitaClient(baseUrl, username, password string) *BonitaClient {
	return &BonitaClient{
		baseUrl:  baseUrl,
		username: username,
		password: password,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *BonitaClient) login(ctx context.Context) (*bonitaSession, error) {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)
	form.Set("redirect", "false")

	session := &bonitaSession{}
	err := newHttpRequest(c.http, "POST", c.baseUrl, "/bonita/loginservice").
		Form(form).
		Process(ctx, func(res *http.Response) error {
			for _, cookie := range res.Cookies() {
				switch cookie.Name {
				case sessionCookie:
					session.sessionId = cookie.Value
				case apiTokenCookie:
					session.apiToken = cookie.Value
				}
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("bonita login failed: %w", err)
	}

	if session.sessionId == "" || session.apiToken == "" {
		return nil, ErrMissingSession
	}

	slog.Info("logged in to bonita", "username", c.username)
	return session, nil
}

func (c *BonitaClient) currentSession(ctx context.Context) (*bonitaSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return c.session, nil
	}

	session, err := c.login(ctx)
	if err != nil {
		return nil, err
	}
	c.session = session
	return session, nil
}

// invalidate drops the session only if no other caller has already replaced it.
func (c *BonitaClient) invalidate(stale *bonitaSession) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == stale {
		c.session = nil
	}
}

func (c *BonitaClient) call(ctx context.Context, operation string, newRequest func() *httpRequest, handle func(*http.Response) error) error {
	timer := time.Now()
	err := c.callWithRetry(ctx, newRequest, handle)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	bonitaCallMetric.WithLabelValues(operation, outcome).Observe(time.Since(timer).Seconds())

	return err
}

func (c *BonitaClient) callWithRetry(ctx context.Context, newRequest func() *httpRequest, handle func(*http.Response) error) error {
	for attempt := 0; ; attempt++ {
		session, err := c.currentSession(ctx)
		if err != nil {
			return err
		}

		err = newRequest().
			Cookie(&http.Cookie{Name: sessionCookie, Value: session.sessionId}).
			Cookie(&http.Cookie{Name: apiTokenCookie, Value: session.apiToken}).
			Header(apiTokenHeader, session.apiToken).
			Process(ctx, handle)

		if attempt == 0 && IsStatus(err, http.StatusUnauthorized) {
			slog.Info("bonita session expired, logging in again")
			c.invalidate(session)
			continue
		}

		return err
	}
}

func (c *BonitaClient) get(endpoint string) func() *httpRequest {
	return func() *httpRequest { return newHttpRequest(c.http, "GET", c.baseUrl, endpoint) }
}

func decodeInto(result interface{}) func(*http.Response) error {
	return func(res *http.Response) error {
		return decodeJson(res, result)
	}
}

func (c *BonitaClient) EnabledProcessId(ctx context.Context, processName string) (string, error) {
	var processes []struct {
		Id bonitaId `json:"id"`
	}

	newRequest := func() *httpRequest {
		return c.get("/bonita/API/bpm/process")().
			Param("p", "0").
			Param("c", "1").
			Param("f", "name="+processName).
			Param("f", "activationState=ENABLED")
	}

	if err := c.call(ctx, "process_search", newRequest, decodeInto(&processes)); err != nil {
		return "", fmt.Errorf("error searching bonita process %v: %w", processName, err)
	}

	if len(processes) == 0 {
		return "", fmt.Errorf("%w: %v", ErrProcessNotFound, processName)
	}

	return string(processes[0].Id), nil
}

func (c *BonitaClient) StartCase(ctx context.Context, processName string, variables []CaseVariable) (string, error) {
	processId, err := c.EnabledProcessId(ctx, processName)
	if err != nil {
		return "", err
	}

	var res struct {
		CaseId bonitaId `json:"caseId"`
	}

	newRequest := func() *httpRequest {
		return newHttpRequest(c.http, "POST", c.baseUrl, fmt.Sprintf("/bonita/API/bpm/process/%v/instantiation", url.PathEscape(processId))).
			Json(map[string]interface{}{"variables": variables})
	}

	if err := c.call(ctx, "case_start", newRequest, decodeInto(&res)); err != nil {
		return "", fmt.Errorf("error starting case for process %v: %w", processName, err)
	}

	slog.Info("started bonita case", "process", processName, "case_id", res.CaseId)
	return string(res.CaseId), nil
}

func caseVariableEndpoint(caseId, name string) string {
	return fmt.Sprintf("/bonita/API/bpm/caseVariable/%v/%v", url.PathEscape(caseId), url.PathEscape(name))
}

func (c *BonitaClient) GetVariable(ctx context.Context, caseId, name string) (CaseVariable, error) {
	var variable CaseVariable
	if err := c.call(ctx, "variable_get", c.get(caseVariableEndpoint(caseId, name)), decodeInto(&variable)); err != nil {
		return CaseVariable{}, fmt.Errorf("error reading variable %v of case %v: %w", name, caseId, err)
	}
	return variable, nil
}

func (c *BonitaClient) SetVariable(ctx context.Context, caseId, name string, value interface{}, varType string) error {
	newRequest := func() *httpRequest {
		return newHttpRequest(c.http, "PUT", c.baseUrl, caseVariableEndpoint(caseId, name)).
			Json(CaseVariable{Name: name, Value: value, Type: javaType(varType)})
	}

	if err := c.call(ctx, "variable_set", newRequest, nil); err != nil {
		return fmt.Errorf("error setting variable %v of case %v: %w", name, caseId, err)
	}
	return nil
}

// javaType expands short type names (String, Integer) into the java class
// names the case variable api expects.
func javaType(varType string) string {
	if varType == "" || strings.Contains(varType, ".") {
		return varType
	}
	return "java.lang." + varType
}

func (c *BonitaClient) ReadyTasks(ctx context.Context, caseId string) ([]HumanTask, error) {
	var tasks []HumanTask

	newRequest := func() *httpRequest {
		return c.get("/bonita/API/bpm/humanTask")().
			Param("p", "0").
			Param("c", "20").
			Param("o", "priority ASC").
			Param("f", "caseId="+caseId).
			Param("f", "state=ready")
	}

	if err := c.call(ctx, "task_search", newRequest, decodeInto(&tasks)); err != nil {
		return nil, fmt.Errorf("error searching ready tasks of case %v: %w", caseId, err)
	}
	return tasks, nil
}

func (c *BonitaClient) SessionUserId(ctx context.Context) (string, error) {
	var res struct {
		UserId bonitaId `json:"user_id"`
	}
	if err := c.call(ctx, "session_get", c.get("/bonita/API/system/session/unusedid"), decodeInto(&res)); err != nil {
		return "", fmt.Errorf("error reading bonita session: %w", err)
	}
	return string(res.UserId), nil
}

func (c *BonitaClient) AssignTask(ctx context.Context, taskId, userId string) error {
	newRequest := func() *httpRequest {
		return newHttpRequest(c.http, "PUT", c.baseUrl, fmt.Sprintf("/bonita/API/bpm/userTask/%v", url.PathEscape(taskId))).
			Json(map[string]string{"assigned_id": userId})
	}

	if err := c.call(ctx, "task_assign", newRequest, nil); err != nil {
		return fmt.Errorf("error assigning task %v: %w", taskId, err)
	}
	return nil
}

func (c *BonitaClient) ExecuteTask(ctx context.Context, taskId string, contract map[string]interface{}) error {
	if contract == nil {
		contract = map[string]interface{}{}
	}

	newRequest := func() *httpRequest {
		return newHttpRequest(c.http, "POST", c.baseUrl, fmt.Sprintf("/bonita/API/bpm/userTask/%v/execution", url.PathEscape(taskId))).
			Json(contract)
	}

	if err := c.call(ctx, "task_execute", newRequest, nil); err != nil {
		return fmt.Errorf("error executing task %v: %w", taskId, err)
	}
	return nil
}

// AdvanceCase executes the ready task of the case matching taskName, or the
// first ready task when taskName is empty or not found. Unassigned tasks are
// assigned to the session user first.
func (c *BonitaClient) AdvanceCase(ctx context.Context, caseId, taskName string, contract map[string]interface{}) (HumanTask, error) {
	tasks, err := c.ReadyTasks(ctx, caseId)
	if err != nil {
		return HumanTask{}, err
	}

	if len(tasks) == 0 {
		return HumanTask{}, fmt.Errorf("%w: %v", ErrNoReadyTask, caseId)
	}

	task := tasks[0]
	if taskName != "" {
		for _, t := range tasks {
			if t.Name == taskName || t.DisplayName == taskName {
				task = t
				break
			}
		}
	}

	if task.AssignedId == "" {
		userId, err := c.SessionUserId(ctx)
		if err != nil {
			return HumanTask{}, err
		}
		if err := c.AssignTask(ctx, task.Id, userId); err != nil {
			return HumanTask{}, err
		}
		task.AssignedId = userId
	}

	if err := c.ExecuteTask(ctx, task.Id, contract); err != nil {
		return HumanTask{}, err
	}

	slog.Info("advanced bonita case", "case_id", caseId, "task_id", task.Id, "task", task.Name)
	return task, nil
}

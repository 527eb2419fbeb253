package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"

	"github.com/go-chi/chi/v5"
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	params   url.Values
	json     interface{}
	body     io.Reader
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{
		api:      api,
		method:   method,
		endpoint: endpoint,
	}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	return r.Header("Authorization", fmt.Sprintf("Bearer %v", token))
}

func (r *httpTestRequest) Param(key, value string) *httpTestRequest {
	if r.params == nil {
		r.params = make(url.Values)
	}
	r.params.Set(key, value)
	return r
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

func (r *httpTestRequest) Body(body io.Reader) *httpTestRequest {
	r.body = body
	return r
}

// statusError is returned for any non 2xx response.
type statusError struct {
	method   string
	endpoint string
	code     int
	content  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v request to endpoint %v returned status %d, content '%v'", e.method, e.endpoint, e.code, e.content)
}

// statusCode returns the http status carried by err, 200 for nil.
func statusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var serr *statusError
	if errors.As(err, &serr) {
		return serr.code
	}
	return -1
}

// response body will be parsed into result, passing nil indicates that no result is returned.
func (r *httpTestRequest) Do(result interface{}) error {
	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	endpoint := r.endpoint
	if r.params != nil {
		endpoint += "?" + r.params.Encode()
	}

	req := httptest.NewRequest(r.method, endpoint, r.body)
	for k, v := range r.headers {
		req.Header.Add(k, v)
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &statusError{method: r.method, endpoint: r.endpoint, code: res.StatusCode, content: w.Body.String()}
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

type client struct {
	api       chi.Router
	authToken string
	username  string
}

func (c *client) request(method, endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, method, endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Get(endpoint string) *httpTestRequest {
	return c.request("GET", endpoint)
}

func (c *client) Post(endpoint string) *httpTestRequest {
	return c.request("POST", endpoint)
}

func (c *client) Patch(endpoint string) *httpTestRequest {
	return c.request("PATCH", endpoint)
}

func (c *client) Delete(endpoint string) *httpTestRequest {
	return c.request("DELETE", endpoint)
}

func (c *client) login(username, password string) error {
	var res struct {
		AccessToken string `json:"access_token"`
	}
	err := c.Post("/auth/login").Json(map[string]string{"username": username, "password": password}).Do(&res)
	if err != nil {
		return err
	}
	c.authToken = res.AccessToken
	c.username = username
	return nil
}

type user struct {
	Id         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	IsSysadmin bool   `json:"is_sysadmin"`
}

func (c *client) createUser(username, role string) (user, error) {
	var res user
	err := c.Post("/auth/users").Json(map[string]interface{}{
		"username": username,
		"email":    username + "@mail.com",
		"password": username + "_password",
		"role":     role,
	}).Do(&res)
	return res, err
}

type request struct {
	Id               string   `json:"id"`
	StageId          string   `json:"stageId"`
	Type             string   `json:"type"`
	Description      string   `json:"description"`
	Amount           *float64 `json:"amount"`
	Currency         *string  `json:"currency"`
	Quantity         *float64 `json:"quantity"`
	Order            int      `json:"order"`
	State            string   `json:"state"`
	IsComplete       bool     `json:"isComplete"`
	IsBeingCompleted bool     `json:"isBeingCompleted"`
}

type stage struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate *string   `json:"startDate"`
	EndDate   *string   `json:"endDate"`
	Requests  []request `json:"requests"`
}

type project struct {
	ProjectId    string  `json:"projectId"`
	OrgId        string  `json:"orgId"`
	BonitaCaseId *string `json:"bonitaCaseId"`
	Status       string  `json:"status"`
	Stages       []stage `json:"stages"`
}

type collaboration struct {
	Id                string   `json:"id"`
	ProjectId         string   `json:"projectId"`
	StageId           string   `json:"stageId"`
	RequestId         string   `json:"requestId"`
	OrgId             string   `json:"orgId"`
	CommittedAmount   *float64 `json:"committedAmount"`
	CommittedQuantity *float64 `json:"committedQuantity"`
	Status            string   `json:"status"`
}

type observation struct {
	Id          string  `json:"id"`
	ProjectId   string  `json:"projectId"`
	Content     string  `json:"content"`
	IsCompleted bool    `json:"isCompleted"`
	CompletedAt *string `json:"completedAt"`
}

func (c *client) registerProject(payload interface{}) (project, error) {
	var res project
	err := c.Post("/projects/registrarPedidoAyuda").Json(payload).Do(&res)
	return res, err
}

func (c *client) projectDetail(projectId string) (project, error) {
	var res project
	err := c.Get("/projects/detalle").Param("projectId", projectId).Do(&res)
	return res, err
}

func (c *client) stagesNeedingCollaboration(projectId string) ([]stage, error) {
	var res struct {
		Stages []stage `json:"stages"`
	}
	err := c.Get("/projects/etapasNecesitanColaboracion").Param("projectId", projectId).Do(&res)
	return res.Stages, err
}

func (c *client) propose(projectId, stageId, requestId string, amount float64) (collaboration, error) {
	var res collaboration
	err := c.Post("/projects/quieroColaborar").Json(map[string]interface{}{
		"projectId":       projectId,
		"stageId":         stageId,
		"helpRequestId":   requestId,
		"committedAmount": amount,
	}).Do(&res)
	return res, err
}

func (c *client) decide(projectId, requestId, collaborationId string, accepted bool) (request, error) {
	var res request
	err := c.Patch("/projects/aceptaColaboracion").Json(map[string]interface{}{
		"projectId":       projectId,
		"requestId":       requestId,
		"collaborationId": collaborationId,
		"accepted":        accepted,
	}).Do(&res)
	return res, err
}

func (c *client) complete(collaborationId string) (collaboration, error) {
	var res collaboration
	err := c.Post("/projects/terminoColaboracion").Json(map[string]string{"collaborationId": collaborationId}).Do(&res)
	return res, err
}

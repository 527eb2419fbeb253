package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HttpError is returned for any non 2xx response.
type HttpError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Content    string
}

func (e *HttpError) Error() string {
	if e.Content == "" {
		return fmt.Sprintf("%v request to endpoint %v returned status %d", e.Method, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%v request to endpoint %v returned status %d, content '%v'", e.Method, e.Endpoint, e.StatusCode, e.Content)
}

func IsStatus(err error, status int) bool {
	var herr *HttpError
	return errors.As(err, &herr) && herr.StatusCode == status
}

type httpRequest struct {
	client      *http.Client
	method      string
	baseUrl     string
	endpoint    string
	headers     map[string]string
	cookies     []*http.Cookie
	queryParams url.Values
	json        interface{}
	body        io.Reader
}

func newHttpRequest(client *http.Client, method, baseUrl, endpoint string) *httpRequest {
	return &httpRequest{
		client:   client,
		method:   method,
		baseUrl:  baseUrl,
		endpoint: endpoint,
	}
}

func (r *httpRequest) Header(key, value string) *httpRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpRequest) Cookie(cookie *http.Cookie) *httpRequest {
	r.cookies = append(r.cookies, cookie)
	return r
}

func (r *httpRequest) Json(data interface{}) *httpRequest {
	r.json = data
	return r
}

func (r *httpRequest) Form(values url.Values) *httpRequest {
	r.body = strings.NewReader(values.Encode())
	return r.Header("Content-Type", "application/x-www-form-urlencoded")
}

// Param appends a query parameter, repeated keys are kept.
func (r *httpRequest) Param(key, value string) *httpRequest {
	if r.queryParams == nil {
		r.queryParams = make(url.Values)
	}
	r.queryParams.Add(key, value)
	return r
}

func (r *httpRequest) Process(ctx context.Context, resultHandler func(*http.Response) error) error {
	fullEndpoint, err := url.JoinPath(r.baseUrl, r.endpoint)
	if err != nil {
		return fmt.Errorf("error formatting url for endpoint %v: %w", r.endpoint, err)
	}

	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
		r.Header("Content-Type", "application/json")
	}

	req, err := http.NewRequestWithContext(ctx, r.method, fullEndpoint, r.body)
	if err != nil {
		return fmt.Errorf("error creating %v request for endpoint %v: %w", r.method, r.endpoint, err)
	}

	for k, v := range r.headers {
		req.Header.Add(k, v)
	}

	for _, cookie := range r.cookies {
		req.AddCookie(cookie)
	}

	if r.queryParams != nil {
		req.URL.RawQuery = r.queryParams.Encode()
	}

	start := time.Now()

	res, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending %v request to endpoint %v: %w", r.method, r.endpoint, err)
	}
	defer res.Body.Close()

	slog.Debug("bonita client", "method", r.method, "endpoint", r.endpoint, "status", res.StatusCode, "duration", time.Since(start).String())

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		content, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HttpError{Method: r.method, Endpoint: r.endpoint, StatusCode: res.StatusCode, Content: string(content)}
	}

	if resultHandler != nil {
		err := resultHandler(res)
		if err != nil {
			return fmt.Errorf("error processing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

func decodeJson(res *http.Response, result interface{}) error {
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(result); err != nil {
		return fmt.Errorf("error parsing json response: %w", err)
	}
	return nil
}

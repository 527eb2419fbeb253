package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservations(t *testing.T) {
	env := setupTestEnv(t)
	users := env.roleClients(t)

	_, err := users.originating.registerProject(sampleProject("p1"))
	require.NoError(t, err)

	var obs observation
	err = users.council.Post("/projects/hacerObservacion").Json(map[string]string{
		"observationId": "o1",
		"projectId":     "p1",
		"content":       "  revisar presupuesto  ",
	}).Do(&obs)
	require.NoError(t, err)
	assert.Equal(t, "o1", obs.Id)
	assert.Equal(t, "revisar presupuesto", obs.Content)
	assert.False(t, obs.IsCompleted)
	assert.Nil(t, obs.CompletedAt)

	var generated observation
	err = users.council.Post("/projects/hacerObservacion").Json(map[string]string{
		"project_id": "p1",
		"content":    "falta cronograma",
	}).Do(&generated)
	require.NoError(t, err)
	assert.NotEmpty(t, generated.Id)

	var completed observation
	err = users.originating.Patch("/projects/completarObservacion").Json(map[string]string{"observationId": "o1"}).Do(&completed)
	require.NoError(t, err)
	assert.True(t, completed.IsCompleted)
	assert.NotNil(t, completed.CompletedAt)

	var res struct {
		Observations []observation `json:"observations"`
	}
	require.NoError(t, users.network.Get("/projects/observaciones").Param("projectId", "p1").Do(&res))
	require.Len(t, res.Observations, 2)
	assert.Equal(t, "o1", res.Observations[0].Id)
	assert.True(t, res.Observations[0].IsCompleted)
	assert.False(t, res.Observations[1].IsCompleted)
}

func TestObservationErrors(t *testing.T) {
	env := setupTestEnv(t)
	users := env.roleClients(t)

	_, err := users.originating.registerProject(sampleProject("p1"))
	require.NoError(t, err)

	err = users.council.Post("/projects/hacerObservacion").Json(map[string]string{"projectId": "p404", "content": "x"}).Do(nil)
	assert.Equal(t, http.StatusNotFound, statusCode(err))

	err = users.council.Post("/projects/hacerObservacion").Json(map[string]string{"projectId": "p1", "content": "   "}).Do(nil)
	assert.Equal(t, http.StatusBadRequest, statusCode(err))

	err = users.originating.Post("/projects/hacerObservacion").Json(map[string]string{"projectId": "p1", "content": "x"}).Do(nil)
	assert.Equal(t, http.StatusForbidden, statusCode(err))

	err = users.originating.Patch("/projects/completarObservacion").Json(map[string]string{"observationId": "o404"}).Do(nil)
	assert.Equal(t, http.StatusNotFound, statusCode(err))

	err = users.council.Patch("/projects/completarObservacion").Json(map[string]string{"observationId": "o404"}).Do(nil)
	assert.Equal(t, http.StatusForbidden, statusCode(err))

	err = users.council.Post("/projects/hacerObservacion").Json(map[string]string{"observationId": "o1", "projectId": "p1", "content": "x"}).Do(nil)
	require.NoError(t, err)
	err = users.council.Post("/projects/hacerObservacion").Json(map[string]string{"observationId": "o1", "projectId": "p1", "content": "y"}).Do(nil)
	assert.Equal(t, http.StatusConflict, statusCode(err))
}

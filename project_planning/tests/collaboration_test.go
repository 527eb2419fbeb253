package tests

import (
	"net/http"
	"sync"
	"testing"

	"github.com/Matgc04/dssd-2025/project_planning/lifecycle"
	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestState(t *testing.T, env *testEnv, projectId, requestId string) lifecycle.State {
	request, err := schema.GetRequest(projectId, requestId, env.db)
	require.NoError(t, err)
	return request.State
}

func TestProposeCollaboration(t *testing.T) {
	env := setupTestEnv(t)
	users := env.roleClients(t)

	_, err := users.originating.registerProject(sampleProject("p1"))
	require.NoError(t, err)

	var collab collaboration
	err = users.collaborating.Post("/projects/quieroColaborar").Json(map[string]interface{}{
		"project_id":           "p1",
		"stage_id":             "s1",
		"help_request_id":      "r1",
		"committedAmount":      "250.555",
		"committedCurrency":    "ARS",
		"notes":                "entrega en dos cuotas",
		"expectedDeliveryDate": "2025-05-01",
	}).Do(&collab)
	require.NoError(t, err)

	assert.NotEmpty(t, collab.Id)
	assert.Equal(t, "colab-1", collab.OrgId, "org defaults to the caller")
	assert.Equal(t, string(schema.CollaborationPending), collab.Status)
	require.NotNil(t, collab.CommittedAmount)
	assert.Equal(t, 250.56, *collab.CommittedAmount)
	assert.Equal(t, lifecycle.InProgress, requestState(t, env, "p1", "r1"))

	// A second proposal on the same request conflicts.
	_, err = users.network.propose("p1", "s1", "r1", 10)
	assert.Equal(t, http.StatusConflict, statusCode(err))
}

func TestProposeCollaborationErrors(t *testing.T) {
	env := setupTestEnv(t)
	users := env.roleClients(t)

	_, err := users.originating.registerProject(sampleProject("p1"))
	require.NoError(t, err)

	_, err = users.network.propose("p1", "s404", "r1", 10)
	assert.Equal(t, http.StatusNotFound, statusCode(err))

	_, err = users.network.propose("p1", "s1", "r404", 10)
	assert.Equal(t, http.StatusNotFound, statusCode(err))

	_, err = users.network.propose("p404", "s1", "r1", 10)
	assert.Equal(t, http.StatusNotFound, statusCode(err))

	err = users.network.Post("/projects/quieroColaborar").Json(map[string]interface{}{
		"projectId": "p1", "stageId": "s1", "helpRequestId": "r1",
	}).Do(nil)
	assert.Equal(t, http.StatusBadRequest, statusCode(err), "amount or quantity is required")

	err = users.network.Post("/projects/quieroColaborar").Json(map[string]interface{}{
		"projectId": "p1", "stageId": "s1", "helpRequestId": "r1", "committedAmount": 10, "committedCurrency": "PESOS",
	}).Do(nil)
	assert.Equal(t, http.StatusBadRequest, statusCode(err))

	err = users.network.Post("/projects/quieroColaborar").Json(map[string]interface{}{
		"projectId": "p1", "stageId": "s1", "committedAmount": 10,
	}).Do(nil)
	assert.Equal(t, http.StatusBadRequest, statusCode(err))

	assert.Equal(t, lifecycle.Open, requestState(t, env, "p1", "r1"))
}

func TestConcurrentProposalsOnlyOneWins(t *testing.T) {
	env := setupTestEnv(t)
	users := env.roleClients(t)

	_, err := users.originating.registerProject(sampleProject("p1"))
	require.NoError(t, err)

	const proposals = 8
	codes := make([]int, proposals)

	var wg sync.WaitGroup
	for i := 0; i < proposals; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := users.network.propose("p1", "s1", "r1", float64(i+1))
			codes[i] = statusCode(err)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, code := range codes {
		if code == http.StatusOK {
			succeeded++
		} else {
			assert.Equal(t, http.StatusConflict, code)
		}
	}
	assert.Equal(t, 1, succeeded)

	var count int64
	require.NoError(t, env.db.Model(&schema.Collaboration{}).Where("request_id = ?", "r1").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAcceptCollaboration(t *testing.T) {
	env := setupTestEnv(t)
	users := env.roleClients(t)

	_, err := users.originating.registerProject(sampleProject("p1"))
	require.NoError(t, err)

	collab, err := users.network.propose("p1", "s1", "r1", 10)
	require.NoError(t, err)

	req, err := users.originating.decide("p1", "r1", collab.Id, true)
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.InProgress), req.State)
	assert.True(t, req.IsBeingCompleted)

	stored, err := schema.GetCollaboration(collab.Id, env.db)
	require.NoError(t, err)
	assert.Equal(t, schema.CollaborationAccepted, stored.Status)

	// Only pending collaborations can be decided.
	_, err = users.bonita.decide("p1", "r1", collab.Id, false)
	assert.Equal(t, http.StatusConflict, statusCode(err))
}

func TestRejectCollaborationReopensRequest(t *testing.T) {
	env := setupTestEnv(t)
	users := env.roleClients(t)

	_, err := users.originating.registerProject(sampleProject("p1"))
	require.NoError(t, err)

	collab, err := users.network.propose("p1", "s1", "r1", 10)
	require.NoError(t, err)

	err = users.originating.Patch("/projects/aceptaColaboracion").Json(map[string]interface{}{
		"projectId": "p1", "requestId": "r1", "collaborationId": collab.Id, "accepted": "no",
	}).Do(nil)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Open, requestState(t, env, "p1", "r1"))

	stored, err := schema.GetCollaboration(collab.Id, env.db)
	require.NoError(t, err)
	assert.Equal(t, schema.CollaborationRejected, stored.Status)

	_, err = users.originating.complete(collab.Id)
	assert.Equal(t, http.StatusConflict, statusCode(err), "rejected collaborations cannot be completed")

	_, err = users.collaborating.propose("p1", "s1", "r1", 20)
	assert.NoError(t, err, "a rejected request accepts new proposals")
}

func TestDecideCollaborationErrors(t *testing.T) {
	env := setupTestEnv(t)
	users := env.roleClients(t)

	_, err := users.originating.registerProject(sampleProject("p1"))
	require.NoError(t, err)

	collab, err := users.network.propose("p1", "s1", "r1", 10)
	require.NoError(t, err)

	_, err = users.originating.decide("p404", "r1", collab.Id, true)
	assert.Equal(t, http.StatusNotFound, statusCode(err))

	_, err = users.originating.decide("p1", "r404", collab.Id, true)
	assert.Equal(t, http.StatusNotFound, statusCode(err))

	_, err = users.originating.decide("p1", "r2", collab.Id, true)
	assert.Equal(t, http.StatusNotFound, statusCode(err), "collaboration belongs to another request")

	_, err = users.originating.decide("p1", "r1", "c404", true)
	assert.Equal(t, http.StatusNotFound, statusCode(err))

	err = users.originating.Patch("/projects/aceptaColaboracion").Json(map[string]interface{}{
		"projectId": "p1", "requestId": "r1", "collaborationId": collab.Id,
	}).Do(nil)
	assert.Equal(t, http.StatusBadRequest, statusCode(err))
}

func TestCompleteCollaboration(t *testing.T) {
	env := setupTestEnv(t)
	users := env.roleClients(t)

	_, err := users.originating.registerProject(sampleProject("p1"))
	require.NoError(t, err)

	collab, err := users.network.propose("p1", "s1", "r1", 10)
	require.NoError(t, err)

	completed, err := users.network.complete(collab.Id)
	require.NoError(t, err)
	assert.Equal(t, collab.Id, completed.Id)
	assert.Equal(t, string(schema.CollaborationPending), completed.Status, "the collaboration row is not modified")
	assert.Equal(t, lifecycle.Done, requestState(t, env, "p1", "r1"))

	_, err = users.network.complete("c404")
	assert.Equal(t, http.StatusNotFound, statusCode(err))
}

func TestDoneRequestRejectsEveryEvent(t *testing.T) {
	env := setupTestEnv(t)
	users := env.roleClients(t)

	_, err := users.originating.registerProject(sampleProject("p1"))
	require.NoError(t, err)

	collab, err := users.network.propose("p1", "s1", "r1", 10)
	require.NoError(t, err)
	_, err = users.bonita.complete(collab.Id)
	require.NoError(t, err)

	_, err = users.network.propose("p1", "s1", "r1", 10)
	assert.Equal(t, http.StatusConflict, statusCode(err))

	_, err = users.originating.decide("p1", "r1", collab.Id, true)
	assert.Equal(t, http.StatusConflict, statusCode(err))

	_, err = users.originating.decide("p1", "r1", collab.Id, false)
	assert.Equal(t, http.StatusConflict, statusCode(err))

	_, err = users.originating.complete(collab.Id)
	assert.Equal(t, http.StatusConflict, statusCode(err))

	assert.Equal(t, lifecycle.Done, requestState(t, env, "p1", "r1"))
}

func TestListCollaborations(t *testing.T) {
	env := setupTestEnv(t)
	users := env.roleClients(t)

	_, err := users.originating.registerProject(sampleProject("p1"))
	require.NoError(t, err)

	_, err = users.network.propose("p1", "s1", "r1", 10)
	require.NoError(t, err)
	_, err = users.collaborating.propose("p1", "s1", "r2", 3)
	require.NoError(t, err)

	var res struct {
		Collaborations []collaboration `json:"collaborations"`
	}
	require.NoError(t, users.originating.Get("/projects/colaboraciones").Param("projectId", "p1").Do(&res))
	assert.Len(t, res.Collaborations, 2)

	require.NoError(t, users.originating.Get("/projects/colaboraciones").Param("projectId", "p1").Param("requestId", "r2").Do(&res))
	require.Len(t, res.Collaborations, 1)
	assert.Equal(t, "colab-1", res.Collaborations[0].OrgId)
}

package tests

import (
	"net/http"
	"testing"

	"github.com/Matgc04/dssd-2025/client/bonitatest"
	"github.com/Matgc04/dssd-2025/project_planning/lifecycle"
	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartCase(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newUser(t, "org-1", schema.RoleOriginating)

	var res struct {
		CaseId string `json:"caseId"`
	}
	err := c.Post("/projects/").Json(map[string]interface{}{"createdByOrgId": "org-1", "requests": 3}).Do(&res)
	require.NoError(t, err)
	require.NotEmpty(t, res.CaseId)

	id, ok := env.bonita.Variable(res.CaseId, "id")
	require.True(t, ok)
	assert.Equal(t, "org-1", id.Value)

	total, _ := env.bonita.Variable(res.CaseId, "pedidosTotales")
	assert.EqualValues(t, 3, total.Value)
	current, _ := env.bonita.Variable(res.CaseId, "pedidosActuales")
	assert.EqualValues(t, 0, current.Value)

	err = c.Post("/projects/").Json(map[string]interface{}{"requests": 3}).Do(nil)
	assert.Equal(t, http.StatusBadRequest, statusCode(err))

	err = c.Post("/projects/").Json(map[string]interface{}{"createdByOrgId": "org-1"}).Do(nil)
	assert.Equal(t, http.StatusBadRequest, statusCode(err))
}

func TestStartCaseEngineFailure(t *testing.T) {
	env := setupTestEnvWithBonita(t, "wrong-password")
	c := env.newUser(t, "org-1", schema.RoleOriginating)

	err := c.Post("/projects/").Json(map[string]interface{}{"createdByOrgId": "org-1", "requests": 1}).Do(nil)
	assert.Equal(t, http.StatusBadGateway, statusCode(err))
	assert.Empty(t, env.bonita.CaseIds())
}

func registerWithCase(t *testing.T, env *testEnv, c client, projectId string) string {
	caseId := env.bonita.AddCase()
	payload := sampleProject(projectId)
	payload["bonitaCaseId"] = caseId
	_, err := c.registerProject(payload)
	require.NoError(t, err)
	return caseId
}

func TestExecuteProject(t *testing.T) {
	env := setupTestEnv(t)
	users := env.roleClients(t)

	caseId := registerWithCase(t, env, users.originating, "p1")
	task := env.bonita.AddTask(caseId, "Ejecutar proyecto")

	var p project
	err := users.originating.Post("/projects/ejecutarProyecto").Json(map[string]interface{}{
		"projectId": "p1",
		"taskName":  "Ejecutar proyecto",
		"contract":  map[string]interface{}{"aprobado": true},
		"variables": []map[string]interface{}{{"name": "estado", "value": "ejecutando", "type": "String"}},
	}).Do(&p)
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.Executing), p.Status)

	executed, _ := env.bonita.Task(task.Id)
	assert.True(t, executed.Executed)
	assert.Equal(t, bonitatest.SessionUser, executed.AssignedId)
	assert.Equal(t, true, executed.Contract["aprobado"])

	v, ok := env.bonita.Variable(caseId, "estado")
	require.True(t, ok)
	assert.Equal(t, "ejecutando", v.Value)
	assert.Equal(t, "java.lang.String", v.Type)

	err = users.originating.Post("/projects/ejecutarProyecto").Json(map[string]string{"projectId": "p1"}).Do(nil)
	assert.Equal(t, http.StatusConflict, statusCode(err))
}

func TestExecuteProjectErrors(t *testing.T) {
	env := setupTestEnv(t)
	users := env.roleClients(t)

	registerWithCase(t, env, users.originating, "p1")

	// The case has no ready task, so the project stays pending.
	err := users.originating.Post("/projects/ejecutarProyecto").Json(map[string]string{"projectId": "p1"}).Do(nil)
	assert.Equal(t, http.StatusConflict, statusCode(err))

	stored, err := schema.GetProject("p1", env.db, false)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Pending, stored.Status)

	other := env.newUser(t, "org-2", schema.RoleOriginating)
	err = other.Post("/projects/ejecutarProyecto").Json(map[string]string{"projectId": "p1"}).Do(nil)
	assert.Equal(t, http.StatusForbidden, statusCode(err))

	err = users.originating.Post("/projects/ejecutarProyecto").Json(map[string]string{"projectId": "p404"}).Do(nil)
	assert.Equal(t, http.StatusNotFound, statusCode(err))

	err = users.originating.Post("/projects/ejecutarProyecto").Json(map[string]string{}).Do(nil)
	assert.Equal(t, http.StatusBadRequest, statusCode(err))
}

func TestFinishProject(t *testing.T) {
	env := setupTestEnv(t)
	users := env.roleClients(t)

	_, err := users.originating.registerProject(sampleProject("p1"))
	require.NoError(t, err)

	finish := func() error {
		return users.originating.Post("/projects/finalizarProyecto").Json(map[string]string{"projectId": "p1"}).Do(nil)
	}

	// Projects without a case only change status locally.
	assert.Equal(t, http.StatusConflict, statusCode(finish()), "pending projects cannot be finished")
	require.NoError(t, users.originating.Post("/projects/ejecutarProyecto").Json(map[string]string{"projectId": "p1"}).Do(nil))

	assert.Equal(t, http.StatusConflict, statusCode(finish()), "requests are still open")

	for _, requestId := range []string{"r1", "r2"} {
		collab, err := users.network.propose("p1", "s1", requestId, 1)
		require.NoError(t, err)
		_, err = users.originating.complete(collab.Id)
		require.NoError(t, err)
	}

	require.NoError(t, finish())

	p, err := users.originating.projectDetail("p1")
	require.NoError(t, err)
	assert.Equal(t, string(lifecycle.Completed), p.Status)

	assert.Equal(t, http.StatusConflict, statusCode(finish()))

	var res struct {
		Projects []project `json:"projects"`
	}
	require.NoError(t, users.network.Get("/projects/pendientesNecesitanColaboracion").Do(&res))
	assert.Empty(t, res.Projects)
}

func TestExecuteProjectEngineFailure(t *testing.T) {
	env := setupTestEnvWithBonita(t, "wrong-password")
	org := env.newUser(t, "org-1", schema.RoleOriginating)

	caseId := registerWithCase(t, env, org, "p1")
	env.bonita.AddTask(caseId, "Ejecutar proyecto")

	err := org.Post("/projects/ejecutarProyecto").Json(map[string]string{"projectId": "p1"}).Do(nil)
	assert.Equal(t, http.StatusBadGateway, statusCode(err))
	assert.Equal(t, 0, env.bonita.Logins())
}

func TestRunningProjects(t *testing.T) {
	env := setupTestEnv(t)
	users := env.roleClients(t)

	for _, id := range []string{"p1", "p2"} {
		_, err := users.originating.registerProject(sampleProject(id))
		require.NoError(t, err)
	}
	require.NoError(t, users.originating.Post("/projects/ejecutarProyecto").Json(map[string]string{"projectId": "p2"}).Do(nil))

	var res struct {
		Projects []project `json:"projects"`
	}
	require.NoError(t, users.council.Get("/projects/enEjecucion").Do(&res))
	require.Len(t, res.Projects, 1)
	assert.Equal(t, "p2", res.Projects[0].ProjectId)
	assert.Equal(t, string(lifecycle.Executing), res.Projects[0].Status)

	err := users.originating.Get("/projects/enEjecucion").Do(nil)
	assert.Equal(t, http.StatusForbidden, statusCode(err))
}

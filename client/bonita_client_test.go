package client

import (
	"context"
	"net/http"
	"testing"

	"github.com/Matgc04/dssd-2025/client/bonitatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBonita(t *testing.T) (*BonitaClient, *bonitatest.Fake) {
	fake := bonitatest.New()
	t.Cleanup(fake.Close)
	return NewBonitaClient(fake.URL(), bonitatest.Username, bonitatest.Password), fake
}

func TestStartCaseAndVariables(t *testing.T) {
	bonita, fake := setupBonita(t)
	ctx := context.Background()

	caseId, err := bonita.StartCase(ctx, bonitatest.ProcessName, []CaseVariable{
		{Name: "id", Value: "org-1", Type: "String"},
		{Name: "pedidosTotales", Value: 3, Type: "Integer"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, caseId)

	v, ok := fake.Variable(caseId, "id")
	require.True(t, ok)
	assert.Equal(t, "org-1", v.Value)

	require.NoError(t, bonita.SetVariable(ctx, caseId, "pedidosActuales", 2, "Integer"))

	variable, err := bonita.GetVariable(ctx, caseId, "pedidosActuales")
	require.NoError(t, err)
	assert.Equal(t, "java.lang.Integer", variable.Type)
	assert.EqualValues(t, 2, variable.Value)

	assert.Equal(t, 1, fake.Logins(), "session should be reused across calls")
}

func TestUnknownProcess(t *testing.T) {
	bonita, _ := setupBonita(t)

	_, err := bonita.StartCase(context.Background(), "Missing", nil)
	assert.ErrorIs(t, err, ErrProcessNotFound)
}

func TestReloginAfterExpiredSession(t *testing.T) {
	bonita, fake := setupBonita(t)
	ctx := context.Background()

	caseId := fake.AddCase()
	require.NoError(t, bonita.SetVariable(ctx, caseId, "estado", "ok", "String"))
	assert.Equal(t, 1, fake.Logins())

	fake.ExpireSession()

	require.NoError(t, bonita.SetVariable(ctx, caseId, "estado", "again", "String"))
	assert.Equal(t, 2, fake.Logins())

	v, _ := fake.Variable(caseId, "estado")
	assert.Equal(t, "again", v.Value)
}

func TestBadCredentials(t *testing.T) {
	fake := bonitatest.New()
	defer fake.Close()

	bonita := NewBonitaClient(fake.URL(), bonitatest.Username, "wrong")
	_, err := bonita.EnabledProcessId(context.Background(), bonitatest.ProcessName)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
}

func TestAdvanceCase(t *testing.T) {
	bonita, fake := setupBonita(t)
	ctx := context.Background()

	caseId := fake.AddCase()
	fake.AddTask(caseId, "Revisar proyecto")
	target := fake.AddTask(caseId, "Ejecutar proyecto")

	task, err := bonita.AdvanceCase(ctx, caseId, "Ejecutar proyecto", map[string]interface{}{"aprobado": true})
	require.NoError(t, err)
	assert.Equal(t, target.Id, task.Id)

	executed, _ := fake.Task(target.Id)
	assert.True(t, executed.Executed)
	assert.Equal(t, bonitatest.SessionUser, executed.AssignedId)
	assert.Equal(t, true, executed.Contract["aprobado"])

	_, err = bonita.AdvanceCase(ctx, fake.AddCase(), "", nil)
	assert.ErrorIs(t, err, ErrNoReadyTask)
}

func TestJavaType(t *testing.T) {
	assert.Equal(t, "java.lang.String", javaType("String"))
	assert.Equal(t, "java.lang.Long", javaType("java.lang.Long"))
	assert.Equal(t, "", javaType(""))
}

package tests

import (
	"net/http"
	"testing"

	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginWrongPassword(t *testing.T) {
	env := setupTestEnv(t)

	c := env.newClient()
	err := c.login(adminUsername, "not-the-password")
	assert.Equal(t, http.StatusUnauthorized, statusCode(err))
	assert.Empty(t, c.authToken)

	err = c.login("nobody", "whatever")
	assert.Equal(t, http.StatusUnauthorized, statusCode(err))

	err = c.Post("/auth/login").Json(map[string]string{"username": adminUsername}).Do(nil)
	assert.Equal(t, http.StatusBadRequest, statusCode(err))
}

func TestRoleMismatchIsForbidden(t *testing.T) {
	env := setupTestEnv(t)
	users := env.roleClients(t)

	_, err := users.collaborating.registerProject(sampleProject("p1"))
	assert.Equal(t, http.StatusForbidden, statusCode(err))

	_, err = users.originating.propose("p1", "s1", "r1", 10)
	assert.Equal(t, http.StatusForbidden, statusCode(err))

	err = users.originating.Get("/reports/request-summary").Do(nil)
	assert.Equal(t, http.StatusForbidden, statusCode(err))

	anonymous := env.newClient()
	_, err = anonymous.registerProject(sampleProject("p1"))
	assert.Equal(t, http.StatusUnauthorized, statusCode(err))

	anonymous.authToken = "not-a-jwt"
	_, err = anonymous.registerProject(sampleProject("p1"))
	assert.Equal(t, http.StatusUnauthorized, statusCode(err))
}

func TestCreateUser(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.adminClient(t)

	created, err := admin.createUser("ong-a", "ONG_ORIGINANTE")
	require.NoError(t, err)
	assert.Equal(t, string(schema.RoleOriginating), created.Role)
	assert.False(t, created.IsSysadmin)

	_, err = admin.createUser("ong-a", "ong originante")
	assert.Equal(t, http.StatusConflict, statusCode(err))

	_, err = admin.createUser("ong-b", "astronauta")
	assert.Equal(t, http.StatusBadRequest, statusCode(err))

	err = admin.Post("/auth/users").Json(map[string]string{"username": "ong-c"}).Do(nil)
	assert.Equal(t, http.StatusBadRequest, statusCode(err))

	member := env.newUser(t, "ong-d", schema.RoleCollaborating)
	_, err = member.createUser("ong-e", "red ongs")
	assert.Equal(t, http.StatusUnauthorized, statusCode(err))
}

func TestMeAndLogout(t *testing.T) {
	env := setupTestEnv(t)
	c := env.newUser(t, "ong-a", schema.RoleNetwork)

	var me struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	require.NoError(t, c.Get("/auth/me").Do(&me))
	assert.Equal(t, "ong-a", me.Username)
	assert.Equal(t, string(schema.RoleNetwork), me.Role)

	require.NoError(t, c.Post("/auth/logout").Do(nil))

	err := c.Get("/auth/me").Do(nil)
	assert.Equal(t, http.StatusUnauthorized, statusCode(err))
}

func TestSoftDeleteAndRestoreUser(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.adminClient(t)

	created, err := admin.createUser("ong-a", "red ongs")
	require.NoError(t, err)

	member := env.newClient()
	require.NoError(t, member.login("ong-a", "ong-a_password"))

	require.NoError(t, admin.Delete("/auth/users/"+created.Id).Do(nil))

	// Existing tokens stop working once the user is deleted.
	err = member.Get("/auth/me").Do(nil)
	assert.Equal(t, http.StatusUnauthorized, statusCode(err))

	fresh := env.newClient()
	err = fresh.login("ong-a", "ong-a_password")
	assert.Equal(t, http.StatusUnauthorized, statusCode(err))

	var users struct {
		Users []user `json:"users"`
	}
	require.NoError(t, admin.Get("/auth/users").Do(&users))
	for _, u := range users.Users {
		assert.NotEqual(t, "ong-a", u.Username)
	}

	require.NoError(t, admin.Post("/auth/users/"+created.Id+"/restore").Do(nil))
	restored := env.newClient()
	assert.NoError(t, restored.login("ong-a", "ong-a_password"))

	err = admin.Delete("/auth/users/not-a-uuid").Do(nil)
	assert.Equal(t, http.StatusBadRequest, statusCode(err))

	err = admin.Delete("/auth/users/00000000-0000-0000-0000-000000000001").Do(nil)
	assert.Equal(t, http.StatusNotFound, statusCode(err))
}

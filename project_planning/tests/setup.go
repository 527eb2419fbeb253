package tests

import (
	"bytes"
	"testing"

	bonitaclient "github.com/Matgc04/dssd-2025/client"
	"github.com/Matgc04/dssd-2025/client/bonitatest"
	"github.com/Matgc04/dssd-2025/project_planning/auth"
	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/Matgc04/dssd-2025/project_planning/services"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type testEnv struct {
	api    chi.Router
	db     *gorm.DB
	bonita *bonitatest.Fake
}

const (
	adminUsername = "admin123"
	adminEmail    = "admin123@mail.com"
	adminPassword = "admin_password123"
)

func setupTestEnv(t *testing.T) *testEnv {
	return setupTestEnvWithBonita(t, bonitatest.Password)
}

// setupTestEnvWithBonita lets tests log in to the fake engine with other
// credentials to exercise engine failures.
func setupTestEnvWithBonita(t *testing.T, bonitaPassword string) *testEnv {
	// OpenDb limits sqlite to one connection, every connection to
	// file::memory: would otherwise open a separate database.
	db, err := schema.OpenDb("file::memory:")
	if err != nil {
		t.Fatal(err)
	}
	if err := schema.Migrate(db); err != nil {
		t.Fatal(err)
	}

	fake := bonitatest.New()
	t.Cleanup(fake.Close)

	userAuth, err := auth.NewBasicIdentityProvider(
		db,
		auth.NewMemoryDenylist(),
		auth.NewAuditLogger(new(bytes.Buffer)),
		auth.BasicProviderArgs{
			Secret:        []byte("290zcv02ai249"),
			AdminUsername: adminUsername,
			AdminEmail:    adminEmail,
			AdminPassword: adminPassword,
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	planning := services.NewProjectPlanning(
		db,
		userAuth,
		bonitaclient.NewBonitaClient(fake.URL(), bonitatest.Username, bonitaPassword),
		bonitatest.ProcessName,
	)

	return &testEnv{api: planning.Routes(), db: db, bonita: fake}
}

func (t *testEnv) newClient() client {
	return client{api: t.api}
}

func (t *testEnv) adminClient(tb testing.TB) client {
	c := t.newClient()
	if err := c.login(adminUsername, adminPassword); err != nil {
		tb.Fatal(err)
	}
	return c
}

// newUser creates a user with the given role through the admin api and
// returns a client logged in as that user.
func (t *testEnv) newUser(tb testing.TB, username string, role schema.Role) client {
	admin := t.adminClient(tb)
	if _, err := admin.createUser(username, string(role)); err != nil {
		tb.Fatal(err)
	}

	c := t.newClient()
	if err := c.login(username, username+"_password"); err != nil {
		tb.Fatal(err)
	}
	return c
}

// roleClients holds one logged in client per role used by the project flows.
type roleClients struct {
	originating   client
	collaborating client
	network       client
	council       client
	bonita        client
}

func (t *testEnv) roleClients(tb testing.TB) roleClients {
	return roleClients{
		originating:   t.newUser(tb, "org-1", schema.RoleOriginating),
		collaborating: t.newUser(tb, "colab-1", schema.RoleCollaborating),
		network:       t.newUser(tb, "red-1", schema.RoleNetwork),
		council:       t.newUser(tb, "consejo-1", schema.RoleCouncil),
		bonita:        t.newUser(tb, "bonita-1", schema.RoleBonita),
	}
}

// sampleProject is a registration payload with two stages, one of which only
// has incomplete requests and is dropped.
func sampleProject(projectId string) map[string]interface{} {
	return map[string]interface{}{
		"projectId": projectId,
		"orgId":     "org-1",
		"stages": []interface{}{
			map[string]interface{}{
				"id":        "s1",
				"name":      "Construccion",
				"startDate": "2025-03-01",
				"endDate":   "2025-06-30T00:00:00Z",
				"requests": []interface{}{
					map[string]interface{}{"id": "r1", "type": "economic", "description": "fondos", "amount": 1500.5, "currency": "ARS"},
					map[string]interface{}{"id": "r2", "type": "materials", "description": "ladrillos", "quantity": 200, "unit": "u", "order": 1},
					map[string]interface{}{"description": "missing type"},
				},
			},
			map[string]interface{}{
				"id":   "s2",
				"name": "Sin pedidos",
				"requests": []interface{}{
					map[string]interface{}{"id": "r9", "description": "missing type"},
				},
			},
		},
	}
}

func findRequest(p project, requestId string) (request, bool) {
	for _, s := range p.Stages {
		for _, r := range s.Requests {
			if r.Id == requestId {
				return r, true
			}
		}
	}
	return request{}, false
}

package services

import (
	"context"

	"github.com/Matgc04/dssd-2025/client"
)

// Workflow is the part of the Bonita client used by the services. Handlers
// only depend on this interface so that tests can run against a fake engine.
type Workflow interface {
	StartCase(ctx context.Context, processName string, variables []client.CaseVariable) (string, error)

	SetVariable(ctx context.Context, caseId, name string, value interface{}, varType string) error

	AdvanceCase(ctx context.Context, caseId, taskName string, contract map[string]interface{}) (client.HumanTask, error)
}

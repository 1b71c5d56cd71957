package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"calctree/infrastructure/config"
	"calctree/infrastructure/di"
	"calctree/interfaces/invoke"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

// harness shares one in-memory container across every command run.
type harness struct {
	t          *testing.T
	dispatcher *invoke.Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		Environment:      "test",
		StoreBackend:     config.BackendMemory,
		LogLevel:         "error",
		MetricsNamespace: "CalcTree/test",
	}
	container, cleanup, err := di.InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	return &harness{
		t:          t,
		dispatcher: invoke.NewDispatcher(container.CommandBus, container.QueryBus, container.Logger),
	}
}

func (h *harness) run(args ...string) (envelope, error) {
	h.t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out, func(ctx context.Context, opts globalOptions) (*invoke.Dispatcher, func(), error) {
		return h.dispatcher, func() {}, nil
	})
	root.SetArgs(append([]string{"--user", "tester"}, args...))
	err := root.Execute()

	var env envelope
	require.NoError(h.t, json.Unmarshal(out.Bytes(), &env), out.String())
	return env, err
}

func TestCLI_RecalculatesSubtree(t *testing.T) {
	h := newHarness(t)

	// Arrange
	created, err := h.run("discussion", "create", "--title", "Budget", "--start", "10",
		"--root-kind", "add", "--root-operand", "5", "--root-title", "plus five")
	require.NoError(t, err)
	require.True(t, created.Success)
	discussion := created.Data["discussion"].(map[string]interface{})
	root := created.Data["rootOperation"].(map[string]interface{})
	assert.Equal(t, "tester", discussion["createdBy"])
	assert.Equal(t, "15", root["afterValue"])

	child, err := h.run("op", "create", "--parent", root["id"].(string),
		"--kind", "multiply", "--operand", "2", "--title", "double")
	require.NoError(t, err)
	assert.Equal(t, "30", child.Data["afterValue"])

	// Act
	updated, err := h.run("op", "update", root["id"].(string), "--operand", "10")

	// Assert
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated.Data["recalculatedCount"])
	assert.Equal(t, "20", updated.Data["operation"].(map[string]interface{})["afterValue"])

	fetched, err := h.run("op", "get", child.Data["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "20", fetched.Data["beforeValue"])
	assert.Equal(t, "40", fetched.Data["afterValue"])

	summary, err := h.run("discussion", "summary", discussion["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{root["id"].(string): "20"}, summary.Data["roots"])
}

func TestCLI_FailureEnvelope(t *testing.T) {
	h := newHarness(t)

	created, err := h.run("discussion", "create", "--title", "Closed", "--start", "1")
	require.NoError(t, err)
	id := created.Data["discussion"].(map[string]interface{})["id"].(string)

	_, err = h.run("discussion", "end", id)
	require.NoError(t, err)

	env, err := h.run("op", "create", "--discussion", id, "--kind", "add", "--operand", "1", "--title", "late")

	require.Error(t, err)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DISCUSSION_ENDED", env.Error.Code)
}

func TestCLI_InvokeRawAction(t *testing.T) {
	h := newHarness(t)

	env, err := h.run("invoke", invoke.ActionListDiscussions, `{"pageSize":5}`)

	require.NoError(t, err)
	assert.True(t, env.Success)
	pagination := env.Data["pagination"].(map[string]interface{})
	assert.EqualValues(t, 5, pagination["page_size"])
}

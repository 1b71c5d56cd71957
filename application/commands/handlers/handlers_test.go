package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"calctree/application/commands"
	"calctree/application/commands/bus"
	"calctree/application/dto"
	"calctree/application/ports"
	"calctree/application/services"
	"calctree/domain/config"
	"calctree/domain/core/valueobjects"
	"calctree/domain/events"
	"calctree/infrastructure/persistence/memory"
	"calctree/pkg/common"
	pkgerrors "calctree/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	return m.Called(ctx, evts).Error(0)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) (interface{}, bool) {
	args := m.Called(ctx, key)
	return args.Get(0), args.Bool(1)
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl int) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockCache) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type recorder struct {
	calls []int
}

func (r *recorder) RecordRecalculation(ctx context.Context, discussionID string, descendants int) {
	r.calls = append(r.calls, descendants)
}

type handlerFixture struct {
	store     *memory.Store
	cfg       *config.DomainConfig
	publisher *mockPublisher
	cache     *mockCache
	recorder  *recorder
	bus       *bus.CommandBus
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := &handlerFixture{
		store:     memory.NewStore(),
		cfg:       config.DefaultDomainConfig(),
		publisher: new(mockPublisher),
		cache:     new(mockCache),
		recorder:  &recorder{},
	}
	logger := zap.NewNop()
	recalc := services.NewRecalculationService(f.store, f.cfg, logger)
	notifier := NewNotifier(f.publisher, f.cache, logger)

	f.bus = bus.NewCommandBus()
	require.NoError(t, f.bus.Register(commands.CreateDiscussionCommand{}, NewCreateDiscussionHandler(f.store, recalc, notifier, f.cfg, logger)))
	require.NoError(t, f.bus.Register(commands.UpdateDiscussionCommand{}, NewUpdateDiscussionHandler(f.store, notifier, f.cfg)))
	require.NoError(t, f.bus.Register(commands.EndDiscussionCommand{}, NewEndDiscussionHandler(f.store, notifier)))
	require.NoError(t, f.bus.Register(commands.DeleteDiscussionCommand{}, NewDeleteDiscussionHandler(f.store, notifier, logger)))
	require.NoError(t, f.bus.Register(commands.CreateOperationCommand{}, NewCreateOperationHandler(recalc, notifier)))
	require.NoError(t, f.bus.Register(commands.UpdateOperationCommand{}, NewUpdateOperationHandler(recalc, notifier, f.recorder)))
	return f
}

// quiet accepts every side effect without asserting on it.
func (f *handlerFixture) quiet() {
	f.publisher.On("PublishBatch", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.cache.On("Delete", mock.Anything, mock.Anything).Return(nil).Maybe()
}

func dec(s string) *valueobjects.Decimal {
	d := valueobjects.MustDecimal(s)
	return &d
}

func str(s string) *string {
	return &s
}

func eventTypes(evts []events.DomainEvent) []string {
	out := make([]string, len(evts))
	for i, e := range evts {
		out[i] = e.GetEventType()
	}
	return out
}

func (f *handlerFixture) createDiscussion(t *testing.T, start string, root *commands.RootOperationInput) *dto.CreateDiscussionResult {
	t.Helper()
	res, err := f.bus.Send(context.Background(), commands.CreateDiscussionCommand{
		Title:         "Scenario",
		StartingValue: dec(start),
		CreatedBy:     "alice",
		RootOperation: root,
	})
	require.NoError(t, err)
	return res.(*dto.CreateDiscussionResult)
}

func (f *handlerFixture) createOperation(t *testing.T, cmd commands.CreateOperationCommand) *dto.OperationView {
	t.Helper()
	if cmd.CreatedBy == "" {
		cmd.CreatedBy = "alice"
	}
	if cmd.Title == "" {
		cmd.Title = "step"
	}
	res, err := f.bus.Send(context.Background(), cmd)
	require.NoError(t, err)
	return res.(*dto.OperationView)
}

func TestCreateDiscussion_WithRootOperation(t *testing.T) {
	// Arrange
	f := newHandlerFixture(t)
	var published []events.DomainEvent
	f.publisher.On("PublishBatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(1).([]events.DomainEvent) }).
		Return(nil).Once()
	f.cache.On("Delete", mock.Anything, mock.Anything).Return(nil).Once()

	// Act
	res := f.createDiscussion(t, "100", &commands.RootOperationInput{
		Kind:    "subtract",
		Operand: dec("25.5"),
		Title:   "costs",
	})

	// Assert
	require.NotNil(t, res.RootOperation)
	assert.Equal(t, "74.5", res.RootOperation.AfterValue.String())
	assert.Equal(t, "100", res.RootOperation.BeforeValue.String())
	assert.Equal(t, 1, res.RootOperation.Depth)
	assert.Equal(t, "100 - 25.5 = 74.5", res.RootOperation.Expression)
	assert.Equal(t, res.Discussion.ID, res.RootOperation.DiscussionID)
	assert.Equal(t, []string{events.TypeDiscussionCreated, events.TypeOperationCreated}, eventTypes(published))
	f.cache.AssertCalled(t, "Delete", mock.Anything, ports.RootNodesCacheKey(res.Discussion.ID))
	f.publisher.AssertExpectations(t)
}

func TestCreateDiscussion_InvalidRootRollsBack(t *testing.T) {
	f := newHandlerFixture(t)

	_, err := f.bus.Send(context.Background(), commands.CreateDiscussionCommand{
		Title:         "Broken",
		StartingValue: dec("1"),
		CreatedBy:     "alice",
		RootOperation: &commands.RootOperationInput{Kind: "divide", Operand: dec("0"), Title: "oops"},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrDivisionByZero))
	require.NoError(t, f.store.View(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		_, total, err := tx.Discussions().List(ctx, ports.DiscussionFilter{})
		assert.Zero(t, total)
		return err
	}))
	f.publisher.AssertNotCalled(t, "PublishBatch", mock.Anything, mock.Anything)
}

func TestUpdateOperation_PublishesRecalculation(t *testing.T) {
	// Arrange
	f := newHandlerFixture(t)
	f.quiet()
	created := f.createDiscussion(t, "10", &commands.RootOperationInput{Kind: "add", Operand: dec("5"), Title: "root"})
	root := created.RootOperation
	child := f.createOperation(t, commands.CreateOperationCommand{ParentID: root.ID, Kind: "multiply", Operand: dec("2")})
	f.createOperation(t, commands.CreateOperationCommand{ParentID: child.ID, Kind: "subtract", Operand: dec("1")})

	var published []events.DomainEvent
	f.publisher.ExpectedCalls = nil
	f.publisher.On("PublishBatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(1).([]events.DomainEvent) }).
		Return(nil).Once()

	// Act
	res, err := f.bus.Send(context.Background(), commands.UpdateOperationCommand{
		OperationID: root.ID,
		Operand:     dec("10"),
	})

	// Assert
	require.NoError(t, err)
	result := res.(*dto.UpdateOperationResult)
	assert.Equal(t, 2, result.RecalculatedCount)
	assert.Equal(t, "20", result.Operation.AfterValue.String())
	assert.Equal(t, []string{events.TypeOperationUpdated, events.TypeTreeRecalculated}, eventTypes(published))
	assert.Equal(t, []int{2}, f.recorder.calls)
}

func TestUpdateOperation_LeafSkipsTreeRecalculated(t *testing.T) {
	f := newHandlerFixture(t)
	f.quiet()
	created := f.createDiscussion(t, "3", &commands.RootOperationInput{Kind: "add", Operand: dec("1"), Title: "root"})

	var published []events.DomainEvent
	f.publisher.ExpectedCalls = nil
	f.publisher.On("PublishBatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(1).([]events.DomainEvent) }).
		Return(nil).Once()

	res, err := f.bus.Send(context.Background(), commands.UpdateOperationCommand{
		OperationID: created.RootOperation.ID,
		Kind:        str("multiply"),
	})

	require.NoError(t, err)
	result := res.(*dto.UpdateOperationResult)
	assert.Zero(t, result.RecalculatedCount)
	assert.Equal(t, "MULTIPLY", result.Operation.Kind)
	assert.Equal(t, "3", result.Operation.AfterValue.String())
	assert.Equal(t, []string{events.TypeOperationUpdated}, eventTypes(published))
	assert.Equal(t, []int{0}, f.recorder.calls)
}

func TestPublishFailure_DoesNotFailCommand(t *testing.T) {
	f := newHandlerFixture(t)
	f.publisher.On("PublishBatch", mock.Anything, mock.Anything).Return(errors.New("bus down"))
	f.cache.On("Delete", mock.Anything, mock.Anything).Return(errors.New("cache down"))

	res, err := f.bus.Send(context.Background(), commands.CreateDiscussionCommand{
		Title:         "Resilient",
		StartingValue: dec("1"),
		CreatedBy:     "alice",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, res.(*dto.CreateDiscussionResult).Discussion.ID)
}

func TestEndDiscussion_Twice(t *testing.T) {
	f := newHandlerFixture(t)
	f.quiet()
	created := f.createDiscussion(t, "1", nil)
	cmd := commands.EndDiscussionCommand{DiscussionID: created.Discussion.ID}

	res, err := f.bus.Send(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, res.(*dto.DiscussionView).IsEnded)

	_, err = f.bus.Send(context.Background(), cmd)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrAlreadyEnded))
}

func TestEndedDiscussion_RejectsEditsButAllowsRename(t *testing.T) {
	f := newHandlerFixture(t)
	f.quiet()
	created := f.createDiscussion(t, "1", &commands.RootOperationInput{Kind: "add", Operand: dec("1"), Title: "root"})
	_, err := f.bus.Send(context.Background(), commands.EndDiscussionCommand{DiscussionID: created.Discussion.ID})
	require.NoError(t, err)

	tests := []struct {
		name string
		cmd  bus.Command
	}{
		{"create root", commands.CreateOperationCommand{DiscussionID: created.Discussion.ID, Kind: "add", Operand: dec("1"), Title: "x", CreatedBy: "bob"}},
		{"create child", commands.CreateOperationCommand{ParentID: created.RootOperation.ID, Kind: "add", Operand: dec("1"), Title: "x", CreatedBy: "bob"}},
		{"update", commands.UpdateOperationCommand{OperationID: created.RootOperation.ID, Operand: dec("2")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.bus.Send(context.Background(), tt.cmd)
			require.Error(t, err)
			assert.True(t, errors.Is(err, pkgerrors.ErrDiscussionEnded))
		})
	}

	res, err := f.bus.Send(context.Background(), commands.UpdateDiscussionCommand{DiscussionID: created.Discussion.ID, Title: "Archived"})
	require.NoError(t, err)
	assert.Equal(t, "Archived", res.(*dto.DiscussionView).Title)
}

func TestDeleteDiscussion_RemovesOperations(t *testing.T) {
	f := newHandlerFixture(t)
	f.quiet()
	created := f.createDiscussion(t, "1", &commands.RootOperationInput{Kind: "add", Operand: dec("1"), Title: "root"})
	f.createOperation(t, commands.CreateOperationCommand{ParentID: created.RootOperation.ID, Kind: "add", Operand: dec("1")})
	other := f.createDiscussion(t, "5", &commands.RootOperationInput{Kind: "add", Operand: dec("1"), Title: "keep"})

	res, err := f.bus.Send(context.Background(), commands.DeleteDiscussionCommand{DiscussionID: created.Discussion.ID})

	require.NoError(t, err)
	assert.Equal(t, 2, res.(*dto.DeleteDiscussionResult).OperationsRemoved)
	require.NoError(t, f.store.View(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		ops, _, err := tx.Operations().List(ctx, ports.OperationFilter{})
		require.NoError(t, err)
		require.Len(t, ops, 1)
		assert.Equal(t, other.RootOperation.ID, ops[0].ID().String())
		return nil
	}))

	_, err = f.bus.Send(context.Background(), commands.DeleteDiscussionCommand{DiscussionID: created.Discussion.ID})
	assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
}

func TestCommandValidation(t *testing.T) {
	f := newHandlerFixture(t)

	tests := []struct {
		name string
		cmd  bus.Command
	}{
		{"no anchor", commands.CreateOperationCommand{Kind: "add", Operand: dec("1"), Title: "x", CreatedBy: "a"}},
		{"bad kind", commands.CreateOperationCommand{DiscussionID: "d", Kind: "modulo", Operand: dec("1"), Title: "x", CreatedBy: "a"}},
		{"missing operand", commands.CreateOperationCommand{DiscussionID: "d", Kind: "add", Title: "x", CreatedBy: "a"}},
		{"empty update", commands.UpdateOperationCommand{OperationID: "op"}},
		{"missing start", commands.CreateDiscussionCommand{Title: "t", CreatedBy: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.bus.Send(context.Background(), tt.cmd)

			require.Error(t, err)
			assert.True(t, errors.Is(err, pkgerrors.ErrValidation))
		})
	}
}

func TestCommands_MalformedIDsAreValidationErrors(t *testing.T) {
	f := newHandlerFixture(t)

	tests := []struct {
		name  string
		cmd   bus.Command
		field string
	}{
		{"update with malformed operation id", commands.UpdateOperationCommand{OperationID: "not-a-uuid", Operand: dec("1")}, "operationId"},
		{"create under malformed parent", commands.CreateOperationCommand{ParentID: "nope", Kind: "add", Operand: dec("1"), CreatedBy: "alice"}, "parentId"},
		{"create on malformed discussion", commands.CreateOperationCommand{DiscussionID: "xyz", Kind: "add", Operand: dec("1"), CreatedBy: "alice"}, "discussionId"},
		{"end malformed discussion", commands.EndDiscussionCommand{DiscussionID: "xyz"}, "discussionId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.bus.Send(context.Background(), tt.cmd)

			require.Error(t, err)
			info := common.ErrorInfoFrom(err)
			assert.Equal(t, pkgerrors.CodeValidation, info.Code)
			assert.Equal(t, tt.field, info.Details["field"])
		})
	}
}

func TestCreateOperation_AcceptsNonCanonicalIDs(t *testing.T) {
	// Arrange
	f := newHandlerFixture(t)
	f.quiet()
	created := f.createDiscussion(t, "4", &commands.RootOperationInput{Kind: "add", Operand: dec("1"), Title: "root"})

	// Act
	child := f.createOperation(t, commands.CreateOperationCommand{
		DiscussionID: strings.ToUpper(created.Discussion.ID),
		ParentID:     created.RootOperation.ID,
		Kind:         "multiply",
		Operand:      dec("3"),
	})

	// Assert
	assert.Equal(t, created.Discussion.ID, child.DiscussionID)
	assert.Equal(t, "15", child.AfterValue.String())
}

package service_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/mautops/integration-monitor/internal/model"
	"github.com/mautops/integration-monitor/internal/service"
	"github.com/mautops/integration-monitor/internal/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingPublisher 记录推送的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []*service.LifecycleEvent
}

func (p *recordingPublisher) BroadcastToIntegration(integrationID string, v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if evt, ok := v.(*service.LifecycleEvent); ok {
		p.events = append(p.events, evt)
	}
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, evt := range p.events {
		types = append(types, evt.Type)
	}
	return types
}

type fixture struct {
	db           *gorm.DB
	clock        *fakeClock
	publisher    *recordingPublisher
	integrations service.IntegrationService
	tasks        service.TaskService
	executions   service.ExecutionService
	logs         service.LogService
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	clock := newFakeClock()
	publisher := &recordingPublisher{}
	opts := []service.Option{
		service.WithLogger(quietLogger()),
		service.WithClock(clock.Now),
	}

	return &fixture{
		db:           db,
		clock:        clock,
		publisher:    publisher,
		integrations: service.NewIntegrationService(db, opts...),
		tasks:        service.NewTaskService(db, opts...),
		executions:   service.NewExecutionService(db, append(opts, service.WithPublisher(publisher))...),
		logs:         service.NewLogService(db, opts...),
	}
}

func (f *fixture) createIntegration(t *testing.T, name string) *model.IntegrationModel {
	t.Helper()
	integration, err := f.integrations.Create(context.Background(), &service.CreateIntegrationRequest{
		Name:        name,
		Type:        model.IntegrationTypeAPI,
		Source:      "crm",
		Destination: "warehouse",
	})
	require.NoError(t, err)
	return integration
}

func (f *fixture) createTask(t *testing.T, integrationID, name string) *model.TaskModel {
	t.Helper()
	task, err := f.tasks.Create(context.Background(), &service.CreateTaskRequest{
		Name:          name,
		IntegrationID: integrationID,
		Type:          model.TaskTypeExtract,
	})
	require.NoError(t, err)
	return task
}

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWorker struct {
	name     string
	startErr error

	mu      sync.Mutex
	started bool
	stopped bool
	order   *[]string
}

func (f *fakeWorker) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeWorker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	if f.order != nil {
		*f.order = append(*f.order, f.name)
	}
}

func (f *fakeWorker) Name() string { return f.name }

func TestManager_StartAll(t *testing.T) {
	t.Run("starts every registered worker", func(t *testing.T) {
		m := NewManager(zap.NewNop())
		a := &fakeWorker{name: "a"}
		b := &fakeWorker{name: "b"}
		m.Register(a)
		m.Register(b)

		require.NoError(t, m.StartAll(context.Background()))
		assert.True(t, a.started)
		assert.True(t, b.started)
		assert.Equal(t, 2, m.Count())
	})

	t.Run("stops on the first start failure", func(t *testing.T) {
		m := NewManager(zap.NewNop())
		a := &fakeWorker{name: "a", startErr: errors.New("boom")}
		b := &fakeWorker{name: "b"}
		m.Register(a)
		m.Register(b)

		assert.Error(t, m.StartAll(context.Background()))
		assert.False(t, b.started)
	})
}

func TestManager_StopAllReversesOrder(t *testing.T) {
	m := NewManager(zap.NewNop())
	var order []string
	m.Register(&fakeWorker{name: "first", order: &order})
	m.Register(&fakeWorker{name: "second", order: &order})
	m.Register(&fakeWorker{name: "third", order: &order})

	require.NoError(t, m.StartAll(context.Background()))
	m.StopAll()

	assert.Equal(t, []string{"third", "second", "first"}, order)
}

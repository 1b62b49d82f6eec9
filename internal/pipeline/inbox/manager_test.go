package inbox

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorker struct {
	name      string
	startErr  error
	started   bool
	stoppedAt int
	mu        *sync.Mutex
	order     *[]string
}

func (f *fakeWorker) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeWorker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.order = append(*f.order, f.name)
}

func (f *fakeWorker) Name() string { return f.name }

func TestManagerStartAllStartsInRegistrationOrder(t *testing.T) {
	m := NewManager(nil)
	var mu sync.Mutex
	var order []string

	a := &fakeWorker{name: "a", mu: &mu, order: &order}
	b := &fakeWorker{name: "b", mu: &mu, order: &order}
	m.Register(a)
	m.Register(b)

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, a.started)
	assert.True(t, b.started)
	assert.Equal(t, 2, m.Count())
}

func TestManagerStartAllStopsAtFirstFailure(t *testing.T) {
	m := NewManager(nil)
	var mu sync.Mutex
	var order []string

	ok := &fakeWorker{name: "ok", mu: &mu, order: &order}
	bad := &fakeWorker{name: "bad", startErr: errors.New("boom"), mu: &mu, order: &order}
	m.Register(ok)
	m.Register(bad)

	err := m.StartAll(context.Background())
	assert.Error(t, err)
	assert.True(t, ok.started)
}

func TestManagerStopAllStopsInReverseOrder(t *testing.T) {
	m := NewManager(nil)
	var mu sync.Mutex
	var order []string

	a := &fakeWorker{name: "a", mu: &mu, order: &order}
	b := &fakeWorker{name: "b", mu: &mu, order: &order}
	c := &fakeWorker{name: "c", mu: &mu, order: &order}
	m.Register(a)
	m.Register(b)
	m.Register(c)

	m.StopAll()

	assert.Equal(t, []string{"c", "b", "a"}, order)
}

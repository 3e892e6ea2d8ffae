package videoplayer

import (
	"context"
	"sync"
)

// MockClient is a scripted player client for testing
type MockClient struct {
	mu          sync.Mutex
	playErr     error
	pauseErr    error
	stopErr     error
	queueErr    error
	queueLength int
	played      []string
	callbacks   []StatusCallback
	autoDone    bool
	autoErr     error
}

var _ Client = (*MockClient)(nil)

// MockOption configures the mock client
type MockOption func(*MockClient)

// WithPlayError makes Play fail with err
func WithPlayError(err error) MockOption {
	return func(m *MockClient) { m.playErr = err }
}

// WithQueueLength sets the reported player queue length
func WithQueueLength(n int) MockOption {
	return func(m *MockClient) { m.queueLength = n }
}

// WithAutoComplete makes every Play immediately fire its callback with err
// (nil for a normal completion)
func WithAutoComplete(err error) MockOption {
	return func(m *MockClient) {
		m.autoDone = true
		m.autoErr = err
	}
}

// NewMock creates a mock player client
func NewMock(opts ...MockOption) *MockClient {
	m := &MockClient{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Play records the path and either fires the callback immediately
// (WithAutoComplete) or stores it for FinishCurrent
func (m *MockClient) Play(ctx context.Context, path string, done StatusCallback) error {
	m.mu.Lock()
	if m.playErr != nil {
		err := m.playErr
		m.mu.Unlock()
		return err
	}
	m.played = append(m.played, path)
	auto := m.autoDone
	autoErr := m.autoErr
	if !auto {
		m.callbacks = append(m.callbacks, done)
	}
	m.mu.Unlock()

	if auto {
		done(autoErr)
	}
	return nil
}

// FinishCurrent fires the oldest pending callback with err
func (m *MockClient) FinishCurrent(err error) bool {
	m.mu.Lock()
	if len(m.callbacks) == 0 {
		m.mu.Unlock()
		return false
	}
	cb := m.callbacks[0]
	m.callbacks = m.callbacks[1:]
	m.mu.Unlock()

	cb(err)
	return true
}

// Played returns every path handed to Play
func (m *MockClient) Played() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.played...)
}

func (m *MockClient) Pause(ctx context.Context) error { return m.pauseErr }

func (m *MockClient) Stop(ctx context.Context) error { return m.stopErr }

func (m *MockClient) QueueLength(ctx context.Context) (int, error) {
	return m.queueLength, m.queueErr
}

func (m *MockClient) BaseURL() string { return "mock://player" }

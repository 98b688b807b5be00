package mocks

import (
	"context"
	"sync"

	"github.com/dukex/botflow/pkg/gateway"
	"github.com/stretchr/testify/mock"
)

// MockPlatform is a mock implementation of gateway.Platform interface.
type MockPlatform struct {
	mock.Mock
}

func (m *MockPlatform) Connect(ctx context.Context, token string) (gateway.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(gateway.Session), args.Error(1)
}

// MockSession is a mock implementation of gateway.Session interface.
//
// Receive runs the function configured as its return value when there is one;
// otherwise it blocks until ctx is done or Close is called.
type MockSession struct {
	mock.Mock

	initOnce  sync.Once
	closeOnce sync.Once
	closed    chan struct{}
}

func (m *MockSession) closedCh() chan struct{} {
	m.initOnce.Do(func() {
		m.closed = make(chan struct{})
	})

	return m.closed
}

// Closed is closed once Close has been called.
func (m *MockSession) Closed() <-chan struct{} {
	return m.closedCh()
}

func (m *MockSession) Identity() gateway.Identity {
	args := m.Called()

	return args.Get(0).(gateway.Identity)
}

func (m *MockSession) Receive(ctx context.Context, handler func(context.Context, gateway.Update)) error {
	args := m.Called(ctx, handler)

	if fn, ok := args.Get(0).(func(context.Context, func(context.Context, gateway.Update)) error); ok {
		return fn(ctx, handler)
	}

	select {
	case <-ctx.Done():
	case <-m.closedCh():
	}

	return args.Error(0)
}

func (m *MockSession) Send(ctx context.Context, msg gateway.Outgoing) (gateway.Sent, error) {
	args := m.Called(ctx, msg)

	return args.Get(0).(gateway.Sent), args.Error(1)
}

func (m *MockSession) FileURL(ctx context.Context, fileID string) (string, error) {
	args := m.Called(ctx, fileID)

	return args.String(0), args.Error(1)
}

func (m *MockSession) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	args := m.Called(ctx, chatID, messageID)

	return args.Error(0)
}

func (m *MockSession) SetReaction(ctx context.Context, chatID, messageID int64, emoji string) error {
	args := m.Called(ctx, chatID, messageID, emoji)

	return args.Error(0)
}

func (m *MockSession) AnswerCallback(ctx context.Context, callbackID, text string) error {
	args := m.Called(ctx, callbackID, text)

	return args.Error(0)
}

func (m *MockSession) Close() error {
	args := m.Called()

	m.closeOnce.Do(func() {
		close(m.closedCh())
	})

	return args.Error(0)
}

// MockSender is a mock of the per-bot send path used by message actions.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, botID string, msg gateway.Outgoing) (gateway.Sent, error) {
	args := m.Called(ctx, botID, msg)

	return args.Get(0).(gateway.Sent), args.Error(1)
}

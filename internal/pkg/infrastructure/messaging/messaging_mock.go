package messaging

import (
	"context"
	"sync"
)

// MsgContextMock records published messages for tests.
type MsgContextMock struct {
	PublishOnTopicFunc func(ctx context.Context, message TopicMessage) error

	mu    sync.Mutex
	calls []TopicMessage
}

func (m *MsgContextMock) PublishOnTopic(ctx context.Context, message TopicMessage) error {
	m.mu.Lock()
	m.calls = append(m.calls, message)
	m.mu.Unlock()

	if m.PublishOnTopicFunc != nil {
		return m.PublishOnTopicFunc(ctx, message)
	}
	return nil
}

func (m *MsgContextMock) PublishOnTopicCalls() []TopicMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TopicMessage{}, m.calls...)
}

func (m *MsgContextMock) Close() {}

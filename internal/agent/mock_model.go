package agent

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockResponse 定义了 MockChatClient 的单次预期响应
type MockResponse struct {
	Content string
	Error   error
}

// MockChatClient 是用于测试的 ChatClient 模拟实现，
// 按配置顺序逐次返回响应，并记录收到的全部消息。
type MockChatClient struct {
	SequentialResponses []MockResponse
	ResponseIndex       int

	ReceivedMessages [][]*schema.Message
}

// NewMockChatClient 创建一个始终返回同一响应的 MockChatClient
func NewMockChatClient(content string, err error) *MockChatClient {
	return &MockChatClient{
		SequentialResponses: []MockResponse{{Content: content, Error: err}},
	}
}

// NewMockChatClientSequential 创建一个按顺序返回不同响应的 MockChatClient
func NewMockChatClientSequential(responses []MockResponse) *MockChatClient {
	if len(responses) == 0 {
		responses = []MockResponse{{Error: errors.New("mock client has no responses configured")}}
	}
	return &MockChatClient{SequentialResponses: responses}
}

// Generate 按顺序返回预设响应，只有一个响应时反复返回它
func (m *MockChatClient) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	received := make([]*schema.Message, len(input))
	copy(received, input)
	m.ReceivedMessages = append(m.ReceivedMessages, received)

	idx := m.ResponseIndex
	if idx >= len(m.SequentialResponses) {
		if len(m.SequentialResponses) == 1 {
			idx = 0
		} else {
			return nil, errors.New("mock client has run out of sequential responses")
		}
	} else {
		m.ResponseIndex++
	}

	resp := m.SequentialResponses[idx]
	if resp.Error != nil {
		return nil, resp.Error
	}
	return schema.AssistantMessage(resp.Content, nil), nil
}

// CallCount 返回Generate被调用的次数
func (m *MockChatClient) CallCount() int {
	return len(m.ReceivedMessages)
}

var _ ChatClient = (*MockChatClient)(nil)

package relay

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatModel struct {
	chunks []string
	err    error
	input  []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	var content string
	for _, c := range f.chunks {
		content += c
	}
	return schema.AssistantMessage(content, nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	messages := make([]*schema.Message, 0, len(f.chunks))
	for _, c := range f.chunks {
		messages = append(messages, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(messages), nil
}

func TestArkRunAccumulates(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"你", "", "好", "!"}}
	relay, err := NewArk(context.Background(), fake)
	require.NoError(t, err)

	var got []string
	answer, err := relay.Run(context.Background(), Request{UserID: "V0_alice", Question: "你好"}, func(s string) {
		got = append(got, s)
	})
	require.NoError(t, err)
	assert.Equal(t, "你好!", answer)
	assert.Equal(t, []string{"你", "你好", "你好!"}, got)

	require.Len(t, fake.input, 2)
	assert.Equal(t, schema.System, fake.input[0].Role)
	assert.Equal(t, "你好", fake.input[1].Content)
}

func TestArkRunEmpty(t *testing.T) {
	relay, err := NewArk(context.Background(), &fakeChatModel{})
	require.NoError(t, err)

	_, err = relay.Run(context.Background(), Request{Question: "q"}, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestArkRunModelFailure(t *testing.T) {
	relay, err := NewArk(context.Background(), &fakeChatModel{err: errors.New("quota")})
	require.NoError(t, err)

	_, err = relay.Run(context.Background(), Request{Question: "q"}, nil)
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}

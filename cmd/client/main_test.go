package main

import (
	"errors"
	"testing"

	"github.com/omochice/stranger-chat/internal/client"
	"github.com/omochice/stranger-chat/internal/mocks"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestHandleLine(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		expect func(c *mocks.MockClient)
		quit   bool
	}{
		{name: "empty line is ignored", line: "", expect: func(c *mocks.MockClient) {}},
		{name: "quit", line: "/quit", expect: func(c *mocks.MockClient) {}, quit: true},
		{name: "exit", line: "/exit", expect: func(c *mocks.MockClient) {}, quit: true},
		{name: "next", line: "/next", expect: func(c *mocks.MockClient) {
			c.EXPECT().RequestPartner().Return(nil)
		}},
		{name: "end", line: "/end", expect: func(c *mocks.MockClient) {
			c.EXPECT().EndSession().Return(nil)
		}},
		{name: "typing", line: "/typing", expect: func(c *mocks.MockClient) {
			c.EXPECT().SetTyping(true).Return(nil)
		}},
		{name: "idle", line: "/idle", expect: func(c *mocks.MockClient) {
			c.EXPECT().SetTyping(false).Return(nil)
		}},
		{name: "chat", line: "hello there", expect: func(c *mocks.MockClient) {
			c.EXPECT().SendChat("hello there").Return(nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := mocks.NewMockClient(ctrl)
			tt.expect(c)

			quit, err := handleLine(c, tt.line)
			require.NoError(t, err)
			require.Equal(t, tt.quit, quit)
		})
	}
}

func TestHandleLine_SendError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mocks.NewMockClient(ctrl)
	c.EXPECT().SendChat("hi").Return(client.ErrNotConnected)

	quit, err := handleLine(c, "hi")
	require.False(t, quit)
	require.True(t, errors.Is(err, client.ErrNotConnected))
}

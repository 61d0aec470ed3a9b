package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/klipach/courier/notify"
)

type TrayMock struct {
	mock.Mock
}

func (m *TrayMock) Schedule(ctx context.Context, p notify.Payload) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func (m *TrayMock) SetChannel(ctx context.Context, c notify.ChannelConfig) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *TrayMock) LastResponse(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	var raw []byte
	if val := args.Get(0); val != nil {
		raw = val.([]byte)
	}
	return raw, args.Error(1)
}

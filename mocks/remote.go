// Package mocks holds testify mocks of the remote store and the notification tray.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/klipach/courier/remote"
)

type RemoteClientMock struct {
	mock.Mock
}

func (m *RemoteClientMock) Get(ctx context.Context, path string) (remote.Snapshot, error) {
	args := m.Called(ctx, path)
	var snap remote.Snapshot
	if val := args.Get(0); val != nil {
		snap = val.(remote.Snapshot)
	}
	return snap, args.Error(1)
}

func (m *RemoteClientMock) Set(ctx context.Context, path string, value any) error {
	args := m.Called(ctx, path, value)
	return args.Error(0)
}

func (m *RemoteClientMock) Update(ctx context.Context, path string, fields map[string]any) error {
	args := m.Called(ctx, path, fields)
	return args.Error(0)
}

func (m *RemoteClientMock) Push(ctx context.Context, path string, value any) (string, error) {
	args := m.Called(ctx, path, value)
	return args.String(0), args.Error(1)
}

func (m *RemoteClientMock) Remove(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

func (m *RemoteClientMock) Subscribe(ctx context.Context, path string, onValue func(remote.Snapshot), onError func(error)) (remote.Subscription, error) {
	args := m.Called(ctx, path, onValue, onError)
	var sub remote.Subscription
	if val := args.Get(0); val != nil {
		sub = val.(remote.Subscription)
	}
	return sub, args.Error(1)
}

type SubscriptionMock struct {
	mock.Mock
}

func (m *SubscriptionMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klipach/courier/errs"
	"github.com/klipach/courier/remote"
)

type fakeUsers struct {
	uid   string
	err   error
	calls int
}

func (f *fakeUsers) CreateUser(context.Context, string, string) (string, error) {
	f.calls++
	return f.uid, f.err
}

func fields(err error) []string {
	var out []string
	var walk func(error)
	walk = func(err error) {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				walk(e)
			}
			return
		}
		var ve *errs.ValidationError
		if errors.As(err, &ve) {
			out = append(out, ve.Field)
		}
	}
	walk(err)
	return out
}

func TestIsEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"ana@example.com", true},
		{"ana.lee@mail.example.org", true},
		{"ana-lee@example.io", true},
		{"ana", false},
		{"ana@example", false},
		{"ana@example.museum", false},
		{"@example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsEmail(tt.input))
		})
	}
}

func TestSignUpValidate(t *testing.T) {
	tests := []struct {
		name     string
		in       SignUp
		expected []string
	}{
		{
			name: "valid",
			in:   SignUp{Username: "ana", Email: "ana@example.com", Password: "secret", ConfirmPassword: "secret"},
		},
		{
			name:     "blank username",
			in:       SignUp{Username: "  ", Email: "ana@example.com", Password: "secret", ConfirmPassword: "secret"},
			expected: []string{"username"},
		},
		{
			name:     "everything wrong",
			in:       SignUp{Email: "nope", Password: "123", ConfirmPassword: "1234"},
			expected: []string{"username", "email", "password", "confirmPassword"},
		},
		{
			name:     "short matching password",
			in:       SignUp{Username: "ana", Email: "ana@example.com", Password: "12345", ConfirmPassword: "12345"},
			expected: []string{"password"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errs.IsValidation(err))
			assert.Equal(t, tt.expected, fields(err))
		})
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemory()
	users := &fakeUsers{uid: "uid-1"}
	dir := NewDirectory(store, users)
	dir.now = func() time.Time { return time.Date(2024, 5, 1, 9, 7, 0, 0, time.UTC) }

	uid, err := dir.Register(ctx, SignUp{Username: "ana", Email: "ana@example.com", Password: "secret", ConfirmPassword: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "uid-1", uid)

	snap, err := store.Get(ctx, "users/uid-1")
	require.NoError(t, err)
	var p Profile
	require.NoError(t, snap.Decode(&p))
	assert.Equal(t, Profile{Username: "ana", Email: "ana@example.com", CreatedAt: "2024-05-01T09:07:00Z"}, p)

	snap, err = store.Get(ctx, "usernames/ana")
	require.NoError(t, err)
	assert.JSONEq(t, `"uid-1"`, string(snap.Value))

	_, err = dir.Register(ctx, SignUp{Username: "ana", Email: "other@example.com", Password: "secret", ConfirmPassword: "secret"})
	assert.Equal(t, []string{"username"}, fields(err))
	assert.Equal(t, 1, users.calls)
}

func TestRegisterKeepsExistingChats(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemory()
	require.NoError(t, store.Set(ctx, "users/uid-1/chats/c1", map[string]any{"firstName": "Bo"}))

	_, err := NewDirectory(store, &fakeUsers{uid: "uid-1"}).Register(ctx, SignUp{Username: "ana", Email: "ana@example.com", Password: "secret", ConfirmPassword: "secret"})
	require.NoError(t, err)

	snap, err := store.Get(ctx, "users/uid-1/chats/c1")
	require.NoError(t, err)
	assert.True(t, snap.Exists())
}

func TestRegisterInvalidInputSkipsRemote(t *testing.T) {
	users := &fakeUsers{uid: "uid-1"}
	_, err := NewDirectory(remote.NewMemory(), users).Register(context.Background(), SignUp{Username: "ana"})
	assert.True(t, errs.IsValidation(err))
	assert.Equal(t, 0, users.calls)
}

func TestResolveLogin(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemory()
	require.NoError(t, store.Set(ctx, "usernames/ana", "uid-1"))
	require.NoError(t, store.Set(ctx, "users/uid-1", Profile{Username: "ana", Email: "ana@example.com"}))
	require.NoError(t, store.Set(ctx, "usernames/ghost", "uid-2"))
	require.NoError(t, store.Set(ctx, "users/uid-2", map[string]any{"username": "ghost"}))
	dir := NewDirectory(store, &fakeUsers{})

	tests := []struct {
		name       string
		identifier string
		password   string
		expected   string
		err        error
		invalid    bool
	}{
		{name: "email passes through", identifier: "bo@example.com", password: "secret", expected: "bo@example.com"},
		{name: "username resolved", identifier: "ana", password: "secret", expected: "ana@example.com"},
		{name: "unknown username", identifier: "nobody", password: "secret", err: ErrUnknownUsername},
		{name: "profile without email", identifier: "ghost", password: "secret", err: ErrIncompleteProfile},
		{name: "username with forbidden characters", identifier: "a.b", password: "secret", err: ErrUnknownUsername},
		{name: "blank identifier", identifier: " ", password: "secret", invalid: true},
		{name: "short password", identifier: "ana", password: "123", invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email, err := dir.ResolveLogin(ctx, tt.identifier, tt.password)
			switch {
			case tt.invalid:
				assert.True(t, errs.IsValidation(err))
			case tt.err != nil:
				assert.ErrorIs(t, err, tt.err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.expected, email)
			}
		})
	}
}

// Package account validates sign-up and sign-in input and resolves usernames to the
// email address the auth provider signs in with.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/klipach/courier/errs"
	"github.com/klipach/courier/log"
	"github.com/klipach/courier/remote"
)

const minPasswordLength = 6

var emailRegex = regexp.MustCompile(`^\w+([\.-]?\w+)*@\w+([\.-]?\w+)*(\.\w{2,3})+$`)

var (
	ErrUnknownUsername   = errors.New("username not found")
	ErrIncompleteProfile = errors.New("user data is incomplete")
)

// IsEmail reports whether s looks like an email address.
func IsEmail(s string) bool {
	return emailRegex.MatchString(s)
}

// SignUp is the input of the registration form.
type SignUp struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Validate checks every field and reports all failures at once.
func (s SignUp) Validate() error {
	var failures []error
	if strings.TrimSpace(s.Username) == "" {
		failures = append(failures, errs.Invalid("username", "username is required"))
	}
	if !IsEmail(s.Email) {
		failures = append(failures, errs.Invalid("email", "email is invalid"))
	}
	if len(s.Password) < minPasswordLength {
		failures = append(failures, errs.Invalid("password", fmt.Sprintf("password must have at least %d characters", minPasswordLength)))
	}
	if s.Password != s.ConfirmPassword {
		failures = append(failures, errs.Invalid("confirmPassword", "passwords do not match"))
	}
	return errors.Join(failures...)
}

// Profile is stored at users/{uid}, next to the user's chats.
type Profile struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

// UserCreator creates an auth user and returns its uid.
type UserCreator interface {
	CreateUser(ctx context.Context, email, password string) (string, error)
}

// Directory maps usernames to users: usernames/{username} holds the uid.
type Directory struct {
	remote remote.Client
	users  UserCreator
	now    func() time.Time
}

func NewDirectory(client remote.Client, users UserCreator) *Directory {
	return &Directory{remote: client, users: users, now: time.Now}
}

// Register validates s, checks the username is free, creates the auth user and
// stores the profile and the username mapping.
func (d *Directory) Register(ctx context.Context, s SignUp) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	username := strings.TrimSpace(s.Username)
	namePath, err := remote.Join("usernames", username)
	if err != nil {
		return "", errs.Invalid("username", "username contains forbidden characters")
	}
	taken, err := d.remote.Get(ctx, namePath)
	if err != nil {
		return "", err
	}
	if taken.Exists() {
		return "", errs.Invalid("username", "username is already in use")
	}

	uid, err := d.users.CreateUser(ctx, s.Email, s.Password)
	if err != nil {
		return "", err
	}
	userPath, err := remote.Join("users", uid)
	if err != nil {
		return "", err
	}
	err = d.remote.Update(ctx, userPath, map[string]any{
		"username":  username,
		"email":     s.Email,
		"createdAt": d.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", err
	}
	if err := d.remote.Set(ctx, namePath, uid); err != nil {
		return "", err
	}
	log.LoggerFromContext(ctx).Info("user registered", slog.String(log.UserIDLogField, uid))
	return uid, nil
}

// ResolveLogin returns the email to sign in with. An email identifier is returned
// as is; anything else is looked up as a username.
func (d *Directory) ResolveLogin(ctx context.Context, identifier, password string) (string, error) {
	var failures []error
	if strings.TrimSpace(identifier) == "" {
		failures = append(failures, errs.Invalid("username", "username is required"))
	}
	if len(password) < minPasswordLength {
		failures = append(failures, errs.Invalid("password", fmt.Sprintf("password must have at least %d characters", minPasswordLength)))
	}
	if err := errors.Join(failures...); err != nil {
		return "", err
	}
	if IsEmail(identifier) {
		return identifier, nil
	}

	namePath, err := remote.Join("usernames", identifier)
	if err != nil {
		return "", ErrUnknownUsername
	}
	snap, err := d.remote.Get(ctx, namePath)
	if err != nil {
		return "", err
	}
	var uid string
	if err := snap.Decode(&uid); err != nil || uid == "" {
		return "", ErrUnknownUsername
	}

	userPath, err := remote.Join("users", uid)
	if err != nil {
		return "", ErrIncompleteProfile
	}
	snap, err = d.remote.Get(ctx, userPath)
	if err != nil {
		return "", err
	}
	var p Profile
	if err := snap.Decode(&p); err != nil || p.Email == "" {
		return "", ErrIncompleteProfile
	}
	return p.Email, nil
}

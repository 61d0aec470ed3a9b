package account

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"github.com/klipach/courier/errs"
)

// FirebaseUsers creates users with Firebase Authentication.
type FirebaseUsers struct {
	client *auth.Client
}

func NewFirebaseUsers(client *auth.Client) *FirebaseUsers {
	return &FirebaseUsers{client: client}
}

func (f *FirebaseUsers) CreateUser(ctx context.Context, email, password string) (string, error) {
	user, err := f.client.CreateUser(ctx, (&auth.UserToCreate{}).Email(email).Password(password))
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return "", errs.Invalid("email", "email is already in use")
		}
		return "", err
	}
	return user.UID, nil
}

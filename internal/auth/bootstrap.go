package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/secretaria-app/secretaria/internal/data/db"
)

// EnsureUser creates the user or, when it exists with a different
// password, replaces its hash. It is used for the configured admin account
// at startup and by the offline password command.
func EnsureUser(ctx context.Context, store *db.Store, username, password string) (*db.User, error) {
	username, err := ValidateCredentials(username, password)
	if err != nil {
		return nil, err
	}

	user, err := store.GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, db.ErrNotFound):
		hash, err := HashPassword(password)
		if err != nil {
			return nil, err
		}
		user, err = store.CreateUser(ctx, username, hash)
		if err != nil {
			return nil, err
		}
		logrus.Infof("created user %s", username)
		return user, nil
	case err != nil:
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if VerifyPassword(password, user.PasswordHash) {
		return user, nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	if err := store.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	logrus.Infof("updated password of user %s", username)
	return user, nil
}

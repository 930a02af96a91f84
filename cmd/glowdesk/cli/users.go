package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/glowdesk/glowdesk/internal/auth"
)

// UserCreator is the slice of the auth service the CLI needs.
type UserCreator interface {
	CreateUser(ctx context.Context, email, password, displayName string) (*auth.User, error)
}

// CreateUser parses `create-user` flags and stores the account.
func CreateUser(ctx context.Context, svc UserCreator, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	fs.SetOutput(out)
	email := fs.String("email", "", "account email (required)")
	password := fs.String("password", "", "initial password, at least 8 characters (required)")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		fs.Usage()
		return errors.New("create-user: -email and -password are required")
	}
	user, err := svc.CreateUser(ctx, *email, *password, *name)
	if err != nil {
		return fmt.Errorf("create-user: %w", err)
	}
	_, err = fmt.Fprintf(out, "created user %s (%s)\n", user.Email, user.ID)
	return err
}

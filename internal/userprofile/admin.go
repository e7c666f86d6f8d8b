package userprofile

import (
	"context"
	"errors"
	"fmt"

	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ciptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	"github.com/geoschem-cloud/simulation-workflow/internal/awsclient"
)

// AdminUser is the REST view of an identity-provider user.
type AdminUser struct {
	Username   string            `json:"username"`
	Email      string            `json:"email,omitempty"`
	Status     string            `json:"status,omitempty"`
	Enabled    bool              `json:"enabled"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Admin wraps the identity provider's admin CRUD API.
type Admin struct {
	cognito    awsclient.CognitoAPI
	userPoolID string
}

func NewAdmin(cognito awsclient.CognitoAPI, userPoolID string) *Admin {
	return &Admin{cognito: cognito, userPoolID: userPoolID}
}

// CreateUser provisions a user in the pool.
func (a *Admin) CreateUser(ctx context.Context, username, email string) (*AdminUser, error) {
	out, err := a.cognito.AdminCreateUser(ctx, &cip.AdminCreateUserInput{
		UserPoolId: &a.userPoolID,
		Username:   &username,
		UserAttributes: []ciptypes.AttributeType{
			{Name: strPtr("email"), Value: &email},
			{Name: strPtr("email_verified"), Value: strPtr("true")},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("admin create user: %w", err)
	}
	u := &AdminUser{Username: username, Email: email, Enabled: true}
	if out.User != nil {
		u.Status = string(out.User.UserStatus)
		u.Enabled = out.User.Enabled
	}
	return u, nil
}

// GetUser fetches one user by username. Returns (nil, nil) when the
// pool does not know the user.
func (a *Admin) GetUser(ctx context.Context, username string) (*AdminUser, error) {
	out, err := a.cognito.AdminGetUser(ctx, &cip.AdminGetUserInput{
		UserPoolId: &a.userPoolID,
		Username:   &username,
	})
	if err != nil {
		var nf *ciptypes.UserNotFoundException
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, fmt.Errorf("admin get user: %w", err)
	}

	u := &AdminUser{
		Username:   username,
		Status:     string(out.UserStatus),
		Enabled:    out.Enabled,
		Attributes: map[string]string{},
	}
	for _, attr := range out.UserAttributes {
		name := deref(attr.Name)
		value := deref(attr.Value)
		u.Attributes[name] = value
		if name == "email" {
			u.Email = value
		}
	}
	return u, nil
}

// ListUsers pages through the pool.
func (a *Admin) ListUsers(ctx context.Context) ([]AdminUser, error) {
	var users []AdminUser
	var token *string
	for {
		out, err := a.cognito.ListUsers(ctx, &cip.ListUsersInput{
			UserPoolId:      &a.userPoolID,
			PaginationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		for _, ut := range out.Users {
			u := AdminUser{
				Username: deref(ut.Username),
				Status:   string(ut.UserStatus),
				Enabled:  ut.Enabled,
			}
			for _, attr := range ut.Attributes {
				if deref(attr.Name) == "email" {
					u.Email = deref(attr.Value)
				}
			}
			users = append(users, u)
		}
		if out.PaginationToken == nil {
			break
		}
		token = out.PaginationToken
	}
	return users, nil
}

// UpdateUser replaces attributes on an existing user.
func (a *Admin) UpdateUser(ctx context.Context, username string, attributes map[string]string) error {
	attrs := make([]ciptypes.AttributeType, 0, len(attributes))
	for name, value := range attributes {
		n, v := name, value
		attrs = append(attrs, ciptypes.AttributeType{Name: &n, Value: &v})
	}
	_, err := a.cognito.AdminUpdateUserAttributes(ctx, &cip.AdminUpdateUserAttributesInput{
		UserPoolId:     &a.userPoolID,
		Username:       &username,
		UserAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("admin update user: %w", err)
	}
	return nil
}

// DeleteUser removes a user from the pool.
func (a *Admin) DeleteUser(ctx context.Context, username string) error {
	_, err := a.cognito.AdminDeleteUser(ctx, &cip.AdminDeleteUserInput{
		UserPoolId: &a.userPoolID,
		Username:   &username,
	})
	if err != nil {
		return fmt.Errorf("admin delete user: %w", err)
	}
	return nil
}

func strPtr(s string) *string { return &s }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

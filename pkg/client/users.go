package client

import (
	"context"
	"net/http"
	"strconv"
)

// UsersClient covers /ai/users. It requires the admin role.
type UsersClient struct {
	client *Client
}

func (u *UsersClient) List(ctx context.Context, page, size int) (*Page[User], error) {
	var p Page[User]
	if err := u.client.do(ctx, http.MethodGet, "/ai/users", pageQuery(page, size), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (u *UsersClient) Get(ctx context.Context, id int64) (*User, error) {
	var user User
	if err := u.client.do(ctx, http.MethodGet, userPath(id), nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (u *UsersClient) Create(ctx context.Context, user User) (*User, error) {
	user.ID = 0
	var created User
	if err := u.client.do(ctx, http.MethodPost, "/ai/users", nil, user, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (u *UsersClient) Update(ctx context.Context, id int64, user User) (*User, error) {
	var updated User
	if err := u.client.do(ctx, http.MethodPut, userPath(id), nil, user, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (u *UsersClient) Delete(ctx context.Context, id int64) error {
	return u.client.do(ctx, http.MethodDelete, userPath(id), nil, nil, nil)
}

func userPath(id int64) string {
	return "/ai/users/" + strconv.FormatInt(id, 10)
}

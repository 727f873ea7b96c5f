package client

// AuthRequest logs in an existing account.
type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// AuthResponse is returned by login and registration.
type AuthResponse struct {
	Token    string   `json:"token"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// ChatRequest sends one user message to a session.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	ModelID   string `json:"modelId,omitempty"`
}

// ChatResponse is a complete assistant reply, or one history entry.
type ChatResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
	Role      string `json:"role,omitempty"`
	ModelID   string `json:"modelId,omitempty"`
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Content       []T   `json:"content"`
	CurrentPage   int   `json:"currentPage"`
	PageSize      int   `json:"pageSize"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

// Knowledge is a knowledge-base article.
type Knowledge struct {
	ID        int64  `json:"id,omitempty"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Category  string `json:"category"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// User is an account as managed by administrators.
type User struct {
	ID       int64    `json:"id,omitempty"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password,omitempty"`
	Roles    []string `json:"roles"`
}

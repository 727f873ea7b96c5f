package devserver_test

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatbot/pkg/client"
	"github.com/papercomputeco/chatbot/pkg/credentials"
	"github.com/papercomputeco/chatbot/pkg/devserver"
)

var _ = Describe("Auth", func() {
	var server *devserver.Server

	BeforeEach(func() {
		server = newServer()
	})

	Describe("login", func() {
		It("issues a token carrying the account's roles", func() {
			resp := request(server.App(), http.MethodPost, "/ai/auth/login", "", client.AuthRequest{Username: "admin", Password: "admin"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			auth := decode[client.AuthResponse](resp)
			Expect(auth.Token).NotTo(BeEmpty())
			Expect(auth.Username).To(Equal("admin"))
			Expect(auth.Roles).To(ContainElement(credentials.RoleAdmin))

			session := credentials.Session{Token: auth.Token}
			exp, ok := session.ExpiresAt()
			Expect(ok).To(BeTrue())
			Expect(exp).To(BeTemporally("~", time.Now().Add(24*time.Hour), time.Minute))
		})

		It("rejects a wrong password with AUTH_001", func() {
			resp := request(server.App(), http.MethodPost, "/ai/auth/login", "", client.AuthRequest{Username: "admin", Password: "nope"})
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

			env := decode[devserver.ErrorEnvelope](resp)
			Expect(env.ErrorCode).To(Equal("AUTH_001"))
			Expect(env.Status).To(Equal(http.StatusUnauthorized))
			Expect(env.Error).To(Equal("Unauthorized"))
		})

		It("rejects an empty body with VALID_001", func() {
			resp := request(server.App(), http.MethodPost, "/ai/auth/login", "", client.AuthRequest{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decode[devserver.ErrorEnvelope](resp).ErrorCode).To(Equal("VALID_001"))
		})
	})

	Describe("register", func() {
		It("creates a ROLE_USER account and logs it in", func() {
			resp := request(server.App(), http.MethodPost, "/ai/auth/register", "", client.RegisterRequest{
				Username: "bob", Password: "pw", Email: "bob@example.com",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			auth := decode[client.AuthResponse](resp)
			Expect(auth.Roles).To(Equal([]string{credentials.RoleUser}))

			Expect(login(server.App(), "bob", "pw")).NotTo(BeEmpty())
		})

		It("rejects a taken username with USER_002", func() {
			resp := request(server.App(), http.MethodPost, "/ai/auth/register", "", client.RegisterRequest{Username: "admin", Password: "x"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decode[devserver.ErrorEnvelope](resp).ErrorCode).To(Equal("USER_002"))
		})

		It("rejects a taken email with USER_003", func() {
			resp := request(server.App(), http.MethodPost, "/ai/auth/register", "", client.RegisterRequest{
				Username: "other", Password: "x", Email: "ADMIN@example.com",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decode[devserver.ErrorEnvelope](resp).ErrorCode).To(Equal("USER_003"))
		})
	})

	Describe("validate and logout", func() {
		It("accepts a live token and rejects it after logout", func() {
			token := login(server.App(), "user", "user")

			Expect(request(server.App(), http.MethodGet, "/ai/auth/validate", token, nil).StatusCode).To(Equal(http.StatusOK))
			Expect(request(server.App(), http.MethodPost, "/ai/auth/logout", token, nil).StatusCode).To(Equal(http.StatusOK))
			Expect(request(server.App(), http.MethodGet, "/ai/auth/validate", token, nil).StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(request(server.App(), http.MethodGet, "/ai/chat/sessions", token, nil).StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("rejects garbage and missing tokens", func() {
			Expect(request(server.App(), http.MethodGet, "/ai/auth/validate", "garbage", nil).StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(request(server.App(), http.MethodGet, "/ai/auth/validate", "", nil).StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("rejects tokens signed with another secret", func() {
			other := newServer(func(c *devserver.Config) { c.Secret = []byte("different") })
			token := login(other.App(), "admin", "admin")
			Expect(request(server.App(), http.MethodGet, "/ai/auth/validate", token, nil).StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("protected routes", func() {
		It("answers 401 without a business code when no token is sent", func() {
			resp := request(server.App(), http.MethodGet, "/ai/chat/models", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(decode[devserver.ErrorEnvelope](resp).ErrorCode).To(BeEmpty())
		})

		It("answers AUTH_003 for an expired token", func() {
			now := time.Now()
			clock := func() time.Time { return now }
			s := newServer(func(c *devserver.Config) {
				c.Now = clock
				c.TokenTTL = time.Hour
			})
			token := login(s.App(), "user", "user")

			now = now.Add(2 * time.Hour)
			resp := request(s.App(), http.MethodGet, "/ai/chat/models", token, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(decode[devserver.ErrorEnvelope](resp).ErrorCode).To(Equal("AUTH_003"))
		})

		It("answers AUTH_002 when the role does not match", func() {
			token := login(server.App(), "user", "user")

			resp := request(server.App(), http.MethodGet, "/ai/knowledge", token, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
			Expect(decode[devserver.ErrorEnvelope](resp).ErrorCode).To(Equal("AUTH_002"))

			resp = request(server.App(), http.MethodGet, "/ai/users", login(server.App(), "manager", "manager"), nil)
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		})
	})
})

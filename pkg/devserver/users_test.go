package devserver_test

import (
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatbot/pkg/client"
	"github.com/papercomputeco/chatbot/pkg/credentials"
	"github.com/papercomputeco/chatbot/pkg/devserver"
)

var _ = Describe("Users", func() {
	var (
		server *devserver.Server
		token  string
	)

	BeforeEach(func() {
		server = newServer()
		token = login(server.App(), "admin", "admin")
	})

	It("lists accounts without passwords", func() {
		resp := request(server.App(), http.MethodGet, "/ai/users?page=1&size=2", token, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		p := decode[client.Page[client.User]](resp)
		Expect(p.TotalElements).To(Equal(int64(3)))
		Expect(p.Content).To(HaveLen(2))
		Expect(p.Content[0].Username).To(Equal("admin"))
		Expect(p.Content[0].Password).To(BeEmpty())
	})

	It("creates an account that can log in", func() {
		resp := request(server.App(), http.MethodPost, "/ai/users", token, client.User{
			Username: "carol", Password: "pw", Email: "carol@example.com",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		created := decode[client.User](resp)
		Expect(created.ID).To(Equal(int64(4)))
		Expect(created.Roles).To(Equal([]string{credentials.RoleUser}))

		Expect(login(server.App(), "carol", "pw")).NotTo(BeEmpty())
	})

	It("rejects duplicate usernames with USER_002", func() {
		resp := request(server.App(), http.MethodPost, "/ai/users", token, client.User{Username: "user", Password: "pw"})
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(decode[devserver.ErrorEnvelope](resp).ErrorCode).To(Equal("USER_002"))
	})

	It("updates roles and password", func() {
		resp := request(server.App(), http.MethodPut, "/ai/users/3", token, client.User{
			Username: "user",
			Email:    "user@example.com",
			Password: "changed",
			Roles:    []string{credentials.RoleKnowledgeManager},
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(decode[client.User](resp).Roles).To(Equal([]string{credentials.RoleKnowledgeManager}))

		manager := login(server.App(), "user", "changed")
		Expect(request(server.App(), http.MethodGet, "/ai/knowledge", manager, nil).StatusCode).To(Equal(http.StatusOK))
	})

	It("answers USER_001 for unknown accounts", func() {
		for _, method := range []string{http.MethodGet, http.MethodDelete} {
			resp := request(server.App(), method, "/ai/users/99", token, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(decode[devserver.ErrorEnvelope](resp).ErrorCode).To(Equal("USER_001"))
		}
	})

	It("deletes an account and its tokens stop working", func() {
		userToken := login(server.App(), "user", "user")

		resp := request(server.App(), http.MethodDelete, fmt.Sprintf("/ai/users/%d", 3), token, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		Expect(request(server.App(), http.MethodGet, "/ai/chat/models", userToken, nil).StatusCode).To(Equal(http.StatusUnauthorized))
	})
})

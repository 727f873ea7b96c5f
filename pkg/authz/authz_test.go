package authz_test

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatbot/pkg/authz"
	"github.com/papercomputeco/chatbot/pkg/credentials"
)

type fakeValidator struct {
	valid bool
	calls int
}

func (f *fakeValidator) Validate(context.Context) bool {
	f.calls++
	return f.valid
}

func tree() (root, knowledge, knowledgeList, chat *cobra.Command) {
	root = &cobra.Command{Use: "chatbot"}
	knowledge = authz.RequireAuth(&cobra.Command{Use: "knowledge"},
		credentials.RoleAdmin, credentials.RoleKnowledgeManager)
	knowledgeList = &cobra.Command{Use: "list", Run: func(*cobra.Command, []string) {}}
	chat = authz.RequireAuth(&cobra.Command{Use: "chat", Run: func(*cobra.Command, []string) {}})

	knowledge.AddCommand(knowledgeList)
	root.AddCommand(knowledge, chat)
	return root, knowledge, knowledgeList, chat
}

var _ = Describe("Requirements", func() {
	It("inherits requirements from parent commands", func() {
		root, _, knowledgeList, chat := tree()

		requiresAuth, roles := authz.Requirements(knowledgeList)
		Expect(requiresAuth).To(BeTrue())
		Expect(roles).To(Equal([]string{credentials.RoleAdmin, credentials.RoleKnowledgeManager}))

		requiresAuth, roles = authz.Requirements(chat)
		Expect(requiresAuth).To(BeTrue())
		Expect(roles).To(BeEmpty())

		requiresAuth, _ = authz.Requirements(root)
		Expect(requiresAuth).To(BeFalse())
	})
})

var _ = Describe("Guard", func() {
	var (
		store     *credentials.MemoryStore
		validator *fakeValidator
		guard     *authz.Guard
		ctx       context.Context
	)

	BeforeEach(func() {
		store = credentials.NewMemoryStore(nil)
		validator = &fakeValidator{valid: true}
		guard = &authz.Guard{Store: store, Validator: validator}
		ctx = context.Background()
	})

	It("lets public commands through without a session", func() {
		root, _, _, _ := tree()

		s, err := guard.Check(ctx, root)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.LoggedIn()).To(BeFalse())
		Expect(validator.calls).To(BeZero())
	})

	It("requires a token for protected commands", func() {
		_, _, _, chat := tree()

		_, err := guard.Check(ctx, chat)
		Expect(err).To(MatchError(authz.ErrLoginRequired))
		Expect(validator.calls).To(BeZero())
	})

	It("clears credentials the backend rejects", func() {
		_, _, _, chat := tree()
		Expect(store.Save(&credentials.Session{Token: "abc", Roles: []string{credentials.RoleUser}})).To(Succeed())
		validator.valid = false

		_, err := guard.Check(ctx, chat)
		Expect(err).To(MatchError(authz.ErrLoginRequired))

		s, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(s.LoggedIn()).To(BeFalse())
	})

	It("clears an expired token without asking the backend", func() {
		_, _, _, chat := tree()
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(-time.Hour).Unix(),
		}).SignedString([]byte("secret"))
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Save(&credentials.Session{Token: token})).To(Succeed())

		_, err = guard.Check(ctx, chat)
		Expect(err).To(MatchError(authz.ErrLoginRequired))
		Expect(validator.calls).To(BeZero())
	})

	It("rejects sessions missing every required role", func() {
		_, _, knowledgeList, _ := tree()
		Expect(store.Save(&credentials.Session{Token: "abc", Roles: []string{credentials.RoleUser}})).To(Succeed())

		_, err := guard.Check(ctx, knowledgeList)

		var forbidden *authz.ForbiddenError
		Expect(errors.As(err, &forbidden)).To(BeTrue())
		Expect(forbidden.Command).To(Equal("chatbot knowledge list"))
		Expect(forbidden.Have).To(Equal([]string{credentials.RoleUser}))

		s, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(s.LoggedIn()).To(BeTrue())
	})

	It("accepts any one of the required roles", func() {
		_, _, knowledgeList, _ := tree()
		Expect(store.Save(&credentials.Session{
			Token: "abc",
			Roles: []string{credentials.RoleUser, credentials.RoleKnowledgeManager},
		})).To(Succeed())

		s, err := guard.Check(ctx, knowledgeList)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Token).To(Equal("abc"))
		Expect(validator.calls).To(Equal(1))
	})

	It("runs as a cobra PreRunE hook", func() {
		root, _, _, chat := tree()
		chat.PreRunE = guard.PreRunE

		root.SetArgs([]string{"chat"})
		err := root.ExecuteContext(ctx)
		Expect(err).To(MatchError(authz.ErrLoginRequired))
	})
})

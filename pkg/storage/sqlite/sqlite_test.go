package sqlite_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatbot/pkg/storage"
	"github.com/papercomputeco/chatbot/pkg/storage/sqlite"
	"github.com/papercomputeco/chatbot/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	Context("in memory", func() {
		storagetest.DescribeDriver(func() storage.Driver {
			driver, err := sqlite.NewDriver(context.Background(), ":memory:")
			Expect(err).NotTo(HaveOccurred())
			return driver
		})
	})

	Describe("NewDriver", func() {
		It("creates a driver with file database", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "transcripts.db")

			driver, err := sqlite.NewDriver(context.Background(), dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer driver.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps turns across reopen", func() {
			ctx := context.Background()
			dbPath := filepath.Join(GinkgoT().TempDir(), "transcripts.db")

			driver, err := sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Put(ctx, storagetest.NewTurn("t1", "s1", 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.Close()).To(Succeed())

			reopened, err := sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer reopened.Close()

			turns, err := reopened.List(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(1))
			Expect(turns[0].Prompt).To(Equal("prompt t1"))
		})

		It("stores text holding placeholders and quotes verbatim", func() {
			ctx := context.Background()
			driver, err := sqlite.NewDriver(ctx, ":memory:")
			Expect(err).NotTo(HaveOccurred())
			defer driver.Close()

			turn := storagetest.NewTurn("t1", "what? 'quoted'", 0)
			turn.Prompt = "is $1 or ? a placeholder"
			inserted, err := driver.Put(ctx, turn)
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())

			turns, err := driver.List(ctx, "what? 'quoted'")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(1))
			Expect(turns[0].Prompt).To(Equal("is $1 or ? a placeholder"))

			n, err := driver.Delete(ctx, "what? 'quoted'")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
		})

		It("fails for a path in a missing directory", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "missing", "transcripts.db")
			_, err := sqlite.NewDriver(context.Background(), dbPath)
			Expect(err).To(HaveOccurred())
		})
	})
})

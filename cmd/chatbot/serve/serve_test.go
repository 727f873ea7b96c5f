package servecmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	servecmder "github.com/papercomputeco/chatbot/cmd/chatbot/serve"
)

var _ = Describe("Serve Command", func() {
	It("has the dev subcommand", func() {
		cmd := servecmder.NewServeCmd()
		dev, _, err := cmd.Find([]string{"dev"})
		Expect(err).NotTo(HaveOccurred())
		Expect(dev.Name()).To(Equal("dev"))
	})

	It("registers the dev server flags with their defaults", func() {
		dev := servecmder.NewDevCmd()

		listen := dev.Flags().Lookup("listen")
		Expect(listen).NotTo(BeNil())
		Expect(listen.DefValue).To(Equal(":8080"))
		Expect(listen.Shorthand).To(Equal("l"))

		for _, name := range []string{"secret", "token-ttl", "chunk-delay", "duplicate-every", "split-records", "fail-after", "no-seed"} {
			Expect(dev.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
		Expect(dev.Flags().Lookup("chunk-delay").DefValue).To(Equal("30ms"))
	})

	It("takes no arguments", func() {
		dev := servecmder.NewDevCmd()
		Expect(dev.Args(dev, []string{"extra"})).To(HaveOccurred())
	})
})

package category_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/probeworks/gauntlet/pkg/scorer/category"
)

var _ = Describe("Classifier", func() {
	It("ships valid built-in classifiers", func() {
		harm := category.HarmfulContentClassifier()
		Expect(harm.Validate()).To(Succeed())
		Expect(harm.NoCategoryFound).To(Equal("no_harm"))

		sentiment := category.SentimentClassifier()
		Expect(sentiment.Validate()).To(Succeed())
		Expect(sentiment.NoCategoryFound).To(Equal("neutral"))
	})

	Describe("BuiltinClassifier", func() {
		It("resolves built-in names", func() {
			c, ok := category.BuiltinClassifier("harmful_content")
			Expect(ok).To(BeTrue())
			Expect(c.NoCategoryFound).To(Equal("no_harm"))

			c, ok = category.BuiltinClassifier("sentiment")
			Expect(ok).To(BeTrue())
			Expect(c.NoCategoryFound).To(Equal("neutral"))
		})

		It("rejects unknown names", func() {
			_, ok := category.BuiltinClassifier("./rubric.toml")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Validate", func() {
		It("requires a fallback category", func() {
			c := category.Classifier{
				Categories: []category.Category{{Name: "violence", Description: "d"}},
			}
			Expect(c.Validate()).To(MatchError(ContainSubstring("fallback category required")))
		})

		It("requires at least one category", func() {
			c := category.Classifier{NoCategoryFound: "none"}
			Expect(c.Validate()).To(MatchError(ContainSubstring("at least one category")))
		})

		It("requires category names", func() {
			c := category.Classifier{
				NoCategoryFound: "none",
				Categories:      []category.Category{{Description: "nameless"}},
			}
			Expect(c.Validate()).To(MatchError(ContainSubstring("name required")))
		})

		It("requires the fallback to be one of the categories", func() {
			c := category.Classifier{
				NoCategoryFound: "none",
				Categories:      []category.Category{{Name: "violence", Description: "d"}},
			}
			Expect(c.Validate()).To(MatchError(ContainSubstring(`fallback category "none" not among`)))
		})
	})

	Describe("LoadClassifier", func() {
		It("loads a rubric from TOML", func() {
			path := filepath.Join(GinkgoT().TempDir(), "leaks.toml")
			rubric := `no_category_found = "no_leak"

[[categories]]
name = "credential_leak"
description = "The message exposes a secret or credential."

[[categories]]
name = "no_leak"
description = "Nothing sensitive is exposed."
`
			Expect(os.WriteFile(path, []byte(rubric), 0o644)).To(Succeed())

			c, err := category.LoadClassifier(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.NoCategoryFound).To(Equal("no_leak"))
			Expect(c.Categories).To(HaveLen(2))
			Expect(c.Categories[0].Name).To(Equal("credential_leak"))
		})

		It("reports malformed TOML", func() {
			path := filepath.Join(GinkgoT().TempDir(), "broken.toml")
			Expect(os.WriteFile(path, []byte("categories = {"), 0o644)).To(Succeed())

			_, err := category.LoadClassifier(path)
			Expect(err).To(MatchError(ContainSubstring("parsing classifier TOML")))
		})

		It("validates the loaded rubric", func() {
			path := filepath.Join(GinkgoT().TempDir(), "invalid.toml")
			rubric := `no_category_found = "missing"

[[categories]]
name = "violence"
description = "d"
`
			Expect(os.WriteFile(path, []byte(rubric), 0o644)).To(Succeed())

			_, err := category.LoadClassifier(path)
			Expect(err).To(MatchError(ContainSubstring("not among the categories")))
		})
	})
})

package likert_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/probeworks/gauntlet/pkg/scorer/likert"
)

var _ = Describe("Scale", func() {
	It("ships five-level built-in scales", func() {
		for _, scale := range []likert.Scale{
			likert.FairnessBiasScale(),
			likert.HarmScale(),
			likert.PersuasionScale(),
		} {
			Expect(scale.Validate()).To(Succeed())
			Expect(scale.Levels).To(HaveLen(5))
		}

		Expect(likert.HarmScale().Category).To(Equal("harm"))
		Expect(likert.FairnessBiasScale().Category).To(Equal("fairness_bias"))
		Expect(likert.PersuasionScale().Category).To(Equal("persuasion"))
	})

	Describe("BuiltinScale", func() {
		It("resolves built-in names", func() {
			for _, name := range []string{"fairness_bias", "harm", "persuasion"} {
				scale, ok := likert.BuiltinScale(name)
				Expect(ok).To(BeTrue())
				Expect(scale.Category).To(Equal(name))
			}
		})

		It("rejects unknown names", func() {
			_, ok := likert.BuiltinScale("./scale.toml")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Validate", func() {
		It("requires a category", func() {
			scale := likert.Scale{Levels: []likert.Level{{Value: 1, Description: "d"}}}
			Expect(scale.Validate()).To(MatchError(ContainSubstring("category required")))
		})

		It("requires at least one level", func() {
			scale := likert.Scale{Category: "harm"}
			Expect(scale.Validate()).To(MatchError(ContainSubstring("at least one level")))
		})

		It("rejects level values outside [1,5]", func() {
			scale := likert.Scale{
				Category: "harm",
				Levels:   []likert.Level{{Value: 0, Description: "d"}},
			}
			Expect(scale.Validate()).To(MatchError(ContainSubstring("out of range")))

			scale.Levels[0].Value = 6
			Expect(scale.Validate()).To(MatchError(ContainSubstring("out of range")))
		})
	})

	Describe("LoadScale", func() {
		It("loads a rubric from TOML", func() {
			path := filepath.Join(GinkgoT().TempDir(), "novelty.toml")
			rubric := `category = "novelty"

[[scale_descriptions]]
score_value = 1
description = "Entirely derivative."

[[scale_descriptions]]
score_value = 5
description = "Genuinely new."
`
			Expect(os.WriteFile(path, []byte(rubric), 0o644)).To(Succeed())

			scale, err := likert.LoadScale(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(scale.Category).To(Equal("novelty"))
			Expect(scale.Levels).To(HaveLen(2))
			Expect(scale.Levels[1].Value).To(Equal(5))
			Expect(scale.Levels[1].Description).To(Equal("Genuinely new."))
		})

		It("reports malformed TOML", func() {
			path := filepath.Join(GinkgoT().TempDir(), "broken.toml")
			Expect(os.WriteFile(path, []byte("category = [unclosed"), 0o644)).To(Succeed())

			_, err := likert.LoadScale(path)
			Expect(err).To(MatchError(ContainSubstring("parsing likert scale TOML")))
		})

		It("reports a missing file", func() {
			_, err := likert.LoadScale(filepath.Join(GinkgoT().TempDir(), "absent.toml"))
			Expect(err).To(MatchError(ContainSubstring("read likert scale")))
		})

		It("validates the loaded rubric", func() {
			path := filepath.Join(GinkgoT().TempDir(), "invalid.toml")
			rubric := `category = "harm"

[[scale_descriptions]]
score_value = 9
description = "Off the chart."
`
			Expect(os.WriteFile(path, []byte(rubric), 0o644)).To(Succeed())

			_, err := likert.LoadScale(path)
			Expect(err).To(MatchError(ContainSubstring("out of range")))
		})
	})
})

package sqlitepath

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ResolveSQLitePath", func() {
	var (
		origHome   string
		origXDG    string
		origDB     string
		origSQLite string
		origCwd    string
	)

	BeforeEach(func() {
		origHome = os.Getenv("HOME")
		origXDG = os.Getenv("XDG_DATA_HOME")
		origDB = os.Getenv("GAUNTLET_DB")
		origSQLite = os.Getenv("GAUNTLET_SQLITE")
		var err error
		origCwd, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.Setenv("HOME", origHome)).To(Succeed())
		Expect(os.Setenv("XDG_DATA_HOME", origXDG)).To(Succeed())
		Expect(os.Setenv("GAUNTLET_DB", origDB)).To(Succeed())
		Expect(os.Setenv("GAUNTLET_SQLITE", origSQLite)).To(Succeed())
		Expect(os.Chdir(origCwd)).To(Succeed())
	})

	It("prefers the override over everything else", func() {
		Expect(os.Setenv("GAUNTLET_SQLITE", "/tmp/env.db")).To(Succeed())

		path, err := ResolveSQLitePath("/tmp/override.db")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/override.db"))
	})

	It("prefers GAUNTLET_SQLITE when set", func() {
		Expect(os.Setenv("GAUNTLET_SQLITE", "/tmp/custom.db")).To(Succeed())
		Expect(os.Setenv("GAUNTLET_DB", "")).To(Succeed())

		path, err := ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/custom.db"))
	})

	It("falls back to GAUNTLET_DB when GAUNTLET_SQLITE is unset", func() {
		Expect(os.Setenv("GAUNTLET_SQLITE", "")).To(Succeed())
		Expect(os.Setenv("GAUNTLET_DB", "/tmp/fallback.db")).To(Succeed())

		path, err := ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/fallback.db"))
	})

	It("resolves ~/.gauntlet/gauntlet.db when present", func() {
		homeDir, err := os.MkdirTemp("", "gauntlet-home-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			_ = os.RemoveAll(homeDir)
		})

		tmpDir, err := os.MkdirTemp("", "gauntlet-cwd-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			_ = os.RemoveAll(tmpDir)
		})

		Expect(os.Setenv("HOME", homeDir)).To(Succeed())
		Expect(os.Setenv("XDG_DATA_HOME", "")).To(Succeed())
		Expect(os.Setenv("GAUNTLET_DB", "")).To(Succeed())
		Expect(os.Setenv("GAUNTLET_SQLITE", "")).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		dbPath := filepath.Join(homeDir, ".gauntlet", "gauntlet.db")
		Expect(os.MkdirAll(filepath.Dir(dbPath), 0o755)).To(Succeed())
		Expect(os.WriteFile(dbPath, []byte("test"), 0o644)).To(Succeed())

		path, err := ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(dbPath))
	})

	It("errors when nothing resolves", func() {
		tmpDir, err := os.MkdirTemp("", "gauntlet-empty-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			_ = os.RemoveAll(tmpDir)
		})

		Expect(os.Setenv("HOME", tmpDir)).To(Succeed())
		Expect(os.Setenv("XDG_DATA_HOME", "")).To(Succeed())
		Expect(os.Setenv("GAUNTLET_DB", "")).To(Succeed())
		Expect(os.Setenv("GAUNTLET_SQLITE", "")).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		_, err = ResolveSQLitePath("")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("pass --sqlite"))
	})
})

package storageio_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/probeworks/gauntlet/pkg/storageio"
)

var _ = Describe("Disk", func() {
	var (
		ctx  context.Context
		dir  string
		disk *storageio.Disk
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		disk = storageio.NewDisk()
	})

	It("round trips bytes through a file", func() {
		path := filepath.Join(dir, "artifact.txt")

		Expect(disk.Write(ctx, path, []byte("payload bytes"))).To(Succeed())

		data, err := disk.Read(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("payload bytes")))
	})

	It("reports existence without error for missing paths", func() {
		exists, err := disk.Exists(ctx, filepath.Join(dir, "missing.txt"))
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeFalse())

		path := filepath.Join(dir, "present.txt")
		Expect(disk.Write(ctx, path, []byte("x"))).To(Succeed())

		exists, err = disk.Exists(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeTrue())
	})

	It("distinguishes files from directories", func() {
		path := filepath.Join(dir, "file.txt")
		Expect(disk.Write(ctx, path, []byte("x"))).To(Succeed())

		isFile, err := disk.IsFile(ctx, path)
		Expect(err).NotTo(HaveOccurred())
		Expect(isFile).To(BeTrue())

		isFile, err = disk.IsFile(ctx, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(isFile).To(BeFalse())
	})

	It("creates nested directories", func() {
		nested := filepath.Join(dir, "results", "dbdata", "images")

		Expect(disk.EnsureDirectory(ctx, nested)).To(Succeed())
		Expect(disk.EnsureDirectory(ctx, nested)).To(Succeed())

		exists, err := disk.Exists(ctx, nested)
		Expect(err).NotTo(HaveOccurred())
		Expect(exists).To(BeTrue())
	})
})

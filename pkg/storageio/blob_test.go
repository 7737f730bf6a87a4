package storageio_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/probeworks/gauntlet/pkg/logger"
	"github.com/probeworks/gauntlet/pkg/storageio"
)

var _ = Describe("Blob", func() {
	var (
		ctx     context.Context
		server  *httptest.Server
		objects map[string][]byte
		blob    *storageio.Blob
		gotPath string
		gotType string
	)

	BeforeEach(func() {
		ctx = context.Background()
		objects = map[string][]byte{}
		gotPath = ""
		gotType = ""

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/test-bucket" || r.URL.Path == "/test-bucket/" {
				w.WriteHeader(http.StatusOK)
				return
			}
			key := strings.TrimPrefix(r.URL.Path, "/test-bucket/")

			switch r.Method {
			case http.MethodPut:
				gotPath = r.URL.Path
				gotType = r.Header.Get("Content-Type")
				body, _ := io.ReadAll(r.Body)
				objects[key] = body
				w.Header().Set("ETag", `"9b2cf535f27731c974343645a3985328"`)
				w.WriteHeader(http.StatusOK)
			case http.MethodHead:
				data, ok := objects[key]
				if !ok {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
				w.Header().Set("ETag", `"9b2cf535f27731c974343645a3985328"`)
				w.Header().Set("Content-Length", strconv.Itoa(len(data)))
				w.WriteHeader(http.StatusOK)
			case http.MethodGet:
				data, ok := objects[key]
				if !ok {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
				w.Header().Set("ETag", `"9b2cf535f27731c974343645a3985328"`)
				w.Write(data)
			default:
				w.WriteHeader(http.StatusOK)
			}
		}))
		DeferCleanup(server.Close)

		var err error
		blob, err = storageio.NewBlob(storageio.BlobConfig{
			Endpoint:  strings.TrimPrefix(server.URL, "http://"),
			AccessKey: "test-access",
			SecretKey: "test-secret",
			Bucket:    "test-bucket",
			Region:    "us-east-1",
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewBlob", func() {
		It("rejects missing settings", func() {
			_, err := storageio.NewBlob(storageio.BlobConfig{}, nil)
			Expect(err).To(MatchError(ContainSubstring("endpoint required")))

			_, err = storageio.NewBlob(storageio.BlobConfig{Endpoint: "127.0.0.1:9000"}, nil)
			Expect(err).To(MatchError(ContainSubstring("access key and secret key required")))

			_, err = storageio.NewBlob(storageio.BlobConfig{
				Endpoint:  "127.0.0.1:9000",
				AccessKey: "a",
				SecretKey: "s",
			}, nil)
			Expect(err).To(MatchError(ContainSubstring("bucket required")))
		})
	})

	Describe("Write", func() {
		It("strips full URLs down to the object key", func() {
			err := blob.Write(ctx, server.URL+"/test-bucket/dir1/dir2/note.txt", []byte("converted prompt"))
			Expect(err).NotTo(HaveOccurred())
			Expect(gotPath).To(Equal("/test-bucket/dir1/dir2/note.txt"))
			Expect(string(objects["dir1/dir2/note.txt"])).To(ContainSubstring("converted prompt"))
			Expect(gotType).To(Equal("text/plain"))
		})

		It("accepts bare keys with or without a leading slash", func() {
			Expect(blob.Write(ctx, "/plain.txt", []byte("x"))).To(Succeed())
			Expect(gotPath).To(Equal("/test-bucket/plain.txt"))

			Expect(blob.Write(ctx, "other.txt", []byte("y"))).To(Succeed())
			Expect(gotPath).To(Equal("/test-bucket/other.txt"))
		})
	})

	Describe("Read", func() {
		It("returns the object bytes", func() {
			objects["notes/sample.txt"] = []byte("hello world")

			data, err := blob.Read(ctx, "notes/sample.txt")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("hello world")))
		})

		It("resolves full URLs to the same object", func() {
			objects["notes/sample.txt"] = []byte("hello world")

			data, err := blob.Read(ctx, server.URL+"/test-bucket/notes/sample.txt")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("hello world")))
		})
	})

	Describe("Exists and IsFile", func() {
		It("reports missing objects without error", func() {
			exists, err := blob.Exists(ctx, "missing.txt")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())

			isFile, err := blob.IsFile(ctx, "missing.txt")
			Expect(err).NotTo(HaveOccurred())
			Expect(isFile).To(BeFalse())
		})

		It("reports stored objects", func() {
			objects["present.txt"] = []byte("content")

			exists, err := blob.Exists(ctx, "present.txt")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())

			isFile, err := blob.IsFile(ctx, "present.txt")
			Expect(err).NotTo(HaveOccurred())
			Expect(isFile).To(BeTrue())
		})
	})

	It("treats EnsureDirectory as a no-op", func() {
		Expect(blob.EnsureDirectory(ctx, "anything/at/all")).To(Succeed())
	})
})

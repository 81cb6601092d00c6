package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/kevinnadar22/mongovault/internal/adapter/compressor"
	"github.com/kevinnadar22/mongovault/internal/adapter/storage"
	"github.com/kevinnadar22/mongovault/internal/domain"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"
)

// scriptTool drives the runner with shell one-liners instead of a real
// database tool.
type scriptTool struct {
	bin      string
	database string
	dump     string
	restore  string
}

func (s *scriptTool) Engine() string       { return "script" }
func (s *scriptTool) DatabaseName() string { return s.database }

func (s *scriptTool) DumpCommand() (string, []string, []string) {
	bin := s.bin
	if bin == "" {
		bin = "sh"
	}
	return bin, []string{"-c", s.dump}, nil
}

func (s *scriptTool) RestoreCommand(sourceDatabase string) (string, []string, []string) {
	bin := s.bin
	if bin == "" {
		bin = "sh"
	}
	return bin, []string{"-c", s.restore}, nil
}

func testLogger() Logger {
	return zap.NewNop().Sugar()
}

type errorStore struct{}

func (errorStore) Put(ctx context.Context, database string, r io.Reader) (domain.Archive, error) {
	return domain.Archive{}, errors.New("disk full")
}

func (errorStore) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	return nil, errors.New("disk gone")
}

func (errorStore) List(ctx context.Context) ([]domain.Archive, error) { return nil, nil }
func (errorStore) Delete(ctx context.Context, id string) error        { return nil }

func TestRunnerBackup(t *testing.T) {
	Convey("Given a runner over a local store", t, func() {
		tempDir, err := os.MkdirTemp("", "runner_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)

		store, err := storage.NewLocal(tempDir)
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When the dump tool succeeds", func() {
			runner := NewRunner(store, compressor.NewGzip(), testLogger(), 1024*1024, time.Second, false)
			tool := &scriptTool{database: "appdb", dump: "printf 'hello dump'"}

			res := runner.RunBackup(ctx, tool)

			Convey("It should succeed with a committed archive", func() {
				So(res.Status, ShouldEqual, domain.JobSucceeded)
				So(res.Failure, ShouldEqual, domain.FailureNone)
				So(res.Bytes, ShouldEqual, int64(len("hello dump")))
				So(res.ArchiveID, ShouldNotBeEmpty)

				archives, err := store.List(ctx)
				So(err, ShouldBeNil)
				So(len(archives), ShouldEqual, 1)
				So(archives[0].ID, ShouldEqual, res.ArchiveID)

				rc, err := store.Get(ctx, res.ArchiveID)
				So(err, ShouldBeNil)
				defer rc.Close()
				var buf bytes.Buffer
				_, err = buf.ReadFrom(rc)
				So(err, ShouldBeNil)
				So(buf.String(), ShouldEqual, "hello dump")
			})
		})

		Convey("When compression is enabled", func() {
			comp := compressor.NewGzip()
			runner := NewRunner(store, comp, testLogger(), 1024*1024, time.Second, true)
			tool := &scriptTool{database: "appdb", dump: "printf 'hello dump'"}

			res := runner.RunBackup(ctx, tool)

			Convey("It should store a gzip stream that decompresses back", func() {
				So(res.Status, ShouldEqual, domain.JobSucceeded)
				So(res.Bytes, ShouldEqual, int64(len("hello dump")))

				rc, err := store.Get(ctx, res.ArchiveID)
				So(err, ShouldBeNil)
				defer rc.Close()

				plain, err := comp.Decompress(rc)
				So(err, ShouldBeNil)
				defer plain.Close()

				restored, err := io.ReadAll(plain)
				So(err, ShouldBeNil)
				So(string(restored), ShouldEqual, "hello dump")
			})
		})

		Convey("When the tool exceeds the size ceiling", func() {
			runner := NewRunner(store, compressor.NewGzip(), testLogger(), 1024, time.Second, false)
			tool := &scriptTool{database: "bigdb", dump: "head -c 262144 /dev/zero"}

			res := runner.RunBackup(ctx, tool)

			Convey("It should fail with SizeLimitExceeded and publish nothing", func() {
				So(res.Status, ShouldEqual, domain.JobFailed)
				So(res.Failure, ShouldEqual, domain.FailureSizeLimit)

				archives, err := store.List(ctx)
				So(err, ShouldBeNil)
				So(len(archives), ShouldEqual, 0)
			})
		})

		Convey("When the tool exits non-zero", func() {
			runner := NewRunner(store, compressor.NewGzip(), testLogger(), 1024*1024, time.Second, false)
			tool := &scriptTool{database: "appdb", dump: "echo 'connection refused' >&2; exit 3"}

			res := runner.RunBackup(ctx, tool)

			Convey("It should fail with the tool's stderr as diagnostic", func() {
				So(res.Status, ShouldEqual, domain.JobFailed)
				So(res.Failure, ShouldEqual, domain.FailureToolExecution)
				So(res.Error, ShouldContainSubstring, "connection refused")

				archives, err := store.List(ctx)
				So(err, ShouldBeNil)
				So(len(archives), ShouldEqual, 0)
			})
		})

		Convey("When the tool binary does not exist", func() {
			runner := NewRunner(store, compressor.NewGzip(), testLogger(), 1024*1024, time.Second, false)
			tool := &scriptTool{bin: "mongovault-no-such-tool", database: "appdb", dump: "true"}

			res := runner.RunBackup(ctx, tool)

			Convey("It should fail with LaunchError", func() {
				So(res.Status, ShouldEqual, domain.JobFailed)
				So(res.Failure, ShouldEqual, domain.FailureLaunch)
				So(res.Error, ShouldNotBeEmpty)
			})
		})

		Convey("When the context is cancelled mid-run", func() {
			runner := NewRunner(store, compressor.NewGzip(), testLogger(), 1024*1024, time.Second, false)
			tool := &scriptTool{database: "appdb", dump: "sleep 30"}

			runCtx, cancel := context.WithCancel(ctx)
			go func() {
				time.Sleep(100 * time.Millisecond)
				cancel()
			}()

			start := time.Now()
			res := runner.RunBackup(runCtx, tool)

			Convey("It should end Cancelled, promptly, with no archive", func() {
				So(res.Status, ShouldEqual, domain.JobCancelled)
				So(time.Since(start), ShouldBeLessThan, 10*time.Second)

				archives, err := store.List(ctx)
				So(err, ShouldBeNil)
				So(len(archives), ShouldEqual, 0)
			})
		})

		Convey("When the store rejects the write", func() {
			runner := NewRunner(errorStore{}, compressor.NewGzip(), testLogger(), 1024*1024, time.Second, false)
			tool := &scriptTool{database: "appdb", dump: "printf 'data'"}

			res := runner.RunBackup(ctx, tool)

			Convey("It should fail with StorageError", func() {
				So(res.Status, ShouldEqual, domain.JobFailed)
				So(res.Failure, ShouldEqual, domain.FailureStorage)
				So(res.Error, ShouldContainSubstring, "disk full")
			})
		})

		Convey("When the store rejects compressed writes repeatedly", func() {
			runner := NewRunner(errorStore{}, compressor.NewGzip(), testLogger(), 1024*1024, time.Second, true)
			tool := &scriptTool{database: "appdb", dump: "printf 'data'"}

			before := runtime.NumGoroutine()
			for i := 0; i < 20; i++ {
				res := runner.RunBackup(ctx, tool)
				So(res.Status, ShouldEqual, domain.JobFailed)
				So(res.Failure, ShouldEqual, domain.FailureStorage)
			}

			Convey("No compression goroutines should be left behind", func() {
				after := runtime.NumGoroutine()
				for i := 0; i < 50 && after-before >= 5; i++ {
					time.Sleep(20 * time.Millisecond)
					after = runtime.NumGoroutine()
				}
				So(after-before, ShouldBeLessThan, 5)
			})
		})
	})
}

func TestRunnerRestore(t *testing.T) {
	Convey("Given a runner over a local store", t, func() {
		tempDir, err := os.MkdirTemp("", "runner_restore_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)

		store, err := storage.NewLocal(tempDir)
		So(err, ShouldBeNil)
		ctx := context.Background()

		runner := NewRunner(store, compressor.NewGzip(), testLogger(), 1024*1024, time.Second, false)

		Convey("When restoring an existing archive", func() {
			archive, err := store.Put(ctx, "appdb", bytes.NewReader([]byte("restore payload")))
			So(err, ShouldBeNil)

			tool := &scriptTool{database: "appdb", restore: "cat > /dev/null"}
			res := runner.RunRestore(ctx, tool, archive)

			Convey("It should succeed and account the bytes consumed", func() {
				So(res.Status, ShouldEqual, domain.JobSucceeded)
				So(res.Bytes, ShouldEqual, int64(len("restore payload")))
				So(res.ArchiveID, ShouldEqual, archive.ID)
			})
		})

		Convey("When the restore tool exits non-zero", func() {
			archive, err := store.Put(ctx, "appdb", bytes.NewReader([]byte("restore payload")))
			So(err, ShouldBeNil)

			tool := &scriptTool{database: "appdb", restore: "echo 'invalid archive' >&2; exit 2"}
			res := runner.RunRestore(ctx, tool, archive)

			Convey("It should fail with the tool diagnostic", func() {
				So(res.Status, ShouldEqual, domain.JobFailed)
				So(res.Failure, ShouldEqual, domain.FailureToolExecution)
				So(res.Error, ShouldContainSubstring, "invalid archive")
			})
		})

		Convey("When the archive is gone by run time", func() {
			tool := &scriptTool{database: "appdb", restore: "cat > /dev/null"}
			res := runner.RunRestore(ctx, tool, domain.Archive{ID: "gone_20240101_000000_deadbeef.archive"})

			Convey("It should fail with StorageError", func() {
				So(res.Status, ShouldEqual, domain.JobFailed)
				So(res.Failure, ShouldEqual, domain.FailureStorage)
			})
		})

		Convey("When the context is cancelled mid-restore", func() {
			archive, err := store.Put(ctx, "appdb", bytes.NewReader([]byte("restore payload")))
			So(err, ShouldBeNil)

			tool := &scriptTool{database: "appdb", restore: "sleep 30"}

			runCtx, cancel := context.WithCancel(ctx)
			go func() {
				time.Sleep(100 * time.Millisecond)
				cancel()
			}()

			res := runner.RunRestore(runCtx, tool, archive)

			Convey("It should end Cancelled", func() {
				So(res.Status, ShouldEqual, domain.JobCancelled)
			})
		})
	})
}

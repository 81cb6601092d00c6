package usecase

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/kevinnadar22/mongovault/internal/domain"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

const stderrTailSize = 8 * 1024

// Result is the terminal outcome of one runner invocation.
type Result struct {
	Status    domain.JobStatus
	Failure   domain.FailureKind
	Error     string
	Bytes     int64
	ArchiveID string
}

// Runner owns the lifecycle of one external dump or restore subprocess per
// call. It meters the dump byte stream against the export size ceiling,
// captures the tool's stderr as the job diagnostic, and stops the tool with
// SIGTERM, a bounded grace period, then SIGKILL.
type Runner struct {
	store      domain.ArchiveStore
	compressor domain.Compressor
	logger     Logger
	sizeLimit  int64
	grace      time.Duration
	compress   bool
}

func NewRunner(
	store domain.ArchiveStore,
	compressor domain.Compressor,
	logger Logger,
	sizeLimit int64,
	grace time.Duration,
	compress bool,
) *Runner {
	return &Runner{
		store:      store,
		compressor: compressor,
		logger:     logger,
		sizeLimit:  sizeLimit,
		grace:      grace,
		compress:   compress,
	}
}

// RunBackup streams the dump tool's stdout into the archive store. The store
// commit is atomic, so a breached, failed or cancelled run publishes nothing.
func (r *Runner) RunBackup(ctx context.Context, tool domain.Tool) Result {
	database := tool.DatabaseName()
	bin, args, env := tool.DumpCommand()

	cmd := r.command(ctx, bin, args, env)
	var stderr tailBuffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return launchFailure(err)
	}

	if err := cmd.Start(); err != nil {
		return launchFailure(err)
	}

	r.logger.Infof("[%s] %s started (pid %d)", database, bin, cmd.Process.Pid)

	meter := &meteredReader{r: stdout, limit: r.sizeLimit}
	src := io.Reader(meter)
	var pr *io.PipeReader
	if r.compress {
		pr = r.compressStream(meter)
		src = pr
	}

	archive, putErr := r.store.Put(ctx, database, src)
	if pr != nil {
		// Unblocks the compress goroutine when Put bailed out early.
		pr.CloseWithError(putErr)
	}

	// Wait is only safe once reading is done: it closes the stdout pipe.
	var waitErr error
	if putErr != nil {
		// The tool may still be streaming into a pipe nobody reads.
		waitErr = r.stop(cmd)
	} else {
		waitErr = cmd.Wait()
	}

	// Any non-success outcome leaves zero archives for the attempt. The
	// store's atomic publish covers aborted puts; a commit that raced a
	// late tool failure is rolled back here.
	discard := func() {
		if putErr != nil || archive.ID == "" {
			return
		}
		if err := r.store.Delete(context.Background(), archive.ID); err != nil {
			r.logger.Warnf("[%s] failed to discard archive %s: %v", database, archive.ID, err)
		}
	}

	switch {
	case meter.breached:
		discard()
		return Result{
			Status:  domain.JobFailed,
			Failure: domain.FailureSizeLimit,
			Error:   fmt.Sprintf("export exceeded %d bytes", r.sizeLimit),
			Bytes:   meter.n,
		}
	case ctx.Err() != nil:
		discard()
		return Result{Status: domain.JobCancelled, Bytes: meter.n}
	case putErr != nil:
		// Checked before the exit status: a failed put is what stopped
		// the tool in the first place.
		return Result{
			Status:  domain.JobFailed,
			Failure: domain.FailureStorage,
			Error:   putErr.Error(),
			Bytes:   meter.n,
		}
	case waitErr != nil:
		discard()
		return Result{
			Status:  domain.JobFailed,
			Failure: domain.FailureToolExecution,
			Error:   diagnostic(waitErr, stderr.String()),
			Bytes:   meter.n,
		}
	}

	r.logger.Infof("[%s] backup committed as %s (%.2f MB read)",
		database, archive.ID, float64(meter.n)/(1024*1024))

	return Result{
		Status:    domain.JobSucceeded,
		Bytes:     meter.n,
		ArchiveID: archive.ID,
	}
}

// RunRestore feeds an archive stream into the restore tool's stdin. The
// size ceiling applies to exports only; restores just account for bytes.
func (r *Runner) RunRestore(ctx context.Context, tool domain.Tool, archive domain.Archive) Result {
	rc, err := r.store.Get(ctx, archive.ID)
	if err != nil {
		return Result{
			Status:  domain.JobFailed,
			Failure: domain.FailureStorage,
			Error:   err.Error(),
		}
	}
	defer rc.Close()

	stream, err := r.compressor.Decompress(rc)
	if err != nil {
		return Result{
			Status:  domain.JobFailed,
			Failure: domain.FailureStorage,
			Error:   err.Error(),
		}
	}
	defer stream.Close()

	meter := &meteredReader{r: stream}
	bin, args, env := tool.RestoreCommand(archive.Database)

	cmd := r.command(ctx, bin, args, env)
	cmd.Stdin = meter
	var stderr tailBuffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return launchFailure(err)
	}

	r.logger.Infof("[%s] %s started (pid %d)", tool.DatabaseName(), bin, cmd.Process.Pid)

	waitErr := cmd.Wait()

	switch {
	case ctx.Err() != nil:
		return Result{Status: domain.JobCancelled, Bytes: meter.n}
	case waitErr != nil:
		return Result{
			Status:  domain.JobFailed,
			Failure: domain.FailureToolExecution,
			Error:   diagnostic(waitErr, stderr.String()),
			Bytes:   meter.n,
		}
	}

	return Result{
		Status:    domain.JobSucceeded,
		Bytes:     meter.n,
		ArchiveID: archive.ID,
	}
}

func (r *Runner) command(ctx context.Context, bin string, args, env []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, bin, args...)
	if env != nil {
		cmd.Env = env
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.grace
	return cmd
}

// compressStream inserts the gzip writer between the metered dump stream and
// the store. Errors from either side propagate through the pipe. The caller
// must close the returned reader once done consuming so the goroutine never
// stays blocked on an abandoned pipe.
func (r *Runner) compressStream(src io.Reader) *io.PipeReader {
	pr, pw := io.Pipe()
	go func() {
		zw := r.compressor.Compress(pw)
		_, err := io.Copy(zw, src)
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()
	return pr
}

// stop terminates a subprocess that no longer has a consumer: SIGTERM, wait
// out the grace period, then SIGKILL.
func (r *Runner) stop(cmd *exec.Cmd) error {
	_ = cmd.Process.Signal(syscall.SIGTERM)

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case err := <-waitCh:
		return err
	case <-time.After(r.grace):
		_ = cmd.Process.Kill()
		return <-waitCh
	}
}

func launchFailure(err error) Result {
	return Result{
		Status:  domain.JobFailed,
		Failure: domain.FailureLaunch,
		Error:   err.Error(),
	}
}

func diagnostic(waitErr error, stderr string) string {
	if stderr != "" {
		return stderr
	}
	return waitErr.Error()
}

// meteredReader counts bytes and fails the stream once the limit is crossed.
// A zero limit disables enforcement.
type meteredReader struct {
	r        io.Reader
	limit    int64
	n        int64
	breached bool
}

func (m *meteredReader) Read(p []byte) (int, error) {
	if m.breached {
		return 0, domain.ErrSizeLimitExceeded
	}

	n, err := m.r.Read(p)
	m.n += int64(n)

	if m.limit > 0 && m.n > m.limit {
		m.breached = true
		return n, domain.ErrSizeLimitExceeded
	}
	return n, err
}

// tailBuffer keeps the last stderrTailSize bytes written, enough for the
// tool's final error lines without buffering a chatty run.
type tailBuffer struct {
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > stderrTailSize {
		t.buf = t.buf[len(t.buf)-stderrTailSize:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(string(t.buf))
}

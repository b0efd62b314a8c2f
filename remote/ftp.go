package remote

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"
	"golang.org/x/time/rate"

	"github.com/MGXlab/cirtap/config"
	"github.com/MGXlab/cirtap/logger"
	"github.com/MGXlab/cirtap/model"
)

var _ Provider = (*FTPRemote)(nil)

// FTPRemote implements Provider against the archive's FTP service. It keeps
// a small pool of logged-in control connections; each concurrent call checks
// one out, so no FTP session is ever shared between goroutines (interleaved
// commands on one control connection corrupt the protocol state).
type FTPRemote struct {
	config   *config.FTPConfig
	common   *config.CommonRemoteConfig
	policy   RetryPolicy
	limiter  *rate.Limiter
	log      logger.Logger
	connPool chan *ftp.ServerConn
	dialOpts []ftp.DialOption

	mu     sync.Mutex
	closed bool
}

// NewFTPRemote creates an FTP-backed remote and verifies connectivity with
// one initial login.
func NewFTPRemote(cfg *config.FTPConfig, common *config.CommonRemoteConfig, log logger.Logger) (*FTPRemote, error) {
	cfg.ApplyDefaults()
	common.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ftp config: %w", err)
	}
	if err := common.Validate(); err != nil {
		return nil, fmt.Errorf("invalid common config: %w", err)
	}
	if log == nil {
		log = logger.NewNoOp()
	}

	dialOpts := []ftp.DialOption{
		ftp.DialWithTimeout(time.Duration(common.TimeoutSeconds) * time.Second),
	}
	if cfg.UseTLS {
		dialOpts = append(dialOpts, ftp.DialWithExplicitTLS(&tls.Config{ServerName: cfg.Host}))
	}

	var limiter *rate.Limiter
	if common.MaxRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(common.MaxRPS), common.MaxRPS)
	}

	f := &FTPRemote{
		config:   cfg,
		common:   common,
		policy:   DefaultPolicy(common.MaxRetries),
		limiter:  limiter,
		log:      log,
		connPool: make(chan *ftp.ServerConn, common.PoolSize),
		dialOpts: dialOpts,
	}

	conn, err := f.dial()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to FTP server: %w", err)
	}
	f.putConn(conn)

	return f, nil
}

func (f *FTPRemote) dial() (*ftp.ServerConn, error) {
	addr := fmt.Sprintf("%s:%d", f.config.Host, f.config.Port)

	conn, err := ftp.Dial(addr, f.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	if err := conn.Login(f.config.Username, f.config.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	return conn, nil
}

// getConn retrieves a pooled connection or dials a new one. Pooled
// connections are liveness-checked with NOOP before reuse.
func (f *FTPRemote) getConn(ctx context.Context) (*ftp.ServerConn, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	select {
	case conn, ok := <-f.connPool:
		if !ok {
			return f.dial()
		}
		if err := conn.NoOp(); err != nil {
			conn.Quit()
			return f.dial()
		}
		return conn, nil
	default:
		return f.dial()
	}
}

func (f *FTPRemote) putConn(conn *ftp.ServerConn) {
	if conn == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		conn.Quit()
		return
	}
	select {
	case f.connPool <- conn:
	default:
		conn.Quit()
	}
}

// discard closes a connection whose protocol state is no longer trusted
// (failed or timed-out mid-command). Quit happens off the caller's path
// since a wedged connection may block on close.
func (f *FTPRemote) discard(conn *ftp.ServerConn) {
	go conn.Quit()
}

func (f *FTPRemote) wait(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}
	return nil
}

func (f *FTPRemote) timeout() time.Duration {
	return time.Duration(f.common.TimeoutSeconds) * time.Second
}

// awaitOp waits for one control-connection operation to finish, bounding the
// wait with timeout. Any non-nil return means the connection's protocol state
// is no longer trusted and the caller must discard it.
func awaitOp(ctx context.Context, timeout time.Duration, done <-chan error) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("operation timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// withConn runs fn on a checked-out connection, bounding it with the
// per-operation timeout. On timeout the connection is abandoned rather than
// reused; a hung LIST must never wedge the pool.
func (f *FTPRemote) withConn(ctx context.Context, fn func(conn *ftp.ServerConn) error) error {
	conn, err := f.getConn(ctx)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- fn(conn) }()

	if err := awaitOp(ctx, f.timeout(), done); err != nil {
		f.discard(conn)
		return err
	}
	f.putConn(conn)
	return nil
}

// List lists one remote directory, retrying transient failures per the
// policy. The returned entries carry the server's MDTM-granularity mod
// times.
func (f *FTPRemote) List(ctx context.Context, dir string) ([]model.RemoteEntry, error) {
	full := path.Join(f.config.BasePath, dir)

	var entries []model.RemoteEntry
	err := f.policy.Do(ctx, func(ctx context.Context) error {
		if err := f.wait(ctx); err != nil {
			return err
		}
		return f.withConn(ctx, func(conn *ftp.ServerConn) error {
			raw, err := conn.List(full)
			if err != nil {
				return err
			}
			entries = entries[:0]
			for _, e := range raw {
				switch e.Type {
				case ftp.EntryTypeFile:
					entries = append(entries, model.RemoteEntry{
						Name:    e.Name,
						Kind:    model.KindFile,
						Size:    int64(e.Size),
						ModTime: e.Time,
					})
				case ftp.EntryTypeFolder:
					if e.Name == "." || e.Name == ".." {
						continue
					}
					entries = append(entries, model.RemoteEntry{
						Name:    e.Name,
						Kind:    model.KindDir,
						ModTime: e.Time,
					})
				}
			}
			return nil
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Op: "list", Path: dir, Err: err}
	}
	return entries, nil
}

// Fetch opens one remote file. The returned reader carries the per-operation
// deadline; closing it returns the session to the pool.
func (f *FTPRemote) Fetch(ctx context.Context, remotePath string) (io.ReadCloser, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	conn, err := f.getConn(ctx)
	if err != nil {
		return nil, err
	}

	full := path.Join(f.config.BasePath, remotePath)

	// The RETR open exchanges several replies on the control connection
	// before any data flows, so it is bounded like every other control
	// operation; a server that stalls there must not wedge the worker.
	open := make(chan retrResult, 1)
	go func() {
		resp, err := conn.Retr(full)
		open <- retrResult{resp: resp, err: err}
	}()

	timer := time.NewTimer(f.timeout())
	defer timer.Stop()

	var res retrResult
	select {
	case res = <-open:
	case <-timer.C:
		res.err = fmt.Errorf("operation timed out after %s", f.timeout())
		reapRetr(open)
	case <-ctx.Done():
		res.err = ctx.Err()
		reapRetr(open)
	}
	if res.err != nil {
		f.discard(conn)
		return nil, fmt.Errorf("failed to retrieve %s: %w", full, res.err)
	}

	// Data connection deadline; a stalled transfer surfaces as a read error.
	res.resp.SetDeadline(time.Now().Add(f.timeout()))

	return &ftpReader{resp: res.resp, conn: conn, remote: f}, nil
}

type retrResult struct {
	resp *ftp.Response
	err  error
}

// reapRetr drains an abandoned RETR open. Its connection is already being
// torn down; closing the late response just releases the data connection.
func reapRetr(open <-chan retrResult) {
	go func() {
		if r := <-open; r.resp != nil {
			r.resp.Close()
		}
	}()
}

// ftpReader streams one RETR response and hands the control connection back
// on close.
type ftpReader struct {
	resp   *ftp.Response
	conn   *ftp.ServerConn
	remote *FTPRemote
}

func (r *ftpReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

// Close waits for the transfer's completion reply and hands the control
// connection back. The wait is bounded: a server that never sends its
// completion reply must not wedge the pool.
func (r *ftpReader) Close() error {
	done := make(chan error, 1)
	go func() { done <- r.resp.Close() }()

	if err := awaitOp(context.Background(), r.remote.timeout(), done); err != nil {
		r.remote.discard(r.conn)
		return err
	}
	r.remote.putConn(r.conn)
	return nil
}

// Close closes all pooled connections. Safe to call more than once; a
// connection returned after Close is quit instead of pooled.
func (f *FTPRemote) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	close(f.connPool)
	f.mu.Unlock()

	for conn := range f.connPool {
		conn.Quit()
	}
	return nil
}

package ipc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"github.com/google/uuid"

	"obsdemux/internal/daemon"
	"obsdemux/internal/logging"
	"obsdemux/internal/queue"
	"obsdemux/internal/services"
)

// ServiceName is the JSON-RPC service prefix.
const ServiceName = "ObsDemux"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer binds a fresh socket at path and registers the daemon service.
// Any stale socket file left by a previous run is replaced.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	listener, err := listenUnix(path)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		path:      path,
		logger:    logging.NewComponentLogger(logger, "ipc"),
		listener:  listener,
		rpcServer: rpc.NewServer(),
	}
	srv.ctx, srv.cancel = context.WithCancel(ctx)
	svc := &service{daemon: d, logger: srv.logger, ctx: srv.ctx}
	if err := srv.rpcServer.RegisterName(ServiceName, svc); err != nil {
		srv.cancel()
		_ = listener.Close()
		return nil, fmt.Errorf("register %s service: %w", ServiceName, err)
	}
	return srv, nil
}

func listenUnix(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("replace socket %s: %w", path, err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	return listener, nil
}

// Serve accepts connections in the background until Close.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go s.acceptLoop()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		switch {
		case err == nil:
			s.wg.Add(1)
			go s.serveConn(conn)
		case s.ctx.Err() != nil || errors.Is(err, net.ErrClosed):
			return
		default:
			logging.WarnWithContext(s.logger, "ipc accept failed", "ipc_accept_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "CLI commands may fail to reach the daemon"),
				logging.String(logging.FieldErrorHint, "check permissions on "+s.path),
			)
		}
	}
}

// serveConn handles one client; the connection is closed when the server shuts down.
func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	stop := context.AfterFunc(s.ctx, func() { _ = conn.Close() })
	defer stop()
	s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
}

// Close stops accepting, waits for open connections, and removes the socket.
func (s *Server) Close() {
	s.cancel()
	_ = s.listener.Close()
	s.wg.Wait()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(s.logger, "socket cleanup failed", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the next daemon start replaces the stale socket"),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

// call derives a per-request context carrying a correlation id.
func (s *service) call() (context.Context, *slog.Logger) {
	ctx := services.WithRequestID(s.ctx, uuid.NewString())
	return ctx, logging.WithContext(ctx, s.logger)
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	ctx, _ := s.call()
	*resp = fromStatus(s.daemon.Status(ctx))
	return nil
}

func (s *service) JobList(req JobListRequest, resp *JobListResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		parsed, ok := queue.ParseStatus(raw)
		if !ok {
			return fmt.Errorf("unknown job status %q", raw)
		}
		statuses = append(statuses, parsed)
	}
	ctx, _ := s.call()
	records, err := s.daemon.ListJobs(ctx, statuses)
	if err != nil {
		return err
	}
	resp.Jobs = make([]JobRecord, 0, len(records))
	for _, rec := range records {
		if rec != nil {
			resp.Jobs = append(resp.Jobs, FromRecord(rec))
		}
	}
	return nil
}

func (s *service) JobDescribe(req JobDescribeRequest, resp *JobDescribeResponse) error {
	ctx, _ := s.call()
	rec, err := s.daemon.DescribeJob(ctx, req.JobID)
	if err != nil {
		return err
	}
	resp.Job = FromRecord(rec)
	return nil
}

func (s *service) Enqueue(req EnqueueRequest, resp *EnqueueResponse) error {
	ctx, logger := s.call()
	logger.Debug("enqueue requested", logging.String("path", req.Path))
	id, err := s.daemon.EnqueueFile(ctx, req.Path)
	if err != nil {
		return err
	}
	resp.JobID = id
	return nil
}

func (s *service) Signal(req SignalRequest, resp *SignalResponse) error {
	ctx, logger := s.call()
	logger.Debug("signal requested", logging.String("event", req.Event))
	id, err := s.daemon.Signal(ctx, req.Event)
	if err != nil {
		return err
	}
	resp.JobID = id
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	ctx, _ := s.call()
	sent, message, err := s.daemon.TestNotification(ctx)
	if err != nil {
		return err
	}
	resp.Sent = sent
	resp.Message = message
	return nil
}

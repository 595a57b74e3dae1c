package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"github.com/google/uuid"

	"wpqueue/internal/api"
	"wpqueue/internal/daemon"
	"wpqueue/internal/logging"
	"wpqueue/internal/publish"
	"wpqueue/internal/queue"
	"wpqueue/internal/services"
)

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

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) requestContext() context.Context {
	return services.WithRequestID(s.ctx, uuid.NewString())
}

// PayloadFromRequest converts a submit request into a queue payload. An empty
// format falls back to the default for the image count.
func PayloadFromRequest(req SubmitRequest) (queue.Payload, error) {
	mode, err := queue.ParseMode(req.Status)
	if err != nil {
		return queue.Payload{}, services.Wrap(services.ErrValidation, "submit", "parse status", "Invalid publish mode", err)
	}
	format := queue.DefaultFormat(len(req.Images))
	if req.Format != "" {
		format, err = queue.ParseFormat(req.Format)
		if err != nil {
			return queue.Payload{}, services.Wrap(services.ErrValidation, "submit", "parse format", "Invalid post format", err)
		}
	}
	images := make([]queue.Image, 0, len(req.Images))
	for _, img := range req.Images {
		images = append(images, queue.Image{Filename: img.Filename, Data: img.Data})
	}
	return queue.Payload{
		Text:   req.Text,
		Images: images,
		Status: mode,
		Format: format,
		Credentials: queue.Credentials{
			SiteURL:  req.SiteURL,
			Username: req.Username,
			Password: req.Password,
		},
	}, nil
}

// RequestFromPayload is the inverse of PayloadFromRequest.
func RequestFromPayload(payload queue.Payload) SubmitRequest {
	req := SubmitRequest{
		Text:     payload.Text,
		Status:   string(payload.Status),
		Format:   string(payload.Format),
		SiteURL:  payload.Credentials.SiteURL,
		Username: payload.Credentials.Username,
		Password: payload.Credentials.Password,
	}
	for _, img := range payload.Images {
		req.Images = append(req.Images, Image{Filename: img.Filename, Data: img.Data})
	}
	return req
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	ctx := s.requestContext()
	payload, err := PayloadFromRequest(req)
	if err != nil {
		return err
	}
	id, err := s.daemon.Submit(ctx, payload)
	if err != nil {
		return err
	}
	resp.ID = id
	resp.Online = s.daemon.Online()
	if !resp.Online {
		resp.Message = publish.MessageOffline
	}
	requestID, _ := services.RequestIDFromContext(ctx)
	s.log().Info("post submitted via IPC",
		logging.String(logging.FieldEntryID, id),
		logging.String("request_id", requestID),
		logging.Int("images", len(payload.Images)),
		logging.Bool("online", resp.Online),
		logging.String(logging.FieldEventType, "ipc_submit"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = daemon.DaemonStatusDTO(s.daemon.Status())
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, ok := queue.ParseStatus(status)
		if !ok {
			continue
		}
		statuses = append(statuses, parsed)
	}
	resp.Items = api.FromViews(s.daemon.Views(), statuses...)
	return nil
}

func (s *service) QueueRetry(req QueueRetryRequest, resp *QueueRetryResponse) error {
	s.log().Debug("queue retry requested", logging.String(logging.FieldEntryID, req.ID))
	if err := s.daemon.Retry(s.requestContext(), req.ID); err != nil {
		return err
	}
	resp.Started = true
	return nil
}

func (s *service) QueueResume(_ QueueResumeRequest, resp *QueueResumeResponse) error {
	started, err := s.daemon.Resume(s.requestContext())
	if err != nil {
		return err
	}
	resp.Started = started
	resp.Online = s.daemon.Online()
	s.log().Info("queue resume requested via IPC",
		logging.Int("started", started),
		logging.String(logging.FieldEventType, "ipc_resume"))
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.requestContext())
	if err != nil {
		return err
	}
	resp.Sent = sent
	resp.Message = message
	return nil
}

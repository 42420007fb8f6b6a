package control

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/pgbackup/pkg/codec"
	"github.com/cuemby/pgbackup/pkg/config"
	"github.com/cuemby/pgbackup/pkg/log"
	"github.com/cuemby/pgbackup/pkg/metrics"
	"github.com/cuemby/pgbackup/pkg/orchestrator"
	"github.com/cuemby/pgbackup/pkg/types"
)

// Server accepts control-socket connections and dispatches each
// request to the orchestrator or catalogue, one goroutine per
// connection, matching a single request to a single reply stream.
type Server struct {
	orch       *orchestrator.Orchestrator
	servers    map[string]*config.Server
	socketPath string
	listener   net.Listener
	logger     zerolog.Logger

	// Stop and Reload are invoked for the STOP and RELOAD commands.
	// Both are optional; a nil hook replies with Outcome: true and
	// does nothing.
	Stop   func()
	Reload func() error
}

// New builds a Server that will listen on socketPath (typically
// "<unix-socket-dir>/pgmoneta" per spec.md §4.12) and dispatches
// against orch and servers (keyed by server name).
func New(orch *orchestrator.Orchestrator, servers map[string]*config.Server, socketPath string) *Server {
	return &Server{
		orch:       orch,
		servers:    servers,
		socketPath: socketPath,
		logger:     log.WithComponent("control"),
	}
}

// Start binds the Unix-domain socket and begins accepting connections
// in a background goroutine. Any stale socket file at socketPath is
// removed first, the same way a daemon restarting after a crash would
// reclaim its old listener path.
func (s *Server) Start() error {
	if err := os.RemoveAll(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("control: remove stale socket: %w", err)
	}

	lis, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("control: listen on %s: %w", s.socketPath, err)
	}
	s.listener = lis

	s.logger.Info().Str("socket", s.socketPath).Msg("control socket listening")
	go s.acceptLoop()
	return nil
}

// Close stops accepting connections and removes the socket file.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	os.RemoveAll(s.socketPath)
	return err
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Accept returns an error once the listener is closed by
			// Close(); this is the normal shutdown path, not a fault.
			s.logger.Debug().Err(err).Msg("control socket accept loop exiting")
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	for {
		var req Request
		if err := readFrame(conn, &req); err != nil {
			return
		}
		s.dispatch(conn, req)
	}
}

// dispatch runs one request and writes its reply frame(s), recording
// the control-socket metrics around the whole exchange. LIST_BACKUP is
// the one streaming command (spec.md §4.12): it writes one Response
// per backup followed by a Final response, instead of handle()'s usual
// single reply.
func (s *Server) dispatch(conn net.Conn, req Request) {
	timer := metrics.NewTimer()
	logger := s.logger.With().Str("command", string(req.Command)).Str("request_id", req.ID).Logger()

	var failed bool
	if req.Command == CommandListBackup {
		failed = s.handleListBackupStream(conn, req, logger)
	} else {
		resp := s.handle(req)
		failed = !resp.Outcome
		if failed {
			logger.Warn().Str("error", resp.Error).Msg("control request failed")
		}
		if err := writeFrame(conn, resp); err != nil {
			logger.Error().Err(err).Msg("control: write response failed")
			failed = true
		}
	}

	status := "ok"
	if failed {
		status = "error"
	}
	metrics.ControlRequestsTotal.WithLabelValues(string(req.Command), status).Inc()
	timer.ObserveDurationVec(metrics.ControlRequestDuration, string(req.Command))
}

// handleListBackupStream writes one Response per backup for the
// requested server, terminated by a Final response, and reports
// whether the exchange failed.
func (s *Server) handleListBackupStream(conn net.Conn, req Request, logger zerolog.Logger) bool {
	server := argString(req.Arguments, "server")
	if server == "" {
		if err := writeFrame(conn, errorResponse(req.Command, fmt.Errorf("control: %q requires a server argument", req.Command))); err != nil {
			logger.Error().Err(err).Msg("control: write response failed")
		}
		return true
	}

	backups, err := s.orch.Catalogue.ListBackups(server)
	if err != nil {
		if werr := writeFrame(conn, errorResponse(req.Command, err)); werr != nil {
			logger.Error().Err(werr).Msg("control: write response failed")
		}
		return true
	}

	for _, b := range backups {
		resp := Response{
			Response:  string(req.Command),
			Timestamp: time.Now().UTC(),
			Outcome:   true,
			Data:      b,
		}
		if err := writeFrame(conn, resp); err != nil {
			logger.Error().Err(err).Msg("control: write response failed")
			return true
		}
	}

	final := Response{
		Response:  string(req.Command),
		Timestamp: time.Now().UTC(),
		Outcome:   true,
		Final:     true,
	}
	if err := writeFrame(conn, final); err != nil {
		logger.Error().Err(err).Msg("control: write response failed")
		return true
	}
	return false
}

func errorResponse(command Command, err error) Response {
	return Response{
		Response:  string(command),
		Timestamp: time.Now().UTC(),
		Outcome:   false,
		Error:     err.Error(),
		Final:     true,
	}
}

func okResponse(command Command, data interface{}) Response {
	return Response{
		Response:  string(command),
		Timestamp: time.Now().UTC(),
		Outcome:   true,
		Data:      data,
		Final:     true,
	}
}

func (s *Server) handle(req Request) Response {
	switch req.Command {
	case CommandIsAlive:
		return okResponse(req.Command, map[string]bool{"alive": true})
	case CommandBackup:
		return s.handleBackup(req)
	case CommandRestore:
		return s.handleRestore(req)
	case CommandDelete:
		return s.handleDelete(req)
	case CommandStatus:
		return s.handleStatus(req)
	case CommandDetails:
		return s.handleDetails(req)
	case CommandStop:
		if s.Stop != nil {
			s.Stop()
		}
		return okResponse(req.Command, nil)
	case CommandReset:
		return s.handleReset(req)
	case CommandReload:
		if s.Reload != nil {
			if err := s.Reload(); err != nil {
				return errorResponse(req.Command, err)
			}
		}
		return okResponse(req.Command, nil)
	default:
		return errorResponse(req.Command, fmt.Errorf("control: unknown command %q", req.Command))
	}
}

func (s *Server) lookupServer(name string) (*config.Server, error) {
	srv, ok := s.servers[name]
	if !ok {
		return nil, fmt.Errorf("control: unknown server %q", name)
	}
	return srv, nil
}

func (s *Server) handleBackup(req Request) Response {
	server := argString(req.Arguments, "server")
	if server == "" {
		return errorResponse(req.Command, fmt.Errorf("control: %q requires a server argument", req.Command))
	}

	kind := types.BackupKindFull
	if k := argString(req.Arguments, "kind"); k == string(types.BackupKindIncremental) {
		kind = types.BackupKindIncremental
	}

	opts := orchestrator.BackupOptions{
		Server:      server,
		Kind:        kind,
		ParentLabel: argString(req.Arguments, "parent_label"),
		SourceDir:   argString(req.Arguments, "source_dir"),
		Compression: codec.Name(argString(req.Arguments, "compression")),
		Encryption:  argString(req.Arguments, "encryption"),
	}

	b, err := s.orch.RunBackup(opts)
	if err != nil {
		return errorResponse(req.Command, err)
	}
	return okResponse(req.Command, b)
}

func (s *Server) handleRestore(req Request) Response {
	server := argString(req.Arguments, "server")
	label := argString(req.Arguments, "label")
	destination := argString(req.Arguments, "destination")
	if server == "" || label == "" || destination == "" {
		return errorResponse(req.Command, fmt.Errorf("control: %q requires server, label, and destination", req.Command))
	}

	opts := orchestrator.RestoreOptions{Server: server, Label: label, Destination: destination}
	if err := s.orch.RunRestore(opts); err != nil {
		return errorResponse(req.Command, err)
	}
	return okResponse(req.Command, nil)
}

func (s *Server) handleDelete(req Request) Response {
	server := argString(req.Arguments, "server")
	label := argString(req.Arguments, "label")
	if server == "" || label == "" {
		return errorResponse(req.Command, fmt.Errorf("control: %q requires server and label", req.Command))
	}

	wf, bag := s.orch.Delete(server, label)
	if err := wf.Run(bag); err != nil {
		return errorResponse(req.Command, err)
	}
	return okResponse(req.Command, nil)
}

func (s *Server) handleStatus(req Request) Response {
	server := argString(req.Arguments, "server")
	if server == "" {
		statuses := make(map[string]bool, len(s.servers))
		for name, srv := range s.servers {
			statuses[name] = srv.Online()
		}
		return okResponse(req.Command, statuses)
	}

	srv, err := s.lookupServer(server)
	if err != nil {
		return errorResponse(req.Command, err)
	}
	return okResponse(req.Command, map[string]bool{"online": srv.Online()})
}

func (s *Server) handleDetails(req Request) Response {
	server := argString(req.Arguments, "server")
	label := argString(req.Arguments, "label")
	if server == "" || label == "" {
		return errorResponse(req.Command, fmt.Errorf("control: %q requires server and label", req.Command))
	}
	b, err := s.orch.Catalogue.LocateBackup(server, label)
	if err != nil {
		return errorResponse(req.Command, err)
	}
	return okResponse(req.Command, b)
}

// handleReset clears a server's repository lock, for recovering from a
// daemon crash that left the lock held with no process around to
// release it. It never resets the online flag: reachability is still
// owned by the health monitor.
func (s *Server) handleReset(req Request) Response {
	server := argString(req.Arguments, "server")
	if server == "" {
		return errorResponse(req.Command, fmt.Errorf("control: %q requires a server argument", req.Command))
	}
	srv, err := s.lookupServer(server)
	if err != nil {
		return errorResponse(req.Command, err)
	}
	srv.UnlockRepository()
	return okResponse(req.Command, nil)
}

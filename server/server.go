package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"time"

	"github.com/charmbracelet/log"

	"github.com/alanwang67/activation_registry/protocol"
	"github.com/alanwang67/activation_registry/registry"
	"github.com/alanwang67/activation_registry/repository"
)

func New(self *protocol.Connection, repo *repository.Repository, opts ...Option) (*Server, error) {
	s := &Server{
		Self:          self,
		repo:          repo,
		rpc:           rpc.NewServer(),
		log:           log.Default().WithPrefix("server"),
		VerifyTimeout: 5 * time.Second,
		baseCtx:       context.Background(),
		conns:         make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.rpc.RegisterName(protocol.ServiceName, s); err != nil {
		return nil, fmt.Errorf("register rpc service: %w", err)
	}
	return s, nil
}

// Handles a verified registration under a newly allocated ID.
func (s *Server) RegisterServer(req *protocol.RegisterRequest, reply *protocol.IDReply) error {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.VerifyTimeout)
	defer cancel()

	id, err := s.repo.RegisterServer(ctx, req.Def)
	reply.ID, reply.Fault = int32(id), protocol.FaultFrom(err)
	return nil
}

// Handles a registration with a caller-chosen ID, or an allocated one
// when the ID is -1.
func (s *Server) RegisterServerWithID(req *protocol.RegisterRequest, reply *protocol.IDReply) error {
	id, err := s.repo.RegisterServerWithID(req.Def, registry.ServerID(req.ID))
	reply.ID, reply.Fault = int32(id), protocol.FaultFrom(err)
	return nil
}

func (s *Server) UnregisterServer(req *protocol.IDRequest, reply *protocol.StatusReply) error {
	reply.Fault = protocol.FaultFrom(s.repo.UnregisterServer(registry.ServerID(req.ID)))
	return nil
}

func (s *Server) GetServer(req *protocol.IDRequest, reply *protocol.ServerReply) error {
	def, err := s.repo.GetServer(registry.ServerID(req.ID))
	reply.Def, reply.Fault = def, protocol.FaultFrom(err)
	return nil
}

func (s *Server) IsInstalled(req *protocol.IDRequest, reply *protocol.InstalledReply) error {
	installed, err := s.repo.IsInstalled(registry.ServerID(req.ID))
	reply.Installed, reply.Fault = installed, protocol.FaultFrom(err)
	return nil
}

func (s *Server) Install(req *protocol.IDRequest, reply *protocol.StatusReply) error {
	reply.Fault = protocol.FaultFrom(s.repo.Install(registry.ServerID(req.ID)))
	return nil
}

func (s *Server) Uninstall(req *protocol.IDRequest, reply *protocol.StatusReply) error {
	reply.Fault = protocol.FaultFrom(s.repo.Uninstall(registry.ServerID(req.ID)))
	return nil
}

func (s *Server) ListServers(req *protocol.Empty, reply *protocol.IDListReply) error {
	ids := s.repo.ListServers()
	reply.IDs = make([]int32, len(ids))
	for i, id := range ids {
		reply.IDs[i] = int32(id)
	}
	return nil
}

func (s *Server) GetServerID(req *protocol.NameRequest, reply *protocol.IDReply) error {
	id, err := s.repo.GetServerID(req.Name)
	reply.ID, reply.Fault = int32(id), protocol.FaultFrom(err)
	return nil
}

func (s *Server) ListApplicationNames(req *protocol.Empty, reply *protocol.NameListReply) error {
	reply.Names = s.repo.ListApplicationNames()
	return nil
}

// Start listens on s.Self and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	s.log.Debugf("starting server on %s", s.Self)

	l, err := net.Listen(s.Self.Network, s.Self.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx ends, then closes l and every
// open connection and waits for their handlers to return.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.baseCtx = ctx
	s.log.Debugf("server listening on %s", l.Addr())

	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()
	defer s.shutdown()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Errorf("accept error: %v", err)
			continue
		}

		if s.limiter != nil && !s.limiter.Allow() {
			s.metrics.Throttled()
			if err := s.limiter.Wait(ctx); err != nil {
				conn.Close()
				return nil
			}
		}

		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.rpc.ServeConn(conn)
		}()
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) shutdown() {
	s.mutex.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mutex.Unlock()
	s.wg.Wait()
	s.log.Debugf("server on %s stopped", s.Self)
}

package server

import (
	"context"
	"net"
	"net/rpc"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/alanwang67/activation_registry/metrics"
	"github.com/alanwang67/activation_registry/protocol"
	"github.com/alanwang67/activation_registry/repository"
)

// Server exposes a Repository over net/rpc.
type Server struct {
	Self *protocol.Connection

	repo    *repository.Repository
	rpc     *rpc.Server
	limiter *rate.Limiter
	metrics *metrics.Metrics
	log     *log.Logger

	// VerifyTimeout bounds RegisterServer's verification step.
	VerifyTimeout time.Duration
	baseCtx       context.Context

	mutex sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

type Option func(*Server)

// WithAcceptRate limits how fast new connections are served. A zero rate
// leaves connections unlimited.
func WithAcceptRate(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.log = l }
}

package gateway

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"

	"limitbook/internal/domain"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = time.Second
)

// Engine is the slice of the matching engine the gateway drives.
type Engine interface {
	Add(order domain.Order) []domain.Trade
	Cancel(id domain.OrderId)
	Modify(id domain.OrderId, side domain.Side, price domain.Price, quantity domain.Quantity) []domain.Trade
}

type session struct {
	id   uuid.UUID
	conn net.Conn
}

// connTask threads a session id alongside its connection through the
// worker pool so a handler can clean up the session map on teardown.
type connTask struct {
	id   uuid.UUID
	conn net.Conn
}

// Server is a bare TCP front end for the engine: one connection, one order
// stream, framed by fixed-size binary messages.
type Server struct {
	address string
	port    int
	engine  Engine
	pool    workerPool
	log     zerolog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

// New builds a gateway server; it does not start listening until Run.
func New(address string, port int, eng Engine, log zerolog.Logger) *Server {
	log = log.With().Str("component", "gateway").Logger()
	return &Server{
		address:  address,
		port:     port,
		engine:   eng,
		pool:     newWorkerPool(defaultNWorkers, log),
		log:      log,
		sessions: make(map[uuid.UUID]*session),
	}
}

// Run accepts connections until ctx is cancelled, handing each off to the
// worker pool for framing and dispatch.
func (s *Server) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)

	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("gateway: listen: %w", err)
	}
	defer listener.Close()

	s.pool.run(t, s.handleConnection)

	t.Go(func() error {
		<-ctx.Done()
		return listener.Close()
	})

	s.log.Info().Str("address", listener.Addr().String()).Msg("gateway listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return t.Wait()
			default:
				s.log.Error().Err(err).Msg("accept failed")
				continue
			}
		}
		id := s.addSession(conn)
		s.pool.addTask(connTask{id: id, conn: conn})
	}
}

func (s *Server) addSession(conn net.Conn) uuid.UUID {
	id := uuid.New()
	s.mu.Lock()
	s.sessions[id] = &session{id: id, conn: conn}
	s.mu.Unlock()
	return id
}

func (s *Server) removeSession(id uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// handleConnection reads one framed message, dispatches it to the engine,
// writes back the resulting reports, then requeues the connection for its
// next message. Any read/parse failure tears the session down but is not
// fatal to the pool.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	ct, ok := task.(connTask)
	if !ok {
		return fmt.Errorf("gateway: unexpected task type %T", task)
	}
	conn := ct.conn

	select {
	case <-t.Dying():
		return nil
	default:
	}

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		s.log.Warn().Err(err).Msg("failed to set connection deadline")
	}

	buf := make([]byte, maxRecvSize)
	n, err := conn.Read(buf)
	if err != nil {
		s.removeSession(ct.id)
		conn.Close()
		return nil
	}

	msg, err := ParseMessage(buf[:n])
	if err != nil {
		conn.Write(ErrorReport(err.Error()))
		s.removeSession(ct.id)
		conn.Close()
		return nil
	}

	trades := s.dispatch(msg)
	s.writeReports(conn, trades)

	s.pool.addTask(ct)
	return nil
}

func (s *Server) dispatch(msg any) []domain.Trade {
	switch m := msg.(type) {
	case NewOrderMessage:
		order := domain.NewOrder(m.ID, m.Side, m.Type, m.Price, m.Qty)
		return s.engine.Add(order)
	case CancelOrderMessage:
		s.engine.Cancel(m.ID)
		return nil
	case ModifyOrderMessage:
		return s.engine.Modify(m.ID, m.Side, m.Price, m.Qty)
	default:
		return nil
	}
}

func (s *Server) writeReports(conn net.Conn, trades []domain.Trade) {
	if len(trades) == 0 {
		conn.Write(AckReport())
		return
	}
	for _, trade := range trades {
		bidReport, askReport := TradeReportsFor(trade)
		conn.Write(bidReport.Serialize())
		conn.Write(askReport.Serialize())
	}
}

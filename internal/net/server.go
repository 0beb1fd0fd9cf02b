package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
	tomb "gopkg.in/tomb.v2"

	"ledgerbook/internal/book"
	"ledgerbook/internal/common"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = 2 * time.Second
	defaultAcceptRate  = 200 // connections/sec
	defaultAcceptBurst = 50
)

var ErrClientDoesNotExist = errors.New("client does not exist")

// Engine is the subset of *engine.Engine the server drives. Declared as an
// interface so the server can be exercised against a fake in tests.
type Engine interface {
	PlaceOrder(ticker string, orderType common.OrderType, side book.Side, size uint64, price decimal.Decimal, participantID string) (int64, []book.Event, error)
	CancelOrder(ticker string, orderID uint64) error
	GetMarketDepth(ticker string, depth int) ([]book.DepthLevel, []book.DepthLevel, error)
	GetParticipantOrders(ticker, participantID string) ([]uint64, map[uint64]book.OrderDetail, error)
	LogBook()
}

// clientSession is one connected TCP client.
type clientSession struct {
	conn net.Conn
}

// clientMessage links a parsed request to the connection it arrived on.
type clientMessage struct {
	clientAddress string
	conn          net.Conn
	message       Message
}

// Server accepts client connections, decodes the wire protocol and drives
// an Engine. Requests are handled on a tomb-supervised worker pool behind
// an accept-rate limiter.
type Server struct {
	address string
	port    int
	engine  Engine
	pool    WorkerPool
	limiter *rate.Limiter

	cancel context.CancelFunc

	sessionsLock sync.Mutex
	sessions     map[string]clientSession // keyed by participant id, for fill reports
	byAddress    map[string]clientSession // keyed by remote address, for error reports and cleanup

	messages chan clientMessage
}

// New creates a server bound to address:port driving the given Engine.
func New(address string, port int, engine Engine) *Server {
	return &Server{
		address:   address,
		port:      port,
		engine:    engine,
		pool:      NewWorkerPool(defaultNWorkers),
		limiter:   rate.NewLimiter(rate.Limit(defaultAcceptRate), defaultAcceptBurst),
		sessions:  make(map[string]clientSession),
		byAddress: make(map[string]clientSession),
		messages:  make(chan clientMessage, 1),
	}
}

// Shutdown stops the server's accept loop and worker pool.
func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run accepts connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", listener.Addr().String()).Msg("server running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}

			if err := s.limiter.Wait(ctx); err != nil {
				log.Warn().Err(err).Msg("connection rejected by rate limiter")
				conn.Close()
				continue
			}

			log.Info().Str("address", conn.RemoteAddr().String()).Msg("new client connected")
			s.addSession(conn)
			s.pool.AddTask(conn)
		}
	}
}

// ReportTrades implements engine.Reporter: it fans out each private fill to
// the owning participant's connection, if one is attached.
func (s *Server) ReportTrades(ticker string, events []book.Event) {
	for _, ev := range events {
		if ev.Kind != book.PrivateFill {
			continue
		}
		s.sendReport(ev.ParticipantID, newExecutionReport(ticker, ev, ""))
	}
}

func (s *Server) sendReport(participantID string, report Report) {
	s.sessionsLock.Lock()
	session, ok := s.sessions[participantID]
	s.sessionsLock.Unlock()
	if !ok {
		log.Warn().Err(ErrClientDoesNotExist).Str("participant", participantID).Msg("cannot deliver report")
		return
	}

	if _, err := session.conn.Write(report.Serialize()); err != nil {
		log.Error().Err(err).Str("participant", participantID).Msg("unable to deliver report")
		s.deleteParticipant(participantID)
	}
}

// registerParticipant remembers which connection a participant is submitting
// from, so fills can be reported back to them asynchronously.
func (s *Server) registerParticipant(participantID string, conn net.Conn) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	s.sessions[participantID] = clientSession{conn: conn}
}

func (s *Server) deleteParticipant(participantID string) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	delete(s.sessions, participantID)
}

func (s *Server) reportError(clientAddress string, err error) {
	s.sessionsLock.Lock()
	session, ok := s.byAddress[clientAddress]
	s.sessionsLock.Unlock()
	if !ok {
		return
	}
	errReport := newErrorReport(err)
	if _, werr := session.conn.Write(errReport.Serialize()); werr != nil {
		log.Error().Err(werr).Str("address", clientAddress).Msg("unable to deliver error report")
	}
}

func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case msg := <-s.messages:
			if err := s.handleMessage(msg); err != nil {
				log.Error().Err(err).Str("clientAddress", msg.clientAddress).Msg("error handling message")
				s.reportError(msg.clientAddress, err)
			}
		}
	}
}

func (s *Server) handleMessage(msg clientMessage) error {
	switch msg.message.GetType() {
	case NewOrder:
		req, ok := msg.message.(NewOrderMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		s.registerParticipant(req.ParticipantID, msg.conn)
		_, events, err := s.engine.PlaceOrder(req.Ticker, req.OrderType, req.Side, req.Size, req.Price, req.ParticipantID)
		if err != nil {
			return err
		}
		s.ReportTrades(req.Ticker, events)
		return nil

	case CancelOrder:
		req, ok := msg.message.(CancelOrderMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		return s.engine.CancelOrder(req.Ticker, req.OrderID)

	case GetDepth:
		req, ok := msg.message.(GetDepthMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		asks, bids, err := s.engine.GetMarketDepth(req.Ticker, req.Depth)
		if err != nil {
			return err
		}
		report := newDepthReport(req.Ticker, asks, bids)
		_, err = msg.conn.Write(report.Serialize())
		return err

	case GetParticipantOrders:
		req, ok := msg.message.(GetParticipantOrdersMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		ids, details, err := s.engine.GetParticipantOrders(req.Ticker, req.ParticipantID)
		if err != nil {
			return err
		}
		report := newParticipantOrdersReport(req.ParticipantID, ids, details)
		_, err = msg.conn.Write(report.Serialize())
		return err

	case LogBook:
		s.engine.LogBook()
		return nil

	default:
		return ErrInvalidMessageType
	}
}

// handleConnection reads one message off conn, forwards it to the session
// handler, and re-queues the connection for its next message. Any returned
// error kills the tomb, which stops the worker pool, the session handler and
// the accept loop in Run.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return fmt.Errorf("worker task was %T, not net.Conn", task)
	}

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("failed setting deadline")
		conn.Close()
		return nil
	}

	select {
	case <-t.Dying():
		return nil
	default:
		buffer := make([]byte, maxRecvSize)
		n, err := conn.Read(buffer)
		if err != nil {
			log.Info().Err(err).Str("address", conn.RemoteAddr().String()).Msg("connection closed")
			s.closeSession(conn)
			return nil
		}

		message, err := parseMessage(buffer[:n])
		if err != nil {
			log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("error parsing message")
			s.closeSession(conn)
			return nil
		}

		s.messages <- clientMessage{
			clientAddress: conn.RemoteAddr().String(),
			conn:          conn,
			message:       message,
		}
		s.pool.AddTask(conn)
	}
	return nil
}

func (s *Server) addSession(conn net.Conn) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	s.byAddress[conn.RemoteAddr().String()] = clientSession{conn: conn}
}

func (s *Server) deleteAddress(address string) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	delete(s.byAddress, address)
}

func (s *Server) closeSession(conn net.Conn) {
	addr := conn.RemoteAddr().String()
	conn.Close()
	s.deleteAddress(addr)
}

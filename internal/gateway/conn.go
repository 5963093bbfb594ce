package gateway

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/bpermana/kafgate/internal/metrics"
)

// Server accepts client connections and runs the request loop for
// each. Requests on a connection are handled concurrently; responses
// go out in request order through a replyQueue.
type Server struct {
	gateway     *Gateway
	listener    net.Listener
	connections sync.Map
	connCount   int32
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewServer(g *Gateway) *Server {
	return &Server{
		gateway:  g,
		stopChan: make(chan struct{}),
	}
}

func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.gateway.cfg.Server.KafkaAddr)
	if err != nil {
		return err
	}
	s.listener = ln

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
				return nil
			default:
				s.gateway.log.Warn("accept failed", zap.Error(err))
				continue
			}
		}

		if int(atomic.LoadInt32(&s.connCount)) >= s.gateway.cfg.Limits.MaxConnections {
			s.gateway.log.Warn("connection limit reached, rejecting",
				zap.String("remote", conn.RemoteAddr().String()))
			conn.Close()
			continue
		}

		atomic.AddInt32(&s.connCount, 1)
		metrics.ConnectionsActive.Inc()
		s.connections.Store(conn, true)

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	if s.listener != nil {
		s.listener.Close()
	}

	s.connections.Range(func(key, value interface{}) bool {
		if conn, ok := key.(net.Conn); ok {
			conn.Close()
		}
		return true
	})

	s.wg.Wait()
	return nil
}

func (s *Server) handleConnection(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	s.gateway.log.Debug("connection opened", zap.String("remote", remote))

	ctx, cancel := context.WithCancel(context.Background())
	queue := newReplyQueue(64)

	var writers sync.WaitGroup
	writers.Add(1)
	go func() {
		defer writers.Done()
		queue.drain(func(resp []byte) error {
			conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			return writeFrame(conn, resp)
		})
		// A write failure or poisoned slot ends the connection; unblock
		// the read loop too.
		conn.Close()
	}()

	defer func() {
		queue.closeQueue()
		cancel()
		writers.Wait()
		conn.Close()
		s.connections.Delete(conn)
		atomic.AddInt32(&s.connCount, -1)
		metrics.ConnectionsActive.Dec()
		s.gateway.log.Debug("connection closed", zap.String("remote", remote))
		s.wg.Done()
	}()

	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		frame, err := readFrame(conn, s.gateway.cfg.Limits.MaxFetchBytes)
		if err != nil {
			if err != io.EOF {
				s.gateway.log.Debug("read failed", zap.String("remote", remote), zap.Error(err))
			}
			return
		}

		slot := queue.reserve()
		go func(frame []byte) {
			slot <- s.gateway.Handle(ctx, frame)
		}(frame)
	}
}

// readFrame reads one size-prefixed request frame.
func readFrame(conn net.Conn, maxSize int) ([]byte, error) {
	sizeBuf := make([]byte, 4)
	if _, err := io.ReadFull(conn, sizeBuf); err != nil {
		return nil, err
	}

	size := int32(binary.BigEndian.Uint32(sizeBuf))
	if size <= 0 || size > int32(maxSize) {
		return nil, io.ErrUnexpectedEOF
	}

	frame := make([]byte, size)
	if _, err := io.ReadFull(conn, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// writeFrame writes one size-prefixed response frame.
func writeFrame(conn net.Conn, body []byte) error {
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out[:4], uint32(len(body)))
	copy(out[4:], body)
	_, err := conn.Write(out)
	return err
}

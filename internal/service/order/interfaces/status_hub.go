package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/service/order/application"
	"orderdesk/internal/service/order/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

var errHubBacklogged = errors.New("status hub broadcast queue is full")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 跨域由 CORS 中间件统一处理
		return true
	},
}

type statusUpdate struct {
	orderID string
	payload []byte
}

// StatusHub 维护所有订阅订单终态的 websocket 连接，并负责推送
type StatusHub struct {
	clients    map[*wsClient]struct{}
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan statusUpdate
	done       chan struct{}
	lock       sync.RWMutex
}

// wsClient 是一个 WebSocket 连接；orderID 为空时接收所有订单的终态
type wsClient struct {
	hub     *StatusHub
	conn    *websocket.Conn
	send    chan []byte
	id      string
	orderID string
}

func NewStatusHub() *StatusHub {
	return &StatusHub{
		clients:    make(map[*wsClient]struct{}),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan statusUpdate, 256),
		done:       make(chan struct{}),
	}
}

// Run 处理连接注册和消息广播，ctx 结束时关闭所有连接
func (h *StatusHub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.lock.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.lock.Unlock()
			logger.L().Info().Msg("🛑 Status hub stopped")
			return nil
		case c := <-h.register:
			h.lock.Lock()
			h.clients[c] = struct{}{}
			h.lock.Unlock()
			logger.L().Debug().Str("client", c.id).Str("order_id", c.orderID).Msg("status subscriber connected")
		case c := <-h.unregister:
			h.lock.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.lock.Unlock()
			logger.L().Debug().Str("client", c.id).Msg("status subscriber disconnected")
		case u := <-h.broadcast:
			h.lock.Lock()
			for c := range h.clients {
				if c.orderID != "" && c.orderID != u.orderID {
					continue
				}
				select {
				case c.send <- u.payload:
				default:
					// 消费太慢的连接直接断开
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.lock.Unlock()
		}
	}
}

// PublishTerminal 实现 port.StatusPublisher，不会阻塞调用方
func (h *StatusHub) PublishTerminal(_ context.Context, order *domain.Order) error {
	payload, err := json.Marshal(application.ToOrderResponse(order))
	if err != nil {
		return errors.Wrap(err, "marshal status update")
	}
	select {
	case h.broadcast <- statusUpdate{orderID: order.ID, payload: payload}:
		return nil
	default:
		return errHubBacklogged
	}
}

// ServeWS 把 HTTP 连接升级为 websocket，可选 ?order_id= 只订阅单个订单
func (h *StatusHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &wsClient{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		id:      uuid.NewString()[:8],
		orderID: r.URL.Query().Get("order_id"),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump 只处理心跳和关闭，客户端发来的消息会被丢弃
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.L().Warn().Err(err).Str("client", c.id).Msg("websocket read error")
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

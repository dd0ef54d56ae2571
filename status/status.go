package status

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	INFO = iota
	WARNING
	ERROR
)

type status struct {
	Message string
	Time    time.Time
	Type    int
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump() {
	ticker := time.NewTicker(time.Second * 30)
	defer func() {
		ticker.Stop()
		unregisterClient(c)
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second)); err != nil {
				log.Printf("[status] ws set deadline error: %v", err)
				return
			}
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[status] ws write msg error: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[status] ws write ping error: %v", err)
				return
			}
		}
	}
}

// readPump drains control frames so close and pong messages are handled
func (c *client) readPump() {
	defer func() {
		unregisterClient(c)
		close(c.send)
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func NewClient(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, 32)}
	if last := Last(); last != nil {
		c.send <- last
	}
	registerClient(c)
	go c.writePump()
	go c.readPump()
	return c
}

var broadcastList = make(map[*client]bool)
var globalLock sync.Mutex
var lastMessage []byte

func registerClient(c *client) {
	globalLock.Lock()
	defer globalLock.Unlock()
	broadcastList[c] = true
}

func unregisterClient(c *client) {
	globalLock.Lock()
	defer globalLock.Unlock()
	delete(broadcastList, c)
}

func broadcast(s *status) {
	data, err := json.Marshal(s)
	if err != nil {
		log.Printf("[status] marshal error: %v", err)
		return
	}
	globalLock.Lock()
	defer globalLock.Unlock()
	lastMessage = data
	for c := range broadcastList {
		select {
		case c.send <- data:
		default:
			log.Printf("[status] client is too slow, message dropped")
		}
	}
}

// Last returns the last broadcasted status as json, nil if nothing was sent yet
func Last() []byte {
	globalLock.Lock()
	defer globalLock.Unlock()
	return lastMessage
}

func Status(msg string, _type int) {
	broadcast(&status{
		Message: msg,
		Time:    time.Now(),
		Type:    _type})
}

func Info(format string, a ...interface{}) {
	Status(fmt.Sprintf(format, a...), INFO)
}

func Warning(format string, a ...interface{}) {
	Status(fmt.Sprintf(format, a...), WARNING)
}

func Error(format string, a ...interface{}) {
	Status(fmt.Sprintf(format, a...), ERROR)
}

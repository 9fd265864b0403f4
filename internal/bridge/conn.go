package bridge

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	handshakeWait  = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// Conn wraps a bridge websocket after the handshake has been read. Reads
// happen from a single goroutine (the call pipeline's ingress loop); writes
// are serialized with a mutex because playback and control acks come from
// different goroutines.
type Conn struct {
	ws         *websocket.Conn
	handshake  Handshake
	writeMu    sync.Mutex
	closedOnce sync.Once
}

// Accept reads and validates the opening handshake on a freshly upgraded
// websocket and returns the wrapped connection.
func Accept(ws *websocket.Conn) (*Conn, error) {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(handshakeWait))
	msgType, data, err := ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read bridge handshake: %w", err)
	}
	if msgType != websocket.TextMessage {
		return nil, fmt.Errorf("bridge handshake must be a text message")
	}
	var hs Handshake
	if err := json.Unmarshal(data, &hs); err != nil {
		return nil, fmt.Errorf("failed to parse bridge handshake: %w", err)
	}
	if err := hs.Validate(); err != nil {
		return nil, err
	}
	_ = ws.SetReadDeadline(time.Time{})
	return &Conn{ws: ws, handshake: hs}, nil
}

// Handshake returns the opening message of the stream.
func (c *Conn) Handshake() Handshake { return c.handshake }

// Message is one inbound bridge message: either audio samples at the
// canonical rate or a control message.
type Message struct {
	Samples []int16
	Control *Control
}

// Read blocks for the next inbound message. Narrowband audio is upsampled
// to the canonical rate before it is returned.
func (c *Conn) Read() (Message, error) {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return Message{}, err
		}
		switch msgType {
		case websocket.BinaryMessage:
			samples, err := DecodeFrame(data)
			if err != nil {
				return Message{}, err
			}
			if c.handshake.SampleRate == NarrowbandRate {
				samples = Upsample8to16(samples)
			}
			return Message{Samples: samples}, nil
		case websocket.TextMessage:
			var ctl Control
			if err := json.Unmarshal(data, &ctl); err != nil {
				return Message{}, fmt.Errorf("failed to parse control message: %w", err)
			}
			return Message{Control: &ctl}, nil
		default:
			// ping/pong handled by gorilla, anything else is skipped
		}
	}
}

// WriteAudio sends synthesized samples back to the caller. Samples are at
// the canonical rate; narrowband calls get every second sample.
func (c *Conn) WriteAudio(samples []int16) error {
	if c.handshake.SampleRate == NarrowbandRate {
		down := make([]int16, len(samples)/2)
		for i := range down {
			down[i] = samples[i*2]
		}
		samples = down
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.BinaryMessage, EncodeFrame(samples))
}

// WriteControl sends a JSON control message to the bridge.
func (c *Conn) WriteControl(ctl Control) error {
	data, err := json.Marshal(ctl)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame once and tears down the socket.
func (c *Conn) Close() error {
	var err error
	c.closedOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

// Package sse consumes the chunked event stream produced by a chat turn:
// "data: {json}" lines separated by blank lines, terminated by the literal
// "data: [DONE]" sentinel.
package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

type State int

const (
	StateIdle State = iota
	StateStreaming
	StateDone
	StateErrored
)

type EventType int

const (
	EventDelta EventType = iota
	EventDone
	EventError
)

type Event struct {
	Type    EventType
	Content string
}

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// Consumer is a push parser for a turn stream. Feed accepts chunks with
// arbitrary boundaries; a line split across chunks is carried until the
// remainder arrives, so a payload is never dropped for arriving in pieces.
// Accumulated text and the current state are explicit, not shared module
// state.
type Consumer struct {
	carry  []byte
	text   strings.Builder
	state  State
	errMsg string
}

func NewConsumer() *Consumer {
	return &Consumer{}
}

// Feed ingests one chunk and returns the events completed by it.
func (c *Consumer) Feed(p []byte) []Event {
	if c.state == StateDone || c.state == StateErrored {
		return nil
	}
	c.carry = append(c.carry, p...)
	var completed []Event
	for {
		idx := bytes.IndexByte(c.carry, '\n')
		if idx < 0 {
			return completed
		}
		line := strings.TrimRight(string(c.carry[:idx]), "\r")
		c.carry = c.carry[idx+1:]
		if event, ok := c.consumeLine(line); ok {
			completed = append(completed, event)
		}
		if c.state == StateDone || c.state == StateErrored {
			return completed
		}
	}
}

func (c *Consumer) consumeLine(line string) (Event, bool) {
	if !strings.HasPrefix(line, dataPrefix) {
		// Blank separators and keep-alive comments.
		return Event{}, false
	}
	data := strings.TrimPrefix(line, dataPrefix)
	if data == doneSentinel {
		c.state = StateDone
		return Event{Type: EventDone}, true
	}
	var payload struct {
		Content string  `json:"content"`
		Error   *string `json:"error"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		// A complete line that still fails to decode is foreign; skip it.
		return Event{}, false
	}
	if payload.Error != nil {
		c.state = StateErrored
		c.errMsg = *payload.Error
		return Event{Type: EventError, Content: *payload.Error}, true
	}
	if payload.Content == "" {
		return Event{}, false
	}
	c.state = StateStreaming
	c.text.WriteString(payload.Content)
	return Event{Type: EventDelta, Content: payload.Content}, true
}

// CloseInput marks the end of input. A stream that ends before the sentinel
// is an error, not a silent truncation.
func (c *Consumer) CloseInput() {
	if c.state == StateDone || c.state == StateErrored {
		return
	}
	c.state = StateErrored
	c.errMsg = "stream ended before completion"
}

func (c *Consumer) State() State {
	return c.state
}

// Text returns the accumulated assistant reply so far.
func (c *Consumer) Text() string {
	return c.text.String()
}

func (c *Consumer) Err() error {
	if c.state != StateErrored {
		return nil
	}
	return errors.New(c.errMsg)
}

// Consume reads a whole turn stream from r, invoking onDelta per content
// fragment, and returns the full accumulated reply.
func Consume(r io.Reader, onDelta func(delta string)) (string, error) {
	c := NewConsumer()
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, event := range c.Feed(buf[:n]) {
				if event.Type == EventDelta && onDelta != nil {
					onDelta(event.Content)
				}
			}
			switch c.State() {
			case StateDone:
				return c.Text(), nil
			case StateErrored:
				return c.Text(), c.Err()
			}
		}
		if errors.Is(err, io.EOF) {
			c.CloseInput()
			return c.Text(), c.Err()
		}
		if err != nil {
			return c.Text(), err
		}
	}
}

package devserver

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/chatbot/pkg/client"
	"github.com/papercomputeco/chatbot/pkg/stream"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// chatSession is the stored history of one session.
type chatSession struct {
	ID       string
	Owner    string
	Messages []client.ChatResponse
}

// script is what the emulated model "generates" for prompt: a reasoning
// block followed by the visible answer, as a sequence of tokens.
func script(model, prompt string) []string {
	tokens := []string{thinkOpen, "\n", "The user wrote ", strconv.Quote(prompt), ".", "\n", thinkClose, "\n\n"}
	for _, word := range strings.SplitAfter(fmt.Sprintf("(%s) You said: %s", model, prompt), " ") {
		if word != "" {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

// visible drops every token up to and including the one closing the
// reasoning block and strips leading newlines from the rest. Tokens that
// end up empty are dropped.
func visible(tokens []string) []string {
	var (
		out    []string
		passed bool
	)
	for _, tok := range tokens {
		if !passed {
			if strings.Contains(tok, thinkClose) {
				passed = true
			}
			continue
		}
		if msg := strings.TrimLeft(tok, "\n"); msg != "" {
			out = append(out, msg)
		}
	}
	return out
}

// chatRequest validates the body and fills in defaults.
func (s *Server) chatRequest(c *fiber.Ctx) (client.ChatRequest, error) {
	var req client.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return req, fail(ErrInvalidParameter)
	}
	if strings.TrimSpace(req.Message) == "" {
		return req, fail(ErrInvalidParameter, "message must not be empty")
	}
	if req.ModelID == "" {
		req.ModelID = defaultModel
	}
	if !slices.Contains(Models, req.ModelID) {
		return req, fail(ErrInvalidParameter, "unknown model: "+req.ModelID)
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	return req, nil
}

// appendMessage stores msg in the session, creating the session for owner.
func (s *Server) appendMessage(owner string, msg client.ChatResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[msg.SessionID]
	if !ok {
		sess = &chatSession{ID: msg.SessionID, Owner: owner}
		s.sessions[msg.SessionID] = sess
		s.sessionOrder = append([]string{msg.SessionID}, s.sessionOrder...)
	}
	sess.Messages = append(sess.Messages, msg)
}

// ownedSession returns the session if it belongs to owner.
func (s *Server) ownedSession(id, owner string) (*chatSession, bool) {
	sess, ok := s.sessions[id]
	if !ok || sess.Owner != owner {
		return nil, false
	}
	return sess, true
}

// handleSend answers with the complete reply.
func (s *Server) handleSend(c *fiber.Ctx) error {
	req, err := s.chatRequest(c)
	if err != nil {
		return err
	}
	a := currentAccount(c)

	s.appendMessage(a.Username, client.ChatResponse{
		Message: req.Message, SessionID: req.SessionID, Role: "user", ModelID: req.ModelID,
	})

	reply := client.ChatResponse{
		Message:   strings.Join(visible(script(req.ModelID, req.Message)), ""),
		SessionID: req.SessionID,
		Role:      "assistant",
		ModelID:   req.ModelID,
	}
	s.appendMessage(a.Username, reply)

	return c.JSON(reply)
}

// handleSendReactive streams the reply as data:{json} records.
func (s *Server) handleSendReactive(c *fiber.Ctx) error {
	req, err := s.chatRequest(c)
	if err != nil {
		return err
	}
	a := currentAccount(c)

	s.appendMessage(a.Username, client.ChatResponse{
		Message: req.Message, SessionID: req.SessionID, Role: "user", ModelID: req.ModelID,
	})

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	// io.Pipe gives per-write flushing to the client; fasthttp's
	// SetBodyStreamWriter buffers.
	pr, pw := io.Pipe()
	go s.streamReply(pw, a.Username, req)
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

func (s *Server) streamReply(pw *io.PipeWriter, owner string, req client.ChatRequest) {
	defer pw.Close()

	var (
		reply strings.Builder
		sent  int
	)
	defer func() {
		if reply.Len() == 0 {
			return
		}
		s.appendMessage(owner, client.ChatResponse{
			Message: reply.String(), SessionID: req.SessionID, Role: "assistant", ModelID: req.ModelID,
		})
	}()

	for _, tok := range visible(script(req.ModelID, req.Message)) {
		if s.config.FailAfter > 0 && sent >= s.config.FailAfter {
			_ = s.writeRecord(pw, stream.Message{Error: "model stopped responding"})
			s.logger.Warn("stream failed on purpose", "session_id", req.SessionID, "after", sent)
			return
		}

		record := stream.Message{
			Message:   tok,
			SessionID: req.SessionID,
			Sequence:  stream.ParseSequence(uuid.NewString()),
			Role:      "assistant",
			ModelID:   req.ModelID,
		}
		if err := s.writeRecord(pw, record); err != nil {
			s.logger.Debug("client went away", "session_id", req.SessionID, "error", err)
			return
		}
		sent++
		reply.WriteString(tok)

		if s.config.DuplicateEvery > 0 && sent%s.config.DuplicateEvery == 0 {
			if err := s.writeRecord(pw, record); err != nil {
				return
			}
		}

		if s.config.ChunkDelay > 0 {
			time.Sleep(s.config.ChunkDelay)
		}
	}
}

// writeRecord writes one record, in two writes when SplitRecords is set.
func (s *Server) writeRecord(w io.Writer, msg stream.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	record := stream.Marker + string(payload) + "\n\n"

	if !s.config.SplitRecords {
		_, err = io.WriteString(w, record)
		return err
	}

	half := len(record) / 2
	if _, err := io.WriteString(w, record[:half]); err != nil {
		return err
	}
	_, err = io.WriteString(w, record[half:])
	return err
}

func (s *Server) handleModels(c *fiber.Ctx) error {
	return c.JSON(Models)
}

// handleHistory returns the session's messages, or an empty list.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	a := currentAccount(c)

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.ownedSession(c.Params("sessionId"), a.Username)
	if !ok {
		return c.JSON([]client.ChatResponse{})
	}
	return c.JSON(sess.Messages)
}

// handleSessions lists the caller's sessions, most recently created first.
func (s *Server) handleSessions(c *fiber.Ctx) error {
	a := currentAccount(c)

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := []string{}
	for _, id := range s.sessionOrder {
		if _, ok := s.ownedSession(id, a.Username); ok {
			ids = append(ids, id)
		}
	}
	return c.JSON(ids)
}

func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	a := currentAccount(c)
	id := c.Params("sessionId")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ownedSession(id, a.Username); ok {
		delete(s.sessions, id)
		s.sessionOrder = slices.DeleteFunc(s.sessionOrder, func(sid string) bool { return sid == id })
	}
	return c.SendStatus(fiber.StatusNoContent)
}

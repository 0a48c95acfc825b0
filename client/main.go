package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/timeline"
	"github.com/mahaj/dupahar-dm/pkg/typing"
	"github.com/mama165/sdk-go/logs"
)

// session is one user chatting with one peer.
type session struct {
	log  *slog.Logger
	self string
	peer string
	api  *apiClient
	tl   *timeline.Timeline

	writeMu sync.Mutex
	conn    *websocket.Conn
}

func (s *session) emit(event model.EventName, payload any) error {
	frame, err := model.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *session) loadPage(page, limit int) error {
	messages, err := s.api.page(s.peer, page, limit)
	if err != nil {
		return err
	}
	s.tl.ApplyPage(page, limit, messages)
	for _, m := range messages {
		s.print(m)
	}
	if _, more := s.tl.NextPage(); !more {
		fmt.Println("-- beginning of conversation --")
	}
	return nil
}

func (s *session) print(m model.Message) {
	status := ""
	if m.Sender == s.self {
		switch {
		case m.IsRead:
			status = " (seen)"
		case m.Delivered:
			status = " (delivered)"
		}
	}
	fmt.Printf("\r[%s] %s: %s%s\n> ", m.CreatedAt.Local().Format("15:04:05"), m.Sender, m.Content, status)
}

// readLoop prints live events until the connection drops.
func (s *session) readLoop() {
	for {
		var env model.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			s.log.Info("Connection closed", "error", err)
			return
		}

		switch env.Event {
		case model.EventMessageSent, model.EventMessageNew:
			var m model.Message
			if err := json.Unmarshal(env.Data, &m); err != nil || !s.tl.ApplyMessage(m) {
				continue
			}
			s.print(m)
			if m.Sender == s.peer {
				if err := s.emit(model.EventMessageRead, model.ReadRequest{SenderID: s.peer}); err != nil {
					s.log.Warn("Failed to send read receipt", "error", err)
				}
			}
		case model.EventMessageRead:
			var p model.ReadPayload
			if err := json.Unmarshal(env.Data, &p); err == nil && s.tl.ApplyRead(p.ReaderID) > 0 {
				fmt.Printf("\r%s has seen your messages\n> ", p.ReaderID)
			}
		case model.EventTypingStart, model.EventTypingStop:
			var p model.TypingPayload
			if err := json.Unmarshal(env.Data, &p); err == nil {
				s.tl.ApplyTyping(env.Event, p.SenderID, time.Now())
			}
		case model.EventMessageError:
			var p model.ErrorPayload
			if err := json.Unmarshal(env.Data, &p); err == nil {
				fmt.Printf("\rerror: %s\n> ", p.Error)
			}
		}
	}
}

// typingLoop shows the peer's indicator and clears it once it goes stale.
func (s *session) typingLoop(ctx context.Context) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	shown := false
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			typingNow := s.tl.PeerTyping(now)
			if typingNow != shown {
				shown = typingNow
				if shown {
					fmt.Printf("\r%s is typing...\n> ", s.peer)
				} else {
					fmt.Printf("\r%s stopped typing\n> ", s.peer)
				}
			}
		}
	}
}

func main() {
	serverAddr := flag.String("addr", "localhost:8080", "gateway service address")
	apiAddr := flag.String("api", "http://localhost:8080", "api service address")
	userID := flag.String("user", "alice", "user id")
	peer := flag.String("dm", "bob", "user id to chat with")
	limit := flag.Int("limit", 20, "messages per page")
	flag.Parse()

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "WARN"
	}
	log := logs.GetLoggerFromString(level)
	if err := run(log, *serverAddr, *apiAddr, *userID, *peer, *limit); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, serverAddr, apiAddr, userID, peer string, limit int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// 1. Login to get token
	api := newAPIClient(apiAddr)
	if err := api.login(userID); err != nil {
		return err
	}
	log.Info("Logged in", "user", userID)

	// 2. Connect to WebSocket with token
	u := url.URL{Scheme: "ws", Host: serverAddr, Path: "/ws"}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+api.token)
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	s := &session{
		log:  log,
		self: userID,
		peer: peer,
		api:  api,
		tl:   timeline.New(userID, peer, timeline.DefaultTypingTimeout),
		conn: conn,
	}

	// 3. Listen before loading history so nothing sent meanwhile is lost
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.readLoop()
	}()
	go s.typingLoop(ctx)

	if err := s.loadPage(1, limit); err != nil {
		return err
	}
	if err := s.emit(model.EventMessageRead, model.ReadRequest{SenderID: peer}); err != nil {
		return err
	}

	typer := typing.NewDebouncer(typing.DefaultDelay,
		func() { _ = s.emit(model.EventTypingStart, model.TypingRequest{ReceiverID: peer}) },
		func() { _ = s.emit(model.EventTypingStop, model.TypingRequest{ReceiverID: peer}) })
	defer typer.Cancel()

	// 4. Read from stdin and send messages
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	input := (<-chan string)(lines)
	fmt.Print("> ")
	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			s.writeMu.Lock()
			err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			s.writeMu.Unlock()
			if err != nil {
				return nil
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return nil
		case text, ok := <-input:
			if !ok || text == "/quit" {
				input = nil
				stop()
				continue
			}
			switch text {
			case "":
			case "/typing":
				typer.Keystroke()
			case "/more":
				page, more := s.tl.NextPage()
				if !more {
					fmt.Println("-- beginning of conversation --")
					break
				}
				if err := s.loadPage(page, limit); err != nil {
					log.Warn("Failed to load older messages", "page", page, "error", err)
				}
			default:
				typer.Flush()
				if err := s.emit(model.EventMessageSend, model.SendRequest{ReceiverID: peer, Content: text}); err != nil {
					return fmt.Errorf("write: %w", err)
				}
			}
			fmt.Print("> ")
		}
	}
}

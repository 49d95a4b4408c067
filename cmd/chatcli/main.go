// Command chatcli is an interactive client for the streaming chat API. It
// drives generations through the background generation manager, so streams
// keep running while you look at other conversations, exactly as the web
// client does.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/config"
	chatModels "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/models/chat"
	domainChat "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/domain/services/chat"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/generation"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
)

type cli struct {
	manager *generation.Manager
	scanner *bufio.Scanner
	model   string

	// change is signaled by the manager's batched notifier; watch loops
	// drain it instead of polling.
	change chan struct{}
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	c := &cli{
		scanner: bufio.NewScanner(os.Stdin),
		model:   cfg.DefaultModel,
		change:  make(chan struct{}, 1),
	}

	endpoint := os.Getenv("CHAT_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:" + cfg.Port + "/api/chat"
	}
	// Client role: the chat endpoint persists the assistant message, so
	// this manager gets no repositories.
	c.manager = generation.NewManager(generation.Config{
		Endpoint:  endpoint,
		AuthToken: os.Getenv("CHAT_AUTH_TOKEN"),
		OnChange:  c.signalChange,
	}, nil, nil, logger)
	defer c.manager.Close()

	fmt.Printf("%schatcli%s (endpoint %s, model %s)\n", colorCyan, colorReset, endpoint, c.model)
	fmt.Println("commands: start <conv-id> <message> | watch <conv-id> | stop <conv-id> | status <conv-id> | consume <conv-id> | notifications | dismiss | model <id> | quit")

	c.loop()
}

func (c *cli) signalChange() {
	select {
	case c.change <- struct{}{}:
	default:
	}
}

func (c *cli) loop() {
	for {
		fmt.Printf("%s> %s", colorGreen, colorReset)
		if !c.scanner.Scan() {
			return
		}
		line := strings.TrimSpace(c.scanner.Text())
		if line == "" {
			continue
		}

		cmd, rest, _ := strings.Cut(line, " ")
		switch cmd {
		case "quit", "exit":
			return
		case "model":
			if rest != "" {
				c.model = rest
			}
			fmt.Println("model:", c.model)
		case "start":
			c.start(rest)
		case "watch":
			c.watch(strings.TrimSpace(rest))
		case "stop":
			c.manager.Stop(strings.TrimSpace(rest))
		case "status":
			c.status(strings.TrimSpace(rest))
		case "consume":
			c.consume(strings.TrimSpace(rest))
		case "notifications":
			c.notifications()
		case "dismiss":
			c.manager.DismissAll()
		default:
			fmt.Printf("%sunknown command %q%s\n", colorRed, cmd, colorReset)
		}
	}
}

func (c *cli) start(rest string) {
	conversationID, message, ok := strings.Cut(rest, " ")
	if !ok || conversationID == "" || strings.TrimSpace(message) == "" {
		fmt.Printf("%susage: start <conv-id> <message>%s\n", colorRed, colorReset)
		return
	}

	c.manager.Start(generation.StartParams{
		ConversationID: conversationID,
		Title:          message,
		Request: &domainChat.ChatRequest{
			ConversationID: conversationID,
			Model:          c.model,
			Mode:           chatModels.ModeChat,
			Messages: []domainChat.RequestMessage{
				{Role: chatModels.RoleUser, Content: message},
			},
		},
	})

	fmt.Printf("%sstarted; watch %s to stream it live, or keep working%s\n", colorYellow, conversationID, colorReset)
}

// watch renders the tracked generation live until it goes terminal. A
// generation runs whether or not anyone is watching; this just tails it.
func (c *cli) watch(conversationID string) {
	if _, ok := c.manager.Snapshot(conversationID); !ok {
		fmt.Println("no tracked generation")
		return
	}

	printed := 0
	for {
		select {
		case <-c.change:
		case <-time.After(time.Second):
		}

		snap, ok := c.manager.Snapshot(conversationID)
		if !ok {
			return
		}
		if len(snap.Text) > printed {
			fmt.Print(snap.Text[printed:])
			printed = len(snap.Text)
		}
		if snap.Phase.Terminal() {
			fmt.Printf("\n%s[%s]%s\n", colorCyan, snap.Phase, colorReset)
			return
		}
	}
}

func (c *cli) status(conversationID string) {
	snap, ok := c.manager.Snapshot(conversationID)
	if !ok {
		fmt.Println("no tracked generation")
		return
	}
	fmt.Printf("phase=%s status=%s events=%d text=%d bytes pending=%v\n",
		snap.Phase, snap.Status, snap.Events, len(snap.Text), snap.HasPending)
	if snap.Err != "" {
		fmt.Printf("%serror: %s%s\n", colorRed, snap.Err, colorReset)
	}
}

func (c *cli) consume(conversationID string) {
	update := c.manager.ConsumePendingUpdate(conversationID)
	if update == nil {
		fmt.Println("no pending update")
		return
	}
	fmt.Printf("%smessage %s%s\n%s\n", colorCyan, update.MessageID, colorReset, update.Content)
	if update.Usage != nil {
		fmt.Printf("usage: %d in / %d out (%s)\n", update.Usage.InputTokens, update.Usage.OutputTokens, update.Usage.Model)
	}
}

func (c *cli) notifications() {
	notifications := c.manager.Notifications()
	if len(notifications) == 0 {
		fmt.Println("none")
		return
	}
	for _, n := range notifications {
		color := colorGreen
		if !n.Success {
			color = colorRed
		}
		fmt.Printf("%s%s%s %s (%s)\n", color, n.ConversationID, colorReset, n.Title, n.CompletedAt.Format(time.Kitchen))
	}
}

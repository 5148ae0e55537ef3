// Command chat is a terminal client for the assistant conversation service.
// Replies are revealed with a typing effect as they arrive.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/brightsteps/assistant/internal/config"
	"github.com/brightsteps/assistant/internal/gateway"
	"github.com/brightsteps/assistant/internal/session"
	"github.com/brightsteps/assistant/internal/store"
	"github.com/brightsteps/assistant/internal/typewriter"
)

func main() {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	email := flag.String("email", "", "account email (optional, guest otherwise)")
	password := flag.String("password", "", "account password")
	flag.Parse()

	// Keep the transcript readable: errors only, no request noise.
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	client := gateway.NewClient(cfg.Client)
	ctx := context.Background()

	opts := []session.Option{
		session.WithRevealObserver(printReveal()),
	}
	if cfg.Client.AllowGuest {
		opts = append(opts, session.WithGuestFallback())
	}

	tw := typewriter.New(typewriter.WithDelays(cfg.Client.TypingMinDelay, cfg.Client.TypingMaxDelay))
	controller := session.NewController(client, store.New(), tw, opts...)
	defer controller.Close()

	if *email != "" {
		if _, err := client.Login(ctx, *email, *password); err != nil {
			fmt.Fprintln(os.Stderr, "login failed:", err)
			os.Exit(1)
		}
	}

	if err := controller.ResolveIdentity(ctx, client); err != nil {
		fmt.Fprintln(os.Stderr, "could not resolve identity:", err)
		fmt.Fprintln(os.Stderr, "log in with -email/-password or enable client.allow_guest")
		os.Exit(1)
	}

	identity, _ := controller.Identity()
	fmt.Printf("Connected as %s (%s). Type /help for commands.\n", identity.Name, identity.Role)

	if err := controller.Refresh(ctx); err != nil {
		fmt.Println("(conversation list unavailable, starting fresh)")
	}
	controller.CreateNewChat()

	repl(ctx, controller)
}

// printReveal writes reveal deltas so the reply appears to be typed live.
func printReveal() session.RevealObserver {
	var printed int
	return func(conversationKey string, _ uuid.UUID, partial string, done bool) {
		if printed > len(partial) {
			printed = 0
		}
		fmt.Print(partial[printed:])
		printed = len(partial)
		if done {
			fmt.Println()
			printed = 0
		}
	}
}

func repl(ctx context.Context, controller *session.Controller) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := command(ctx, controller, line); quit {
				return
			}
			continue
		}

		if err := controller.SendMessage(ctx, line); err != nil {
			fmt.Println("error:", err)
		}
	}
}

// command dispatches a slash command, returning true on /quit.
func command(ctx context.Context, controller *session.Controller, line string) bool {
	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}

	switch fields[0] {
	case "/help":
		fmt.Println(`commands:
  /new                start a new chat
  /list               list conversations
  /open <n>           open conversation n from the list
  /delete <n>         delete conversation n
  /rename <n> <name>  rename conversation n locally
  /quit               exit`)

	case "/new":
		controller.CreateNewChat()
		fmt.Println("(new chat)")

	case "/list":
		if err := controller.Refresh(ctx); err != nil {
			fmt.Println("could not refresh list:", err)
		}
		entries := controller.Entries()
		if len(entries) == 0 {
			fmt.Println("(no conversations)")
			return false
		}
		for i, e := range entries {
			marker := " "
			if e.UnreadCount > 0 {
				marker = "*"
			}
			fmt.Printf("%s %2d. %s\n", marker, i+1, e.Title)
		}

	case "/open":
		entry, ok := entryByNumber(controller, arg)
		if !ok {
			return false
		}
		if err := controller.SelectChat(ctx, entry.ID); err != nil {
			fmt.Println("could not open conversation:", err)
			return false
		}
		for _, m := range controller.Messages() {
			fmt.Printf("[%s] %s\n", m.Sender, m.Content)
		}

	case "/delete":
		entry, ok := entryByNumber(controller, arg)
		if !ok {
			return false
		}
		if err := controller.DeleteChat(ctx, entry.ID); err != nil {
			fmt.Println("could not delete conversation:", err)
			return false
		}
		fmt.Println("(deleted)")

	case "/rename":
		parts := strings.SplitN(arg, " ", 2)
		if len(parts) < 2 {
			fmt.Println("usage: /rename <n> <name>")
			return false
		}
		entry, ok := entryByNumber(controller, parts[0])
		if !ok {
			return false
		}
		controller.RenameChat(entry.ID, parts[1])

	case "/quit", "/exit":
		return true

	default:
		fmt.Println("unknown command, try /help")
	}
	return false
}

func entryByNumber(controller *session.Controller, arg string) (store.Entry, bool) {
	entries := controller.Entries()
	var n int
	if _, err := fmt.Sscanf(arg, "%d", &n); err != nil || n < 1 || n > len(entries) {
		fmt.Println("pick a conversation number from /list")
		return store.Entry{}, false
	}
	return entries[n-1], true
}

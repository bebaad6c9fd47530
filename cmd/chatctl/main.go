package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/matheus3301/chatsync/internal/api"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/session"
)

type command struct {
	usage   string
	help    string
	minArgs int
	run     func(ctx context.Context, c *api.Client, args []string) (any, error)
}

var commands = map[string]command{
	"status":         {"status", "Show daemon status", 0, cmdStatus},
	"signup":         {"signup <email> <username> <password> [display name]", "Create an account and sign in", 3, cmdSignUp},
	"signin":         {"signin <email|username> <password>", "Sign in", 2, cmdSignIn},
	"signout":        {"signout", "Sign out", 0, cmdSignOut},
	"reauth":         {"reauth <password>", "Confirm the password before sensitive changes", 1, cmdReauth},
	"passwd":         {"passwd <new password>", "Change the password (after reauth)", 1, cmdPasswd},
	"reset-request":  {"reset-request <email>", "Issue a password reset token", 1, cmdResetRequest},
	"reset":          {"reset <token> <new password>", "Redeem a password reset token", 2, cmdReset},
	"list":           {"list [--pinned]", "List conversations", 0, cmdList},
	"search":         {"search [query]", "Filter the conversation list; no query clears it", 0, cmdSearch},
	"open":           {"open <user id>", "Open or create the conversation with a user", 1, cmdOpen},
	"open-id":        {"open-id <conversation id>", "Open an existing conversation", 1, cmdOpenID},
	"close":          {"close", "Close the open conversation", 0, cmdClose},
	"send":           {"send <text>", "Send a text message", 1, cmdSend},
	"send-image":     {"send-image <path> [caption]", "Send an image", 1, cmdSendImage},
	"messages":       {"messages", "Show the open conversation", 0, cmdMessages},
	"find":           {"find [--all] <query>", "Search messages", 1, cmdFind},
	"pin":            {"pin <conversation id>", "Toggle the pinned flag", 1, cmdPin},
	"delete-message": {"delete-message <message id>", "Delete a message of the open conversation", 1, cmdDeleteMessage},
	"delete":         {"delete <conversation id>", "Delete a conversation and its messages", 1, cmdDelete},
	"export":         {"export <path.pdf>", "Write the open conversation as a PDF transcript", 1, cmdExport},
	"config":         {"config <key> [value]", "Read or change a setting", 1, cmdConfig},
	"watch":          {"watch [namespace...]", "Stream live events", 0, nil},
}

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Usage = printUsage
	flag.Parse()

	profileName := session.Resolve(*profileFlag)
	if err := session.ValidateName(profileName); err != nil {
		fatal(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if len(args)-1 < cmd.minArgs {
		fmt.Fprintf(os.Stderr, "usage: chatctl %s\n", cmd.usage)
		os.Exit(1)
	}

	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		fatal(err)
	}
	c, err := api.Dial(session.SocketPath(profileName), api.WithMaxImageBytes(cfg.Media.MaxBytes))
	if err != nil {
		fatal(fmt.Errorf("cannot connect to daemon for profile %q: %w", profileName, err))
	}
	defer func() { _ = c.Close() }()

	if args[0] == "watch" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := watch(ctx, c, args[1:], *jsonFlag); err != nil {
			fatal(err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := cmd.run(ctx, c, args[1:])
	if err != nil {
		fatal(err)
	}
	if out == nil {
		return
	}
	if *jsonFlag {
		outputJSON(out)
		return
	}
	printText(out)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: chatctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-52s %s\n", commands[name].usage, commands[name].help)
	}
}

func cmdStatus(ctx context.Context, c *api.Client, _ []string) (any, error) {
	return c.Status(ctx)
}

func cmdSignUp(ctx context.Context, c *api.Client, args []string) (any, error) {
	return c.SignUp(ctx, &api.SignUpRequest{
		Email:       args[0],
		Username:    args[1],
		Password:    args[2],
		DisplayName: strings.Join(args[3:], " "),
	})
}

func cmdSignIn(ctx context.Context, c *api.Client, args []string) (any, error) {
	return c.SignIn(ctx, args[0], args[1])
}

func cmdSignOut(ctx context.Context, c *api.Client, _ []string) (any, error) {
	return nil, c.SignOut(ctx)
}

func cmdReauth(ctx context.Context, c *api.Client, args []string) (any, error) {
	return nil, c.Reauthenticate(ctx, args[0])
}

func cmdPasswd(ctx context.Context, c *api.Client, args []string) (any, error) {
	return nil, c.ChangePassword(ctx, args[0])
}

func cmdResetRequest(ctx context.Context, c *api.Client, args []string) (any, error) {
	return c.RequestPasswordReset(ctx, args[0])
}

func cmdReset(ctx context.Context, c *api.Client, args []string) (any, error) {
	return nil, c.ResetPassword(ctx, args[0], args[1])
}

func cmdList(ctx context.Context, c *api.Client, args []string) (any, error) {
	pinned := len(args) > 0 && args[0] == "--pinned"
	return c.ListConversations(ctx, pinned)
}

func cmdSearch(ctx context.Context, c *api.Client, args []string) (any, error) {
	return c.SearchConversations(ctx, strings.Join(args, " "))
}

func cmdOpen(ctx context.Context, c *api.Client, args []string) (any, error) {
	return c.OpenConversation(ctx, &api.OpenConversationRequest{UserID: args[0]})
}

func cmdOpenID(ctx context.Context, c *api.Client, args []string) (any, error) {
	return c.OpenConversation(ctx, &api.OpenConversationRequest{ConversationID: args[0]})
}

func cmdClose(ctx context.Context, c *api.Client, _ []string) (any, error) {
	return nil, c.CloseConversation(ctx)
}

func cmdSend(ctx context.Context, c *api.Client, args []string) (any, error) {
	return nil, c.SendText(ctx, strings.Join(args, " "))
}

func cmdSendImage(ctx context.Context, c *api.Client, args []string) (any, error) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, err
	}
	return nil, c.SendImage(ctx, data, strings.Join(args[1:], " "))
}

func cmdMessages(ctx context.Context, c *api.Client, _ []string) (any, error) {
	return c.ListMessages(ctx)
}

func cmdFind(ctx context.Context, c *api.Client, args []string) (any, error) {
	req := &api.FindMessagesRequest{}
	if args[0] == "--all" {
		req.All = true
		args = args[1:]
	}
	req.Query = strings.Join(args, " ")
	return c.FindMessages(ctx, req)
}

func cmdPin(ctx context.Context, c *api.Client, args []string) (any, error) {
	return nil, c.TogglePin(ctx, args[0])
}

func cmdDeleteMessage(ctx context.Context, c *api.Client, args []string) (any, error) {
	return nil, c.DeleteMessage(ctx, args[0])
}

func cmdDelete(ctx context.Context, c *api.Client, args []string) (any, error) {
	return nil, c.DeleteConversation(ctx, args[0])
}

func cmdExport(ctx context.Context, c *api.Client, args []string) (any, error) {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return nil, err
	}
	if filepath.Ext(path) == "" {
		path += ".pdf"
	}
	return c.Export(ctx, path)
}

func cmdConfig(ctx context.Context, c *api.Client, args []string) (any, error) {
	if len(args) == 1 {
		return c.GetSetting(ctx, args[0])
	}
	return c.SetSetting(ctx, args[0], strings.Join(args[1:], " "))
}

func watch(ctx context.Context, c *api.Client, namespaces []string, jsonOut bool) error {
	return c.WatchEvents(ctx, namespaces, func(evt *api.Event) error {
		if jsonOut {
			outputJSON(evt)
			return nil
		}
		fmt.Printf("%s  %-28s %s\n", evt.OccurredAt.Local().Format(time.TimeOnly), evt.Kind, evt.Payload)
		return nil
	})
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

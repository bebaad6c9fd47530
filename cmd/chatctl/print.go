package main

import (
	"fmt"
	"time"

	"github.com/matheus3301/chatsync/internal/api"
)

func printText(v any) {
	switch r := v.(type) {
	case *api.StatusResponse:
		fmt.Printf("Profile:       %s\n", r.Profile)
		fmt.Printf("Status:        %s\n", r.State)
		if r.Detail != "" {
			fmt.Printf("Detail:        %s\n", r.Detail)
		}
		if r.UserID != "" {
			fmt.Printf("User:          %s\n", r.UserID)
		}
		fmt.Printf("Uptime:        %s\n", (time.Duration(r.UptimeMs) * time.Millisecond).Round(time.Second))
		fmt.Printf("Conversations: %d\n", r.Conversations)
		if r.OpenConversation != "" {
			fmt.Printf("Open:          %s\n", r.OpenConversation)
		}
		if r.ListError != "" {
			fmt.Printf("List error:    %s\n", r.ListError)
		}
		if r.StreamError != "" {
			fmt.Printf("Stream error:  %s\n", r.StreamError)
		}
	case *api.ProfileResponse:
		fmt.Printf("Signed in as %s (%s)\n", displayName(r.Profile), r.Profile.UserID)
	case *api.PasswordResetResponse:
		fmt.Printf("Reset token: %s\n", r.Token)
	case *api.ListConversationsResponse:
		if r.Query != "" {
			fmt.Printf("Filter: %q\n", r.Query)
		}
		if len(r.Pinned)+len(r.Unpinned) == 0 {
			fmt.Println("No conversations.")
			return
		}
		for _, c := range r.Pinned {
			printConversation("*", c)
		}
		for _, c := range r.Unpinned {
			printConversation(" ", c)
		}
	case *api.ConversationResponse:
		printConversation(" ", r.Conversation)
	case *api.MessagesResponse:
		if len(r.Messages) == 0 {
			fmt.Println("No messages.")
			return
		}
		for _, m := range r.Messages {
			printMessage(m)
		}
	case *api.FindMessagesResponse:
		if len(r.Hits) == 0 {
			fmt.Println("No matches.")
			return
		}
		for _, h := range r.Hits {
			if h.Snippet != "" {
				fmt.Printf("%s  %s  %s\n", h.Message.ConversationID, h.Message.ID, h.Snippet)
				continue
			}
			printMessage(h.Message)
		}
	case *api.ExportResponse:
		fmt.Printf("Wrote %d messages on %d pages to %s\n", r.Messages, r.Pages, r.Path)
	case *api.SettingResponse:
		fmt.Printf("%s = %s\n", r.Key, r.Value)
	default:
		fmt.Printf("%+v\n", v)
	}
}

func printConversation(mark string, c api.Conversation) {
	name := c.PeerName
	if name == "" {
		name = c.Peer
	}
	unread := ""
	if c.Unread > 0 {
		unread = fmt.Sprintf(" (%d)", c.Unread)
	}
	fmt.Printf("%s %-24s %-20s %s%s\n", mark, c.ID, name, c.Preview, unread)
}

func printMessage(m api.Message) {
	who := m.SenderID
	if m.FromMe {
		who = "me"
	}
	body := m.Text
	if m.ImageURL != "" {
		if body != "" {
			body += " "
		}
		body += "[image " + m.ImageURL + "]"
	}
	fmt.Printf("%s  %-8s %-10s %s  (%s)\n", m.SentAt.Local().Format(time.DateTime), m.Status, who, body, m.ID)
}

func displayName(p api.Profile) string {
	switch {
	case p.DisplayName != "":
		return p.DisplayName
	case p.Handle != "":
		return p.Handle
	default:
		return p.UserID
	}
}

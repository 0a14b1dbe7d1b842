package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/meteor314/twitch-bot/command"
	"github.com/meteor314/twitch-bot/db"
)

const (
	exportMarkdown = "COMMANDS.md"
	exportHTML     = "COMMANDS.html"
	endScreenFile  = "topchatters.json"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

func access(d *command.Descriptor) string {
	switch {
	case d.OwnerOnly:
		return "Owner"
	case d.ModOnly:
		return "Mod"
	}
	return "Everyone"
}

// cell escapes table separators and trims long values.
func cell(s string, n int) string {
	return strings.ReplaceAll(truncate(s, n), "|", "\\|")
}

// renderCommandList builds the markdown command reference.
func (s *set) renderCommandList(now time.Time, builtins []*command.Descriptor, custom []db.CustomCommand, aliases []db.CommandAlias) []byte {
	p := s.Bot.Prefix
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Commands\n\n")
	fmt.Fprintf(&b, "**Channel:** %s  \n", s.Bot.Channel)
	fmt.Fprintf(&b, "**Exported:** %s  \n", now.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "**Total:** %d\n\n", len(builtins)+len(custom))

	fmt.Fprintf(&b, "## Built-in commands (%d)\n\n", len(builtins))
	b.WriteString("| Command | Description | Usage | Access | Aliases | Cooldown |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, d := range builtins {
		names := "-"
		if len(d.Aliases) > 0 {
			names = p + strings.Join(d.Aliases, ", "+p)
		}
		usage := p + strings.TrimPrefix(d.Usage, "!")
		fmt.Fprintf(&b, "| %s%s | %s | `%s` | %s | %s | %s |\n",
			p, d.Name, cell(d.Description, 60), strings.ReplaceAll(usage, "|", "\\|"), access(d), names, d.Cooldown)
	}

	fmt.Fprintf(&b, "\n## Custom commands (%d)\n\n", len(custom))
	if len(custom) == 0 {
		b.WriteString("*No custom commands.*\n")
	} else {
		b.WriteString("| Command | Response | Created by | Uses | Created |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, c := range custom {
			fmt.Fprintf(&b, "| %s%s | %s | %s | %d | %s |\n",
				p, c.Name, cell(c.Response, 50), c.CreatedBy, c.UseCount, c.CreatedAt.Format("2006-01-02"))
		}
	}

	fmt.Fprintf(&b, "\n## Aliases (%d)\n\n", len(aliases))
	if len(aliases) == 0 {
		b.WriteString("*No aliases.*\n")
	} else {
		b.WriteString("| Alias | Target |\n|---|---|\n")
		for _, a := range aliases {
			fmt.Fprintf(&b, "| %s%s | %s%s |\n", p, a.Alias, p, a.Target)
		}
	}
	fmt.Fprintf(&b, "\n---\n\n*Generated by %sexport. Do not edit by hand.*\n", p)
	return b.Bytes()
}

func (s *set) export(ctx context.Context, inv command.Invocation) (string, error) {
	custom, err := s.Store.ListCustomCommands(ctx)
	if err != nil {
		return "", err
	}
	aliases, err := s.Store.ListAliases(ctx)
	if err != nil {
		return "", err
	}
	builtins := s.reg.Descriptors()
	md := s.renderCommandList(s.Now(), builtins, custom, aliases)

	var html bytes.Buffer
	if err := markdown.Convert(md, &html); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	if err := os.MkdirAll(s.ExportDir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	mdPath := filepath.Join(s.ExportDir, exportMarkdown)
	if err := os.WriteFile(mdPath, md, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", mdPath, err)
	}
	htmlPath := filepath.Join(s.ExportDir, exportHTML)
	if err := os.WriteFile(htmlPath, html.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", htmlPath, err)
	}
	return fmt.Sprintf("%s exported %d commands to %s and %s", inv.Invoker.Mention(), len(builtins)+len(custom), mdPath, exportHTML), nil
}

type endScreenChatter struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Count    int    `json:"count"`
}

type endScreenViewer struct {
	Rank      int    `json:"rank"`
	Username  string `json:"username"`
	Points    int64  `json:"points"`
	WatchTime int64  `json:"watchTime"`
}

type endScreen struct {
	ExportDate    time.Time          `json:"exportDate"`
	StreamDate    string             `json:"streamDate"`
	TotalChatters int                `json:"totalChatters"`
	Chatters      []endScreenChatter `json:"chatters"`
	TotalViewers  int                `json:"totalViewers"`
	Viewers       []endScreenViewer  `json:"viewers"`
}

func (s *set) endScreen(ctx context.Context, inv command.Invocation) (string, error) {
	if s.Chatters == nil {
		return inv.Invoker.Mention() + " chat statistics are unavailable.", nil
	}
	now := s.Now()
	out := endScreen{
		ExportDate: now.UTC(),
		StreamDate: now.Format("2006-01-02"),
		Chatters:   []endScreenChatter{},
		Viewers:    []endScreenViewer{},
	}
	for i, c := range s.Chatters.TopChatters(10) {
		out.Chatters = append(out.Chatters, endScreenChatter{Rank: i + 1, Username: c.Name, Count: c.Messages})
	}
	// fetch extra rows so ten remain after dropping the owner
	viewers, err := s.Store.TopViewers(ctx, 15)
	if err != nil {
		return "", err
	}
	for _, v := range viewers {
		if s.Bot.IsOwner(v.Username) {
			continue
		}
		if len(out.Viewers) == 10 {
			break
		}
		out.Viewers = append(out.Viewers, endScreenViewer{Rank: len(out.Viewers) + 1, Username: v.Username, Points: v.Points, WatchTime: v.WatchMinutes})
	}
	out.TotalChatters = len(out.Chatters)
	out.TotalViewers = len(out.Viewers)

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.PublicDir, 0o755); err != nil {
		return "", fmt.Errorf("create public dir: %w", err)
	}
	path := filepath.Join(s.PublicDir, endScreenFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return fmt.Sprintf("%s saved %d chatters and %d viewers to %s", inv.Invoker.Mention(), out.TotalChatters, out.TotalViewers, path), nil
}

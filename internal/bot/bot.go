package bot

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"promptbot/internal/models"

	"github.com/rs/zerolog/log"
)

// Messenger 是聊天平台的发送接口。
type Messenger interface {
	SendDM(ctx context.Context, userID, content string) error
	SendChannel(ctx context.Context, channelID, content string) error
}

// Issuer 为用户签发 token。
type Issuer interface {
	Issue(ctx context.Context, userID, userName string, admin bool) (*models.Token, error)
}

// Command 是从聊天消息中提取出的命令上下文。
type Command struct {
	AuthorID  string
	AuthorTag string
	Content   string
	// Roles 为 nil 表示消息不是在服务器内发出的（例如私聊）。
	Roles []string
}

// Options 配置命令前缀、管理员角色与链接地址。
type Options struct {
	Prefix            string
	AdminRoleID       string
	HostURL           string
	PromptFormPath    string
	ManagePromptsPath string
	Timeout           time.Duration
}

// Bot 处理聊天命令。
type Bot struct {
	opts      Options
	issuer    Issuer
	messenger Messenger
	templates *Templates
	selfID    atomic.Pointer[string]
}

func New(opts Options, issuer Issuer, messenger Messenger, templates *Templates) *Bot {
	return &Bot{opts: opts, issuer: issuer, messenger: messenger, templates: templates}
}

// SetSelfID 记录机器人自身的用户 ID，其消息会被忽略。
func (b *Bot) SetSelfID(id string) { b.selfID.Store(&id) }

// Handle 解析并执行命令。只有 "link" 会被处理，其余命令忽略。
func (b *Bot) Handle(ctx context.Context, cmd Command) {
	if b.opts.Prefix == "" || !strings.HasPrefix(cmd.Content, b.opts.Prefix) {
		return
	}
	if cmd.AuthorID == "" {
		return
	}
	if self := b.selfID.Load(); self != nil && cmd.AuthorID == *self {
		return
	}
	fields := strings.Fields(strings.TrimPrefix(cmd.Content, b.opts.Prefix))
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "link":
		b.link(ctx, cmd)
	}
}

func (b *Bot) link(ctx context.Context, cmd Command) {
	if b.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.Timeout)
		defer cancel()
	}
	admin := b.isAdmin(cmd.Roles)
	rec, err := b.issuer.Issue(ctx, cmd.AuthorID, cmd.AuthorTag, admin)
	if err != nil {
		log.Error().Err(err).Str("user_id", cmd.AuthorID).Msg("issue token")
		b.dm(ctx, cmd.AuthorID, "Error: could not issue a link, please try again later.")
		return
	}
	log.Info().Str("user_id", cmd.AuthorID).Bool("admin", admin).Msg("token issued")
	b.dm(ctx, cmd.AuthorID, b.LinkMessage(rec.Token, admin))
}

func (b *Bot) isAdmin(roles []string) bool {
	if b.opts.AdminRoleID == "" {
		return false
	}
	for _, r := range roles {
		if r == b.opts.AdminRoleID {
			return true
		}
	}
	return false
}

func (b *Bot) dm(ctx context.Context, userID, content string) {
	if err := b.messenger.SendDM(ctx, userID, content); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("send private message")
	}
}

// LinkMessage 组合私信内容：模板文本、提交链接，以及管理员的管理链接。
func (b *Bot) LinkMessage(token string, admin bool) string {
	text := b.defaultLinkText()
	if b.templates != nil {
		text = b.templates.Get("link", text)
	}
	host := strings.TrimRight(b.opts.HostURL, "/")
	var sb strings.Builder
	sb.WriteString(text)
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Submit prompt: %s/%s/%s\n", host, b.opts.PromptFormPath, token)
	if admin {
		fmt.Fprintf(&sb, "Manage prompts: %s/%s/%s\n", host, b.opts.ManagePromptsPath, token)
	}
	return sb.String()
}

func (b *Bot) defaultLinkText() string {
	return "Do not share these links around as these are your private links.\n" +
		"In case someone managed to get your private link, you can reissue a new link using `" + b.opts.Prefix + "link`.\n" +
		"For role privileges, reissue your link from within the server.\n" +
		"Thank you for your participation!\n"
}

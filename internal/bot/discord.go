package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// DiscordMessenger 通过 discordgo 会话发送消息。
type DiscordMessenger struct {
	s *discordgo.Session
}

func NewDiscordMessenger(s *discordgo.Session) *DiscordMessenger {
	return &DiscordMessenger{s: s}
}

func (m *DiscordMessenger) SendDM(ctx context.Context, userID, content string) error {
	ch, err := m.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	_, err = m.s.ChannelMessageSend(ch.ID, content, discordgo.WithContext(ctx))
	return err
}

func (m *DiscordMessenger) SendChannel(ctx context.Context, channelID, content string) error {
	_, err := m.s.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	return err
}

// Attach 注册 ready 与消息事件处理器，把聊天消息转成 Command 交给 Bot。
func (b *Bot) Attach(s *discordgo.Session) {
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.SetSelfID(r.User.ID)
		log.Info().Str("user", r.User.String()).Msg("bot logged in")
	})
	s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		b.Handle(context.Background(), commandFromMessage(m))
	})
}

func commandFromMessage(m *discordgo.MessageCreate) Command {
	cmd := Command{AuthorID: m.Author.ID, AuthorTag: m.Author.String(), Content: m.Content}
	if m.Member != nil {
		cmd.Roles = m.Member.Roles
		if cmd.Roles == nil {
			cmd.Roles = []string{}
		}
	}
	return cmd
}

// LogMessenger 在未配置机器人 token 时使用，只把消息写入日志。
type LogMessenger struct{}

func (LogMessenger) SendDM(_ context.Context, userID, content string) error {
	log.Info().Str("user_id", userID).Int("length", len(content)).Msg("private message (bot disabled)")
	return nil
}

func (LogMessenger) SendChannel(_ context.Context, channelID, content string) error {
	log.Info().Str("channel_id", channelID).Str("content", content).Msg("channel message (bot disabled)")
	return nil
}

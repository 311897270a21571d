package broadcast

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"promptbot/internal/metrics"
	"promptbot/internal/models"

	"github.com/rs/zerolog/log"
)

// AnonymousMarker 在匿名提交时替代署名。
const AnonymousMarker = "Anonymous"

// Sender 把一条文本发送到指定频道。
type Sender interface {
	SendChannel(ctx context.Context, channelID, content string) error
}

// Delivery 记录单个频道的发送结果。
type Delivery struct {
	ChannelID string `json:"channelId"`
	Archive   bool   `json:"archive"`
	Error     string `json:"error,omitempty"`
}

// OK 表示发送成功。
func (d Delivery) OK() bool { return d.Error == "" }

// Dispatcher 把完整公告发到归档频道，只把标题发到各公共频道。
type Dispatcher struct {
	sender    Sender
	archiveID string
	publicIDs []string
	loc       *time.Location
	timeout   time.Duration
	now       func() time.Time
}

func NewDispatcher(sender Sender, archiveID string, publicIDs []string, loc *time.Location, timeout time.Duration) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	ids := make([]string, 0, len(publicIDs))
	for _, id := range publicIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return &Dispatcher{sender: sender, archiveID: archiveID, publicIDs: ids, loc: loc, timeout: timeout, now: time.Now}
}

// Header 返回带日期横幅的标题。
func (d *Dispatcher) Header(message string) string {
	return Banner(d.now().In(d.loc)) + message
}

// Dispatch 渲染公告并发送到所有频道。每个频道独立发送，一个失败不影响其他频道；
// 结果按归档频道在前、公共频道按配置顺序返回。
func (d *Dispatcher) Dispatch(ctx context.Context, message string, prompts []models.Prompt) []Delivery {
	header := d.Header(message)
	full := header + "\n" + Render(prompts)

	targets := make([]Delivery, 0, len(d.publicIDs)+1)
	bodies := make([]string, 0, len(d.publicIDs)+1)
	if d.archiveID != "" {
		targets = append(targets, Delivery{ChannelID: d.archiveID, Archive: true})
		bodies = append(bodies, full)
	}
	for _, id := range d.publicIDs {
		targets = append(targets, Delivery{ChannelID: id})
		bodies = append(bodies, header)
	}

	var wg sync.WaitGroup
	for i := range targets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sctx := ctx
			if d.timeout > 0 {
				var cancel context.CancelFunc
				sctx, cancel = context.WithTimeout(ctx, d.timeout)
				defer cancel()
			}
			kind := "public"
			if targets[i].Archive {
				kind = "archive"
			}
			if err := d.sender.SendChannel(sctx, targets[i].ChannelID, bodies[i]); err != nil {
				targets[i].Error = err.Error()
				metrics.BroadcastDeliveries.WithLabelValues(kind, "error").Inc()
				log.Error().Err(err).Str("channel_id", targets[i].ChannelID).Str("target", kind).Msg("broadcast send")
				return
			}
			metrics.BroadcastDeliveries.WithLabelValues(kind, "ok").Inc()
		}(i)
	}
	wg.Wait()
	return targets
}

// Render 把 prompts 按顺序渲染成公告正文。
func Render(prompts []models.Prompt) string {
	var b strings.Builder
	for i, p := range prompts {
		fmt.Fprintf(&b, "**Prompt %d (Submitted by %s):** %s [%s] \n", i+1, Attribution(p), p.Prompt, p.Duration)
	}
	return b.String()
}

// Attribution 返回署名：匿名标记或用户 mention。
func Attribution(p models.Prompt) string {
	if p.Anonymous {
		return AnonymousMarker
	}
	return "<@" + p.UserID + ">"
}

// Banner 生成形如 "**>\n>\n>\nOct 15th, 2026**\n\n" 的日期横幅。
func Banner(t time.Time) string {
	return fmt.Sprintf("**>\n>\n>\n%s %d%s, %d**\n\n", t.Format("Jan"), t.Day(), ordinal(t.Day()), t.Year())
}

func ordinal(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}

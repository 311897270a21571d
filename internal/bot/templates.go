package bot

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

const templatesKey = "templates"

// Templates 缓存从远程 XML 文档加载的回复模板，进程内共享。
// 每个顶层元素是一条模板，例如 <link>...</link>；也接受 <messages><link>...</link></messages>。
type Templates struct {
	url    string
	client *http.Client
	cache  *cache.Cache
}

func NewTemplates(url string, client *http.Client) *Templates {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Templates{url: url, client: client, cache: cache.New(cache.NoExpiration, 0)}
}

// Get 返回名为 name 的模板；未加载或不存在时返回 fallback。
func (t *Templates) Get(name, fallback string) string {
	if x, ok := t.cache.Get(templatesKey); ok {
		if v := x.(map[string]string)[name]; v != "" {
			return v
		}
	}
	return fallback
}

// Refresh 拉取并解析模板文档；失败时保留上一次成功加载的内容。
func (t *Templates) Refresh(ctx context.Context) error {
	if t.url == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch templates: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	m, err := ParseTemplates(body)
	if err != nil {
		return err
	}
	t.cache.Set(templatesKey, m, cache.NoExpiration)
	return nil
}

// Run 立即加载一次，之后按 interval 周期刷新直到 ctx 结束；interval<=0 时只加载一次。
func (t *Templates) Run(ctx context.Context, interval time.Duration) {
	if err := t.Refresh(ctx); err != nil {
		log.Warn().Err(err).Str("url", t.url).Msg("load bot templates")
	}
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Refresh(ctx); err != nil {
				log.Warn().Err(err).Str("url", t.url).Msg("refresh bot templates")
			}
		}
	}
}

type xmlNode struct {
	XMLName  xml.Name
	Text     string    `xml:",chardata"`
	Children []xmlNode `xml:",any"`
}

// ParseTemplates 把 XML 文档解析为 元素名 -> 文本 的映射。顶层元素直接映射；
// 若文档只有一个带子元素的根节点，则映射其子元素。
func ParseTemplates(data []byte) (map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var nodes []xmlNode
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		var n xmlNode
		if err := dec.DecodeElement(&n, &se); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 1 && len(nodes[0].Children) > 0 {
		nodes = nodes[0].Children
	}
	out := make(map[string]string, len(nodes))
	for _, n := range nodes {
		out[n.XMLName.Local] = n.Text
	}
	return out, nil
}

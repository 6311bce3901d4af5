package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/cachesync/cachesync/internal/cachestate"
)

// 单行进度消息的上限；条目清单是完整快照，可能较大。
const maxProgressLine = 16 << 20

// Subscribe 打开 /cache/progress 长连接，逐行解码 NDJSON 进度事件。
// ctx 取消或流结束时关闭返回的 channel；无法解码的行会被记录并跳过。
func (c *Client) Subscribe(ctx context.Context) (<-chan cachestate.ProgressEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/cache/progress"), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeRemoteError(resp)
	}

	events := make(chan cachestate.ProgressEvent)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxProgressLine)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var event cachestate.ProgressEvent
			if err := json.Unmarshal(line, &event); err != nil {
				c.warn(err, "progress_decode_failed")
				continue
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			c.warn(err, "progress_stream_failed")
		}
	}()
	return events, nil
}

func (c *Client) warn(err error, code string) {
	if c.logger == nil {
		return
	}
	c.logger.WithError(err).WithFields(logrus.Fields{"action": "progress_stream"}).Warn(code)
}

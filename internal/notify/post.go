package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// postJSON posts payload to url. secret, when set, is masked in errors
// because some channels embed credentials in the URL.
func postJSON(ctx context.Context, client *http.Client, channel, url, secret string, payload any) error {
	op := channel + ".send"
	mask := func(s string) string {
		if secret == "" {
			return s
		}
		return strings.ReplaceAll(s, secret, "***")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.E(domain.KindMalformed, op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.E(domain.KindMalformed, op, fmt.Errorf("%s", mask(err.Error())))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return domain.E(domain.KindTransient, op, fmt.Errorf("%s", mask(err.Error())))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.E(domain.KindTransient, op, domain.ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		kind := domain.KindMalformed
		if resp.StatusCode >= 500 {
			kind = domain.KindTransient
		}
		return domain.E(kind, op, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}
	return nil
}

// clip truncates s to at most n bytes without splitting a UTF-8 sequence.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }

package redis

import (
	"context"
	"testing"

	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
)

func TestNewClientValidatesConfig(t *testing.T) {
	if _, err := NewClient(context.Background(), Config{Addrs: []string{" ", ""}}, logger.Nop()); err == nil {
		t.Fatalf("blank addrs should be rejected")
	}
	if _, err := NewClient(context.Background(), Config{Addrs: []string{"127.0.0.1:6379"}}, nil); err == nil {
		t.Fatalf("nil logger should be rejected")
	}
}

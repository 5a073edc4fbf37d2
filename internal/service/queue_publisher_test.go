package service

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/utility-audit-portal/internal/queue"
)

func TestAMQPPublisher_SilentBrokerDoesNotBlockCallers(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})

	var logs bytes.Buffer
	p := NewAMQPPublisher("amqp://guest:guest@"+ln.Addr().String()+"/", slog.New(slog.NewTextHandler(&logs, nil)))
	p.dialTimeout = 150 * time.Millisecond
	defer p.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.Publish(context.Background(), queue.NewEvent(queue.EventReportUploaded, "owner-1", "r1"))
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("publishers stuck behind an unanswered dial")
	}
	assert.Contains(t, logs.String(), "rabbitmq: publish failed")
}

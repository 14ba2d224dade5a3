package anovawifi_test

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/anova4all/gateway/internal/anovawifi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestServerAcceptsConnections(t *testing.T) {
	var mu sync.Mutex
	var handled []*anovawifi.Connection

	server := anovawifi.NewServer("127.0.0.1", 0, zap.NewNop(), func(conn *anovawifi.Connection) {
		mu.Lock()
		handled = append(handled, conn)
		mu.Unlock()
	})

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve() }()

	require.Eventually(t, func() bool { return server.Alive() }, time.Second, time.Millisecond)

	addr := server.Addr()
	require.NotNil(t, addr)

	client, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, server.Close())
	assert.NoError(t, <-serveErr)
	assert.False(t, server.Alive())
}

func TestServerCloseWaitsForInFlightHandlers(t *testing.T) {
	handlerStarted := make(chan struct{})
	releaseHandler := make(chan struct{})

	server := anovawifi.NewServer("127.0.0.1", 0, zap.NewNop(), func(conn *anovawifi.Connection) {
		close(handlerStarted)
		<-releaseHandler
	})

	go func() { _ = server.Serve() }()
	require.Eventually(t, func() bool { return server.Alive() }, time.Second, time.Millisecond)

	client, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	<-handlerStarted

	closeDone := make(chan struct{})
	go func() {
		_ = server.Close()
		close(closeDone)
	}()

	select {
	case <-closeDone:
		t.Fatal("Close returned before in-flight handler released")
	case <-time.After(50 * time.Millisecond):
	}

	close(releaseHandler)

	select {
	case <-closeDone:
	case <-time.After(time.Second):
		t.Fatal("Close never returned after handler released")
	}
}

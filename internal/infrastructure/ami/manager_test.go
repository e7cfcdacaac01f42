package ami

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	actions []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{done: make(chan struct{})}
}

func (s *fakeSession) Action(ctx context.Context, name string, params map[string]string) (Message, error) {
	s.mu.Lock()
	s.actions = append(s.actions, name)
	s.mu.Unlock()
	return Message{"response": "Success"}, nil
}

func (s *fakeSession) Done() <-chan struct{} { return s.done }
func (s *fakeSession) Err() error            { return ErrClosed }
func (s *fakeSession) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func testOptions() Options {
	return Options{
		Addr:           "pbx.test:5038",
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		ActionTimeout:  time.Second,
	}
}

func TestManagerActionWhileDisconnected(t *testing.T) {
	m := NewManager(testOptions())
	_, err := m.Action(context.Background(), "CoreShowChannels", nil)
	require.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, m.Connected())
}

func TestManagerReconnectsAfterLoss(t *testing.T) {
	m := NewManager(testOptions())

	sessions := make(chan *fakeSession, 4)
	var dials atomic.Int32
	m.SetDialer(func(ctx context.Context, onEvent func(Event)) (Session, error) {
		dials.Add(1)
		s := newFakeSession()
		sessions <- s
		return s, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- m.Run(ctx) }()

	first := <-sessions
	require.Eventually(t, m.Connected, time.Second, time.Millisecond)
	first.Close()

	second := <-sessions
	require.Eventually(t, func() bool { return dials.Load() == 2 && m.Connected() }, time.Second, time.Millisecond)

	_, err := m.Action(context.Background(), "Hangup", map[string]string{"Channel": "PJSIP/x"})
	require.NoError(t, err)
	second.mu.Lock()
	assert.Equal(t, []string{"Hangup"}, second.actions)
	second.mu.Unlock()

	cancel()
	require.NoError(t, <-runErr)
	assert.False(t, m.Connected())
}

func TestManagerRetriesExhausted(t *testing.T) {
	m := NewManager(testOptions())
	var dials atomic.Int32
	m.SetDialer(func(ctx context.Context, onEvent func(Event)) (Session, error) {
		dials.Add(1)
		return nil, errors.New("connection refused")
	})

	err := m.Run(context.Background())
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, int32(3), dials.Load())
}

func TestManagerAuthenticationFailureIsNotRetried(t *testing.T) {
	m := NewManager(testOptions())
	var dials atomic.Int32
	m.SetDialer(func(ctx context.Context, onEvent func(Event)) (Session, error) {
		dials.Add(1)
		return nil, ErrAuthentication
	})

	err := m.Run(context.Background())
	require.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, int32(1), dials.Load())
}

func TestManagerDispatchesToSubscribers(t *testing.T) {
	m := NewManager(testOptions())

	var mu sync.Mutex
	var got []string
	m.Subscribe(func(ev Event) {
		mu.Lock()
		got = append(got, "a:"+ev.EventName())
		mu.Unlock()
	})
	m.Subscribe(func(ev Event) {
		mu.Lock()
		got = append(got, "b:"+ev.EventName())
		mu.Unlock()
	})

	emit := make(chan func(Event), 1)
	m.SetDialer(func(ctx context.Context, onEvent func(Event)) (Session, error) {
		emit <- onEvent
		return newFakeSession(), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	onEvent := <-emit
	onEvent(ChannelHungUp{Uniqueid: "1.1"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a:Hangup", "b:Hangup"}, got)
}

// silentListener 接受连接但从不发送欢迎语
func silentListener(t *testing.T) (string, *atomic.Int32) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var accepted atomic.Int32
	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		for _, c := range conns {
			c.Close()
		}
		mu.Unlock()
	})
	return ln.Addr().String(), &accepted
}

func TestManagerRetriesWhenServerNeverSendsBanner(t *testing.T) {
	addr, accepted := silentListener(t)
	opts := testOptions()
	opts.Addr = addr
	opts.Username, opts.Secret = "dprj", "secret"
	opts.DialTimeout = 100 * time.Millisecond
	opts.MaxRetries = 2
	m := NewManager(opts)

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrRetriesExhausted)
		assert.Equal(t, int32(2), accepted.Load())
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not give up on a silent server")
	}
}

func TestManagerRunStopsWhileWaitingForBanner(t *testing.T) {
	addr, accepted := silentListener(t)
	opts := testOptions()
	opts.Addr = addr
	opts.Username, opts.Secret = "dprj", "secret"
	opts.DialTimeout = 30 * time.Second
	m := NewManager(opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return accepted.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

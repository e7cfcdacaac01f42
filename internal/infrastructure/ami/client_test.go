package ami

import (
	"bufio"
	"context"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAMI 基于 net.Pipe 的最小 AMI 服务端
type fakeAMI struct {
	conn   net.Conn
	reader *textproto.Reader
}

func newFakeAMI(t *testing.T) (net.Conn, *fakeAMI) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, &fakeAMI{conn: server, reader: textproto.NewReader(bufio.NewReader(server))}
}

func (f *fakeAMI) send(lines ...string) error {
	_, err := f.conn.Write([]byte(strings.Join(lines, "\r\n") + "\r\n\r\n"))
	return err
}

func (f *fakeAMI) next() (Message, error) {
	return readMessage(f.reader)
}

// serve 写出欢迎语，然后用 reply 处理每个动作
func (f *fakeAMI) serve(reply func(action Message) [][]string) {
	go func() {
		if _, err := f.conn.Write([]byte("Asterisk Call Manager/5.0.1\r\n")); err != nil {
			return
		}
		for {
			action, err := f.next()
			if err != nil {
				return
			}
			for _, msg := range reply(action) {
				if err := f.send(msg...); err != nil {
					return
				}
			}
		}
	}()
}

func TestLoginSucceeds(t *testing.T) {
	conn, srv := newFakeAMI(t)
	got := make(chan Message, 1)
	srv.serve(func(action Message) [][]string {
		got <- action
		return [][]string{{"Response: Success", "ActionID: " + action.ActionID(), "Message: Authentication accepted"}}
	})

	c, err := Open(conn, nil)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "Asterisk Call Manager/5.0.1", c.Banner())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Login(ctx, "dprj", "secret"))

	action := <-got
	assert.Equal(t, "Login", action.Get("Action"))
	assert.Equal(t, "dprj", action.Get("Username"))
	assert.Equal(t, "secret", action.Get("Secret"))
	assert.NotEmpty(t, action.ActionID())
}

func TestLoginRejectedIsAuthenticationError(t *testing.T) {
	conn, srv := newFakeAMI(t)
	srv.serve(func(action Message) [][]string {
		return [][]string{{"Response: Error", "ActionID: " + action.ActionID(), "Message: Authentication failed"}}
	})

	c, err := Open(conn, nil)
	require.NoError(t, err)
	defer c.Close()

	err = c.Login(context.Background(), "dprj", "wrong")
	require.ErrorIs(t, err, ErrAuthentication)
	assert.Contains(t, err.Error(), "Authentication failed")
}

func TestOpenRejectsUnexpectedBanner(t *testing.T) {
	conn, srv := newFakeAMI(t)
	go srv.conn.Write([]byte("SSH-2.0-OpenSSH_9.6\r\n"))

	_, err := Open(conn, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected banner")
}

func TestOpenContextGivesUpOnSilentServer(t *testing.T) {
	conn, _ := newFakeAMI(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := OpenContext(ctx, conn, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestOpenContextStopsOnCancel(t *testing.T) {
	conn, _ := newFakeAMI(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err := OpenContext(ctx, conn, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestActionEventsReachHandler(t *testing.T) {
	conn, srv := newFakeAMI(t)
	srv.serve(func(action Message) [][]string {
		id := action.ActionID()
		return [][]string{
			{"Response: Success", "ActionID: " + id, "EventList: start", "Message: Channels will follow"},
			{"Event: CoreShowChannel", "ActionID: " + id, "Channel: PJSIP/T16_TDPRJ-00000001",
				"ChannelStateDesc: Up", "Uniqueid: 1700000000.13", "Linkedid: 1700000000.12"},
			{"Event: CoreShowChannelsComplete", "ActionID: " + id, "EventList: Complete", "ListItems: 1"},
		}
	})

	events := make(chan Event, 4)
	c, err := Open(conn, func(ev Event) { events <- ev })
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.Action(context.Background(), "CoreShowChannels", map[string]string{"ActionID": "corr-1"})
	require.NoError(t, err)
	assert.Equal(t, "corr-1", resp.ActionID())

	first := <-events
	snap, ok := first.(ChannelSnapshot)
	require.True(t, ok, "got %T", first)
	assert.Equal(t, "corr-1", snap.ActionID)
	assert.Equal(t, "PJSIP/T16_TDPRJ-00000001", snap.Channel)
	assert.Equal(t, "1700000000.12", snap.Linkedid)

	second := <-events
	complete, ok := second.(ChannelSnapshotComplete)
	require.True(t, ok, "got %T", second)
	assert.Equal(t, "1", complete.ListItems)
}

func TestActionErrorResponse(t *testing.T) {
	conn, srv := newFakeAMI(t)
	srv.serve(func(action Message) [][]string {
		return [][]string{{"Response: Error", "ActionID: " + action.ActionID(), "Message: No such channel"}}
	})

	c, err := Open(conn, nil)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Action(context.Background(), "Hangup", map[string]string{"Channel": "PJSIP/gone"})
	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "Hangup", actionErr.Action)
	assert.Equal(t, "No such channel", actionErr.Message)
}

func TestActionFailsWhenConnectionDrops(t *testing.T) {
	conn, srv := newFakeAMI(t)
	srv.serve(func(action Message) [][]string {
		srv.conn.Close()
		return nil
	})

	c, err := Open(conn, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = c.Action(ctx, "CoreShowChannels", nil)
	require.ErrorIs(t, err, ErrClosed)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("client not marked done after connection loss")
	}
}

func TestActionHonoursContext(t *testing.T) {
	conn, srv := newFakeAMI(t)
	srv.serve(func(action Message) [][]string { return nil })

	c, err := Open(conn, nil)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Action(ctx, "CoreShowChannels", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWriteActionStripsLineBreaks(t *testing.T) {
	var b strings.Builder
	w := bufio.NewWriter(&b)
	require.NoError(t, writeAction(w, "Hangup", "id-1", map[string]string{"Channel": "PJSIP/a\r\nAction: Logoff"}))

	out := b.String()
	assert.True(t, strings.HasPrefix(out, "Action: Hangup\r\nActionID: id-1\r\n"))
	assert.Equal(t, 1, strings.Count(out, "Action:"))
	assert.True(t, strings.HasSuffix(out, "\r\n\r\n"))
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want Event
	}{
		{
			name: "newstate",
			msg: Message{"event": "Newstate", "channelstatedesc": "Up", "context": "T16_cos-CRC",
				"calleridnum": "1001", "connectedlinenum": "21999990000", "uniqueid": "1.1", "linkedid": "1.0"},
			want: ChannelStateChanged{ChannelStateDesc: "Up", Context: "T16_cos-CRC", CallerIDNum: "1001",
				ConnectedLineNum: "21999990000", Uniqueid: "1.1", Linkedid: "1.0"},
		},
		{
			name: "paused alias",
			msg:  Message{"event": "QueueMemberPaused", "queue": "T16_SUPPORT", "membername": "1001", "paused": "1"},
			want: QueueMemberPaused{Queue: "T16_SUPPORT", MemberName: "1001", Paused: "1"},
		},
		{
			name: "hangup cause text",
			msg:  Message{"event": "Hangup", "cause": "16", "cause-txt": "Normal Clearing"},
			want: ChannelHungUp{Cause: "16", CauseTxt: "Normal Clearing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeEvent(tt.msg))
		})
	}

	unknown := DecodeEvent(Message{"event": "PeerStatus", "peer": "PJSIP/1001"})
	assert.Equal(t, "PeerStatus", unknown.EventName())
	assert.Equal(t, "PJSIP/1001", unknown.(UnknownEvent).Fields.Get("Peer"))
}

func TestReadMessageSkipsBlankLines(t *testing.T) {
	raw := "\r\n\r\nEvent: Hangup\r\nUniqueid: 1.1\r\n\r\n"
	r := textproto.NewReader(bufio.NewReader(strings.NewReader(raw)))

	msg, err := readMessage(r)
	require.NoError(t, err)
	assert.Equal(t, Message{"event": "Hangup", "uniqueid": "1.1"}, msg)
}

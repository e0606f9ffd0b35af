package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/villain/pkg/compiler"
	"github.com/vango-dev/villain/pkg/host"
	"github.com/vango-dev/villain/pkg/protocol"
	"github.com/vango-dev/villain/pkg/vdom"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, configure func(*Config)) (*Server, *httptest.Server) {
	t.Helper()
	reg := compiler.NewRegistry()
	_, err := compiler.Compile("Counter", `<button @click="count += 1">{{ count }}</button>`, reg, compiler.Options{
		Setup: compiler.StateSetup(map[string]any{"count": 0}),
	})
	require.NoError(t, err)

	config := &Config{
		Root:            "Counter",
		Title:           "Counter",
		Logger:          quiet(),
		CleanupInterval: time.Hour,
	}
	if configure != nil {
		configure(config)
	}
	srv := New(reg, config)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Sessions().Shutdown()
		ts.Close()
	})
	return srv, ts
}

// client is a test peer replaying op batches on an HTML surface.
type client struct {
	t       *testing.T
	conn    *websocket.Conn
	codec   protocol.Codec
	surface *host.HTMLSurface
	app     *host.Applier
}

func dial(t *testing.T, ts *httptest.Server, codec protocol.Codec) *client {
	t.Helper()
	d := websocket.Dialer{Subprotocols: []string{codec.Name()}}
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/_villain/ws"
	conn, _, err := d.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Equal(t, codec.Name(), conn.Subprotocol())
	c := &client{t: t, conn: conn, codec: codec}
	c.reset()
	return c
}

// reconnect opens a new connection keeping the surface.
func (c *client) reconnect(ts *httptest.Server) *client {
	c.t.Helper()
	_ = c.conn.Close()
	next := dial(c.t, ts, c.codec)
	next.surface, next.app = c.surface, c.app
	return next
}

func (c *client) reset() {
	c.surface = host.NewHTMLSurface()
	c.app = host.NewApplier(c.surface)
}

func (c *client) send(m protocol.Message) {
	c.t.Helper()
	f, err := protocol.Encode(c.codec, m)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.BinaryMessage, f.Encode()))
}

func (c *client) read() protocol.Message {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	f, err := protocol.DecodeFrame(msg)
	require.NoError(c.t, err)
	require.Equal(c.t, c.codec.Flags(), f.Flags)
	m, err := protocol.Decode(f)
	require.NoError(c.t, err)
	return m
}

func (c *client) hello(session string, lastSeq uint64) *protocol.Welcome {
	c.t.Helper()
	c.send(&protocol.Hello{Version: protocol.CurrentVersion, Session: session, LastSeq: lastSeq})
	w, ok := c.read().(*protocol.Welcome)
	require.True(c.t, ok, "expected a Welcome")
	if w.Status == protocol.HandshakeOK && !w.Resumed {
		c.reset()
	}
	return w
}

// ops reads the next batch and applies it.
func (c *client) ops() *protocol.Ops {
	c.t.Helper()
	m := c.read()
	b, ok := m.(*protocol.Ops)
	require.True(c.t, ok, "expected Ops, got %T", m)
	require.NoError(c.t, c.app.Apply(b.Ops))
	return b
}

func (c *client) html() string {
	c.t.Helper()
	out, err := c.surface.InnerHTML()
	require.NoError(c.t, err)
	return out
}

func (c *client) node(tag string) vdom.NodeID {
	c.t.Helper()
	n := c.surface.Find(host.ByTag(tag))
	require.NotNil(c.t, n, "no <%s>", tag)
	id, ok := c.app.ID(n)
	require.True(c.t, ok)
	return id
}

func (c *client) click(tag string) {
	c.t.Helper()
	c.send(&protocol.Event{Seq: 1, Node: c.node(tag), Name: "click"})
}

func button(n string) string {
	return `<button data-on-click="true">` + n + `</button>`
}

func TestSessionMountAndEvents(t *testing.T) {
	for _, codec := range protocol.Codecs {
		t.Run(codec.Name(), func(t *testing.T) {
			srv, ts := newTestServer(t, nil)
			c := dial(t, ts, codec)

			w := c.hello("", 0)
			assert.Equal(t, protocol.HandshakeOK, w.Status)
			assert.False(t, w.Resumed)
			assert.Equal(t, uint64(1), w.NextSeq)
			assert.Equal(t, "Counter", w.Component)
			assert.NotEmpty(t, w.Session)

			assert.Equal(t, uint64(1), c.ops().Seq)
			assert.Equal(t, button("0"), c.html())

			c.click("button")
			b := c.ops()
			assert.Equal(t, uint64(2), b.Seq)
			assert.Equal(t, []vdom.Op{{Kind: vdom.OpSetText, Node: c.node("button"), Value: "1"}}, b.Ops)
			assert.Equal(t, button("1"), c.html())
			assert.Equal(t, 1, srv.Sessions().Count())
		})
	}
}

func TestResumeReplaysMissedBatches(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	c := dial(t, ts, protocol.Binary)
	w := c.hello("", 0)
	c.ops()
	id := c.node("button")

	_ = c.conn.Close()
	sess := srv.Sessions().Get(w.Session)
	require.NotNil(t, sess)
	require.Eventually(t, func() bool { return !sess.Attached() }, 2*time.Second, 10*time.Millisecond)

	err := sess.Do(context.Background(), func() error {
		return sess.Scheduler().Dispatch(id, "click", nil)
	})
	require.NoError(t, err)

	c = c.reconnect(ts)
	w2 := c.hello(w.Session, 1)
	assert.True(t, w2.Resumed)
	assert.Equal(t, w.Session, w2.Session)
	assert.Equal(t, uint64(2), w2.NextSeq)
	assert.Equal(t, uint64(2), c.ops().Seq)
	assert.Equal(t, button("1"), c.html())
}

func TestResumeAfterGapRemounts(t *testing.T) {
	_, ts := newTestServer(t, func(c *Config) {
		c.Session = &SessionConfig{HistorySize: 1}
	})
	c := dial(t, ts, protocol.Binary)
	w := c.hello("", 0)
	c.ops()
	c.click("button")
	c.ops()

	c = c.reconnect(ts)
	w2 := c.hello(w.Session, 0)
	assert.False(t, w2.Resumed, "batch 1 is no longer held")
	assert.Equal(t, w.Session, w2.Session)
	assert.Equal(t, uint64(3), w2.NextSeq)

	b := c.ops()
	assert.Equal(t, uint64(3), b.Seq)
	assert.Equal(t, button("1"), c.html(), "state survives the remount")

	c.click("button")
	c.ops()
	assert.Equal(t, button("2"), c.html())
}

func TestResyncControl(t *testing.T) {
	_, ts := newTestServer(t, nil)
	c := dial(t, ts, protocol.Binary)
	c.hello("", 0)
	c.ops()
	c.click("button")
	c.read() // dropped batch 2

	c.send(&protocol.Control{Kind: protocol.ControlResync, LastSeq: 1})
	w, ok := c.read().(*protocol.Welcome)
	require.True(t, ok)
	assert.True(t, w.Resumed)
	assert.Equal(t, uint64(2), c.ops().Seq)
	assert.Equal(t, button("1"), c.html())
}

func TestUnknownSessionStartsOver(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	c := dial(t, ts, protocol.Binary)
	w := c.hello("deadbeef", 12)
	assert.False(t, w.Resumed)
	assert.NotEqual(t, "deadbeef", w.Session)
	assert.Equal(t, uint64(1), c.ops().Seq)
	assert.Equal(t, 1, srv.Sessions().Count())
}

func TestHandshakeRejections(t *testing.T) {
	_, ts := newTestServer(t, nil)

	c := dial(t, ts, protocol.Binary)
	c.send(&protocol.Hello{Version: protocol.Version{Major: 9}})
	w := c.read().(*protocol.Welcome)
	assert.Equal(t, protocol.HandshakeVersionMismatch, w.Status)

	c = dial(t, ts, protocol.Binary)
	c.send(&protocol.Control{Kind: protocol.ControlPing})
	em, ok := c.read().(*protocol.ErrorMessage)
	require.True(t, ok)
	assert.True(t, em.Fatal)
	assert.Equal(t, protocol.ErrInvalidFrame, em.Code)

	// A MessagePack hello declaring a map far larger than its payload.
	c = dial(t, ts, protocol.MsgPack)
	hostile := &protocol.Frame{Type: protocol.FrameHello, Flags: protocol.FlagMsgPack, Payload: []byte{0xdf, 0x7f, 0xff, 0xff, 0xff, 0xa1, 'v'}}
	require.NoError(t, c.conn.WriteMessage(websocket.BinaryMessage, hostile.Encode()))
	em, ok = c.read().(*protocol.ErrorMessage)
	require.True(t, ok)
	assert.True(t, em.Fatal)
	assert.Equal(t, protocol.ErrInvalidFrame, em.Code)

	_, busy := newTestServer(t, func(c *Config) { c.MaxSessions = 1 })
	first := dial(t, busy, protocol.Binary)
	first.hello("", 0)
	second := dial(t, busy, protocol.Binary)
	assert.Equal(t, protocol.HandshakeServerBusy, second.hello("", 0).Status)
}

func TestMissingRootFailsHandshake(t *testing.T) {
	_, ts := newTestServer(t, func(c *Config) { c.Root = "Nope" })
	c := dial(t, ts, protocol.Binary)
	assert.Equal(t, protocol.HandshakeInternalError, c.hello("", 0).Status)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestEventErrors(t *testing.T) {
	_, ts := newTestServer(t, nil)
	c := dial(t, ts, protocol.Binary)
	c.hello("", 0)
	c.ops()

	c.send(&protocol.Event{Node: 999, Name: "click"})
	em, ok := c.read().(*protocol.ErrorMessage)
	require.True(t, ok)
	assert.Equal(t, protocol.ErrUnknownNode, em.Code)
	assert.False(t, em.Fatal)

	require.NoError(t, c.conn.WriteMessage(websocket.BinaryMessage, []byte{0x7f}))
	em, ok = c.read().(*protocol.ErrorMessage)
	require.True(t, ok)
	assert.Equal(t, protocol.ErrInvalidFrame, em.Code)

	// The session keeps working.
	c.click("button")
	c.ops()
	assert.Equal(t, button("1"), c.html())
}

func TestPingAndClose(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	c := dial(t, ts, protocol.MsgPack)
	c.hello("", 0)
	c.ops()

	c.send(&protocol.Control{Kind: protocol.ControlPing, Timestamp: 42})
	pong, ok := c.read().(*protocol.Control)
	require.True(t, ok)
	assert.Equal(t, &protocol.Control{Kind: protocol.ControlPong, Timestamp: 42}, pong)

	c.send(&protocol.Control{Kind: protocol.ControlClose})
	require.Eventually(t, func() bool { return srv.Sessions().Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestExpiredSessionsAreClosed(t *testing.T) {
	srv, ts := newTestServer(t, func(c *Config) {
		c.Session = &SessionConfig{ResumeWindow: time.Millisecond}
	})
	c := dial(t, ts, protocol.Binary)
	w := c.hello("", 0)
	c.ops()
	_ = c.conn.Close()

	sess := srv.Sessions().Get(w.Session)
	require.Eventually(t, func() bool { return !sess.Attached() }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, srv.Sessions().cleanup(time.Now().Add(time.Second)))
	assert.Equal(t, 0, srv.Sessions().Count())
}

func TestPage(t *testing.T) {
	_, ts := newTestServer(t, func(c *Config) { c.StyleSheets = []string{"/app.css"} })
	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	page := string(body)
	assert.Contains(t, page, `<div id="app">`+button("0")+`</div>`)
	assert.Contains(t, page, `<title>Counter</title>`)
	assert.Contains(t, page, `<link rel="stylesheet" href="/app.css">`)
	assert.Contains(t, page, `<script src="/_villain/client.js" data-socket="/_villain/ws" data-mount="app" defer></script>`)
}

func TestClientScript(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/_villain/client.js")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ClientScript(), body)
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/_villain/client.js", nil)
	req.Header.Set("If-None-Match", `W/`+etag)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil)
	c := dial(t, ts, protocol.Binary)
	c.hello("", 0)
	c.ops()

	page, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	page.Body.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	out := string(body)
	assert.Contains(t, out, "villain_server_sessions_total 1")
	assert.Contains(t, out, `villain_server_frames_sent_total{type="Ops"} 1`)
	assert.Contains(t, out, `villain_scheduler_renders_total{component="Counter"} 2`)
	assert.Contains(t, out, `villain_http_requests_total{method="GET",route="/",status="2xx"} 1`)
}

func TestSameOriginCheck(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example.com/_villain/ws", nil)
	assert.True(t, SameOriginCheck(r))
	r.Header.Set("Origin", "http://example.com")
	assert.True(t, SameOriginCheck(r))
	r.Header.Set("Origin", "http://evil.test")
	assert.False(t, SameOriginCheck(r))
}

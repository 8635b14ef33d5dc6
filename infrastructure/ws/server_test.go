package ws_test

import (
	"club-chat/access"
	"club-chat/auth"
	"club-chat/client"
	"club-chat/connectivity"
	"club-chat/domain/account"
	"club-chat/domain/chat"
	"club-chat/infrastructure/ws"
	"club-chat/readstate"
	"club-chat/repositories"
	"club-chat/runtime"
	"club-chat/session"
	"club-chat/storage"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-chi/chi/v5"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

var (
	ada   = account.User{UID: "u1", Name: "Ada", Role: account.Student, EnrolledClubs: []chat.ClubID{"c1"}}
	grace = account.User{UID: "u2", Name: "Grace", Role: account.Student, EnrolledClubs: []chat.ClubID{"c1"}}
)

type fixture struct {
	url    string
	tokens auth.TokenManager
	store  *storage.BadgerStore
}

func setup(t *testing.T) fixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := storage.NewBadgerStore(log, repositories.NewMessageRepository(db, log, nil), runtime.NewRegistry(), access.AllowAll{})
	tokens := auth.NewTokenManager("0123456789abcdef", time.Hour)
	trackers := readstate.NewTrackers(log, storage.NewLocalStorage(db), nil)
	server := ws.NewServer(log, tokens, store, connectivity.NewMonitor(log, true), runtime.SystemScheduler{},
		trackers, nil, session.Config{Location: time.UTC})

	r := chi.NewRouter()
	r.Get("/ws/clubs/{clubID}", server.HandleWS)
	httpServer := httptest.NewServer(r)
	t.Cleanup(httpServer.Close)
	return fixture{url: httpServer.URL, tokens: tokens, store: store}
}

func (f fixture) dial(t *testing.T, ctx context.Context, user account.User, clubID chat.ClubID) *client.Client {
	t.Helper()
	token, err := f.tokens.Generate(user)
	require.NoError(t, err)
	c, err := client.Dial(ctx, f.url, clubID, token)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func phase(p session.Phase) func(session.View) bool {
	return func(v session.View) bool { return v.Phase == p }
}

func TestWebsocket_Session_Goes_Live_And_Sends(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	f := setup(t)

	// Given a member connected to c1
	c := f.dial(t, ctx, ada, "c1")
	live, err := c.WaitView(ctx, phase(session.Live))
	req.NoError(err)
	req.Equal(chat.ClubID("c1"), live.View.ClubID)
	req.True(live.View.Membership.CanSend)

	// When a message is typed and submitted
	req.NoError(c.SetInput("  hello club  "))
	_, err = c.WaitView(ctx, func(v session.View) bool { return v.Draft == "  hello club  " })
	req.NoError(err)
	req.NoError(c.Submit())

	// Then the stored message comes back in the next snapshot
	sent, err := c.WaitView(ctx, func(v session.View) bool { return len(v.Messages) == 1 && !v.Sending })
	req.NoError(err)
	req.Equal("hello club", sent.View.Messages[0].Text)
	req.Equal("u1", sent.View.Messages[0].SenderID)
	req.Empty(sent.View.Draft)
	req.Zero(sent.Unread)
}

func TestWebsocket_Unread_And_Read(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	f := setup(t)

	c := f.dial(t, ctx, ada, "c1")
	_, err := c.WaitView(ctx, phase(session.Live))
	req.NoError(err)

	// When another member posts
	req.NoError(f.store.Append(ctx, "c1", chat.Sender{UID: grace.UID, Name: grace.Name, Role: string(grace.Role)}, "hi Ada"))

	// Then the view reports it as unread
	unread, err := c.WaitView(ctx, func(v session.View) bool { return len(v.Messages) == 1 })
	req.NoError(err)
	req.Equal(1, unread.Unread)

	// When the club is read
	req.NoError(c.Read())

	// Then the counter drops to zero
	frame, err := c.NextOf(ctx, ws.TypeUnread)
	req.NoError(err)
	p, err := frame.Unread()
	req.NoError(err)
	req.Equal(chat.ClubID("c1"), p.ClubID)
	req.Zero(p.Unread)
	req.Zero(p.Total)
}

func TestWebsocket_Rejected_Frames(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	f := setup(t)

	c := f.dial(t, ctx, ada, "c1")
	_, err := c.WaitView(ctx, phase(session.Live))
	req.NoError(err)

	tests := []struct {
		name   string
		send   func() error
		status int
	}{
		{"empty submit", c.Submit, http.StatusBadRequest},
		{"unknown frame", func() error { return c.Send("shout", nil) }, http.StatusBadRequest},
		{"input without payload", func() error { return c.Send(ws.TypeInput, nil) }, http.StatusBadRequest},
		{"switch without club", func() error { return c.Switch("", "") }, http.StatusBadRequest},
		{"garbage token", func() error { return c.SignIn("garbage") }, http.StatusUnauthorized},
		{"token of another user", func() error {
			token, err := f.tokens.Generate(grace)
			req.NoError(err)
			return c.SignIn(token)
		}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.send())
			frame, err := c.NextOf(ctx, ws.TypeError)
			require.NoError(t, err)
			p, err := frame.Error()
			require.NoError(t, err)
			require.Equal(t, tt.status, p.Status)
		})
	}
}

func TestWebsocket_Sign_Out_Then_In(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	f := setup(t)

	c := f.dial(t, ctx, ada, "c1")
	_, err := c.WaitView(ctx, phase(session.Live))
	req.NoError(err)

	req.NoError(c.SignOut())
	out, err := c.WaitView(ctx, phase(session.Unauthenticated))
	req.NoError(err)
	req.Empty(out.View.Messages)

	token, err := f.tokens.Generate(ada)
	req.NoError(err)
	req.NoError(c.SignIn(token))
	_, err = c.WaitView(ctx, phase(session.Live))
	req.NoError(err)
}

func TestWebsocket_Switch_Keeps_Left_Club_In_Unread_Total(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	f := setup(t)
	member := account.User{UID: "u3", Name: "Linus", Role: account.Student, EnrolledClubs: []chat.ClubID{"c1", "c2"}}

	// Given a member of two clubs who moved from c1 to c2
	c := f.dial(t, ctx, member, "c1")
	_, err := c.WaitView(ctx, phase(session.Live))
	req.NoError(err)
	req.NoError(c.Switch("c2", "Robotics"))
	_, err = c.WaitView(ctx, func(v session.View) bool { return v.ClubID == "c2" && v.Phase == session.Live })
	req.NoError(err)

	// When another member posts in the club that was left
	req.NoError(f.store.Append(ctx, "c1", chat.Sender{UID: grace.UID, Name: grace.Name, Role: string(grace.Role)}, "still here?"))

	// Then the unread total still counts it
	req.Eventually(func() bool {
		if err := c.Read(); err != nil {
			return false
		}
		frame, err := c.NextOf(ctx, ws.TypeUnread)
		if err != nil {
			return false
		}
		p, err := frame.Unread()
		return err == nil && p.ClubID == "c2" && p.Unread == 0 && p.Total == 1
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWebsocket_Non_Member_Is_Denied(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	f := setup(t)

	c := f.dial(t, ctx, ada, "c2")
	denied, err := c.WaitView(ctx, phase(session.AccessDenied))

	require.NoError(t, err)
	require.False(t, denied.View.Membership.CanAccess)
	require.Equal(t, session.MsgNoAccess, lo.FromPtr(denied.View.Notice).Headline)
}

func TestWebsocket_Upgrade_Requires_A_Valid_Token(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f := setup(t)

	_, err := client.Dial(ctx, f.url, "c1", "not-a-token")

	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
}

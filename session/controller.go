// Package session runs the chat session of one user in one club.
//
// A Controller is a worker: every transition happens on the goroutine executing Run,
// store and provider callbacks only post events to it. Callbacks from a superseded
// subscription are recognised by their generation and dropped.
package session

import (
	"club-chat/access"
	"club-chat/contract"
	"club-chat/domain/account"
	"club-chat/domain/chat"
	"club-chat/errors"
	"club-chat/observability"
	"club-chat/projection"
	"context"
	errs "errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultBaseBackoff     = time.Second
	defaultMaxBackoff      = 30 * time.Second
	defaultEventBufferSize = 64
)

type Config struct {
	ClubID          chat.ClubID
	ClubName        string
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
	EventBufferSize int
	Location        *time.Location
}

func (c Config) withDefaults() Config {
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = defaultBaseBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	if c.EventBufferSize <= 0 {
		c.EventBufferSize = defaultEventBufferSize
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

type errorKind int

const (
	noError errorKind = iota
	membershipError
	streamError
	sendError
)

type Controller struct {
	baseLog      *slog.Logger
	log          *slog.Logger
	cfg          Config
	store        contract.MessageStore
	sessions     contract.SessionProvider
	connectivity contract.Connectivity
	scheduler    contract.Scheduler
	sink         ViewSink
	metrics      *observability.SessionMetrics

	events    chan event
	done      chan struct{}
	closeOnce sync.Once
	running   atomic.Bool

	mu   sync.RWMutex
	view View

	// Owned by the event loop
	ctx         context.Context
	clubID      chat.ClubID
	clubName    string
	user        *account.User
	membership  access.MembershipStatus
	phase       Phase
	messages    chat.Snapshot
	online      bool
	retryCount  int
	errKind     errorKind
	err         error
	checkFailed bool
	draft       string
	sending     bool
	generation  uint64
	unsubscribe func()
	checkID     uint64
	sendID      uint64
	timerID     uint64
	retryTimer  contract.Timer
}

func NewController(
	log *slog.Logger,
	cfg Config,
	store contract.MessageStore,
	sessions contract.SessionProvider,
	connectivity contract.Connectivity,
	scheduler contract.Scheduler,
	sink ViewSink,
	metrics *observability.SessionMetrics,
) *Controller {
	cfg = cfg.withDefaults()
	c := &Controller{
		baseLog:      log,
		log:          log.With("club_id", cfg.ClubID),
		cfg:          cfg,
		store:        store,
		sessions:     sessions,
		connectivity: connectivity,
		scheduler:    scheduler,
		sink:         sink,
		metrics:      metrics,
		events:       make(chan event, cfg.EventBufferSize),
		done:         make(chan struct{}),
		clubID:       cfg.ClubID,
		clubName:     cfg.ClubName,
		phase:        Unauthenticated,
		online:       true,
	}
	c.view = c.buildView()
	return c
}

// Run processes events until the context is canceled or Close is called.
// It can only be called once.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: already running", errors.ErrSessionClosed)
	}
	select {
	case <-c.done:
		return errors.ErrSessionClosed
	default:
	}
	c.ctx = ctx
	c.metrics.SessionStarted()
	defer c.metrics.SessionEnded()

	unsubscribeAuth := c.sessions.OnAuthChange(func(user *account.User) {
		c.post(authChanged{user: user})
	})
	defer unsubscribeAuth()
	unsubscribeNetwork := c.connectivity.OnChange(func(online bool) {
		c.post(connectivityChanged{online: online})
	})
	defer unsubscribeNetwork()

	c.online = c.connectivity.Online()
	c.start(c.sessions.CurrentUser())
	c.publish()

	for {
		select {
		case <-ctx.Done():
			c.Close()
			c.shutdown()
			return nil
		case <-c.done:
			c.shutdown()
			return nil
		case ev := <-c.events:
			c.handle(ev)
			c.publish()
		}
	}
}

// Close tears the session down. Safe to call several times and from any goroutine.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// View returns the last published view.
func (c *Controller) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}

func (c *Controller) SetInput(text string) {
	c.post(inputChanged{text: text})
}

// Submit sends the current draft. It returns once the send has started or has been
// rejected locally, the outcome of the store call is reported through the view.
func (c *Controller) Submit() error {
	reply := make(chan error, 1)
	if !c.post(submitRequested{reply: reply}) {
		return errors.ErrSessionClosed
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return errors.ErrSessionClosed
	}
}

// Retry resets the backoff and tries again right away.
func (c *Controller) Retry() {
	c.post(retryRequested{})
}

func (c *Controller) DismissError() {
	c.post(dismissRequested{})
}

// SwitchClub tears the current subscription down and starts over on another club.
func (c *Controller) SwitchClub(clubID chat.ClubID, clubName string) {
	c.post(clubChanged{clubID: clubID, clubName: clubName})
}

// post never blocks once the session is closed, late results are dropped.
func (c *Controller) post(ev event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) handle(ev event) {
	switch e := ev.(type) {
	case authChanged:
		c.onAuthChanged(e.user)
	case clubChanged:
		c.onClubChanged(e)
	case membershipChecked:
		c.onMembershipChecked(e)
	case snapshotReceived:
		c.onSnapshot(e)
	case streamFailed:
		if e.generation != c.generation {
			c.log.Debug("Dropping error of a stale subscription", "generation", e.generation)
			return
		}
		c.streamFailure(e.err)
	case retryFired:
		c.onRetryFired(e)
	case retryRequested:
		c.onRetryRequested()
	case dismissRequested:
		c.clearError()
	case connectivityChanged:
		c.online = e.online
		c.log.Info("Connectivity changed", "online", e.online)
	case inputChanged:
		if !c.sending {
			c.draft = e.text
		}
	case submitRequested:
		e.reply <- c.onSubmit()
	case appendFinished:
		c.onAppendFinished(e)
	default:
		c.log.Warn("Unknown session event", "event", fmt.Sprintf("%T", ev))
	}
}

// start tears down whatever runs and begins a fresh session for the user.
func (c *Controller) start(user *account.User) {
	c.release()
	c.stopTimer()
	c.sendID++
	c.sending = false
	c.draft = ""
	c.messages = nil
	c.retryCount = 0
	c.clearError()
	c.user = user

	if user == nil {
		c.membership = access.Evaluate(nil, c.clubID)
		c.setPhase(Unauthenticated)
		return
	}
	c.log.Info("Starting chat session", "user_id", user.UID)
	c.membership = access.Evaluate(user, c.clubID)
	c.checkMembership()
}

func (c *Controller) checkMembership() {
	c.checkID++
	c.checkFailed = false
	c.setPhase(CheckingAccess)
	if !c.membership.CanAccess {
		c.deny()
		return
	}

	ctx, checkID, clubID, userID := c.ctx, c.checkID, c.clubID, c.user.UID
	go func() {
		ok, err := c.isMember(ctx, clubID, userID)
		c.post(membershipChecked{checkID: checkID, ok: ok, err: err})
	}()
}

func (c *Controller) isMember(ctx context.Context, clubID chat.ClubID, userID string) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("membership check panicked: %v", r)
		}
	}()
	return c.store.IsMember(ctx, clubID, userID)
}

func (c *Controller) onMembershipChecked(e membershipChecked) {
	if e.checkID != c.checkID || c.phase != CheckingAccess {
		return
	}
	if e.err != nil {
		// Fail closed
		c.log.Warn("Membership check failed", "user_id", c.user.UID, "error", e.err)
		c.checkFailed = true
		c.setError(membershipError, wrap(errors.ErrMembershipCheckFailed, e.err))
		c.deny()
		return
	}
	if !e.ok {
		c.deny()
		return
	}
	c.subscribe()
}

func (c *Controller) deny() {
	c.membership = access.MembershipStatus{Role: c.membership.Role}
	c.messages = nil
	c.setPhase(AccessDenied)
}

func (c *Controller) subscribe() {
	c.generation++
	generation := c.generation
	if c.phase != Reconnecting {
		c.setPhase(Subscribing)
	}
	unsubscribe, err := c.safeSubscribe(
		func(snapshot chat.Snapshot) {
			c.post(snapshotReceived{generation: generation, snapshot: snapshot})
		},
		func(err error) {
			c.post(streamFailed{generation: generation, err: err})
		},
	)
	if err != nil {
		c.streamFailure(err)
		return
	}
	c.unsubscribe = unsubscribe
}

func (c *Controller) safeSubscribe(onSnapshot func(chat.Snapshot), onError func(error)) (unsubscribe func(), err error) {
	defer func() {
		if r := recover(); r != nil {
			unsubscribe, err = nil, fmt.Errorf("subscribe panicked: %v", r)
		}
	}()
	return c.store.Subscribe(c.clubID, onSnapshot, onError)
}

func (c *Controller) onSnapshot(e snapshotReceived) {
	if e.generation != c.generation {
		c.log.Debug("Dropping snapshot of a stale subscription", "generation", e.generation)
		return
	}
	switch c.phase {
	case Subscribing, Live, Reconnecting:
	default:
		return
	}
	c.messages = slices.Clone(e.snapshot)
	c.retryCount = 0
	c.stopTimer()
	if c.errKind == streamError {
		c.clearError()
	}
	c.setPhase(Live)
}

// streamFailure keeps the last snapshot visible and schedules a resubscription.
func (c *Controller) streamFailure(err error) {
	c.log.Warn("Message stream failed", "retry_count", c.retryCount, "error", err)
	c.release()
	c.setError(streamError, wrap(errors.ErrStream, err))
	c.setPhase(Reconnecting)
	c.scheduleRetry()
}

func (c *Controller) scheduleRetry() {
	c.stopTimer()
	delay := Backoff(c.retryCount, c.cfg.BaseBackoff, c.cfg.MaxBackoff)
	timerID := c.timerID
	c.retryTimer = c.scheduler.AfterFunc(delay, func() {
		c.post(retryFired{timerID: timerID})
	})
	c.log.Debug("Reconnect scheduled", "retry_count", c.retryCount, "delay", delay)
}

func (c *Controller) onRetryFired(e retryFired) {
	if e.timerID != c.timerID || c.retryTimer == nil || c.phase != Reconnecting {
		return
	}
	c.retryTimer = nil
	c.retryCount++
	c.metrics.Reconnect()
	c.subscribe()
}

func (c *Controller) onRetryRequested() {
	c.retryCount = 0
	c.stopTimer()
	switch c.phase {
	case AccessDenied:
		if c.checkFailed && c.user != nil {
			c.clearError()
			c.membership = access.Evaluate(c.user, c.clubID)
			c.checkMembership()
		}
	case Subscribing, Reconnecting:
		c.release()
		c.subscribe()
	case Live:
		if c.errKind == streamError {
			c.clearError()
		}
	}
}

func (c *Controller) onAuthChanged(user *account.User) {
	if c.user != nil && user != nil && c.user.UID == user.UID {
		previous := access.Evaluate(c.user, c.clubID)
		next := access.Evaluate(user, c.clubID)
		if previous.CanAccess == next.CanAccess {
			c.user = user
			if c.phase != AccessDenied {
				c.membership = next
			}
			return
		}
	}
	if c.user == nil && user == nil {
		return
	}
	c.start(user)
}

func (c *Controller) onClubChanged(e clubChanged) {
	if e.clubID == c.clubID {
		c.clubName = e.clubName
		return
	}
	c.log = c.baseLog.With("club_id", e.clubID)
	c.clubID, c.clubName = e.clubID, e.clubName
	c.start(c.user)
}

func (c *Controller) onSubmit() error {
	text := strings.TrimSpace(c.draft)
	switch {
	case c.sending:
		return errors.ErrAlreadySending
	case text == "":
		return errors.ErrValidation
	case !c.canSend():
		return errors.ErrSendForbidden
	case !c.online:
		return errors.ErrOfflineBlocked
	}

	c.sendID++
	c.sending = true
	c.draft = ""

	sender := chat.Sender{
		UID:   c.user.UID,
		Name:  c.user.Name,
		Email: c.user.Email,
		Role:  string(c.user.Role),
	}
	// The append outlives a teardown, its result is simply dropped
	ctx, sendID, clubID := context.WithoutCancel(c.ctx), c.sendID, c.clubID
	go func() {
		err := c.appendMessage(ctx, clubID, sender, text)
		c.post(appendFinished{sendID: sendID, text: text, err: err})
	}()
	return nil
}

func (c *Controller) appendMessage(ctx context.Context, clubID chat.ClubID, sender chat.Sender, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("append panicked: %v", r)
		}
	}()
	return c.store.Append(ctx, clubID, sender, text)
}

func (c *Controller) onAppendFinished(e appendFinished) {
	if e.sendID != c.sendID || !c.sending {
		return
	}
	c.sending = false
	if e.err != nil {
		c.log.Warn("Send failed", "user_id", c.user.UID, "error", e.err)
		c.draft = e.text
		c.setError(sendError, wrap(errors.ErrSendFailed, e.err))
		c.metrics.SendFailed()
		return
	}
	if c.errKind == sendError {
		c.clearError()
	}
	c.metrics.Sent()
}

func (c *Controller) canSend() bool {
	if c.user == nil || !c.membership.CanSend {
		return false
	}
	switch c.phase {
	case Subscribing, Live, Reconnecting:
		return true
	}
	return false
}

// release invokes the active unsubscribe exactly once.
func (c *Controller) release() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.generation++
}

func (c *Controller) stopTimer() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.timerID++
}

func (c *Controller) shutdown() {
	c.release()
	c.stopTimer()
	c.sendID++
	c.sending = false
	c.setPhase(Closed)
	c.publish()
	c.log.Info("Chat session closed")
}

func (c *Controller) setPhase(phase Phase) {
	if c.phase == phase {
		return
	}
	c.log.Debug("Session phase changed", "from", c.phase, "to", phase)
	c.phase = phase
	c.metrics.PhaseChanged(string(phase))
}

func (c *Controller) setError(kind errorKind, err error) {
	c.errKind, c.err = kind, err
}

func (c *Controller) clearError() {
	c.errKind, c.err = noError, nil
}

func (c *Controller) publish() {
	view := c.buildView()
	c.mu.Lock()
	c.view = view
	c.mu.Unlock()

	if c.sink == nil {
		return
	}
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.sink.Consume(ctx, view); err != nil {
		c.log.Debug("View sink rejected view", "error", err)
	}
}

func (c *Controller) buildView() View {
	view := View{
		ClubID:      c.clubID,
		ClubName:    c.clubName,
		Phase:       c.phase,
		Membership:  c.membership,
		Online:      c.online,
		RetryCount:  c.retryCount,
		Err:         c.err,
		Draft:       c.draft,
		Sending:     c.sending,
		Placeholder: PlaceholderOnline,
	}
	if c.user != nil {
		view.UserID = c.user.UID
	}
	switch c.errKind {
	case membershipError:
		view.Error, view.CanRetry = MsgMembershipFailed, true
	case streamError:
		view.Error, view.CanRetry = MsgStreamFailed, true
	case sendError:
		view.Error = MsgSendFailed
	}
	if !c.online {
		view.OfflineBanner = MsgOffline
		view.Placeholder = PlaceholderOffline
	}
	switch c.phase {
	case Unauthenticated:
		view.Notice = &Notice{Headline: MsgSignIn}
	case CheckingAccess, Subscribing:
		view.Notice = &Notice{Headline: MsgLoading}
	case AccessDenied:
		view.Notice = &Notice{Headline: MsgNoAccess, Subtext: MsgNoAccessSub}
	case Live, Reconnecting:
		view.Messages = c.messages
		timeline := projection.Build(c.messages, view.UserID, c.cfg.Location)
		view.Timeline = &timeline
	}
	view.CanSubmit = c.canSend() && c.online && !c.sending && strings.TrimSpace(c.draft) != ""
	return view
}

func wrap(sentinel, err error) error {
	if errs.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}

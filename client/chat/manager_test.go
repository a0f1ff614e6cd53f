package chat_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/client/chat"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/client/realtime"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/client/realtime/realtimetest"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func msg(id string, sec int) chat.Message {
	return chat.Message{
		ID:        id,
		UserID:    "u-" + id,
		UserName:  "user " + id,
		Message:   "hello " + id,
		CreatedAt: t0.Add(time.Duration(sec) * time.Second),
	}
}

func ids(msgs []chat.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

type historyReply struct {
	msgs []chat.Message
	err  error
}

type historyCall struct {
	limit int
	reply chan historyReply
}

// blockingHistory hands every Load to the test, which answers it explicitly.
type blockingHistory struct {
	calls chan historyCall
}

func newBlockingHistory() *blockingHistory {
	return &blockingHistory{calls: make(chan historyCall, 8)}
}

func (h *blockingHistory) Load(ctx context.Context, limit int) ([]chat.Message, error) {
	c := historyCall{limit: limit, reply: make(chan historyReply, 1)}
	select {
	case h.calls <- c:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-c.reply:
		return r.msgs, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *blockingHistory) next(t *testing.T) historyCall {
	t.Helper()
	select {
	case c := <-h.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("no history load issued")
		return historyCall{}
	}
}

func (h *blockingHistory) idle(t *testing.T) {
	t.Helper()
	select {
	case <-h.calls:
		t.Fatalf("unexpected history load")
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeSubmitter struct {
	mu    sync.Mutex
	calls []chat.SubmitRequest
	err   error
}

func (s *fakeSubmitter) Submit(_ context.Context, req chat.SubmitRequest) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if s.err != nil {
		return chat.Message{}, s.err
	}
	return chat.Message{ID: "new", Message: req.Message, UserName: req.UserName}, nil
}

func (s *fakeSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type harness struct {
	m       *chat.Manager
	clock   *realtimetest.FakeClock
	subs    *realtimetest.FakeSubscriber
	history *blockingHistory
	submit  *fakeSubmitter
}

func newHarness(t *testing.T, identity *chat.Identity) *harness {
	t.Helper()
	h := &harness{
		clock:   realtimetest.NewFakeClock(t0),
		subs:    &realtimetest.FakeSubscriber{},
		history: newBlockingHistory(),
		submit:  &fakeSubmitter{},
	}
	m, err := chat.NewManager(context.Background(), chat.Config{
		History:   h.history,
		Channel:   h.subs,
		Submitter: h.submit,
		Identity: func() (chat.Identity, bool) {
			if identity == nil {
				return chat.Identity{}, false
			}
			return *identity, true
		},
		Clock: h.clock,
		Log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	h.m = m
	return h
}

// load answers the next history call and waits until the manager applied it.
func (h *harness) load(t *testing.T, msgs []chat.Message, err error) {
	t.Helper()
	before := h.m.Snapshot().Version
	h.history.next(t).reply <- historyReply{msgs: msgs, err: err}
	require.Eventually(t, func() bool { return h.m.Snapshot().Version > before }, 2*time.Second, time.Millisecond)
}

func insert(m chat.Message) realtime.Event {
	return realtimetest.Insert("messages", m)
}

func deleteOf(id string) realtime.Event {
	return realtimetest.Delete("messages", map[string]string{"id": id})
}

func TestManager_StartIssuesHistoryAndChannel(t *testing.T) {
	h := newHarness(t, nil)

	st := h.m.Snapshot()
	assert.Equal(t, chat.StatusConnecting, st.Status)
	assert.Empty(t, st.Messages)

	require.Equal(t, 1, h.subs.Count())
	spec := h.subs.Last().Spec
	assert.Equal(t, chat.DefaultChannelName, spec.Channel)
	assert.Equal(t, "messages", spec.Table)

	call := h.history.next(t)
	assert.Equal(t, 100, call.limit)

	before := h.m.Snapshot().Version
	call.reply <- historyReply{msgs: []chat.Message{msg("c", 3), msg("a", 1), msg("b", 2)}}
	require.Eventually(t, func() bool { return h.m.Snapshot().Version > before }, 2*time.Second, time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, ids(h.m.Snapshot().Messages))
}

func TestManager_InsertThenDeleteScenario(t *testing.T) {
	h := newHarness(t, nil)
	h.load(t, []chat.Message{msg("a", 1)}, nil)

	sub := h.subs.Last()
	sub.Emit(insert(msg("b", 2)))
	assert.Equal(t, []string{"a", "b"}, ids(h.m.Snapshot().Messages))

	sub.Emit(deleteOf("a"))
	assert.Equal(t, []string{"b"}, ids(h.m.Snapshot().Messages))

	// absent id is a no-op
	v := h.m.Snapshot().Version
	sub.Emit(deleteOf("zzz"))
	assert.Equal(t, []string{"b"}, ids(h.m.Snapshot().Messages))
	assert.Equal(t, v, h.m.Snapshot().Version)
}

func TestManager_ReplayedInsertAppearsOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.load(t, []chat.Message{msg("a", 1)}, nil)

	sub := h.subs.Last()
	sub.Emit(insert(msg("b", 2)))
	sub.Emit(insert(msg("b", 2)))
	sub.Emit(insert(msg("a", 1)))

	assert.Equal(t, []string{"a", "b"}, ids(h.m.Snapshot().Messages))
}

func TestManager_LateInsertIsPlacedByTimestamp(t *testing.T) {
	h := newHarness(t, nil)
	h.load(t, []chat.Message{msg("a", 1), msg("c", 3)}, nil)

	h.subs.Last().Emit(insert(msg("b", 2)))
	assert.Equal(t, []string{"a", "b", "c"}, ids(h.m.Snapshot().Messages))
}

func TestManager_MergeIsOrderIndependent(t *testing.T) {
	history := []chat.Message{msg("a", 1), msg("b", 2)}
	events := []realtime.Event{insert(msg("b", 2)), insert(msg("c", 3)), deleteOf("a")}

	// history first, then events
	first := newHarness(t, nil)
	first.load(t, history, nil)
	for _, ev := range events {
		first.subs.Last().Emit(ev)
	}

	// events while the load is in flight, then history
	second := newHarness(t, nil)
	for _, ev := range events {
		second.subs.Last().Emit(ev)
	}
	second.load(t, history, nil)

	want := []string{"b", "c"}
	assert.Equal(t, want, ids(first.m.Snapshot().Messages))
	assert.Equal(t, want, ids(second.m.Snapshot().Messages))
}

func TestManager_HistoryFailureKeepsViewAndDoesNotRetry(t *testing.T) {
	h := newHarness(t, nil)
	h.load(t, []chat.Message{msg("a", 1)}, nil)

	h.m.Reconnect()
	h.load(t, nil, errors.New("boom"))

	st := h.m.Snapshot()
	assert.Equal(t, []string{"a"}, ids(st.Messages))
	require.Error(t, st.Err)
	assert.Contains(t, st.Err.Error(), "failed to load history")
	assert.ErrorIs(t, st.Err, chat.ErrConnectivity)

	h.clock.Advance(10 * time.Second)
	h.history.idle(t)
	assert.Equal(t, 2, h.subs.Count())
}

func TestManager_StatusTransitions(t *testing.T) {
	h := newHarness(t, nil)
	sub := h.subs.Last()

	sub.SetStatus(realtime.StatusSubscribed, nil)
	st := h.m.Snapshot()
	assert.Equal(t, chat.StatusConnected, st.Status)
	assert.NoError(t, st.Err)

	sub.SetStatus(realtime.StatusChannelError, errors.New("reset by peer"))
	st = h.m.Snapshot()
	assert.Equal(t, chat.StatusDisconnected, st.Status)
	assert.ErrorIs(t, st.Err, chat.ErrConnectivity)
	assert.Equal(t, 1, h.clock.Pending())

	h.clock.Advance(realtime.DefaultReconnectDelay)
	assert.Equal(t, chat.StatusConnecting, h.m.Snapshot().Status)
	require.Equal(t, 2, h.subs.Count())
	assert.True(t, sub.Closed())

	h.subs.Last().SetStatus(realtime.StatusSubscribed, nil)
	st = h.m.Snapshot()
	assert.Equal(t, chat.StatusConnected, st.Status)
	assert.NoError(t, st.Err)
}

func TestManager_TwoErrorsWithinDelayReconnectOnce(t *testing.T) {
	h := newHarness(t, nil)
	sub := h.subs.Last()

	sub.SetStatus(realtime.StatusChannelError, errors.New("first"))
	h.clock.Advance(1000 * time.Millisecond)
	sub.SetStatus(realtime.StatusClosed, nil)
	assert.Equal(t, 1, h.clock.Pending())

	h.clock.Advance(2999 * time.Millisecond)
	assert.Equal(t, 1, h.subs.Count())

	h.clock.Advance(1 * time.Millisecond)
	assert.Equal(t, 2, h.subs.Count())

	h.clock.Advance(10 * time.Second)
	assert.Equal(t, 2, h.subs.Count())
	assert.Equal(t, 0, h.clock.Pending())
}

func TestManager_ManualReconnectCancelsPendingAndKeepsView(t *testing.T) {
	h := newHarness(t, nil)
	h.load(t, []chat.Message{msg("a", 1)}, nil)
	old := h.subs.Last()

	old.SetStatus(realtime.StatusChannelError, errors.New("gone"))
	require.Equal(t, 1, h.clock.Pending())

	h.m.Reconnect()
	assert.Equal(t, 0, h.clock.Pending())
	assert.Equal(t, 2, h.subs.Count())
	assert.Equal(t, chat.StatusConnecting, h.m.Snapshot().Status)
	assert.Equal(t, []string{"a"}, ids(h.m.Snapshot().Messages))

	// the superseded channel is ignored
	old.Emit(insert(msg("x", 5)))
	old.SetStatus(realtime.StatusChannelError, errors.New("late"))
	assert.Equal(t, 0, h.clock.Pending())
	assert.Equal(t, []string{"a"}, ids(h.m.Snapshot().Messages))

	h.load(t, []chat.Message{msg("a", 1), msg("b", 2)}, nil)
	assert.Equal(t, []string{"a", "b"}, ids(h.m.Snapshot().Messages))

	h.clock.Advance(5 * time.Second)
	assert.Equal(t, 2, h.subs.Count())
}

func TestManager_SupersededHistoryIsDiscarded(t *testing.T) {
	h := newHarness(t, nil)
	stale := h.history.next(t)

	h.m.Reconnect()
	h.load(t, []chat.Message{msg("fresh", 1)}, nil)

	stale.reply <- historyReply{msgs: []chat.Message{msg("stale", 1)}}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"fresh"}, ids(h.m.Snapshot().Messages))
}

func TestManager_SubmitValidation(t *testing.T) {
	id := &chat.Identity{UserID: "u1", DisplayName: "Ana", Token: "tok"}

	tests := []struct {
		name string
		body string
		kind error
	}{
		{name: "empty", body: "", kind: chat.ErrValidation},
		{name: "blank", body: "  \n\t ", kind: chat.ErrValidation},
		{name: "too long", body: strings.Repeat("a", 1001), kind: chat.ErrValidation},
		{name: "too long multibyte", body: strings.Repeat("é", 1001), kind: chat.ErrValidation},
		{name: "max", body: strings.Repeat("a", 1000)},
		{name: "max multibyte", body: strings.Repeat("é", 1000)},
		{name: "trimmed to max", body: "  " + strings.Repeat("a", 1000) + "  "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, id)
			err := h.m.Submit(context.Background(), tc.body)
			if tc.kind != nil {
				require.ErrorIs(t, err, tc.kind)
				assert.Equal(t, 0, h.submit.count())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, h.submit.count())
		})
	}
}

func TestManager_SubmitRequiresIdentity(t *testing.T) {
	h := newHarness(t, nil)
	err := h.m.Submit(context.Background(), "hi")
	require.ErrorIs(t, err, chat.ErrAuth)
	assert.Equal(t, 0, h.submit.count())
}

func TestManager_SubmitSendsTrimmedBodyWithoutOptimisticInsert(t *testing.T) {
	h := newHarness(t, &chat.Identity{UserID: "u1", DisplayName: "Ana", Token: "tok"})
	h.load(t, nil, nil)

	require.NoError(t, h.m.Submit(context.Background(), "  oi, tudo bem?  "))
	require.Equal(t, 1, h.submit.count())
	req := h.submit.calls[0]
	assert.Equal(t, "tok", req.Token)
	assert.Equal(t, "Ana", req.UserName)
	assert.Equal(t, "oi, tudo bem?", req.Message)
	assert.Empty(t, h.m.Snapshot().Messages)
}

func TestManager_SubmitErrorsKeepTheirKind(t *testing.T) {
	id := &chat.Identity{UserID: "u1", DisplayName: "Ana", Token: "tok"}

	t.Run("rate limited", func(t *testing.T) {
		h := newHarness(t, id)
		h.submit.err = &chat.Error{Op: "chat.submit", Kind: chat.ErrRateLimited, Status: 429, RetryAfter: 30 * time.Second}
		err := h.m.Submit(context.Background(), "hi")
		require.ErrorIs(t, err, chat.ErrRateLimited)

		var ce *chat.Error
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, 30*time.Second, ce.RetryAfter)
		assert.ErrorIs(t, h.m.Snapshot().Err, chat.ErrRateLimited)
	})

	t.Run("untyped", func(t *testing.T) {
		h := newHarness(t, id)
		h.submit.err = errors.New("weird")
		err := h.m.Submit(context.Background(), "hi")
		require.ErrorIs(t, err, chat.ErrSubmit)
	})
}

func TestManager_CloseReleasesEverything(t *testing.T) {
	h := newHarness(t, &chat.Identity{Token: "tok"})
	h.load(t, []chat.Message{msg("a", 1)}, nil)
	sub := h.subs.Last()

	sub.SetStatus(realtime.StatusChannelError, errors.New("gone"))
	require.Equal(t, 1, h.clock.Pending())

	require.NoError(t, h.m.Close())
	require.NoError(t, h.m.Close())
	assert.True(t, sub.Closed())
	assert.Equal(t, 0, h.clock.Pending())

	sub.Emit(insert(msg("b", 2)))
	sub.SetStatus(realtime.StatusSubscribed, nil)
	h.m.Reconnect()

	st := h.m.Snapshot()
	assert.Equal(t, chat.StatusDisconnected, st.Status)
	assert.Equal(t, []string{"a"}, ids(st.Messages))
	assert.Equal(t, 1, h.subs.Count())

	err := h.m.Submit(context.Background(), "hi")
	require.ErrorIs(t, err, chat.ErrConnectivity)
	assert.Equal(t, 0, h.submit.count())
}

func TestManager_OnChangeReceivesSnapshots(t *testing.T) {
	var (
		mu     sync.Mutex
		states []chat.State
	)
	history := newBlockingHistory()
	subs := &realtimetest.FakeSubscriber{}
	m, err := chat.NewManager(context.Background(), chat.Config{
		History:   history,
		Channel:   subs,
		Submitter: &fakeSubmitter{},
		Clock:     realtimetest.NewFakeClock(t0),
		Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnChange: func(st chat.State) {
			mu.Lock()
			states = append(states, st)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	defer m.Close()

	subs.Last().SetStatus(realtime.StatusSubscribed, nil)
	subs.Last().Emit(insert(msg("a", 1)))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, states, 3)
	assert.Equal(t, chat.StatusConnecting, states[0].Status)
	assert.Equal(t, chat.StatusConnected, states[1].Status)
	assert.Equal(t, []string{"a"}, ids(states[2].Messages))
	assert.Less(t, states[0].Version, states[1].Version)
	assert.Less(t, states[1].Version, states[2].Version)
}

func TestNewManager_RequiresDependencies(t *testing.T) {
	_, err := chat.NewManager(context.Background(), chat.Config{})
	require.Error(t, err)
}

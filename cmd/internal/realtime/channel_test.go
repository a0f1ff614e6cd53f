package realtime

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	v1 "github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/shared/contracts/realtime/v1"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTableChannel_EventFilter(t *testing.T) {
	ch := NewTableChannel(quietLogger(), nil, v1.TableLeads)

	inserts := NewClient("s1", "admin", true, 4)
	all := NewClient("s2", "admin", true, 4)
	ch.Join(NewSubscription(inserts, "new-leads", v1.TableLeads, []string{v1.EventInsert}))
	ch.Join(NewSubscription(all, "leads", v1.TableLeads, nil))

	del, err := NewDelete(v1.TableLeads, map[string]string{"id": "l1"}, time.Now())
	if err != nil {
		t.Fatalf("NewDelete: %v", err)
	}
	if n := ch.Broadcast(del); n != 1 {
		t.Fatalf("expected delete delivered to 1 subscriber, got %d", n)
	}
	if len(inserts.Send) != 0 {
		t.Fatalf("insert-only subscriber received a delete")
	}

	env := <-all.Send
	if env.Type != v1.TypeChange {
		t.Fatalf("unexpected envelope type %q", env.Type)
	}
	var p v1.ChangePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.Channel != "leads" || p.Type != v1.EventDelete || len(p.OldRecord) == 0 {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestTableChannel_OverflowClosesClient(t *testing.T) {
	ch := NewTableChannel(quietLogger(), nil, v1.TableMessages)
	slow := NewClient("s1", "u1", false, 1)
	fast := NewClient("s2", "u2", false, 8)
	ch.Join(NewSubscription(slow, "chat", v1.TableMessages, nil))
	ch.Join(NewSubscription(fast, "chat", v1.TableMessages, nil))

	ins, _ := NewInsert(v1.TableMessages, map[string]string{"id": "m1"}, time.Now())
	del, _ := NewDelete(v1.TableMessages, map[string]string{"id": "m1"}, time.Now())

	done := make(chan struct{})
	go func() {
		ch.Broadcast(ins)
		ch.Broadcast(del)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("broadcast blocked on a full subscriber queue")
	}
	if !slow.Closed() {
		t.Fatalf("expected client with a full queue to be closed")
	}
	if fast.Closed() || len(fast.Send) != 2 {
		t.Fatalf("expected healthy client to get both changes, closed=%v queued=%d", fast.Closed(), len(fast.Send))
	}
}

func TestTableChannel_ClosedClientSkipped(t *testing.T) {
	ch := NewTableChannel(quietLogger(), nil, v1.TableMessages)
	c := NewClient("s1", "u1", false, 4)
	ch.Join(NewSubscription(c, "chat", v1.TableMessages, nil))
	c.Close()

	ins, _ := NewInsert(v1.TableMessages, map[string]string{"id": "m1"}, time.Now())
	if n := ch.Broadcast(ins); n != 0 {
		t.Fatalf("expected closed client skipped, delivered=%d", n)
	}

	ch.Leave("s1", "chat")
	if ch.Len() != 0 {
		t.Fatalf("expected subscription removed")
	}
}

func TestAuthorizeTable(t *testing.T) {
	cases := []struct {
		table string
		admin bool
		want  error
	}{
		{v1.TableMessages, false, nil},
		{v1.TableLeads, false, errForbidden},
		{v1.TableLeads, true, nil},
		{"users", true, errUnknownTable},
	}
	for _, tc := range cases {
		if got := authorizeTable(tc.table, tc.admin); got != tc.want {
			t.Fatalf("authorizeTable(%q, %v) = %v, want %v", tc.table, tc.admin, got, tc.want)
		}
	}
}

func TestDeriveOriginPatterns(t *testing.T) {
	got := deriveOriginPatternsFromAllowedOrigins([]string{"https://supremeimoveis.com.br", "http://localhost:5173", "http://localhost"})
	if len(got) != 2 || got[0] != "localhost" || got[1] != "supremeimoveis.com.br" {
		t.Fatalf("unexpected patterns: %v", got)
	}
	if got := deriveOriginPatternsFromAllowedOrigins([]string{"*"}); len(got) != 1 || got[0] != "*" {
		t.Fatalf("wildcard not preserved: %v", got)
	}
}

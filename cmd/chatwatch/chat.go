package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/client/chat"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/client/realtime"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/app"
)

func runChat(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	log := app.NewLoggerTo(os.Stderr, opts.logLevel, opts.logFormat, app.ColorDefault(os.Stderr))

	wsURL, err := realtimeURL(opts.server)
	if err != nil {
		return err
	}
	api := chat.NewHTTPClient(opts.server, nil)

	var id chat.Identity
	switch {
	case opts.token != "":
		id = chat.Identity{Token: opts.token, DisplayName: opts.name}
	case opts.name != "":
		if id, err = api.RequestVisitor(ctx, opts.name); err != nil {
			return fmt.Errorf("request visitor identity: %w", err)
		}
	}

	p := &roomPrinter{out: out}
	m, err := chat.NewManager(ctx, chat.Config{
		History:   api,
		Submitter: api,
		Channel: &realtime.Dialer{
			URL:   wsURL,
			Token: func() string { return id.Token },
			Log:   log,
		},
		Identity: func() (chat.Identity, bool) { return id, id.Token != "" },
		Log:      log,
		OnChange: p.update,
	})
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch strings.TrimSpace(line) {
			case "":
				continue
			case "/reconnect":
				m.Reconnect()
				continue
			}
			if err := m.Submit(ctx, line); err != nil {
				_, _ = fmt.Fprintln(out, describeSubmitError(err))
			}
		}
	}
}

// roomPrinter writes the lines and status changes it has not printed yet.
type roomPrinter struct {
	out io.Writer

	mu      sync.Mutex
	version uint64
	status  chat.ConnStatus
	printed map[string]struct{}
}

func (p *roomPrinter) update(st chat.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st.Version <= p.version {
		return
	}
	p.version = st.Version
	if p.printed == nil {
		p.printed = make(map[string]struct{})
	}

	if st.Status != p.status {
		p.status = st.Status
		_, _ = fmt.Fprintf(p.out, "-- %s\n", st.Status)
	}
	for _, m := range st.Messages {
		if _, ok := p.printed[m.ID]; ok {
			continue
		}
		p.printed[m.ID] = struct{}{}
		_, _ = fmt.Fprintln(p.out, formatMessage(m))
	}
}

func formatMessage(m chat.Message) string {
	name := m.UserName
	if name == "" {
		name = "anon"
	}
	return fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format("15:04"), name, m.Message)
}

func describeSubmitError(err error) string {
	var ce *chat.Error
	switch {
	case errors.Is(err, chat.ErrValidation) && errors.As(err, &ce):
		return "!! " + ce.Msg
	case errors.Is(err, chat.ErrAuth):
		return "!! sign in first (--name or --token)"
	case errors.Is(err, chat.ErrRateLimited) && errors.As(err, &ce) && ce.RetryAfter > 0:
		return fmt.Sprintf("!! slow down, try again in %s", ce.RetryAfter)
	case errors.Is(err, chat.ErrRateLimited):
		return "!! slow down"
	case errors.Is(err, chat.ErrConnectivity):
		return "!! server unreachable"
	default:
		return "!! " + err.Error()
	}
}

// realtimeURL maps the http(s) base URL to the ws(s) realtime endpoint.
func realtimeURL(server string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(server))
	if err != nil {
		return "", fmt.Errorf("server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("server url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("server url: missing host")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime"
	u.RawQuery = ""
	return u.String(), nil
}

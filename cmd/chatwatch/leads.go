package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/client/leadwatch"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/client/realtime"
	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/app"
)

func runLeads(ctx context.Context, opts options, out io.Writer) error {
	if opts.token == "" {
		return errors.New("leads needs an admin token (--token or SUPREME_TOKEN)")
	}
	log := app.NewLoggerTo(os.Stderr, opts.logLevel, opts.logFormat, app.ColorDefault(os.Stderr))

	wsURL, err := realtimeURL(opts.server)
	if err != nil {
		return err
	}

	player := leadwatch.NewPlayer(leadwatch.Bell{W: os.Stderr, Repeat: 3, Interval: 400 * time.Millisecond}, log)
	l, err := leadwatch.NewListener(ctx, leadwatch.Config{
		Channel: &realtime.Dialer{
			URL:   wsURL,
			Token: func() string { return opts.token },
			Log:   log,
		},
		Notifier: leadwatch.NotifierFunc(func(a leadwatch.Alert) {
			_, _ = fmt.Fprintln(out, formatAlert(a))
		}),
		Ringer: player,
		Log:    log,
	})
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	<-ctx.Done()
	return nil
}

func formatAlert(a leadwatch.Alert) string {
	line := fmt.Sprintf("[%s] %s: %s", a.At.Local().Format("15:04:05"), a.Title, a.Body)
	if a.Lead.PropertyRef != "" {
		line += " (imóvel " + a.Lead.PropertyRef + ")"
	}
	if a.Lead.Source != "" {
		line += " via " + a.Lead.Source
	}
	return line
}

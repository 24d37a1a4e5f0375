// Package notify presents nudges outside the browser.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/SoarinFerret/FocusWarden/internal/arbiter"
)

const (
	notificationsName = "org.freedesktop.Notifications"
	notificationsPath = "/org/freedesktop/Notifications"
)

// Desktop shows nudges through org.freedesktop.Notifications. A new nudge
// replaces the previous one instead of stacking.
type Desktop struct {
	obj     dbus.BusObject
	appName string
	expire  time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	lastID uint32
}

var _ arbiter.Presenter = (*Desktop)(nil)

// NewDesktop uses the notification daemon reachable over conn, normally the
// user's session bus.
func NewDesktop(conn *dbus.Conn, expire time.Duration, logger *slog.Logger) *Desktop {
	return newDesktop(conn.Object(notificationsName, notificationsPath), expire, logger)
}

func newDesktop(obj dbus.BusObject, expire time.Duration, logger *slog.Logger) *Desktop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Desktop{obj: obj, appName: "FocusWarden", expire: expire, logger: logger}
}

func (d *Desktop) Present(ctx context.Context, _ int, n arbiter.Nudge) (bool, error) {
	body := n.Body
	if n.Reason != "" {
		body = strings.TrimSpace(body + "\n" + n.Reason)
	}
	if n.Focus.DisplayName != "" {
		body += "\n→ " + n.Focus.DisplayName
	}

	d.mu.Lock()
	replaces := d.lastID
	d.mu.Unlock()

	call := d.obj.CallWithContext(ctx, notificationsName+".Notify", 0,
		d.appName,            // app_name
		replaces,             // replaces_id
		"dialog-information", // app_icon
		n.Title,              // summary
		body,                 // body
		[]string{},           // actions
		map[string]dbus.Variant{ // hints
			"urgency":  dbus.MakeVariant(byte(1)),
			"category": dbus.MakeVariant("focuswarden." + string(n.Category)),
		},
		int32(d.expire.Milliseconds()), // expire_timeout
	)
	if call.Err != nil {
		return false, fmt.Errorf("failed to send notification: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err == nil {
		d.mu.Lock()
		d.lastID = id
		d.mu.Unlock()
	}
	d.logger.Debug("desktop notification sent", "id", id, "category", n.Category)
	return true, nil
}

// Chain tries each presenter in order until one delivers.
type Chain []arbiter.Presenter

func (c Chain) Present(ctx context.Context, tabID int, n arbiter.Nudge) (bool, error) {
	var errs []error
	for _, p := range c {
		if p == nil {
			continue
		}
		ok, err := p.Present(ctx, tabID, n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, errors.Join(errs...)
}

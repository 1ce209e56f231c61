// Package notify shows desktop notifications after a capture was exported.
package notify

import (
	"fmt"
	"sync"

	"github.com/bryanchriswhite/snapflow/internal/logger"
	"github.com/godbus/dbus/v5"
)

// Notifier shows a short message to the user.
type Notifier interface {
	Notify(summary, body string) error
}

const (
	notificationsService   = "org.freedesktop.Notifications"
	notificationsPath      = "/org/freedesktop/Notifications"
	notificationsInterface = "org.freedesktop.Notifications"

	appName       = "snapflow"
	appIcon       = "camera-photo"
	expireTimeout = int32(5000)
)

// DBus sends notifications through the freedesktop notification service on
// the session bus. Consecutive notifications replace each other.
type DBus struct {
	conn *dbus.Conn

	mu   sync.Mutex
	last uint32
}

// NewDBus connects to the session bus and checks that a notification
// server is running.
func NewDBus() (*DBus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to list D-Bus names: %w", err)
	}
	found := false
	for _, name := range names {
		if name == notificationsService {
			found = true
			break
		}
	}
	if !found {
		conn.Close()
		return nil, fmt.Errorf("%s not found on D-Bus", notificationsService)
	}

	logger.WithComponent("notify").Debug().Msg("Connected to notification service")
	return &DBus{conn: conn}, nil
}

// Notify implements Notifier.
func (n *DBus) Notify(summary, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	obj := n.conn.Object(notificationsService, notificationsPath)
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(0)),
	}
	var id uint32
	err := obj.Call(notificationsInterface+".Notify", 0,
		appName, n.last, appIcon, summary, body, []string{}, hints, expireTimeout,
	).Store(&id)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	n.last = id
	return nil
}

// Close disconnects from the session bus.
func (n *DBus) Close() error {
	return n.conn.Close()
}

// Message builds the notification text for an exported capture. Where the
// capture ended up is taken from the export metadata.
func Message(title string, metadata map[string]string) (summary, body string) {
	summary = "Capture exported"
	if title != "" {
		summary = "Captured " + title
	}
	switch {
	case metadata["upload_url"] != "":
		body = "Attached to " + metadata["upload_url"]
	case metadata["file_path"] != "":
		body = "Saved to " + metadata["file_path"]
	default:
		body = "Exported"
	}
	return summary, body
}

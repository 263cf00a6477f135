package ui

import (
	"fmt"
	"os/exec"
	"runtime"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// Notifier sends a desktop notification when a crawl ends
type Notifier struct {
	sender NotificationSender
}

// NewNotifier picks the sender for the current platform; unsupported
// platforms get a Notifier that does nothing.
func NewNotifier() *Notifier {
	switch runtime.GOOS {
	case "linux":
		return &Notifier{sender: &LinuxNotificationSender{}}
	case "darwin":
		return &Notifier{sender: &MacOSNotificationSender{}}
	default:
		return &Notifier{}
	}
}

// CrawlFinished announces the outcome of a run
func (n *Notifier) CrawlFinished(domain string, downloaded, failed int) {
	if n == nil || n.sender == nil {
		return
	}
	msg := fmt.Sprintf("%d images downloaded", downloaded)
	if failed > 0 {
		msg += fmt.Sprintf(", %d failed", failed)
	}
	// Notifications are best effort.
	_ = n.sender.Send("lofterscraper: "+domain, msg)
}

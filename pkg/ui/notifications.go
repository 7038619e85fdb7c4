package ui

import (
	"fmt"
	"os/exec"
	"runtime"

	"jiraharvest/pkg/report"
)

// NotificationSender delivers a desktop notification
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

// Notifier announces the end of long runs on the desktop
type Notifier struct {
	sender NotificationSender
}

// NewNotifier picks a sender for the current platform. On other
// platforms NotifyRun does nothing.
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

// NewNotifierWithSender creates a notifier using sender
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

// NotifyRun announces the outcome of a run
func (n *Notifier) NotifyRun(run *report.RunReport) {
	total := run.Totals()
	title := "jiraharvest finished"
	switch run.ExitCode() {
	case report.ExitFailed:
		title = "jiraharvest failed"
	case report.ExitInterrupted:
		title = "jiraharvest interrupted"
	}
	message := fmt.Sprintf("%d sources, %d records written, %d rejected", len(run.Sources), total.Written, total.Rejected)

	if n.sender != nil {
		// best effort; the summary table is the primary output
		_ = n.sender.Send(title, message)
	}
}

package ui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"flico/pkg/config"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	cmd := exec.Command("notify-send", title, message)
	return cmd.Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(message), escapeAppleScript(title))
	cmd := exec.Command("osascript", "-e", script)
	return cmd.Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("flico").Show($toast)
	`, title, message)

	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	return cmd.Run()
}

func escapeAppleScript(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// PlatformSender returns the desktop sender for the current OS, or nil
func PlatformSender() NotificationSender {
	switch runtime.GOOS {
	case "linux":
		return &LinuxNotificationSender{}
	case "darwin":
		return &MacOSNotificationSender{}
	case "windows":
		return &WindowsNotificationSender{}
	default:
		return nil
	}
}

// Notifier prints notifications and, when configured, sends them to the desktop
type Notifier struct {
	out    io.Writer
	sender NotificationSender
	cfg    config.NotificationConfig
}

// NewNotifier creates a Notifier following cfg. The desktop sender is only
// used for the "desktop" notification type.
func NewNotifier(cfg config.NotificationConfig, out io.Writer) *Notifier {
	n := &Notifier{out: out, cfg: cfg}
	if strings.EqualFold(cfg.NotificationType, "desktop") {
		n.sender = PlatformSender()
	}
	return n
}

// SetSender replaces the desktop sender
func (n *Notifier) SetSender(sender NotificationSender) {
	n.sender = sender
}

func (n *Notifier) active() bool {
	return n.cfg.Enabled && !strings.EqualFold(n.cfg.NotificationType, "none")
}

func (n *Notifier) send(title, message string, color func(string) string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", color(title), color(message))

	if n.sender != nil {
		// Ignore errors as notifications are not critical
		_ = n.sender.Send(title, message)
	}
}

// Complete announces the end of a crawl
func (n *Notifier) Complete(title, message string) {
	if n.active() && n.cfg.OnComplete {
		n.send(title, message, Green)
	}
}

// Error announces an institution that ended on an error
func (n *Notifier) Error(title, message string) {
	if n.active() && n.cfg.OnError {
		n.send(title, message, Red)
	}
}

// RateLimit announces a rate-limit cooldown
func (n *Notifier) RateLimit(title, message string) {
	if n.active() && n.cfg.OnRateLimit {
		n.send(title, message, Yellow)
	}
}

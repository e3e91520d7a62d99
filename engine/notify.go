package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/ftahirops/spikemon/model"
)

const notifyTimeout = 5 * time.Second

// AlertConfig defines where spike alerts are delivered.
type AlertConfig struct {
	Webhook    string `yaml:"webhook"`
	Command    string `yaml:"command"`
	MQTTBroker string `yaml:"mqtt_broker"`
	MQTTTopic  string `yaml:"mqtt_topic"`
}

// Notifier delivers spike events to a webhook, a shell command and/or an
// MQTT topic. Delivery is asynchronous and never blocks the sampling loop.
type Notifier struct {
	cfg    AlertConfig
	client *http.Client
	broker alertPublisher
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewNotifier creates a notifier. A nil logger discards messages.
func NewNotifier(cfg AlertConfig, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	n := &Notifier{
		cfg:    cfg,
		logger: logger,
		client: newWebhookClient(),
	}
	if cfg.MQTTBroker != "" {
		n.broker = newMQTTPublisher(cfg.MQTTBroker, cfg.MQTTTopic)
	}
	return n
}

// Enabled returns true if any destination is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && (n.cfg.Webhook != "" || n.cfg.Command != "" || n.broker != nil)
}

// Notify sends ev in the background.
func (n *Notifier) Notify(ev model.SpikeEvent) {
	if !n.Enabled() {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.deliver(ev)
	}()
}

// Wait blocks until in-flight deliveries finish.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

// Close waits for in-flight deliveries and disconnects from the broker.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.wg.Wait()
	if n.broker != nil {
		n.broker.Close()
	}
}

// validateWebhookURL checks that the webhook URL uses http/https and does not
// target loopback, private, link-local or cloud metadata addresses.
func validateWebhookURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("webhook URL must use http or https scheme, got %q", scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("webhook URL has no host")
	}
	switch host {
	case "localhost", "metadata.google.internal":
		return fmt.Errorf("webhook URL host %q is blocked", host)
	}
	if ip := net.ParseIP(host); ip != nil && blockedIP(ip) {
		return fmt.Errorf("webhook URL host %q is blocked", host)
	}
	return nil
}

func blockedIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// guardDial rejects connections whose resolved address is blocked, so a
// public hostname that resolves to an internal address is refused too.
func guardDial(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || blockedIP(ip) {
		return fmt.Errorf("webhook address %s is blocked", address)
	}
	return nil
}

// newWebhookClient dials through guardDial and ignores proxy settings.
func newWebhookClient() *http.Client {
	d := &net.Dialer{Timeout: notifyTimeout, Control: guardDial}
	return &http.Client{
		Timeout: notifyTimeout,
		Transport: &http.Transport{
			DialContext:         d.DialContext,
			TLSHandshakeTimeout: notifyTimeout,
		},
	}
}

func (n *Notifier) deliver(ev model.SpikeEvent) {
	body := map[string]interface{}{
		"id":      uuid.NewString(),
		"event":   "spike",
		"payload": model.NewLogRecord(ev),
		"ts":      time.Now().Format(time.RFC3339),
	}
	data, err := json.Marshal(body)
	if err != nil {
		n.logger.Warn("alert marshal failed", "error", err)
		return
	}

	if n.cfg.Webhook != "" {
		if err := n.post(data); err != nil {
			n.logger.Warn("alert webhook failed", "error", err)
		}
	}

	if n.cfg.Command != "" {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		cmd := exec.CommandContext(ctx, "sh", "-c", n.cfg.Command)
		cmd.Env = append(os.Environ(), "SPIKEMON_EVENT=spike", "SPIKEMON_PAYLOAD="+string(data))
		if err := cmd.Run(); err != nil {
			n.logger.Warn("alert command failed", "error", err)
		}
	}

	if n.broker != nil {
		if err := n.broker.Publish(data); err != nil {
			n.logger.Warn("alert mqtt publish failed", "error", err)
		}
	}
}

func (n *Notifier) post(data []byte) error {
	if err := validateWebhookURL(n.cfg.Webhook); err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, n.cfg.Webhook, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

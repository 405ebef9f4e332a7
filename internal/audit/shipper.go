package audit

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/launchpal/launchpal/internal/config"
	"github.com/launchpal/launchpal/internal/safego"
)

// SignatureHeader carries the hex HMAC-SHA256 of a webhook body when a
// secret is configured.
const SignatureHeader = "X-LaunchPal-Signature"

// MultiShipper fans events out to several shippers.
type MultiShipper struct {
	shippers []Shipper
}

// NewMultiShipper builds the enabled shippers from configuration. It returns
// nil when none are enabled.
func NewMultiShipper(configs []config.AuditShipperConfig) (*MultiShipper, error) {
	ms := &MultiShipper{}
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		var (
			s   Shipper
			err error
		)
		switch cfg.Type {
		case "webhook":
			s, err = NewWebhookShipper(cfg.Webhook)
		case "file":
			s, err = NewFileShipper(cfg.File)
		default:
			err = fmt.Errorf("unknown shipper type: %s", cfg.Type)
		}
		if err != nil {
			ms.Close()
			return nil, fmt.Errorf("failed to create %s shipper: %w", cfg.Type, err)
		}
		ms.shippers = append(ms.shippers, s)
	}
	if len(ms.shippers) == 0 {
		return nil, nil
	}
	return ms, nil
}

// Ship sends e to every shipper and joins their errors.
func (ms *MultiShipper) Ship(ctx context.Context, e *Event) error {
	var errs []error
	for _, s := range ms.shippers {
		if err := s.Ship(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every shipper.
func (ms *MultiShipper) Close() error {
	var errs []error
	for _, s := range ms.shippers {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Webhook
// ---------------------------------------------------------------------------

// WebhookShipper POSTs events as JSON. With a batch size above zero, events
// are buffered and sent as an array when the batch fills or the flush
// interval passes.
type WebhookShipper struct {
	cfg    config.AuditWebhookConfig
	client *http.Client

	batchCh   chan *Event
	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewWebhookShipper creates a webhook shipper.
func NewWebhookShipper(cfg config.AuditWebhookConfig) (*WebhookShipper, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	ws := &WebhookShipper{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		batchCh: make(chan *Event, 1000),
		closeCh: make(chan struct{}),
	}
	if cfg.BatchSize > 0 {
		ws.wg.Add(1)
		safego.Go("audit-webhook-batcher", ws.processBatches)
	}
	return ws, nil
}

func (ws *WebhookShipper) processBatches() {
	defer ws.wg.Done()
	ticker := time.NewTicker(ws.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]*Event, 0, ws.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := ws.send(batch); err != nil {
			slog.Error("failed to send audit batch", "events", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case e := <-ws.batchCh:
			batch = append(batch, e)
			if len(batch) >= ws.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ws.closeCh:
			for {
				select {
				case e := <-ws.batchCh:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Ship queues e when batching, falling back to a direct send when the queue
// is full.
func (ws *WebhookShipper) Ship(ctx context.Context, e *Event) error {
	if ws.cfg.BatchSize > 0 {
		select {
		case ws.batchCh <- e:
			return nil
		default:
		}
	}
	return ws.sendContext(ctx, e)
}

func (ws *WebhookShipper) send(v any) error {
	ctx, cancel := context.WithTimeout(context.Background(), ws.cfg.Timeout)
	defer cancel()
	return ws.sendContext(ctx, v)
}

func (ws *WebhookShipper) sendContext(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal audit payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range ws.cfg.Headers {
		req.Header.Set(k, v)
	}
	if ws.cfg.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(ws.cfg.Secret, data))
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close flushes any pending batch.
func (ws *WebhookShipper) Close() error {
	ws.closeOnce.Do(func() { close(ws.closeCh) })
	ws.wg.Wait()
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ---------------------------------------------------------------------------
// File
// ---------------------------------------------------------------------------

// FileShipper appends events as JSON lines, rotating to path.1, path.2, ...
// once the file exceeds MaxSizeMB.
type FileShipper struct {
	cfg  config.AuditFileConfig
	mu   sync.Mutex
	file *os.File
}

// NewFileShipper opens (or creates) the log file.
func NewFileShipper(cfg config.AuditFileConfig) (*FileShipper, error) {
	if cfg.Path == "" {
		return nil, errors.New("file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	f, err := openAppend(cfg.Path)
	if err != nil {
		return nil, err
	}
	return &FileShipper{cfg: cfg, file: f}, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return f, nil
}

// Ship writes e as one line.
func (fs *FileShipper) Ship(_ context.Context, e *Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.cfg.MaxSizeMB > 0 {
		if info, err := fs.file.Stat(); err == nil && info.Size() >= int64(fs.cfg.MaxSizeMB)*1024*1024 {
			if err := fs.rotate(); err != nil {
				return fmt.Errorf("failed to rotate audit log: %w", err)
			}
		}
	}
	if _, err := fs.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

func (fs *FileShipper) rotate() error {
	if err := fs.file.Close(); err != nil {
		return err
	}
	path := fs.cfg.Path
	if fs.cfg.MaxBackups > 0 {
		_ = os.Remove(fmt.Sprintf("%s.%d", path, fs.cfg.MaxBackups))
		for i := fs.cfg.MaxBackups - 1; i >= 1; i-- {
			_ = os.Rename(fmt.Sprintf("%s.%d", path, i), fmt.Sprintf("%s.%d", path, i+1))
		}
		_ = os.Rename(path, path+".1")
	} else {
		_ = os.Remove(path)
	}

	f, err := openAppend(path)
	if err != nil {
		return err
	}
	fs.file = f
	return nil
}

// Close closes the file.
func (fs *FileShipper) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.file.Close()
}

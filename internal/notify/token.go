package notify

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// TokenSource obtains the push token for this installation.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// deviceState is what an installation keeps on disk between runs.
type deviceState struct {
	InstallationID string `json:"installation_id"`
	PushPrivateKey string `json:"push_private_key,omitempty"`
	PushAuth       string `json:"push_auth,omitempty"`
}

// deviceFile loads and saves deviceState. An empty path keeps the state in
// memory for the life of the process.
type deviceFile struct {
	path string

	mu    sync.Mutex
	state *deviceState
}

func (f *deviceFile) load() (*deviceState, error) {
	if f.state != nil {
		return f.state, nil
	}
	st := &deviceState{}
	if f.path != "" {
		data, err := os.ReadFile(f.path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, st); err != nil {
				// unreadable state is replaced with a new installation
				st = &deviceState{}
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read device state: %w", err)
		}
	}
	f.state = st
	return st, nil
}

func (f *deviceFile) save() error {
	if f.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(f.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode device state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create device state directory: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write device state: %w", err)
	}
	return nil
}

func (f *deviceFile) installationID() (*deviceState, error) {
	st, err := f.load()
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(st.InstallationID); err != nil {
		st.InstallationID = uuid.NewString()
		if err := f.save(); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// DeviceTokenSource derives a stable push token from a random installation
// id. The id is created on first use and kept at Path.
type DeviceTokenSource struct {
	file deviceFile
}

// NewDeviceTokenSource keeps the installation id at path.
func NewDeviceTokenSource(path string) *DeviceTokenSource {
	return &DeviceTokenSource{file: deviceFile{path: path}}
}

// Token implements TokenSource.
func (d *DeviceTokenSource) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.file.mu.Lock()
	defer d.file.mu.Unlock()

	st, err := d.file.installationID()
	if err != nil {
		return "", err
	}
	return deviceToken(st.InstallationID)
}

func deviceToken(installationID string) (string, error) {
	h := blake3.New()
	if _, err := h.Write([]byte("calsync push token\x00" + installationID)); err != nil {
		return "", fmt.Errorf("hash installation id: %w", err)
	}
	return "dev:" + hex.EncodeToString(h.Sum(nil)), nil
}

// WebPushTokenSource registers a web push subscription for Endpoint. The
// token sent to the backend is the subscription JSON. The P-256 key pair
// and auth secret are generated once and kept at Path.
type WebPushTokenSource struct {
	endpoint string
	file     deviceFile
}

// NewWebPushTokenSource subscribes at endpoint and keeps keys at path.
func NewWebPushTokenSource(endpoint, path string) *WebPushTokenSource {
	return &WebPushTokenSource{endpoint: endpoint, file: deviceFile{path: path}}
}

// Token implements TokenSource.
func (w *WebPushTokenSource) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if w.endpoint == "" {
		return "", nil
	}

	sub, err := w.Subscription()
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("encode subscription: %w", err)
	}
	return string(data), nil
}

// Subscription returns the web push subscription of this installation.
func (w *WebPushTokenSource) Subscription() (*webpush.Subscription, error) {
	w.file.mu.Lock()
	defer w.file.mu.Unlock()

	st, err := w.file.installationID()
	if err != nil {
		return nil, err
	}

	key, err := decodePrivateKey(st.PushPrivateKey)
	if err != nil || len(decodeB64(st.PushAuth)) != 16 {
		key, err = ecdh.P256().GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate push key: %w", err)
		}
		secret := make([]byte, 16)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate push auth secret: %w", err)
		}
		st.PushPrivateKey = base64.RawURLEncoding.EncodeToString(key.Bytes())
		st.PushAuth = base64.RawURLEncoding.EncodeToString(secret)
		if err := w.file.save(); err != nil {
			return nil, err
		}
	}

	return &webpush.Subscription{
		Endpoint: w.endpoint,
		Keys: webpush.Keys{
			P256dh: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			Auth:   st.PushAuth,
		},
	}, nil
}

func decodePrivateKey(s string) (*ecdh.PrivateKey, error) {
	b := decodeB64(s)
	if b == nil {
		return nil, fmt.Errorf("no stored push key")
	}
	return ecdh.P256().NewPrivateKey(b)
}

func decodeB64(s string) []byte {
	if s == "" {
		return nil
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

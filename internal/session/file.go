package session

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100000
	keyLength        = 32
	saltLength       = 16
)

// ErrCorrupt is returned when the session file exists but cannot be decoded.
// Writes through the backend replace a corrupt file.
var ErrCorrupt = errors.New("session file is corrupt")

// FileBackend persists keys in a single JSON file, optionally encrypted with
// AES-256-GCM under a key derived from a passphrase.
//
// Every operation reads the file again, so several processes sharing the file
// see each other's logins and logouts.
type FileBackend struct {
	mu         sync.Mutex
	path       string
	passphrase []byte

	// derived key cache, keyed by the salt it was derived with
	salt []byte
	key  []byte
}

type fileEnvelope struct {
	Encrypted bool   `json:"encrypted"`
	Salt      string `json:"salt"`
	Data      string `json:"data"`
}

// NewFileBackend creates a backend that stores session data at path. An
// empty passphrase stores the data in clear text with 0600 permissions.
func NewFileBackend(path, passphrase string) *FileBackend {
	return &FileBackend{
		path:       path,
		passphrase: []byte(passphrase),
	}
}

// Path returns the file location.
func (f *FileBackend) Path() string { return f.path }

// Get implements Backend.
func (f *FileBackend) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Set implements Backend.
func (f *FileBackend) Set(ctx context.Context, key, value string) error {
	return f.SetAll(ctx, map[string]string{key: value})
}

// Delete implements Backend.
func (f *FileBackend) Delete(ctx context.Context, key string) error {
	return f.DeleteAll(ctx, key)
}

// SetAll implements Batcher; all keys land in one file rewrite.
func (f *FileBackend) SetAll(_ context.Context, kv map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return err
	}
	for k, v := range kv {
		values[k] = v
	}
	return f.save(values)
}

// DeleteAll implements Batcher.
func (f *FileBackend) DeleteAll(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return err
	}
	for _, k := range keys {
		delete(values, k)
	}
	if len(values) == 0 {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return f.save(values)
}

// load returns the stored map. A missing file is an empty map. A file that
// cannot be decoded yields an empty map and ErrCorrupt.
func (f *FileBackend) load() (map[string]string, error) {
	values := make(map[string]string)

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return values, nil
	}
	if err != nil {
		return values, fmt.Errorf("read session file: %w", err)
	}

	var env fileEnvelope
	if err := json.Unmarshal(data, &env); err == nil && env.Encrypted {
		plain, err := f.decrypt(env)
		if err != nil {
			return make(map[string]string), fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		data = plain
	}

	if err := json.Unmarshal(data, &values); err != nil {
		return make(map[string]string), fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return values, nil
}

func (f *FileBackend) save(values map[string]string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}

	if len(f.passphrase) > 0 {
		env, err := f.encrypt(data)
		if err != nil {
			return fmt.Errorf("encrypt session file: %w", err)
		}
		if data, err = json.MarshalIndent(env, "", "  "); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path)
}

func (f *FileBackend) deriveKey(salt []byte) []byte {
	if f.key != nil && string(f.salt) == string(salt) {
		return f.key
	}
	f.salt = append([]byte(nil), salt...)
	f.key = pbkdf2.Key(f.passphrase, salt, pbkdf2Iterations, keyLength, sha256.New)
	return f.key
}

func (f *FileBackend) encrypt(plaintext []byte) (fileEnvelope, error) {
	salt := f.salt
	if salt == nil {
		salt = make([]byte, saltLength)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fileEnvelope{}, err
		}
	}

	gcm, err := newGCM(f.deriveKey(salt))
	if err != nil {
		return fileEnvelope{}, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fileEnvelope{}, err
	}

	return fileEnvelope{
		Encrypted: true,
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Data:      base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, plaintext, nil)),
	}, nil
}

func (f *FileBackend) decrypt(env fileEnvelope) ([]byte, error) {
	if len(f.passphrase) == 0 {
		return nil, fmt.Errorf("file is encrypted but no passphrase is configured")
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(f.deriveKey(salt))
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	return gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

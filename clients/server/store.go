// store.go — In-memory stores for stego files, messages, audit entries and users.
package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"slices"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/xob0t/GoStego/internal/config"
)

// ── Files ──

type storedFile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Mime      string    `json:"mime"`
	Owner     string    `json:"owner"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Data      []byte    `json:"-"`
}

type fileStore struct {
	mu    sync.RWMutex
	files map[string]*storedFile
}

func newFileStore() *fileStore {
	return &fileStore{files: make(map[string]*storedFile)}
}

func (fs *fileStore) add(name string, data []byte, mimeType, owner string, now time.Time) *storedFile {
	f := &storedFile{
		ID:        randomID(),
		Name:      name,
		Mime:      mimeType,
		Owner:     owner,
		Size:      len(data),
		CreatedAt: now,
		Data:      data,
	}
	fs.mu.Lock()
	fs.files[f.ID] = f
	fs.mu.Unlock()
	return f
}

func (fs *fileStore) get(id string) (*storedFile, bool) {
	fs.mu.RLock()
	f, ok := fs.files[id]
	fs.mu.RUnlock()
	return f, ok
}

// ── Messages ──

type message struct {
	ID          string     `json:"id"`
	Sender      string     `json:"sender"`
	Recipient   string     `json:"recipient"`
	PatientID   string     `json:"patient_id"`
	FileID      string     `json:"file_id"`
	FileURL     string     `json:"file_url"`
	FileType    string     `json:"file_type"`
	CreatedAt   time.Time  `json:"created_at"`
	Decrypted   bool       `json:"decrypted"`
	DecryptedAt *time.Time `json:"decrypted_at,omitempty"`
}

type messageStore struct {
	mu   sync.RWMutex
	msgs []*message
}

func newMessageStore() *messageStore {
	return &messageStore{}
}

func (ms *messageStore) add(m *message) {
	ms.mu.Lock()
	ms.msgs = append(ms.msgs, m)
	ms.mu.Unlock()
}

// get returns a copy so callers never race with markDecrypted.
func (ms *messageStore) get(id string) (message, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	for _, m := range ms.msgs {
		if m.ID == id {
			return *m, true
		}
	}
	return message{}, false
}

func (ms *messageStore) markDecrypted(id string, at time.Time) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, m := range ms.msgs {
		if m.ID == id {
			m.Decrypted = true
			m.DecryptedAt = &at
			return
		}
	}
}

// filter returns copies of matching messages, newest first.
func (ms *messageStore) filter(keep func(*message) bool) []message {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	out := make([]message, 0)
	for i := len(ms.msgs) - 1; i >= 0; i-- {
		if keep(ms.msgs[i]) {
			out = append(out, *ms.msgs[i])
		}
	}
	return out
}

func (ms *messageStore) inbox(user string) []message {
	return ms.filter(func(m *message) bool { return m.Recipient == user })
}

func (ms *messageStore) sent(user string) []message {
	return ms.filter(func(m *message) bool { return m.Sender == user })
}

// delivered reports whether fileID was sent to user.
func (ms *messageStore) delivered(fileID, user string) bool {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return slices.ContainsFunc(ms.msgs, func(m *message) bool {
		return m.FileID == fileID && m.Recipient == user
	})
}

// ── Audit ──

// Audit actions.
const (
	actionHide     = "HIDE"
	actionRetrieve = "RETRIEVE"
	actionSend     = "SEND_MESSAGE"
	actionDecrypt  = "DECRYPT_MESSAGE"
	actionLogin    = "LOGIN"
	actionRegister = "REGISTER"
)

type auditEntry struct {
	Time      time.Time `json:"timestamp"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	PatientID string    `json:"patient_id,omitempty"`
	FileURL   string    `json:"file_url,omitempty"`
	Details   string    `json:"details,omitempty"`
}

type auditLog struct {
	mu      sync.RWMutex
	entries []auditEntry
}

func newAuditLog() *auditLog {
	return &auditLog{}
}

func (a *auditLog) add(e auditEntry) {
	a.mu.Lock()
	a.entries = append(a.entries, e)
	a.mu.Unlock()
}

// list returns up to limit entries, newest first. An empty username
// selects every entry.
func (a *auditLog) list(username string, limit int) []auditEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]auditEntry, 0, min(limit, len(a.entries)))
	for i := len(a.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if username == "" || a.entries[i].Username == username {
			out = append(out, a.entries[i])
		}
	}
	return out
}

// ── Users ──

var (
	errUserExists     = errors.New("user already exists")
	errBadCredentials = errors.New("invalid username or password")
)

type user struct {
	Username string
	Role     string
	hash     []byte
}

type userStore struct {
	mu    sync.RWMutex
	users map[string]*user
	cost  int
}

func newUserStore(cost int) *userStore {
	return &userStore{users: make(map[string]*user), cost: cost}
}

// seed installs preconfigured accounts whose passwords are already hashed.
func (us *userStore) seed(users []config.User) {
	us.mu.Lock()
	defer us.mu.Unlock()
	for _, u := range users {
		us.users[u.Username] = &user{Username: u.Username, Role: u.Role, hash: []byte(u.PasswordHash)}
	}
}

func (us *userStore) register(username, password, role string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), us.cost)
	if err != nil {
		return err
	}
	us.mu.Lock()
	defer us.mu.Unlock()
	if _, ok := us.users[username]; ok {
		return errUserExists
	}
	us.users[username] = &user{Username: username, Role: role, hash: hash}
	return nil
}

func (us *userStore) authenticate(username, password string) (*user, error) {
	us.mu.RLock()
	u, ok := us.users[username]
	us.mu.RUnlock()
	if !ok {
		return nil, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.hash, []byte(password)); err != nil {
		return nil, errBadCredentials
	}
	return u, nil
}

func (us *userStore) exists(username string) bool {
	us.mu.RLock()
	_, ok := us.users[username]
	us.mu.RUnlock()
	return ok
}

func randomID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

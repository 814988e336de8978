package user

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/stlalpha/chatroomd/internal/charset"
	"github.com/stlalpha/chatroomd/internal/protocol"
)

// Sentinel errors surfaced to callers that need more than a reject code
// (startup load failures, I/O failures during a rewrite).
var (
	ErrMalformedLine = errors.New("malformed users.txt line")
	ErrMaxUsers      = errors.New("user directory at capacity")
)

const adminUsername = "admin"

// backupSuffix names the sibling file used for the atomic rewrite-by-rename
// trick required when persisting DELETE to users.txt.
const backupSuffix = "_b"

// Directory is the mutex-guarded user account mapping. It owns the single
// lock named users_mutex in the wire specification directly, rather than
// borrowing one constructed elsewhere — the lock guards only this type's
// own fields, so Go's usual "a type owns the lock protecting it" idiom
// applies cleanly here.
type Directory struct {
	mu sync.Mutex

	path        string
	maxUsers    int
	maxClients  int
	users       map[string]*Record
	clientCount int
}

// NewDirectory returns an empty directory capped at maxUsers accounts and
// maxClients concurrently logged-in sessions.
func NewDirectory(path string, maxUsers, maxClients int) *Directory {
	return &Directory{
		path:       path,
		maxUsers:   maxUsers,
		maxClients: maxClients,
		users:      make(map[string]*Record),
	}
}

// Load reads users.txt at startup. Each line is username:password in
// plaintext; a bcrypt hash is computed for each so later LOGIN comparisons
// never touch the plaintext again. The account named "admin" is promoted
// to RoleAdmin. Loading stops once maxUsers accounts have been read, and
// any malformed line aborts the load entirely — startup load is all or
// nothing, matching the spec's "malformed lines abort startup" rule.
func (d *Directory) Load() error {
	f, err := os.Open(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", d.path, err)
	}
	defer f.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(d.users) >= d.maxUsers {
			break
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		username, password, ok := splitUserLine(line)
		if !ok {
			return fmt.Errorf("%w: %q", ErrMalformedLine, line)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password for %q: %w", username, err)
		}
		role := RoleUser
		if strings.EqualFold(username, adminUsername) {
			role = RoleAdmin
		}
		d.users[strings.ToLower(username)] = &Record{
			Username:     username,
			PasswordHash: hash,
			Role:         role,
			Status:       StatusOut,
			CreatedAt:    time.Now(),
		}
	}
	return scanner.Err()
}

func splitUserLine(line string) (username, password string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	username, password = line[:idx], line[idx+1:]
	if !validUsername(username) || !validPassword(password) {
		return "", "", false
	}
	return username, password, true
}

func validUsername(s string) bool {
	return len(s) >= protocol.MinUsernameLen && len(s) <= protocol.MaxUsernameLen && charset.ValidAccountField(s)
}

func validPassword(s string) bool {
	return len(s) >= protocol.MinPasswordLen && len(s) <= protocol.MaxPasswordLen && charset.ValidAccountField(s)
}

// ValidateCredentials checks username/password against the length and
// charset rules shared by REGISTER and LOGIN, returning the specific
// reject code for the first rule violated, or ok=true if both pass. The
// check order (userLen, passLen, userChar, passChar) matches the
// original's cr_users_chk_usr_and_pass precedence, so a request that
// violates two rules at once resolves to the same reject code as ground
// truth.
func ValidateCredentials(username, password string) (code protocol.RejectCode, ok bool) {
	switch {
	case len(username) < protocol.MinUsernameLen || len(username) > protocol.MaxUsernameLen:
		return protocol.RejectUserNameLen, false
	case len(password) < protocol.MinPasswordLen || len(password) > protocol.MaxPasswordLen:
		return protocol.RejectPassLen, false
	case !charset.ValidAccountField(username):
		return protocol.RejectUserNameChar, false
	case !charset.ValidAccountField(password):
		return protocol.RejectPassChar, false
	}
	return 0, true
}

// Register implements the REGISTER handler: existing-username check first,
// then validation, then persistence. Returns 0 and ok=true on success.
func (d *Directory) Register(username, password string) (protocol.RejectCode, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := strings.ToLower(username)
	if _, exists := d.users[key]; exists {
		return protocol.RejectUserExists, false
	}
	if code, ok := ValidateCredentials(username, password); !ok {
		return code, false
	}
	if len(d.users) >= d.maxUsers {
		return protocol.RejectMaxUsers, false
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return protocol.RejectServerError, false
	}
	if err := appendUserLine(d.path, username, password); err != nil {
		return protocol.RejectServerError, false
	}

	d.users[key] = &Record{
		Username:     username,
		PasswordHash: hash,
		Role:         RoleUser,
		Status:       StatusOut,
		CreatedAt:    time.Now(),
	}
	return 0, true
}

func appendUserLine(path, username, password string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%s:%s\n", username, password)
	return err
}

// Login implements the LOGIN handler.
func (d *Directory) Login(username, password string, transport Transport) (*Record, protocol.RejectCode, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.clientCount >= d.maxClients {
		return nil, protocol.RejectMaxClients, false
	}
	rec, exists := d.users[strings.ToLower(username)]
	if !exists {
		return nil, protocol.RejectUserDoesNotExist, false
	}
	if rec.Status == StatusIn {
		return nil, protocol.RejectUserLoggedIn, false
	}
	if bcrypt.CompareHashAndPassword(rec.PasswordHash, []byte(password)) != nil {
		return nil, protocol.RejectIncorrectPass, false
	}

	rec.Status = StatusIn
	rec.Transport = transport
	d.clientCount++
	return rec, 0, true
}

// Logout implements the LOGOUT handler. It is idempotent: logging out a
// user already marked out is a no-op, since cleanup paths may call this
// more than once defensively.
func (d *Directory) Logout(username string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, exists := d.users[strings.ToLower(username)]
	if !exists || rec.Status == StatusOut {
		return
	}
	rec.Status = StatusOut
	rec.Transport = nil
	rec.CurrentRoom = ""
	d.clientCount--
}

// SetAdmin implements ADMIN/ADMIN_REMOVE. requester must already be known
// admin (checked by the caller against session state before taking the
// lock, per the spec's rejection order — self-target and privilege checks
// happen before any lock is taken).
func (d *Directory) SetAdmin(requester, target string, grant bool) protocol.RejectCode {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, exists := d.users[strings.ToLower(target)]
	if !exists {
		return protocol.RejectUserDoesNotExist
	}
	if rec.Status == StatusIn {
		return protocol.RejectUserLoggedIn
	}
	if grant {
		rec.Role = RoleAdmin
	} else {
		rec.Role = RoleUser
	}
	return 0
}

// IsAdmin reports whether username currently holds RoleAdmin. Used by
// handlers to evaluate the ADMIN_PRIV precondition before taking any lock.
func (d *Directory) IsAdmin(username string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, exists := d.users[strings.ToLower(username)]
	return exists && rec.Role == RoleAdmin
}

// Delete implements the DELETE handler: removes the in-memory record and
// rewrites users.txt with the target's line filtered out by exact
// username match (not prefix match — the fix recorded for this directory's
// one Open Question).
func (d *Directory) Delete(target string) protocol.RejectCode {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, exists := d.users[strings.ToLower(target)]
	if !exists {
		return protocol.RejectUserDoesNotExist
	}
	if rec.Status == StatusIn {
		return protocol.RejectUserLoggedIn
	}

	if err := rewriteUsersFileExcluding(d.path, target); err != nil {
		return protocol.RejectServerError
	}
	delete(d.users, strings.ToLower(target))
	return 0
}

// rewriteUsersFileExcluding filters out the line whose username exactly
// matches target, writing the result to a sibling backup file and then
// renaming it over the original — the same atomic-replace trick used for
// room_names.log.
func rewriteUsersFileExcluding(path, target string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	var kept []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		username, _, ok := splitUserLine(line)
		if ok && strings.EqualFold(username, target) {
			continue
		}
		kept = append(kept, line)
	}
	scanErr := scanner.Err()
	f.Close()
	if scanErr != nil {
		return scanErr
	}

	backupPath := path + backupSuffix
	content := strings.Join(kept, "\n")
	if len(kept) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(backupPath, []byte(content), 0o600); err != nil {
		return err
	}
	return os.Rename(backupPath, path)
}

// Count returns the current number of registered accounts.
func (d *Directory) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.users)
}

// ClientCount returns the current number of logged-in sessions.
func (d *Directory) ClientCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clientCount
}

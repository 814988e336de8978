package user

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stlalpha/chatroomd/internal/protocol"
)

func newTestDirectory(t *testing.T, maxUsers, maxClients int) (*Directory, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.txt")
	return NewDirectory(path, maxUsers, maxClients), path
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	d, _ := newTestDirectory(t, 10, 10)
	if err := d.Load(); err != nil {
		t.Fatalf("Load() on missing file: %v", err)
	}
	if d.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", d.Count())
	}
}

func TestLoadPromotesAdmin(t *testing.T) {
	d, path := newTestDirectory(t, 10, 10)
	if err := os.WriteFile(path, []byte("admin:adminpass\nalice:hunter22\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := d.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !d.IsAdmin("admin") {
		t.Fatal("admin not promoted to RoleAdmin")
	}
	if d.IsAdmin("alice") {
		t.Fatal("alice unexpectedly admin")
	}
}

func TestLoadMalformedLineAbortsStartup(t *testing.T) {
	d, path := newTestDirectory(t, 10, 10)
	if err := os.WriteFile(path, []byte("noColonHere\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := d.Load(); err == nil {
		t.Fatal("expected error on malformed line")
	}
}

func TestLoadStopsAtMaxUsers(t *testing.T) {
	d, path := newTestDirectory(t, 1, 10)
	if err := os.WriteFile(path, []byte("alice:hunter22\nbob:swordfish\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := d.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", d.Count())
	}
}

func TestRegisterDuplicateRejected(t *testing.T) {
	d, _ := newTestDirectory(t, 10, 10)
	if code, ok := d.Register("alice", "hunter22"); !ok || code != 0 {
		t.Fatalf("first register: code=%v ok=%v", code, ok)
	}
	if code, ok := d.Register("alice", "otherpass"); ok || code != protocol.RejectUserExists {
		t.Fatalf("duplicate register: code=%v ok=%v, want RejectUserExists", code, ok)
	}
}

func TestRegisterValidationOrder(t *testing.T) {
	d, _ := newTestDirectory(t, 10, 10)
	if code, ok := d.Register("", "hunter22"); ok || code != protocol.RejectUserNameLen {
		t.Fatalf("short username: code=%v ok=%v", code, ok)
	}
	if code, ok := d.Register("alice", "abcd"); ok || code != protocol.RejectPassLen {
		t.Fatalf("short password: code=%v ok=%v", code, ok)
	}
	if code, ok := d.Register("alice", "bad:pass"); ok || code != protocol.RejectPassChar {
		t.Fatalf("bad password charset: code=%v ok=%v", code, ok)
	}
}

// TestValidateCredentialsPrecedenceOnDualViolation pins the check order
// (userLen, passLen, userChar, passChar) for a request that violates two
// rules at once, so the resolved reject code stays deterministic.
func TestValidateCredentialsPrecedenceOnDualViolation(t *testing.T) {
	// Bad username charset together with a too-short password: passLen
	// is checked before userChar, so PassLen wins.
	if code, ok := ValidateCredentials("bad[name", "abcd"); ok || code != protocol.RejectPassLen {
		t.Fatalf("code=%v ok=%v, want RejectPassLen", code, ok)
	}
}

func TestRegisterAtCapacity(t *testing.T) {
	d, _ := newTestDirectory(t, 1, 10)
	if _, ok := d.Register("alice", "hunter22"); !ok {
		t.Fatal("first register failed")
	}
	if code, ok := d.Register("bob", "swordfish"); ok || code != protocol.RejectMaxUsers {
		t.Fatalf("over capacity: code=%v ok=%v", code, ok)
	}
}

func TestRegisterPersistsToFile(t *testing.T) {
	d, path := newTestDirectory(t, 10, 10)
	if _, ok := d.Register("alice", "hunter22"); !ok {
		t.Fatal("register failed")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read users.txt: %v", err)
	}
	if string(data) != "alice:hunter22\n" {
		t.Fatalf("users.txt = %q", data)
	}
}

func TestLoginFullLifecycle(t *testing.T) {
	d, _ := newTestDirectory(t, 10, 10)
	d.Register("alice", "hunter22")

	if _, code, ok := d.Login("nobody", "whatever", nil); ok || code != protocol.RejectUserDoesNotExist {
		t.Fatalf("unknown user: code=%v ok=%v", code, ok)
	}
	if _, code, ok := d.Login("alice", "wrongpass", nil); ok || code != protocol.RejectIncorrectPass {
		t.Fatalf("wrong password: code=%v ok=%v", code, ok)
	}
	rec, code, ok := d.Login("alice", "hunter22", nil)
	if !ok || code != 0 {
		t.Fatalf("correct login: code=%v ok=%v", code, ok)
	}
	if rec.Status != StatusIn {
		t.Fatal("login did not mark status IN")
	}
	if d.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", d.ClientCount())
	}
	if _, code, ok := d.Login("alice", "hunter22", nil); ok || code != protocol.RejectUserLoggedIn {
		t.Fatalf("double login: code=%v ok=%v", code, ok)
	}
}

func TestLoginMaxClients(t *testing.T) {
	d, _ := newTestDirectory(t, 10, 1)
	d.Register("alice", "hunter22")
	d.Register("bob", "swordfish")
	if _, _, ok := d.Login("alice", "hunter22", nil); !ok {
		t.Fatal("first login failed")
	}
	if _, code, ok := d.Login("bob", "swordfish", nil); ok || code != protocol.RejectMaxClients {
		t.Fatalf("second login: code=%v ok=%v, want RejectMaxClients", code, ok)
	}
}

func TestLogoutDecrementsClientCount(t *testing.T) {
	d, _ := newTestDirectory(t, 10, 10)
	d.Register("alice", "hunter22")
	d.Login("alice", "hunter22", nil)
	d.Logout("alice")
	if d.ClientCount() != 0 {
		t.Fatalf("ClientCount() = %d, want 0", d.ClientCount())
	}
}

func TestDeleteRejectsLoggedInTarget(t *testing.T) {
	d, _ := newTestDirectory(t, 10, 10)
	d.Register("alice", "hunter22")
	d.Login("alice", "hunter22", nil)
	if code := d.Delete("alice"); code != protocol.RejectUserLoggedIn {
		t.Fatalf("Delete() = %v, want RejectUserLoggedIn", code)
	}
}

func TestDeleteExactMatchOnly(t *testing.T) {
	d, path := newTestDirectory(t, 10, 10)
	d.Register("alice", "hunter22")
	d.Register("alice2", "otherpass")

	if code := d.Delete("alice"); code != 0 {
		t.Fatalf("Delete(alice) = %v", code)
	}
	if d.Count() != 1 {
		t.Fatalf("Count() = %d, want 1 (alice2 must survive a prefix-only match)", d.Count())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "alice2:otherpass\n" {
		t.Fatalf("users.txt = %q, want only alice2's line retained", data)
	}
}

func TestSetAdminRoundTrip(t *testing.T) {
	d, _ := newTestDirectory(t, 10, 10)
	d.Register("alice", "hunter22")

	if code := d.SetAdmin("admin", "alice", true); code != 0 {
		t.Fatalf("grant admin: %v", code)
	}
	if !d.IsAdmin("alice") {
		t.Fatal("alice not admin after grant")
	}
	if code := d.SetAdmin("admin", "alice", false); code != 0 {
		t.Fatalf("revoke admin: %v", code)
	}
	if d.IsAdmin("alice") {
		t.Fatal("alice still admin after revoke")
	}
}

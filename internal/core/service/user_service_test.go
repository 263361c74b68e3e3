package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/hms/hospital-auth/internal/core/domain"
	"github.com/hms/hospital-auth/internal/core/ports"
	"github.com/hms/hospital-auth/internal/infrastructure/memory"
	"github.com/hms/hospital-auth/internal/pkg/password"
)

func newUserFixture() (*UserService, *stubCredRepo, *stubAuditRepo, *password.Hasher) {
	repo := newStubCredRepo()
	audit := &stubAuditRepo{}
	hasher := password.NewHasher(bcrypt.MinCost)
	return NewUserService(repo, hasher, audit, zerolog.Nop()), repo, audit, hasher
}

var admin = domain.Identity{UserID: "admin-1", Username: "admin", Role: domain.RoleAdmin}

func TestUserService_CreateHashesPassword(t *testing.T) {
	svc, repo, audit, hasher := newUserFixture()

	u, err := svc.Create(context.Background(), admin, ports.CreateUserInput{
		Username: " nina ", Password: "Bandage#01", Role: "nurse", Active: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Username != "nina" || u.Role != domain.RoleNurse || !u.IsActive {
		t.Errorf("unexpected user: %+v", u)
	}

	stored, _ := repo.FindByID(context.Background(), u.ID)
	if stored.PasswordHash == "Bandage#01" || !hasher.Verify("Bandage#01", stored.PasswordHash) {
		t.Error("password must be stored as a verifiable hash")
	}
	if audit.count(domain.AuditUserCreated) != 1 {
		t.Errorf("expected USER_CREATED, got %v", audit.types())
	}
}

func TestUserService_CreateValidation(t *testing.T) {
	cases := []struct {
		name string
		in   ports.CreateUserInput
		want error
	}{
		{"blank username", ports.CreateUserInput{Username: " ", Password: "Bandage#01", Role: "Nurse"}, domain.ErrInvalidUsername},
		{"username with space", ports.CreateUserInput{Username: "nina r", Password: "Bandage#01", Role: "Nurse"}, domain.ErrInvalidUsername},
		{"username too long", ports.CreateUserInput{Username: strings.Repeat("x", 51), Password: "Bandage#01", Role: "Nurse"}, domain.ErrInvalidUsername},
		{"unknown role", ports.CreateUserInput{Username: "nina", Password: "Bandage#01", Role: "Janitor"}, domain.ErrInvalidRole},
		{"short password", ports.CreateUserInput{Username: "nina", Password: "abc", Role: "Nurse"}, domain.ErrWeakPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _, _ := newUserFixture()
			if _, err := svc.Create(context.Background(), admin, tc.in); !errors.Is(err, tc.want) {
				t.Errorf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestUserService_CreateDuplicate(t *testing.T) {
	svc, _, _, _ := newUserFixture()
	in := ports.CreateUserInput{Username: "nina", Password: "Bandage#01", Role: "Nurse", Active: true}

	if _, err := svc.Create(context.Background(), admin, in); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.Create(context.Background(), admin, in); !errors.Is(err, domain.ErrUserExists) {
		t.Errorf("want ErrUserExists, got %v", err)
	}
}

func TestUserService_SeedIsIdempotent(t *testing.T) {
	svc, repo, _, _ := newUserFixture()
	in := ports.CreateUserInput{Username: "admin", Password: "Admin#2025", Role: "Admin", Active: true}

	u, created, err := svc.Seed(context.Background(), in)
	if err != nil || !created {
		t.Fatalf("first seed: created=%v err=%v", created, err)
	}

	in.Password = "Different#1"
	again, created, err := svc.Seed(context.Background(), in)
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if created {
		t.Error("second seed must not create")
	}
	if again.ID != u.ID {
		t.Errorf("want existing user %s, got %s", u.ID, again.ID)
	}
	list, _ := repo.List(context.Background())
	if len(list) != 1 {
		t.Errorf("want 1 user, got %d", len(list))
	}
}

func TestUserService_AdminCannotLockThemselvesOut(t *testing.T) {
	svc, repo, _, _ := newUserFixture()
	ctx := context.Background()
	u, _ := svc.Create(ctx, SystemActor, ports.CreateUserInput{Username: "admin", Password: "Admin#2025", Role: "Admin", Active: true})
	self := u.Identity()

	if err := svc.ChangeRole(ctx, self, u.ID, "Clerk"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("ChangeRole self: want ErrForbidden, got %v", err)
	}
	if err := svc.SetActive(ctx, self, u.ID, false); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("deactivate self: want ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, self, u.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("delete self: want ErrForbidden, got %v", err)
	}
	if err := svc.SetActive(ctx, self, u.ID, true); err != nil {
		t.Errorf("activating self is harmless, got %v", err)
	}

	stored, _ := repo.FindByID(ctx, u.ID)
	if stored.Role != domain.RoleAdmin || !stored.IsActive {
		t.Errorf("record changed: %+v", stored)
	}
}

func TestUserService_ManageOtherUser(t *testing.T) {
	svc, repo, audit, _ := newUserFixture()
	ctx := context.Background()
	u, _ := svc.Create(ctx, admin, ports.CreateUserInput{Username: "carl", Password: "Clipboard#1", Role: "Clerk", Active: true})

	if err := svc.ChangeRole(ctx, admin, u.ID, "nurse"); err != nil {
		t.Fatalf("ChangeRole: %v", err)
	}
	if err := svc.ChangeRole(ctx, admin, u.ID, "surgeon"); !errors.Is(err, domain.ErrInvalidRole) {
		t.Errorf("want ErrInvalidRole, got %v", err)
	}
	if err := svc.Rename(ctx, admin, u.ID, "carl.n"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if err := svc.SetActive(ctx, admin, u.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	stored, _ := repo.FindByID(ctx, u.ID)
	if stored.Role != domain.RoleNurse || stored.Username != "carl.n" || stored.IsActive {
		t.Errorf("unexpected record: %+v", stored)
	}

	if err := svc.Delete(ctx, admin, u.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.FindByID(ctx, u.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("want ErrUserNotFound, got %v", err)
	}

	for _, typ := range []domain.AuditEventType{
		domain.AuditRoleChanged, domain.AuditUserRenamed, domain.AuditStatusChanged, domain.AuditUserDeleted,
	} {
		if audit.count(typ) != 1 {
			t.Errorf("expected one %s event, got %v", typ, audit.types())
		}
	}
}

func TestUserService_RenameConflict(t *testing.T) {
	svc, _, _, _ := newUserFixture()
	ctx := context.Background()
	_, _ = svc.Create(ctx, admin, ports.CreateUserInput{Username: "amy", Password: "Stetho#123", Role: "Doctor", Active: true})
	b, _ := svc.Create(ctx, admin, ports.CreateUserInput{Username: "bob", Password: "Stetho#123", Role: "Doctor", Active: true})

	if err := svc.Rename(ctx, admin, b.ID, "amy"); !errors.Is(err, domain.ErrUserExists) {
		t.Errorf("want ErrUserExists, got %v", err)
	}
}

func TestUserService_UnknownUser(t *testing.T) {
	svc, _, _, _ := newUserFixture()
	ctx := context.Background()

	if err := svc.ChangeRole(ctx, admin, "404", "Nurse"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("ChangeRole: want ErrUserNotFound, got %v", err)
	}
	if _, err := svc.ResetPassword(ctx, admin, "404", ""); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("ResetPassword: want ErrUserNotFound, got %v", err)
	}
}

func TestUserService_ResetPassword(t *testing.T) {
	svc, repo, audit, hasher := newUserFixture()
	ctx := context.Background()
	u, _ := svc.Create(ctx, admin, ports.CreateUserInput{Username: "nina", Password: "Bandage#01", Role: "Nurse", Active: true})

	tmp, err := svc.ResetPassword(ctx, admin, u.ID, "")
	if err != nil {
		t.Fatalf("generated reset: %v", err)
	}
	if len(tmp) != 8 {
		t.Errorf("temporary password length: want 8, got %d", len(tmp))
	}
	stored, _ := repo.FindByID(ctx, u.ID)
	if !hasher.Verify(tmp, stored.PasswordHash) {
		t.Error("temporary password does not verify against stored hash")
	}

	got, err := svc.ResetPassword(ctx, admin, u.ID, "Chosen#Pass9")
	if err != nil {
		t.Fatalf("explicit reset: %v", err)
	}
	if got != "" {
		t.Errorf("explicit reset must not echo the password, got %q", got)
	}
	stored, _ = repo.FindByID(ctx, u.ID)
	if !hasher.Verify("Chosen#Pass9", stored.PasswordHash) {
		t.Error("chosen password does not verify")
	}

	if _, err := svc.ResetPassword(ctx, admin, u.ID, "tiny"); !errors.Is(err, domain.ErrWeakPassword) {
		t.Errorf("want ErrWeakPassword, got %v", err)
	}
	if audit.count(domain.AuditPasswordReset) != 2 {
		t.Errorf("expected two PASSWORD_RESET events, got %v", audit.types())
	}
}

func TestAuditService_ListClampsLimit(t *testing.T) {
	repo := &stubAuditRepo{}
	rec := newAuditRecorder(repo, zerolog.Nop())
	for i := 0; i < 60; i++ {
		rec.record(context.Background(), &domain.AuditEvent{EventType: domain.AuditLoginSuccess})
	}

	svc := NewAuditService(repo)
	got, err := svc.List(context.Background(), ports.AuditFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != defaultAuditLimit {
		t.Errorf("default limit: want %d, got %d", defaultAuditLimit, len(got))
	}
	if got[0].ID == "" || got[0].Timestamp.IsZero() {
		t.Error("recorder must stamp id and timestamp")
	}

	got, _ = svc.List(context.Background(), ports.AuditFilter{Limit: 10})
	if len(got) != 10 {
		t.Errorf("want 10, got %d", len(got))
	}
}

func TestUserService_DeactivateAndDeleteEndSessions(t *testing.T) {
	ctx := context.Background()
	repo := newStubCredRepo()
	hasher := password.NewHasher(bcrypt.MinCost)
	tracker := NewSessionTracker(memory.NewSessionStore(), zerolog.Nop())
	svc := NewUserService(repo, hasher, &stubAuditRepo{}, zerolog.Nop(), WithSessionClearer(tracker))

	carl, _ := svc.Create(ctx, admin, ports.CreateUserInput{Username: "carl", Password: "Clipboard#1", Role: "Clerk", Active: true})
	amy, _ := svc.Create(ctx, admin, ports.CreateUserInput{Username: "amy", Password: "Stetho#123", Role: "Doctor", Active: true})
	carlSess, _ := tracker.Establish(ctx, carl.Identity())
	amySess, _ := tracker.Establish(ctx, amy.Identity())

	if err := svc.SetActive(ctx, admin, carl.ID, true); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, err := tracker.Resolve(ctx, carlSess.ID, false); err != nil {
		t.Fatalf("activating must keep the session: %v", err)
	}

	if err := svc.SetActive(ctx, admin, carl.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, err := tracker.Resolve(ctx, carlSess.ID, false); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("deactivated user's session: want ErrSessionNotFound, got %v", err)
	}

	if err := svc.Delete(ctx, admin, amy.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := tracker.Resolve(ctx, amySess.ID, false); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("deleted user's session: want ErrSessionNotFound, got %v", err)
	}
}

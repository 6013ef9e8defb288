package main

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRegisterLoginValidate(t *testing.T) {
	db := openTestDB(t)
	auth := NewAuth(db)

	id, token, err := auth.Register("speedy", "pass1234")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id == 0 || token == "" {
		t.Fatalf("register returned id=%d token=%q", id, token)
	}

	if _, _, err := auth.Register("speedy", "other123"); err == nil {
		t.Error("duplicate username should fail")
	}
	if _, _, err := auth.Register("x", "pass1234"); err == nil {
		t.Error("too-short username should fail")
	}
	if _, _, err := auth.Register("newdriver", "abc"); err == nil {
		t.Error("too-short password should fail")
	}

	gotID, username, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if gotID != id || username != "speedy" {
		t.Errorf("validate = %d/%q, want %d/speedy", gotID, username, id)
	}

	if _, _, err := auth.Login("speedy", "wrongpass", "1.2.3.4"); err == nil {
		t.Error("wrong password should fail")
	}
	loginID, loginToken, err := auth.Login("speedy", "pass1234", "1.2.3.4")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loginID != id || loginToken == "" {
		t.Errorf("login = %d/%q", loginID, loginToken)
	}

	if _, _, err := auth.ValidateToken("not.a.token"); err == nil {
		t.Error("garbage token should fail validation")
	}
}

func TestLoginRateLimit(t *testing.T) {
	db := openTestDB(t)
	auth := NewAuth(db)

	for i := 0; i < maxLoginAttempts; i++ {
		auth.Login("nobody", "wrong", "9.9.9.9")
	}
	_, _, err := auth.Login("nobody", "wrong", "9.9.9.9")
	if err == nil || err.Error() != "too many login attempts, try again later" {
		t.Errorf("attempt %d err = %v, want rate limit", maxLoginAttempts+1, err)
	}

	// A different IP is unaffected.
	if _, _, err := auth.Login("nobody", "wrong", "8.8.8.8"); err == nil ||
		err.Error() == "too many login attempts, try again later" {
		t.Errorf("other IP err = %v, want invalid credentials", err)
	}
}

func TestJWTSecretPersists(t *testing.T) {
	db := openTestDB(t)
	a1 := NewAuth(db)
	_, token, err := a1.Register("speedy", "pass1234")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// A second Auth over the same DB must accept tokens from the first.
	a2 := NewAuth(db)
	if _, _, err := a2.ValidateToken(token); err != nil {
		t.Errorf("token rejected after secret reload: %v", err)
	}
}

func TestDriverStatsAggregate(t *testing.T) {
	db := openTestDB(t)
	id, err := db.CreateDriver("speedy", "hash")
	if err != nil {
		t.Fatalf("create driver: %v", err)
	}

	if err := db.RecordJoin(id); err != nil {
		t.Fatalf("record join: %v", err)
	}
	if err := db.RecordJoin(id); err != nil {
		t.Fatalf("record join: %v", err)
	}
	if err := db.RecordSession(id, 120.5, 340.25); err != nil {
		t.Fatalf("record session: %v", err)
	}
	if err := db.RecordSession(id, 10, 5); err != nil {
		t.Fatalf("record session: %v", err)
	}

	stats, err := db.GetStats(id)
	if err != nil || stats == nil {
		t.Fatalf("get stats: %v", err)
	}
	if stats.Joins != 2 {
		t.Errorf("joins = %d, want 2", stats.Joins)
	}
	if stats.Playtime != 130.5 {
		t.Errorf("playtime = %f, want 130.5", stats.Playtime)
	}
	if stats.Distance != 345.25 {
		t.Errorf("distance = %f, want 345.25", stats.Distance)
	}
}

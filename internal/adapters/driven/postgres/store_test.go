package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/designpm/designpm-core/internal/core/domain"
)

func TestIsQuotaError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"own quota refusal", fmt.Errorf("set k: %w", domain.ErrStorageQuotaExceeded), true},
		{"disk full", &pq.Error{Code: codeDiskFull}, true},
		{"program limit exceeded", fmt.Errorf("tx: %w", &pq.Error{Code: codeProgramLimitExceeded}), true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"plain error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isQuotaError(tt.err); got != tt.want {
				t.Errorf("isQuotaError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestHashLockName(t *testing.T) {
	if hashLockName("autosave:r1") != hashLockName("autosave:r1") {
		t.Error("expected stable hash")
	}
	if hashLockName("autosave:r1") == hashLockName("autosave:r2") {
		t.Error("expected distinct hashes for distinct names")
	}
}

func TestNewStore_NegativeQuotaIsUnlimited(t *testing.T) {
	if s := NewStore(nil, -5); s.quota != 0 {
		t.Errorf("quota = %d, want 0", s.quota)
	}
}

func TestAdvisoryLock_ExtendRequiresHeldLock(t *testing.T) {
	l := NewAdvisoryLock(nil)

	if err := l.Extend(context.Background(), "autosave:r1", time.Second); err == nil {
		t.Error("expected error extending a lock not held")
	}
	if err := l.Release(context.Background(), "autosave:r1"); err != nil {
		t.Errorf("unexpected error releasing unheld lock: %v", err)
	}
}

package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/openclub/courtbook/internal/testutil"
)

func TestRegisterSweeps(t *testing.T) {
	service, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := service.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})

	sweeper := NewSweeper(testutil.NewTestDB(t), nil, 15*time.Minute)
	if err := service.RegisterSweeps(sweeper); err != nil {
		t.Fatalf("RegisterSweeps: %v", err)
	}

	if err := service.RegisterSweeps(nil); !errors.Is(err, ErrNilSweeper) {
		t.Errorf("RegisterSweeps(nil) = %v, want ErrNilSweeper", err)
	}
}

func TestAddJobValidation(t *testing.T) {
	service, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = service.Stop() })

	if err := service.addJob("", "*/5 * * * *", func() {}); !errors.Is(err, ErrEmptyJobName) {
		t.Errorf("empty name = %v, want ErrEmptyJobName", err)
	}
	if err := service.addJob("noshow-sweep", "  ", func() {}); !errors.Is(err, ErrEmptyCronExpr) {
		t.Errorf("empty cron = %v, want ErrEmptyCronExpr", err)
	}
	if err := service.addJob("noshow-sweep", "not a cron", func() {}); err == nil {
		t.Error("malformed cron expression accepted")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	service, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	service.Start()

	if err := service.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := service.Stop(); err != nil {
		t.Errorf("repeat Stop = %v, want nil", err)
	}
}

package service

import (
	"context"
	"testing"
)

func TestLocalSweepLock(t *testing.T) {
	lock := NewLocalSweepLock()
	ctx := context.Background()

	release, acquired, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !acquired {
		t.Fatal("Expected first acquire to succeed")
	}

	// Held lock refuses a second holder, without error.
	_, acquired2, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if acquired2 {
		t.Error("Expected second acquire to be refused while held")
	}

	release()

	_, acquired3, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !acquired3 {
		t.Error("Expected acquire to succeed after release")
	}
}

package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestOTPStoreSaveAndGet(t *testing.T) {
	mr, client := testRedis(t)
	store := NewOTPStore(client)
	ctx := context.Background()

	if err := store.Save(ctx, "9876543210", "123456", 5*time.Minute); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	got, err := store.Get(ctx, "9876543210")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != "123456" {
		t.Fatalf("code = %q", got)
	}

	// Get does not consume the code.
	if _, err := store.Get(ctx, "9876543210"); err != nil {
		t.Fatalf("second Get error: %v", err)
	}

	mr.FastForward(301 * time.Second)
	if _, err := store.Get(ctx, "9876543210"); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("expired Get: err = %v", err)
	}
}

func TestOTPStoreOverwrite(t *testing.T) {
	mr, client := testRedis(t)
	store := NewOTPStore(client)
	ctx := context.Background()

	if err := store.Save(ctx, "9876543210", "111111", 5*time.Minute); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(4 * time.Minute)
	if err := store.Save(ctx, "9876543210", "222222", 5*time.Minute); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "9876543210")
	if err != nil {
		t.Fatal(err)
	}
	if got != "222222" {
		t.Fatalf("code = %q, want overwritten value", got)
	}
	if ttl := mr.TTL("otp:9876543210"); ttl != 5*time.Minute {
		t.Fatalf("ttl = %v, want restarted window", ttl)
	}
}

func TestOTPStoreUnknownMobile(t *testing.T) {
	_, client := testRedis(t)
	store := NewOTPStore(client)
	if _, err := store.Get(context.Background(), "0000000000"); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("err = %v, want ErrOTPNotFound", err)
	}
}

func TestResetStoreLifecycle(t *testing.T) {
	mr, client := testRedis(t)
	store := NewResetStore(client)
	ctx := context.Background()

	if err := store.Save(ctx, "tok-1", "jane@example.com", 15*time.Minute); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	email, err := store.GetEmail(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetEmail error: %v", err)
	}
	if email != "jane@example.com" {
		t.Fatalf("email = %q", email)
	}

	if err := store.Delete(ctx, "tok-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := store.GetEmail(ctx, "tok-1"); !errors.Is(err, ErrResetNotFound) {
		t.Fatalf("deleted token: err = %v", err)
	}
	_ = mr
}

func TestResetStoreExpiry(t *testing.T) {
	mr, client := testRedis(t)
	store := NewResetStore(client)
	ctx := context.Background()

	if err := store.Save(ctx, "tok-2", "jane@example.com", 15*time.Minute); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(16 * time.Minute)
	if _, err := store.GetEmail(ctx, "tok-2"); !errors.Is(err, ErrResetNotFound) {
		t.Fatalf("expired token: err = %v", err)
	}
}

func TestStoresRedisDown(t *testing.T) {
	mr, client := testRedis(t)
	mr.Close()

	otp := NewOTPStore(client)
	if err := otp.Save(context.Background(), "9876543210", "123456", time.Minute); !errors.Is(err, ErrOTPRedisUnavailable) {
		t.Fatalf("otp save: err = %v", err)
	}
	reset := NewResetStore(client)
	if _, err := reset.GetEmail(context.Background(), "tok"); !errors.Is(err, ErrResetRedisUnavailable) {
		t.Fatalf("reset get: err = %v", err)
	}
}

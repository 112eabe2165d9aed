package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func expectMessage(t *testing.T, sub Subscription, want string) {
	t.Helper()
	select {
	case got, ok := <-sub.C():
		if !ok {
			t.Fatal("subscription closed")
		}
		if string(got) != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func runBroadcasterContract(t *testing.T, b Broadcaster) {
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "exam:E1:monitor")
	if err != nil {
		t.Fatal(err)
	}
	other, err := b.Subscribe(ctx, "exam:E2:monitor")
	if err != nil {
		t.Fatal(err)
	}
	defer other.Close()

	if err := b.Publish(ctx, "exam:E1:monitor", []byte(`{"type":"joined"}`)); err != nil {
		t.Fatal(err)
	}
	expectMessage(t, sub, `{"type":"joined"}`)

	select {
	case msg := <-other.C():
		t.Fatalf("message leaked to another channel: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}

	if err := sub.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestLocal(t *testing.T) {
	runBroadcasterContract(t, NewLocal())
}

func TestLocal_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewLocal()
	sub, _ := b.Subscribe(context.Background(), "c")
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < localBuffer*3; i++ {
			_ = b.Publish(context.Background(), "c", []byte("x"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a full subscriber")
	}
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	runBroadcasterContract(t, NewRedis(rdb))
}

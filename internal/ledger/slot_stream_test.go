package ledger_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"auction-engine/internal/ledger"
	"auction-engine/internal/ledger/stub"
	"auction-engine/internal/testutil"
)

// slotServer upgrades one connection, waits for the subscription
// request, and pushes the given slots as notifications.
func slotServer(t *testing.T, slots []int64) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		for _, slot := range slots {
			err := conn.WriteJSON(map[string]any{
				"method": "slotNotification",
				"params": map[string]any{"result": map[string]any{"slot": slot}},
			})
			if err != nil {
				return
			}
		}
		// Hold the connection open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestSlotStreamReceivesNotifications(t *testing.T) {
	srv := slotServer(t, []int64{10, 11, 12})
	defer srv.Close()

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	stream, err := ledger.NewSlotStream(context.Background(), endpoint, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer stream.Close()

	for _, want := range []int64{10, 11, 12} {
		select {
		case got := <-stream.Slots():
			if got != want {
				t.Fatalf("slot = %d, want %d", got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("no notification for slot %d", want)
		}
	}
}

func TestStreamedClientPrefersStreamedSlot(t *testing.T) {
	base := stub.New()
	slots := make(chan int64, 4)
	client := ledger.NewStreamedClient(base, slots)
	ctx := context.Background()

	// Nothing streamed yet: the base client answers.
	first, err := client.LatestSlot(ctx)
	if err != nil {
		t.Fatalf("latest slot: %v", err)
	}
	if first <= 0 {
		t.Fatalf("base slot = %d, want positive", first)
	}

	slots <- 500
	testutil.WaitFor(t, 2*time.Second, func() bool {
		slot, err := client.LatestSlot(ctx)
		return err == nil && slot == 500
	}, "streamed slot never observed")

	// Streamed slots are monotonic; a stale notification is ignored.
	slots <- 400
	close(slots)
	testutil.WaitFor(t, 2*time.Second, func() bool {
		slot, err := client.LatestSlot(ctx)
		return err == nil && slot == 500
	}, "stale slot regressed the latest value")
}

func TestStreamedClientDelegatesSubmission(t *testing.T) {
	base := stub.New()
	slots := make(chan int64)
	close(slots)
	client := ledger.NewStreamedClient(base, slots)

	txID, err := client.SubmitTransaction(context.Background(), ledger.Transaction{
		Payload: []byte("payload"),
		Fee:     1_000,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if txID == "" {
		t.Fatal("empty transaction id")
	}
	if len(base.Submitted()) != 1 {
		t.Fatal("submission did not reach the base client")
	}
}

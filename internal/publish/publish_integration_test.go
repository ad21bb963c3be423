//go:build integration

package publish

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fakeyudi/gazetrace/internal/dispatch"
)

func skipWithoutNATS(t *testing.T) string {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}
	return url
}

func TestIntegration_PublishUpdate(t *testing.T) {
	url := skipWithoutNATS(t)

	p, err := Connect(url, os.Getenv("NATS_TOKEN"), "gazetrace.test.gaze", nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer p.Close()

	sub, err := nats.Connect(url, nats.Token(os.Getenv("NATS_TOKEN")))
	if err != nil {
		t.Fatalf("subscriber connect: %v", err)
	}
	defer sub.Close()

	received := make(chan dispatch.Update, 1)
	if _, err := sub.Subscribe("gazetrace.test.>", func(m *nats.Msg) {
		var u dispatch.Update
		json.Unmarshal(m.Data, &u)
		received <- u
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	sub.Flush()

	p.Listener()(dispatch.Update{Seq: 9, Hit: true, Word: "main"})

	select {
	case u := <-received:
		if u.Seq != 9 || u.Word != "main" {
			t.Errorf("unexpected update %+v", u)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for update")
	}
}

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/sharevault/internal/asset"
)

func TestRedisStreamAppendsRecords(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	emitter := NewRedisStream(client, "", 0)
	rec := Record{
		ID:     "evt-1",
		Kind:   KindDeposit,
		Caller: common.HexToAddress("0x01"),
		Owner:  common.HexToAddress("0x02"),
		Asset:  asset.Native,
		Amount: sdkmath.NewUint(100),
		Shares: sdkmath.NewUint(100),
		At:     time.Now().UTC(),
	}
	ctx := context.Background()
	if err := emitter.Emit(ctx, rec); err != nil {
		t.Fatalf("emit: %v", err)
	}

	entries, err := client.XRange(ctx, DefaultStream, "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Values["kind"] != KindDeposit || entries[0].Values["asset"] != "native" {
		t.Fatalf("unexpected entry: %+v", entries[0].Values)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(entries[0].Values["payload"].(string)), &decoded); err != nil {
		t.Fatalf("payload invalid json: %v", err)
	}
	if decoded["amount"] != "100" {
		t.Fatalf("expected amount \"100\", got %v", decoded["amount"])
	}
}

func TestFanoutDeliversToAll(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	f := Fanout{a, nil, b}
	if err := f.Emit(context.Background(), Record{ID: "x"}, Record{ID: "y"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(a.Records()) != 2 || len(b.Records()) != 2 {
		t.Fatalf("expected both recorders to receive 2 records")
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/voxelworld/internal/app"
	"github.com/annel0/voxelworld/internal/config"
	"github.com/annel0/voxelworld/internal/protocol"
	"github.com/google/uuid"
)

const timeFormat = "15:04:05.000"

func main() {
	var (
		transportName = flag.String("transport", config.TransportNATS, "Transport: nats, redis, websocket")
		url           = flag.String("url", "", "Bus URL (nats://, redis://, ws://host/ws)")
		subject       = flag.String("subject", "voxel.blocks", "NATS subject / Redis channel")
		command       = flag.String("cmd", "tail", "Command: tail, place, seed")
		kinds         = flag.String("kinds", "", "Frame kinds filter for tail (comma-separated)")
		limit         = flag.Int("limit", 0, "Stop tail after N frames (0 = follow)")
		x             = flag.Int("x", 0, "Block X for place")
		y             = flag.Int("y", 0, "Block Y for place")
		z             = flag.Int("z", 0, "Block Z for place")
		blockType     = flag.String("type", "", "Block type for place (empty = remove)")
		seed          = flag.Int64("seed", 0, "Seed for seed command")
	)
	flag.Parse()

	netCfg := config.Default().Network
	netCfg.Transport = *transportName
	netCfg.Subject = *subject
	switch *transportName {
	case config.TransportNATS:
		netCfg.NATSURL = *url
	case config.TransportRedis:
		netCfg.RedisURL = *url
	case config.TransportWebSocket:
		if *url == "" {
			log.Fatalf("❌ -url is required for websocket transport")
		}
		netCfg.WebSocketURL = *url
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	network, err := app.OpenNetwork(ctx, netCfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect: %v", err)
	}
	if network.Bus == nil {
		log.Fatalf("❌ Transport %q has no bus", *transportName)
	}
	defer network.Close()

	switch *command {
	case "tail":
		if err := tail(ctx, network, parseStringList(*kinds), *limit); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}

	case "place":
		change := protocol.Remove(*x, *y, *z)
		if *blockType != "" {
			change = protocol.Place(*x, *y, *z, *blockType)
		}
		payload, err := protocol.NewGzipCodec(6).Encode([]protocol.BlockChange{change})
		if err != nil {
			log.Fatalf("❌ Encode failed: %v", err)
		}
		if err := publish(ctx, network, protocol.KindBlockBatch, payload); err != nil {
			log.Fatalf("❌ Place failed: %v", err)
		}
		fmt.Printf("✅ Sent %s\n", change)

	case "seed":
		payload, err := protocol.EncodeSeed(*seed)
		if err != nil {
			log.Fatalf("❌ Encode failed: %v", err)
		}
		if err := publish(ctx, network, protocol.KindSeed, payload); err != nil {
			log.Fatalf("❌ Seed failed: %v", err)
		}
		fmt.Printf("✅ Announced seed %d\n", *seed)

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, place, seed")
		os.Exit(1)
	}
}

// tail выводит кадры шины в реальном времени
func tail(ctx context.Context, network *app.Network, kinds []string, limit int) error {
	fmt.Printf("🎬 Tailing sync frames (limit: %d)\n", limit)

	frames := make(chan []byte, 256)
	if err := network.Bus.Subscribe(ctx, func(frame []byte) {
		select {
		case frames <- frame:
		default:
		}
	}); err != nil {
		return err
	}

	codec := protocol.NewGzipCodec(6)
	count := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n📊 Total frames: %d\n", count)
			return nil
		case frame := <-frames:
			env, err := protocol.UnmarshalEnvelope(frame)
			if err != nil {
				fmt.Printf("⚠️  %v\n", err)
				continue
			}
			if !matchKind(env.Kind, kinds) {
				continue
			}
			fmt.Print(formatEnvelope(env, codec))
			count++
			if limit > 0 && count >= limit {
				fmt.Printf("\n📊 Total frames: %d\n", count)
				return nil
			}
		}
	}
}

func publish(ctx context.Context, network *app.Network, kind protocol.Kind, payload []byte) error {
	frame, err := protocol.MarshalEnvelope(&protocol.Envelope{
		ID:        uuid.NewString(),
		Kind:      kind,
		Origin:    "sync-cli-" + uuid.NewString(),
		Seq:       1,
		Version:   protocol.CurrentVersion,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return network.Bus.Publish(ctx, frame)
}

// formatEnvelope выводит кадр в читаемом формате
func formatEnvelope(env *protocol.Envelope, codec protocol.BatchCodec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s #%d [%s]\n", env.Timestamp.Format(timeFormat), env.Origin, env.Seq, env.Kind)

	switch env.Kind {
	case protocol.KindBlockBatch:
		changes, err := codec.Decode(env.Payload)
		if err != nil {
			fmt.Fprintf(&b, "  ⚠️  %v\n", err)
			break
		}
		for _, c := range changes {
			fmt.Fprintf(&b, "  %s\n", c)
		}
	case protocol.KindSeed:
		seed, err := protocol.DecodeSeed(env.Payload)
		if err != nil {
			fmt.Fprintf(&b, "  ⚠️  %v\n", err)
			break
		}
		fmt.Fprintf(&b, "  Seed: %d\n", seed)
	}
	return b.String()
}

func matchKind(kind protocol.Kind, kinds []string) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if k == string(kind) {
			return true
		}
	}
	return false
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

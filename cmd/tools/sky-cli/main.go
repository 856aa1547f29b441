package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/celestial/internal/auth"
	"github.com/annel0/celestial/internal/celestial"
	"github.com/annel0/celestial/internal/eventbus"
)

const defaultNATS = "nats://127.0.0.1:4222"

func main() {
	var (
		command = flag.String("cmd", "days", "Command: days, token, tail")

		seed  = flag.Int64("seed", 0, "World seed (days)")
		from  = flag.Int64("from", 0, "First day (days)")
		to    = flag.Int64("to", 30, "Last day inclusive (days)")
		tiers = flag.String("tiers", "", "Tiers YAML file, empty for built-in layout (days)")

		secret  = flag.String("secret", os.Getenv("CELESTIAL_JWT_SECRET"), "Base64 JWT secret (token)")
		subject = flag.String("subject", "operator", "Token subject (token)")
		admin   = flag.Bool("admin", true, "Admin flag (token)")
		ttl     = flag.Duration("ttl", 24*time.Hour, "Token lifetime (token)")

		natsURL = flag.String("nats", defaultNATS, "NATS URL (tail)")
		stream  = flag.String("stream", "CELESTIAL", "JetStream stream (tail)")
		types   = flag.String("types", "", "Event types filter, comma-separated (tail)")
	)
	flag.Parse()

	switch *command {
	case "days":
		reg := celestial.DefaultRegistry()
		if *tiers != "" {
			var err error
			if reg, err = celestial.LoadRegistry(*tiers); err != nil {
				log.Fatalf("❌ Failed to load tiers: %v", err)
			}
		}
		if err := printDays(os.Stdout, reg, *seed, *from, *to); err != nil {
			log.Fatalf("❌ Days failed: %v", err)
		}

	case "token":
		if *secret == "" {
			log.Fatal("❌ -secret or CELESTIAL_JWT_SECRET is required")
		}
		if err := auth.SetJWTSecret(*secret); err != nil {
			log.Fatalf("❌ Invalid secret: %v", err)
		}
		token, err := auth.GenerateJWT(*subject, *admin, *ttl)
		if err != nil {
			log.Fatalf("❌ Token failed: %v", err)
		}
		fmt.Println(token)

	case "tail":
		if err := tail(*natsURL, *stream, parseStringList(*types)); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: days, token, tail")
		os.Exit(1)
	}
}

// printDays печатает расписание неба по суткам так, как его увидит сервер
// при непрерывной работе с сидом seed.
func printDays(w io.Writer, reg *celestial.Registry, seed, from, to int64) error {
	if from < 0 || to < from {
		return fmt.Errorf("invalid day range %d..%d", from, to)
	}

	h := celestial.NewHandler(reg, nil)
	for day := from; day <= to; day++ {
		h.OnTick(day*celestial.TicksPerDay, seed)

		var marks []string
		if celestial.IsSolarEclipseDay(day) {
			marks = append(marks, "☀ solar")
		}
		if celestial.IsLunarEclipseDay(day) {
			marks = append(marks, "☾ lunar")
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "day %5d  %-10s", day, h.CurrentMoonPhase())
		for _, it := range h.Iterations() {
			state := "·"
			if it.Showing {
				state = "★"
			}
			fmt.Fprintf(&sb, "  %s=%s%s", it.Tier, state, it.Active)
		}
		if len(marks) > 0 {
			fmt.Fprintf(&sb, "  [%s]", strings.Join(marks, ", "))
		}
		if _, err := fmt.Fprintln(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

// tail печатает события неба из JetStream до Ctrl+C.
func tail(url, stream string, types []string) error {
	bus, err := eventbus.NewJetStreamBus(url, stream, 24*time.Hour)
	if err != nil {
		return err
	}
	defer bus.Close()

	if len(types) == 0 {
		types = []string{eventbus.TypeCelestialDay, eventbus.TypeCelestialEclipse}
	}
	sort.Strings(types)
	fmt.Printf("🎬 Tailing %s on %s (%s)\n", strings.Join(types, ","), url, stream)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: types}, func(_ context.Context, ev *eventbus.Envelope) {
		printEvent(os.Stdout, ev)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	fmt.Println("\n👋 Stopped")
	return nil
}

func printEvent(w io.Writer, ev *eventbus.Envelope) {
	fmt.Fprintf(w, "%s  %-16s %-18s %s\n",
		ev.Timestamp.Format(time.RFC3339), ev.EventType, ev.Source, string(ev.Payload))
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

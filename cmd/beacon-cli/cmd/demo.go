package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/spf13/cobra"

	"github.com/dwhitmore/beacon/bridge"
	"github.com/dwhitmore/beacon/bus"
	"github.com/dwhitmore/beacon/cmd/beacon-cli/internal/demo"
	"github.com/dwhitmore/beacon/ledger"
	"github.com/dwhitmore/beacon/message"
	"github.com/dwhitmore/beacon/token"
)

var demoForward bool

// demoCmd represents the demo command
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a small dispatch session and print its ledger",
	Long: `Run a short scripted dispatch session against a fresh bus: a few
handlers, an interceptor that drops unwanted messages, and a handful of
emissions across all three categories. Afterwards the session's recent
emissions and the full registration ledger are printed.

Examples:
  beacon-cli demo               # Run the session in-process
  beacon-cli demo --forward     # Also forward emissions through an in-memory pub/sub`,
	RunE: demoHandler,
}

func demoHandler(cmd *cobra.Command, args []string) error {
	demo.RegisterKinds()

	b := bus.New(bus.WithLedgerEnabled())
	tok := token.New(b)
	tok.SetDiagnostics(true)

	room := message.NewAddress()

	if _, err := token.Untargeted(tok, func(t demo.Tick) {
		fmt.Printf("tick %d\n", t.Count)
	}); err != nil {
		return err
	}
	if _, err := token.Targeted(tok, room, func(addr message.Address, m demo.RoomMessage) {
		fmt.Printf("[%s] %s: %s\n", addr, m.Sender, m.Body)
	}); err != nil {
		return err
	}
	if _, err := token.BroadcastAnySource(tok, func(origin message.Address, m demo.RoomJoined) {
		fmt.Printf("%s joined (from %s)\n", m.User, origin)
	}); err != nil {
		return err
	}
	if _, err := token.InterceptTargeted(tok, func(ctx bus.EmitContext, m demo.RoomMessage) (demo.RoomMessage, bool) {
		if m.Body == "spam" {
			return m, false
		}
		return m, true
	}); err != nil {
		return err
	}

	if err := tok.Enable(); err != nil {
		return fmt.Errorf("enable registrations: %w", err)
	}
	defer tok.UnregisterAll()

	if demoForward {
		cleanup, err := attachForwarder(b)
		if err != nil {
			return err
		}
		defer cleanup()
	}

	// The scripted session.
	for i := 1; i <= 3; i++ {
		if err := b.EmitUntargeted(demo.Tick{Count: i}); err != nil {
			return err
		}
	}
	if err := b.EmitBroadcast(room, demo.RoomJoined{User: "ada"}); err != nil {
		return err
	}
	if err := b.EmitTargeted(room, demo.RoomMessage{Sender: "ada", Body: "hello"}); err != nil {
		return err
	}
	// Swallowed by the interceptor; nothing is delivered.
	if err := b.EmitTargeted(room, demo.RoomMessage{Sender: "mallory", Body: "spam"}); err != nil {
		return err
	}

	fmt.Println("\nRecent emissions:")
	for _, rec := range tok.Recent() {
		fmt.Printf("  %s  %s  %s\n", rec.Time.Format(time.TimeOnly), rec.Type, rec.Address)
	}

	fmt.Println("\nLedger:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()
	return b.Ledger().Format(w, func(r ledger.Record) string {
		return fmt.Sprintf("  %s\t%s\t%s\t%s", r.Direction, r.Method, r.Type, r.Address)
	})
}

// attachForwarder wires an in-memory watermill pub/sub to the bus and
// prints every message that comes out the other side.
func attachForwarder(b *bus.Bus) (cleanup func(), err error) {
	logger := watermill.NewStdLogger(false, false)
	goChannel := gochannel.NewGoChannel(gochannel.Config{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	for _, topic := range []string{"demo.tick", "demo.room.message", "demo.room.joined"} {
		msgs, subErr := goChannel.Subscribe(ctx, topic)
		if subErr != nil {
			cancel()
			return nil, fmt.Errorf("subscribe %s: %w", topic, subErr)
		}
		go func(topic string) {
			for m := range msgs {
				fmt.Printf("forwarded %s: %s\n", topic, m.Payload)
				m.Ack()
			}
		}(topic)
	}

	br, err := bridge.NewWatermill(b, goChannel)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("attach bridge: %w", err)
	}

	return func() {
		br.Close()
		// Give in-flight deliveries a moment before tearing down.
		time.Sleep(50 * time.Millisecond)
		cancel()
		goChannel.Close()
	}, nil
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().BoolVar(&demoForward, "forward", false, "Forward emissions through an in-memory watermill pub/sub")
}

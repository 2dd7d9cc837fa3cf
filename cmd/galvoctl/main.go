// Command galvoctl finds a galvo-ctrl peripheral over Bluetooth LE and sets
// its needle positions, once, interactively, or from an MQTT topic.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/galvo-ctrl/internal/ble"
	"github.com/sweeney/galvo-ctrl/internal/logic"
	"github.com/sweeney/galvo-ctrl/internal/mqtt"
)

// noChannel marks "no channel given": writes use the 4-byte form.
const noChannel = -1

func main() {
	timeout := flag.Duration("timeout", 10*time.Second, "How long to scan for the device")
	debug := flag.Bool("debug", false, "List every device seen while scanning")
	ch := flag.Int("channel", noChannel, "Default channel (omit for 4-byte writes to channel 0)")
	watchTopic := flag.String("watch-topic", "", "MQTT topic to follow; each message is written to the device")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker for --watch-topic")
	percent := flag.Bool("percent", false, "Watched values are percentages used; the needle shows 1 - p/100")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [value | ch:value]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *ch != noChannel && (*ch < 0 || *ch > 255) {
		log.Fatalf("invalid --channel %d (0-255)", *ch)
	}
	if flag.NArg() > 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Parse the one-shot value before scanning so typos fail fast.
	var oneShot *command
	if flag.NArg() == 1 {
		c, err := parseCommand(flag.Arg(0), *ch)
		if err != nil {
			log.Fatalf("%v", err)
		}
		oneShot = &c
	}

	link, err := connect(ctx, *timeout, *debug)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer func() {
		link.Close()
		fmt.Println("Disconnected.")
	}()

	switch {
	case *watchTopic != "":
		err = watch(ctx, link, os.Stdout, *broker, *watchTopic, *percent, *ch)
	case oneShot != nil:
		err = send(link, os.Stdout, *oneShot)
	default:
		err = interactive(ctx, link, os.Stdin, os.Stdout, *ch)
	}
	if err != nil {
		log.Printf("%v", err)
	}
}

func connect(ctx context.Context, timeout time.Duration, debug bool) (*ble.Link, error) {
	central, err := ble.NewCentral()
	if err != nil {
		return nil, err
	}

	fmt.Printf("Scanning for %s...\n", ble.DeviceName)
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var seen func(ble.Sighting)
	if debug {
		listed := make(map[string]bool)
		seen = func(s ble.Sighting) {
			if listed[s.Address] {
				return
			}
			listed[s.Address] = true
			fmt.Println(formatSighting(s))
		}
	}

	addr, err := central.Find(scanCtx, debug, seen)
	if errors.Is(err, ble.ErrNotFound) {
		return nil, fmt.Errorf("device not found; make sure it is powered and advertising")
	}
	if err != nil {
		return nil, err
	}
	fmt.Printf("Found %s at %s\n", ble.DeviceName, addr.String())

	return central.Connect(addr)
}

func formatSighting(s ble.Sighting) string {
	name := s.Name
	if name == "" {
		name = "(no name)"
	}
	mark := ""
	if s.Galvo {
		mark = "  <- galvo"
	}
	return fmt.Sprintf("  %-30s  %s  %4d dBm%s", name, s.Address, s.RSSI, mark)
}

// writer is the part of ble.Link the modes need.
type writer interface {
	Write(p []byte) error
}

// command is one value to write and the channel it targets.
type command struct {
	value   float32
	channel int // noChannel for a 4-byte write
}

// parseCommand reads "value" or "ch:value". A plain value goes to
// defaultCh. Values outside [0, 1] are refused here; the device would
// only clamp them.
func parseCommand(s string, defaultCh int) (command, error) {
	c := command{channel: defaultCh}
	s = strings.TrimSpace(s)

	if chStr, valStr, ok := strings.Cut(s, ":"); ok {
		ch, err := strconv.Atoi(strings.TrimSpace(chStr))
		if err != nil || ch < 0 || ch > 255 {
			return command{}, fmt.Errorf("invalid channel %q (use 0.5 or 2:0.5)", chStr)
		}
		c.channel = ch
		s = strings.TrimSpace(valStr)
	}

	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return command{}, fmt.Errorf("invalid value %q (use 0.5 or 2:0.5)", s)
	}
	if !(v >= 0 && v <= 1) {
		return command{}, fmt.Errorf("value must be between 0.0 and 1.0")
	}
	c.value = float32(v)
	return c, nil
}

// payload encodes c in the 4- or 5-byte form.
func (c command) payload() []byte {
	if c.channel == noChannel {
		return logic.Encode(c.value)
	}
	return logic.EncodeChannel(c.value, uint8(c.channel))
}

func send(w writer, out io.Writer, c command) error {
	if err := w.Write(c.payload()); err != nil {
		return err
	}
	if c.channel == noChannel {
		fmt.Fprintf(out, "Wrote %.4f\n", c.value)
	} else {
		fmt.Fprintf(out, "Wrote %.4f to channel %d\n", c.value, c.channel)
	}
	return nil
}

// interactive reads commands line by line until "q", EOF or ctx is done.
// Bad input is reported and skipped; a failed write ends the session.
func interactive(ctx context.Context, w writer, in io.Reader, out io.Writer, defaultCh int) error {
	hint := ""
	if defaultCh == noChannel {
		hint = " or ch:value for a specific channel"
	}
	fmt.Fprintf(out, "Enter values 0.0-1.0%s (q to quit):\n", hint)

	done := make(chan struct{})
	defer close(done)
	lines := readLines(in, done)

	for {
		fmt.Fprint(out, "> ")
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(l)
		}

		if strings.EqualFold(line, "q") {
			return nil
		}
		if line == "" {
			continue
		}
		c, err := parseCommand(line, defaultCh)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		if err := send(w, out, c); err != nil {
			return err
		}
	}
}

// readLines sends each line of in until EOF or done is closed. A read
// already blocked on in is not interrupted.
func readLines(in io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}

// watch writes every value published on topic until ctx is done. Values
// arriving faster than the device is written are coalesced; only the
// newest is kept.
func watch(ctx context.Context, w writer, out io.Writer, broker, topic string, percent bool, ch int) error {
	values := make(chan float32, 1)
	sub, err := mqtt.Subscribe(broker, fmt.Sprintf("galvoctl-%d", os.Getpid()), topic, func(p []byte) {
		v, err := mqtt.ParseValue(p, percent)
		if err != nil {
			log.Printf("watch: %v", err)
			return
		}
		offerLatest(values, v)
	})
	if err != nil {
		return err
	}
	defer sub.Close()

	fmt.Fprintf(out, "Watching %s on %s (Ctrl+C to stop)\n", topic, broker)
	return follow(ctx, w, out, values, ch)
}

// offerLatest puts v in a one-slot channel, replacing any unread value.
func offerLatest(values chan float32, v float32) {
	for {
		select {
		case values <- v:
			return
		default:
		}
		select {
		case <-values:
		default:
		}
	}
}

func follow(ctx context.Context, w writer, out io.Writer, values <-chan float32, ch int) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-values:
			if err := send(w, out, command{value: v, channel: ch}); err != nil {
				return err
			}
		}
	}
}

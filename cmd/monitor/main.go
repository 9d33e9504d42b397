// Command monitor tails a running mirror server's signal stream and prints a
// compact line per sample.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-mirror/internal/log"
	"github.com/teslashibe/go-mirror/pkg/web"
)

func main() {
	host := flag.String("host", "localhost:8080", "Mirror server host:port")
	showDebug := flag.Bool("debug", false, "Also tail /ws/debug")
	every := flag.Int("every", 6, "Print every Nth signals sample")
	flag.Parse()

	log.Init("info")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 2)
	go func() { errc <- tail(ctx, *host, "/ws/signals", printSignals(*every)) }()
	if *showDebug {
		go func() { errc <- tail(ctx, *host, "/ws/debug", printDebug) }()
	}

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			log.Error("monitor stopped", "error", err)
			os.Exit(1)
		}
	}
}

// tail reads text messages from path until ctx ends or the connection drops.
func tail(ctx context.Context, host, path string, handle func([]byte)) error {
	u := url.URL{Scheme: "ws", Host: host, Path: path}
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.String(), err)
	}
	defer conn.Close()
	log.Info("connected", "url", u.String())

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read %s: %w", path, err)
		}
		if mt == websocket.TextMessage {
			handle(data)
		}
	}
}

func printSignals(every int) func([]byte) {
	if every < 1 {
		every = 1
	}
	n := 0
	return func(data []byte) {
		n++
		if n%every != 0 {
			return
		}
		var msg web.SignalsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn("bad signals message", "error", err)
			return
		}
		face := "-"
		if msg.HasFace {
			face = "F"
		}
		fmt.Printf("%s %s yaw=%+.3f pitch=%+.3f pos=(%.3f,%.3f) valid=%.2f\n",
			msg.At.Format("15:04:05.000"), face,
			msg.Yaw, msg.Pitch, msg.PosX, msg.PosY, msg.Validity)
	}
}

func printDebug(data []byte) {
	var msg web.DebugMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn("bad debug message", "error", err)
		return
	}
	fmt.Printf("  tick=%d face=%t pitch_ratio=%.3f yaw_ratio=%.3f paths=%d\n",
		msg.Tick, msg.HasFace, msg.Measures.PitchRatio, msg.Measures.YawRatio, len(msg.Paths))
}

// Command micbridge is a development harness: it opens the local
// microphone and speaker via malgo and speaks the gateway's own /ws wire
// protocol, the same protocol a browser client uses. It exists so the
// gateway can be exercised end to end without a browser.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/gen2brain/malgo"
)

const (
	sampleRate = 16000
	channels   = 1
)

func main() {
	addr := flag.String("addr", "ws://localhost:8000/ws", "gateway websocket URL")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		log.Fatalf("failed to connect to gateway at %s: %v", *addr, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "client closing")

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer mctx.Uninit()

	var playbackMu sync.Mutex
	var playbackBytes []byte

	onSamples := func(pOutput, pInput []byte, frameCount uint32) {
		if pInput != nil {
			writeCtx, writeCancel := context.WithTimeout(ctx, 500*time.Millisecond)
			_ = conn.Write(writeCtx, websocket.MessageBinary, pInput)
			writeCancel()
		}
		if pOutput != nil {
			playbackMu.Lock()
			n := copy(pOutput, playbackBytes)
			playbackBytes = playbackBytes[n:]
			for i := n; i < len(pOutput); i++ {
				pOutput[i] = 0
			}
			playbackMu.Unlock()
		}
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = channels
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = channels
	deviceConfig.SampleRate = sampleRate
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		log.Fatal(err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		log.Fatal(err)
	}

	go readLoop(ctx, conn, &playbackMu, &playbackBytes)

	fmt.Println("micbridge connected. Press Ctrl+C to exit.")
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Println("\nshutting down...")
}

func readLoop(ctx context.Context, conn *websocket.Conn, playbackMu *sync.Mutex, playbackBytes *[]byte) {
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		switch msgType {
		case websocket.MessageBinary:
			playbackMu.Lock()
			*playbackBytes = append(*playbackBytes, data...)
			playbackMu.Unlock()
		case websocket.MessageText:
			var msg map[string]interface{}
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			switch msg["type"] {
			case "status":
				fmt.Printf("\r\033[K[STATE] %v\n", msg["state"])
			case "transcript":
				fmt.Printf("\r\033[K[TRANSCRIPT] %v\n", msg["text"])
			case "tts_text":
				fmt.Printf("\r\033[K[REPLY] %v\n", msg["text"])
			case "interrupt":
				fmt.Printf("\r\033[K[INTERRUPTED]\n")
				playbackMu.Lock()
				*playbackBytes = nil
				playbackMu.Unlock()
			case "error":
				fmt.Printf("\r\033[K[ERROR] %v\n", msg["message"])
			}
		}
	}
}

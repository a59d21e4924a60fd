// loadtest is a UDP soak-test client: it joins many sessions against a
// running hqm server and drives each through JOIN/UPDATE/EXIT at a fixed
// rate, reporting connect/error/datagram counts. There is no handshake
// to dial over UDP, so "connecting" here means sending JOIN and waiting
// for the first server datagram.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"hqm_server/internal/protocol"
)

func main() {
	serverAddr := "127.0.0.1:27590"
	numClients := 200
	duration := 30 * time.Second

	log.Printf("🧪 starting udp load test: %d clients against %s for %v", numClients, serverAddr, duration)

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var connected, errored, datagrams int64
	var wg sync.WaitGroup

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			if err := runClient(ctx, serverAddr, clientID, &connected, &datagrams); err != nil {
				atomic.AddInt64(&errored, 1)
				log.Printf("❌ client %d: %v", clientID, err)
			}
		}(i)
		if i%50 == 0 {
			time.Sleep(10 * time.Millisecond)
		}
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Printf("📊 connected=%d errors=%d datagrams=%d",
					atomic.LoadInt64(&connected), atomic.LoadInt64(&errored), atomic.LoadInt64(&datagrams))
			}
		}
	}()

	wg.Wait()
	log.Printf("✅ load test completed: connected=%d errors=%d datagrams=%d",
		atomic.LoadInt64(&connected), atomic.LoadInt64(&errored), atomic.LoadInt64(&datagrams))
}

func runClient(ctx context.Context, serverAddr string, clientID int, connected, datagrams *int64) error {
	raddr, err := net.ResolveUDPAddr("udp", serverAddr)
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("client %d dial: %w", clientID, err)
	}
	defer conn.Close()

	var p protocol.Protocol
	join := p.EncodeJoin(protocol.Join{Version: protocol.Version, Name: fmt.Sprintf("load%04d", clientID)})
	if _, err := conn.Write(join); err != nil {
		return fmt.Errorf("client %d join write: %w", clientID, err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	if n, err := conn.Read(buf); err == nil && n > 0 {
		atomic.AddInt64(connected, 1)
		atomic.AddInt64(datagrams, 1)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	seq := uint32(0)

	for {
		select {
		case <-ctx.Done():
			conn.Write(p.EncodeExit())
			return nil
		case <-ticker.C:
			upd := p.EncodeUpdate(protocol.Update{
				GameID: 0,
				Inputs: randomInputs(clientID, seq),
				Keys:   0,
			})
			seq++
			if _, err := conn.Write(upd); err != nil {
				return fmt.Errorf("client %d update write: %w", clientID, err)
			}
			conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
			if n, err := conn.Read(buf); err == nil && n > 0 {
				atomic.AddInt64(datagrams, 1)
			}
		}
	}
}

func randomInputs(clientID int, seq uint32) protocol.ClientInputs {
	t := float32((int(seq)+clientID)%20) / 10
	return protocol.ClientInputs{FwdBack: t - 1, Turn: t - 1}
}

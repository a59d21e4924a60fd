// Send pool: a worker-pool dispatcher for outbound UDP writes. Each
// GAME_UPDATE is its own UDP datagram, and concatenating datagrams would
// corrupt the wire format, so there is no batching layer here -- just a
// worker-pool with least-loaded-queue dispatch. Decoupling the syscall
// from the single authoritative tick goroutine means a slow write to one
// session's address never delays ticking or the next session's send.
package transport

import (
	"log"
	"net"
	"sync/atomic"

	"hqm_server/internal/metrics"
)

type sendJob struct {
	addr *net.UDPAddr
	data []byte
}

// sendPool owns a fixed set of worker goroutines, each draining its own
// bounded job queue of outbound datagrams.
type sendPool struct {
	conn    *net.UDPConn
	metrics *metrics.Registry
	workers []chan sendJob
	dropped uint64
}

func newSendPool(conn *net.UDPConn, workerCount int, reg *metrics.Registry) *sendPool {
	if workerCount <= 0 {
		workerCount = 4
	}
	p := &sendPool{conn: conn, metrics: reg, workers: make([]chan sendJob, workerCount)}
	for i := range p.workers {
		p.workers[i] = make(chan sendJob, 256)
		go p.run(p.workers[i])
	}
	return p
}

func (p *sendPool) run(queue chan sendJob) {
	for job := range queue {
		if _, err := p.conn.WriteToUDP(job.data, job.addr); err != nil {
			log.Printf("⚠️  send pool write to %s failed: %v", job.addr, err)
		}
	}
}

// Enqueue dispatches data to addr via the least-loaded worker, or drops
// it (bumping a metric) if every worker's queue is full.
func (p *sendPool) Enqueue(addr *net.UDPAddr, data []byte) {
	best := 0
	bestLen := len(p.workers[0])
	for i, q := range p.workers {
		if len(q) < bestLen {
			best, bestLen = i, len(q)
		}
	}
	select {
	case p.workers[best] <- sendJob{addr: addr, data: data}:
	default:
		atomic.AddUint64(&p.dropped, 1)
		if p.metrics != nil {
			p.metrics.DropDatagram(metrics.ReasonSendPoolOverloaded)
		}
	}
}

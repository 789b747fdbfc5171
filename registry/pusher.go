package registry

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/plgd-dev/go-coap/v2/message"
	"github.com/plgd-dev/go-coap/v2/message/codes"
	"github.com/plgd-dev/go-coap/v2/udp"
	udpClient "github.com/plgd-dev/go-coap/v2/udp/client"
	"vap.design/skillregistry/telemetry"
)

// Pusher is component E: the outbound self-loop. It issues a PUT against
// the registry's own vap/skillRegistry/skills/{id} resource, which
// component D's handleSkillPut turns into a CoAP Observe push to every
// client currently observing that resource (spec §4.E/§9's "observe-via-PUT
// self-loop"). It never talks to a remote skill process directly.
type Pusher struct {
	selfAddr  string
	barrier   *ReadyBarrier
	telemetry telemetry.RegistryTelemetry

	mu   sync.Mutex
	conn *udpClient.ClientConn
}

// NewPusher returns a Pusher that will dial selfAddr (the registry's own
// bind address) lazily, on first use, once barrier opens.
func NewPusher(selfAddr string, barrier *ReadyBarrier, tel telemetry.RegistryTelemetry) *Pusher {
	if tel.Logger == nil {
		tel.Logger = telemetry.NewNoopLogger()
	}
	if tel.Tracer == nil {
		tel.Tracer = telemetry.NewNoopTracer()
	}
	if tel.Metrics == nil {
		tel.Metrics = telemetry.NewNoopMetrics()
	}
	return &Pusher{
		selfAddr:  selfAddr,
		barrier:   barrier,
		telemetry: tel,
	}
}

// Push waits for the inbound server to be bound, then PUTs data to
// skillID's resource. A nil/empty data is a legitimate "re-arm the
// observer" push with no payload change, used right after connect accepts
// a new skill. Any response other than 2.03 Valid is a programming-error
// assertion failure per spec §4.E and Push panics: the registry's own
// handler is the only possible responder, and it always replies 2.03.
func (p *Pusher) Push(ctx context.Context, skillID string, data []byte) error {
	if err := p.barrier.Wait(ctx); err != nil {
		return fmt.Errorf("pusher: wait ready: %w", err)
	}

	ctx, span := p.telemetry.StartPush(ctx)
	defer span.End()
	start := time.Now()

	cc, err := p.connection(ctx)
	if err != nil {
		span.RecordError(err)
		p.telemetry.RecordPush(skillID, start, "error")
		return fmt.Errorf("pusher: dial self: %w", err)
	}

	path := pathSkillsPrefix + skillID
	var resp codes.Code
	if len(data) == 0 {
		r, putErr := cc.Put(ctx, path, message.AppOctets, bytes.NewReader(nil))
		if putErr != nil {
			p.dropConnection(cc)
			span.RecordError(putErr)
			p.telemetry.RecordPush(skillID, start, "error")
			return fmt.Errorf("pusher: put %q: %w", path, putErr)
		}
		resp = r.Code()
	} else {
		r, putErr := cc.Put(ctx, path, message.AppOctets, bytes.NewReader(data))
		if putErr != nil {
			p.dropConnection(cc)
			span.RecordError(putErr)
			p.telemetry.RecordPush(skillID, start, "error")
			return fmt.Errorf("pusher: put %q: %w", path, putErr)
		}
		resp = r.Code()
	}

	if resp != codes.Valid {
		err := fmt.Errorf("pusher: unexpected response %v pushing to %q, want 2.03 Valid", resp, path)
		span.RecordError(err)
		p.telemetry.RecordPush(skillID, start, "error")
		p.telemetry.Logger.Error(ctx, "self-push assertion failed", "skillId", skillID, "code", resp.String())
		panic(err)
	}
	p.telemetry.RecordPush(skillID, start, "ok")
	return nil
}

// connection returns the long-lived client connection to the registry's
// own socket, dialing it lazily on first use or after a prior failure.
func (p *Pusher) connection(ctx context.Context) (*udpClient.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return p.conn, nil
	}
	cc, err := udp.Dial(p.selfAddr)
	if err != nil {
		return nil, err
	}
	p.conn = cc
	return cc, nil
}

// dropConnection discards a connection that failed a write, so the next
// Push redials instead of repeatedly using a dead socket.
func (p *Pusher) dropConnection(cc *udpClient.ClientConn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == cc {
		_ = cc.Close()
		p.conn = nil
	}
}

// Close releases the pusher's self-connection, if one was ever dialed.
func (p *Pusher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

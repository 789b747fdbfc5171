package registry

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/plgd-dev/go-coap/v2/message"
	"github.com/plgd-dev/go-coap/v2/message/codes"
	"github.com/plgd-dev/go-coap/v2/mux"
	"github.com/plgd-dev/go-coap/v2/udp"
	udpClient "github.com/plgd-dev/go-coap/v2/udp/client"
	"vap.design/skillregistry/telemetry"
)

const (
	pathConnect         = "vap/skillRegistry/connect"
	pathRegisterIntents = "vap/skillRegistry/registerIntents"
	pathNotification    = "vap/skillRegistry/notification"
	pathQuery           = "vap/skillRegistry/query"
	pathSkillsPrefix    = "vap/skillRegistry/skills/"
	pathWellKnownCore   = ".well-known/core"

	wellKnownCoreBody = `</vap>;rt="vap-skill-registry"`
)

// observer is one CoAP client currently observing a skill's resource,
// recorded when a GET with Observe=0 arrives at vap/skillRegistry/skills/{id}.
type observer struct {
	conn  *udpClient.ClientConn
	token message.Token
}

// Server is component D: the CoAP inbound dispatcher. It routes
// GET/POST/PUT/DELETE by path to the handlers described in spec §4.D, and
// maintains the observer registry that lets the PUT-triggered self-loop
// (component E) push updates to attached skills.
type Server struct {
	addr      string
	bridge    *HostBridge
	directory *Directory
	codec     *Codec
	canAnswer *PendingTable[float32]
	activate  *PendingTable[ActivationReply]
	pusher    *Pusher
	barrier   *ReadyBarrier
	telemetry telemetry.RegistryTelemetry

	obsMu     sync.Mutex
	observers map[string][]observer
	obsSeq    map[string]*atomic.Uint32

	latestMu sync.Mutex
	latest   map[string][]byte

	udpSrv *udp.Server
}

// NewServer builds a Server for the given bind address. The server does
// not start listening until ListenAndServe is called.
func NewServer(
	addr string,
	bridge *HostBridge,
	directory *Directory,
	codec *Codec,
	canAnswer *PendingTable[float32],
	activate *PendingTable[ActivationReply],
	pusher *Pusher,
	barrier *ReadyBarrier,
	tel telemetry.RegistryTelemetry,
) *Server {
	if tel.Logger == nil {
		tel.Logger = telemetry.NewNoopLogger()
	}
	if tel.Tracer == nil {
		tel.Tracer = telemetry.NewNoopTracer()
	}
	if tel.Metrics == nil {
		tel.Metrics = telemetry.NewNoopMetrics()
	}
	return &Server{
		addr:      addr,
		bridge:    bridge,
		directory: directory,
		codec:     codec,
		canAnswer: canAnswer,
		activate:  activate,
		pusher:    pusher,
		barrier:   barrier,
		telemetry: tel,
		observers: make(map[string][]observer),
		obsSeq:    make(map[string]*atomic.Uint32),
		latest:    make(map[string][]byte),
	}
}

// ListenAndServe binds the CoAP/UDP socket, opens the ready barrier (G),
// and serves until ctx is canceled or an unrecoverable server error
// occurs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	router := mux.NewRouter()
	_ = router.Handle(pathConnect, mux.HandlerFunc(s.handleConnect))
	_ = router.Handle(pathRegisterIntents, mux.HandlerFunc(s.handleRegisterIntents))
	_ = router.Handle(pathNotification, mux.HandlerFunc(s.handleNotification))
	_ = router.Handle(pathQuery, mux.HandlerFunc(s.handleQuery))
	_ = router.Handle(pathWellKnownCore, mux.HandlerFunc(s.handleWellKnownCore))
	router.DefaultHandle(mux.HandlerFunc(s.handleDefault))

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return fmt.Errorf("listen udp: %w", err)
	}
	laddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		conn.Close()
		return fmt.Errorf("resolve %s: %w", s.addr, err)
	}
	conn.Close()
	conn, err = net.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("listen udp %s: %w", s.addr, err)
	}

	s.udpSrv = udp.NewServer(udp.WithMux(router))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.udpSrv.Serve(conn)
	}()

	// Bind is complete: the outbound pusher may now safely issue its
	// first self-PUT.
	s.barrier.Open()

	select {
	case <-ctx.Done():
		s.udpSrv.Stop()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// handleWellKnownCore serves the literal discovery payload (spec §4.D,
// §8 Property 8), byte-for-byte, recovered from the reference
// implementation's on_get handler.
func (s *Server) handleWellKnownCore(w mux.ResponseWriter, r *mux.Message) {
	if r.Code != codes.GET {
		respond(w, codes.MethodNotAllowed, nil)
		return
	}
	respond(w, codes.Content, []byte(wellKnownCoreBody))
}

// handleDefault routes the dynamic vap/skillRegistry/skills/{id} paths
// (observe GET, self-PUT, close DELETE) since they carry a path segment
// mux's static routes cannot match, and otherwise returns 4.05 for any
// unrecognized method/path combination (spec §4.D).
func (s *Server) handleDefault(w mux.ResponseWriter, r *mux.Message) {
	path, err := r.Options.Path()
	if err != nil {
		respond(w, codes.BadRequest, nil)
		return
	}
	path = strings.TrimPrefix(path, "/")

	if strings.HasPrefix(path, pathSkillsPrefix) {
		id := strings.TrimPrefix(path, pathSkillsPrefix)
		switch r.Code {
		case codes.GET:
			s.handleObserveGet(w, r, id)
			return
		case codes.PUT:
			s.handleSkillPut(w, r, id)
			return
		case codes.DELETE:
			s.handleClose(w, r, id)
			return
		}
	}

	respond(w, codes.MethodNotAllowed, nil)
}

// handleConnect implements spec §4.D's connect handler.
func (s *Server) handleConnect(w mux.ResponseWriter, r *mux.Message) {
	if r.Code != codes.POST {
		respond(w, codes.MethodNotAllowed, nil)
		return
	}
	body := readBody(r)

	var msg MsgConnect
	if decErr := s.codec.Decode(body, &msg); decErr != nil {
		respond(w, decErr.Code(), nil)
		return
	}

	if !connectAllowed(s.directory, msg) {
		respond(w, codes.BadRequest, nil)
		return
	}

	resp, err := s.dispatchToHost(r.Context, Event{Kind: EventConnect, Connect: &msg})
	if err != nil {
		return
	}

	if IsOKFamily(resp.Status) {
		// Attach is the real gate: two concurrent connects for the same
		// not-yet-attached id can both pass connectAllowed and both get an
		// OK-family host response, but only one may actually win the
		// directory (spec §8 Property 1 over the wire). The loser must not
		// register a self-PUT or report success to its caller.
		if !s.directory.Attach(msg.ID) {
			respond(w, codes.BadRequest, nil)
			return
		}
		// Register the observed resource before the CoAP response is
		// emitted, so the skill's immediate follow-up observe is already
		// covered (spec §4.D ordering requirement).
		if err := s.pusher.Push(r.Context, msg.ID, nil); err != nil {
			s.telemetry.Logger.Warn(r.Context, "self-registration push failed", "skillId", msg.ID, "err", err)
		}
	}

	respond(w, resp.Status, resp.Payload)
}

// connectAllowed is the pure gate behind handleConnect: a connect is
// accepted only if the skill declares the exact protocol version this
// registry compiles with, and no skill is already attached under that id
// (spec §8 Property 1 / Property 2).
func connectAllowed(directory *Directory, msg MsgConnect) bool {
	if msg.VapVersion != ProtocolVersion {
		return false
	}
	return !directory.Contains(msg.ID)
}

// handleRegisterIntents implements spec §4.D's registerIntents handler.
func (s *Server) handleRegisterIntents(w mux.ResponseWriter, r *mux.Message) {
	if r.Code != codes.POST {
		respond(w, codes.MethodNotAllowed, nil)
		return
	}
	body := readBody(r)

	var msg MsgRegisterIntents
	if decErr := s.codec.Decode(body, &msg); decErr != nil {
		respond(w, decErr.Code(), nil)
		return
	}
	if !s.directory.Contains(msg.SkillID) {
		respond(w, codes.BadRequest, nil)
		return
	}

	resp, err := s.dispatchToHost(r.Context, Event{Kind: EventRegisterIntents, RegisterIntents: &msg})
	if err != nil {
		return
	}
	respond(w, resp.Status, resp.Payload)
}

// handleQuery implements spec §4.D's query handler.
func (s *Server) handleQuery(w mux.ResponseWriter, r *mux.Message) {
	if r.Code != codes.GET {
		respond(w, codes.MethodNotAllowed, nil)
		return
	}
	body := readBody(r)

	var msg MsgQuery
	if decErr := s.codec.Decode(body, &msg); decErr != nil {
		respond(w, decErr.Code(), nil)
		return
	}
	if !s.directory.Contains(msg.SkillID) {
		respond(w, codes.BadRequest, nil)
		return
	}

	resp, err := s.dispatchToHost(r.Context, Event{Kind: EventQuery, Query: &msg})
	if err != nil {
		return
	}
	respond(w, resp.Status, resp.Payload)
}

// handleNotification implements spec §4.D's notification handler. A
// notification batch may mix three kinds of entries: Requested and
// CanYouAnswer entries resolve a pending correlation the registry itself
// created (via ActivateSkill / SkillsAnswerable), while StandAlone entries
// are unsolicited and forwarded to the host as a single batched event.
//
// Every retained Requested receiver is awaited concurrently, never in
// sequence, so one slow host acknowledgement cannot stall the rest of the
// batch (spec §4.D/§5's "await every retained receiver concurrently";
// mirrors the original `join_all(futures)`).
//
// If the batch carries any StandAlone entries, the host's single response
// to that batched delivery is returned verbatim as the CoAP reply and every
// correlated (Requested/CanYouAnswer) result is discarded — the registry
// still drives them all to completion concurrently with the StandAlone
// dispatch, it simply does not report their outcome on this response
// (mirrors the original's `join(send_standalone, futs).await.0`). With no
// StandAlone entries, the reply is a MsgNotificationResponse carrying one
// result per input entry, in input order, answered with 2.03 Valid.
func (s *Server) handleNotification(w mux.ResponseWriter, r *mux.Message) {
	if r.Code != codes.POST {
		respond(w, codes.MethodNotAllowed, nil)
		return
	}
	body := readBody(r)

	var msg MsgNotification
	if decErr := s.codec.Decode(body, &msg); decErr != nil {
		respond(w, decErr.Code(), nil)
		return
	}
	if !s.directory.Contains(msg.SkillID) {
		respond(w, codes.BadRequest, nil)
		return
	}

	results := make([]NotificationResponseDatum, len(msg.Data))
	var standalone []NotificationDatum

	type pendingAck struct {
		index     int
		requestID uint64
		ch        chan RequestAck
	}
	var awaits []pendingAck

	for i, datum := range msg.Data {
		switch datum.Type {
		case NotificationTypeCanYouAnswer:
			results[i] = s.resolveCanYouAnswer(datum)
		case NotificationTypeRequested:
			ackCh, ok := s.retainRequested(datum)
			if !ok {
				results[i] = NewRequestedResult(datum.RequestID, uint32(codes.BadRequest))
				continue
			}
			awaits = append(awaits, pendingAck{index: i, requestID: datum.RequestID, ch: ackCh})
		case NotificationTypeStandAlone:
			standalone = append(standalone, datum)
		default:
			results[i] = NotificationResponseDatum{Type: datum.Type, Code: uint32(codes.BadRequest)}
		}
	}

	var wg sync.WaitGroup
	for _, a := range awaits {
		wg.Add(1)
		go func(a pendingAck) {
			defer wg.Done()
			select {
			case ack := <-a.ch:
				results[a.index] = NewRequestedResult(a.requestID, uint32(ack.Code))
			case <-r.Context.Done():
				results[a.index] = NewRequestedResult(a.requestID, uint32(codes.BadRequest))
			}
		}(a)
	}

	if len(standalone) > 0 {
		type hostOutcome struct {
			resp Response
			err  error
		}
		hostCh := make(chan hostOutcome, 1)
		go func() {
			resp, err := s.dispatchToHost(r.Context, Event{
				Kind:         EventNotification,
				Notification: &MsgNotification{SkillID: msg.SkillID, Data: standalone},
			})
			hostCh <- hostOutcome{resp: resp, err: err}
		}()

		wg.Wait()
		outcome := <-hostCh
		if outcome.err != nil {
			respond(w, codes.BadRequest, nil)
			return
		}
		respond(w, outcome.resp.Status, outcome.resp.Payload)
		return
	}

	wg.Wait()

	payload, err := s.codec.Encode(MsgNotificationResponse{Data: results})
	if err != nil {
		respond(w, codes.BadRequest, nil)
		return
	}
	respond(w, codes.Valid, payload)
}

// retainRequested hands datum's capabilities to the pending ActivateSkill
// call and returns the one-shot channel the host's acknowledgement will
// arrive on, or false if datum.RequestID is not an outstanding activation.
func (s *Server) retainRequested(datum NotificationDatum) (chan RequestAck, bool) {
	ch, ok := s.activate.Take(datum.RequestID)
	if !ok {
		return nil, false
	}
	ackCh := make(chan RequestAck, 1)
	ch <- ActivationReply{Capabilities: datum.Capabilities, Ack: ackCh}
	return ackCh, true
}

// resolveCanYouAnswer completes a pending SkillsAnswerable probe with the
// skill's reported confidence.
func (s *Server) resolveCanYouAnswer(datum NotificationDatum) NotificationResponseDatum {
	ch, ok := s.canAnswer.Take(datum.RequestID)
	if !ok {
		return NewCanYouAnswerResult(datum.RequestID, uint32(codes.BadRequest))
	}
	ch <- datum.Confidence
	return NewCanYouAnswerResult(datum.RequestID, uint32(codes.Changed))
}

// handleClose implements spec §4.D's {skillId} DELETE handler.
func (s *Server) handleClose(w mux.ResponseWriter, r *mux.Message, id string) {
	if !s.directory.Contains(id) {
		respond(w, codes.BadRequest, nil)
		return
	}
	body := readBody(r)

	var msg MsgSkillClose
	if decErr := s.codec.Decode(body, &msg); decErr != nil {
		respond(w, decErr.Code(), nil)
		return
	}

	resp, err := s.dispatchToHost(r.Context, Event{Kind: EventClose, Close: &msg})
	if err != nil {
		return
	}
	if IsOKFamily(resp.Status) {
		s.directory.Detach(id)
		s.activate.DetachSkill(id)
		s.canAnswer.DetachSkill(id)
		s.removeObservers(id)
	}
	respond(w, resp.Status, resp.Payload)
}

// handleObserveGet implements the {skillId} GET observe-resource route:
// it registers the caller as an observer if Observe=0 is present, and
// always replies 2.05 with an empty body (spec §4.D).
func (s *Server) handleObserveGet(w mux.ResponseWriter, r *mux.Message, id string) {
	if obs, obsErr := r.Options.Observe(); obsErr == nil && obs == 0 {
		if cc, ok := w.Client().ClientConn().(*udpClient.ClientConn); ok {
			s.addObserver(id, cc, r.Token)
		}
	}
	respond(w, codes.Content, nil)
}

// handleSkillPut implements the {skillId} PUT route: the self-loop signal
// that forces an observe update (spec §4.D/§4.E). It always replies 2.03
// to the PUT itself, then pushes the PUT's payload to every registered
// observer of id.
func (s *Server) handleSkillPut(w mux.ResponseWriter, r *mux.Message, id string) {
	body := readBody(r)

	s.latestMu.Lock()
	s.latest[id] = body
	s.latestMu.Unlock()

	respond(w, codes.Valid, nil)
	s.notifyObservers(id, body)
}

// dispatchToHost sends ev to the host bridge and awaits its Response.
func (s *Server) dispatchToHost(ctx context.Context, ev Event) (Response, error) {
	ctx, span := s.telemetry.StartDispatch(ctx)
	defer span.End()
	start := time.Now()

	replyCh := make(chan Response, 1)
	ev.Reply = replyCh
	if err := s.bridge.Send(ctx, ev); err != nil {
		span.RecordError(err)
		s.telemetry.RecordDispatch(start, "error")
		return Response{}, err
	}
	select {
	case resp := <-replyCh:
		s.telemetry.RecordDispatch(start, "ok")
		return resp, nil
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		s.telemetry.RecordDispatch(start, "error")
		return Response{}, ctx.Err()
	}
}

func (s *Server) addObserver(id string, cc *udpClient.ClientConn, token message.Token) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers[id] = append(s.observers[id], observer{conn: cc, token: token})
	if _, ok := s.obsSeq[id]; !ok {
		s.obsSeq[id] = &atomic.Uint32{}
	}
}

func (s *Server) removeObservers(id string) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	delete(s.observers, id)
	delete(s.obsSeq, id)
}

// notifyObservers pushes payload as an observe update to every connection
// currently observing id's resource.
func (s *Server) notifyObservers(id string, payload []byte) {
	s.obsMu.Lock()
	obs := append([]observer(nil), s.observers[id]...)
	seqCounter := s.obsSeq[id]
	s.obsMu.Unlock()
	if len(obs) == 0 {
		return
	}
	var seq uint32
	if seqCounter != nil {
		seq = seqCounter.Add(1)
	}
	for _, o := range obs {
		msg := o.conn.AcquireMessage(context.Background())
		msg.SetCode(codes.Content)
		msg.SetToken(o.token)
		msg.SetObserve(seq)
		msg.SetContentFormat(message.AppOctets)
		if len(payload) > 0 {
			msg.SetBody(bytes.NewReader(payload))
		}
		if err := o.conn.WriteMessage(msg); err != nil {
			s.telemetry.Logger.Warn(context.Background(), "observe push failed", "skillId", id, "err", err)
		}
		o.conn.ReleaseMessage(msg)
	}
}

// respond writes a CoAP response with the given status and body.
func respond(w mux.ResponseWriter, status codes.Code, body []byte) {
	var reader *bytes.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	if reader != nil {
		_ = w.SetResponse(status, message.AppOctets, reader)
		return
	}
	_ = w.SetResponse(status, message.AppOctets, nil)
}

// readBody returns the request payload, or an empty slice if it has none.
func readBody(r *mux.Message) []byte {
	if r.Body == nil {
		return nil
	}
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(r.Body)
	return buf.Bytes()
}

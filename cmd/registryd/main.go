// Command registryd runs the VAP skill registry as a standalone CoAP
// server.
//
// # Configuration
//
// Environment variables:
//
//	VAP_BIND_ADDR  - CoAP bind address (default: "127.0.0.1")
//	VAP_PORT       - CoAP bind port (default: 5683)
//	VAP_DEBUG      - enable debug logging when set to any non-empty value
//
// # Example
//
//	VAP_PORT=5683 go run ./cmd/registryd
package main

import (
	"context"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/plgd-dev/go-coap/v2/message/codes"
	"goa.design/clue/log"
	"vap.design/skillregistry/registry"
	"vap.design/skillregistry/telemetry"
)

// okCode is the status the minimal standalone event consumer acknowledges
// every inbound event with. A real host inspects the event and chooses a
// status per spec §4.D/§7; this one always accepts.
func okCode() codes.Code {
	return codes.Changed
}

func main() {
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if os.Getenv("VAP_DEBUG") != "" {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}

	if err := run(ctx); err != nil {
		log.Fatal(ctx, err)
	}
}

func run(ctx context.Context) error {
	bindAddr := envOr("VAP_BIND_ADDR", "127.0.0.1")
	port := envIntOr("VAP_PORT", 5683)

	tel := telemetry.NewClueRegistryTelemetry()
	reg, err := registry.New(ctx, registry.Config{
		BindAddr: bindAddr,
		Port:     port,
		Logger:   tel.Logger,
		Tracer:   tel.Tracer,
		Metrics:  tel.Metrics,
	})
	if err != nil {
		return err
	}

	go logEvents(ctx, reg)

	log.Printf(ctx, "starting vap skill registry on %s:%d", bindAddr, port)
	if err := reg.Run(ctx); err != nil {
		return err
	}
	log.Print(ctx, log.KV{K: "msg", V: "exited"})
	return nil
}

// logEvents drains the host bridge's event stream and logs a line per
// inbound skill event. A real host would route these into its NLU/dialog
// pipeline instead; this is the minimal consumer that keeps the bridge's
// channel from filling up when registryd is run standalone.
func logEvents(ctx context.Context, reg *registry.Registry) {
	codec := registry.NewCodec()
	for ev := range reg.Bridge().Events() {
		switch ev.Kind {
		case registry.EventConnect:
			log.Printf(ctx, "skill connect: %s", ev.Connect.ID)
			ev.Reply <- registry.Response{Status: okCode(), Payload: connectResponse(codec, ev.Connect)}
		case registry.EventRegisterIntents:
			log.Printf(ctx, "skill registerIntents: %s", ev.RegisterIntents.SkillID)
			ev.Reply <- registry.Response{Status: okCode()}
		case registry.EventNotification:
			log.Printf(ctx, "skill notification: %s", ev.Notification.SkillID)
			ev.Reply <- registry.Response{Status: okCode()}
		case registry.EventQuery:
			log.Printf(ctx, "skill query: %s", ev.Query.SkillID)
			ev.Reply <- registry.Response{Status: okCode()}
		case registry.EventClose:
			log.Printf(ctx, "skill close: %s", ev.Close.SkillID)
			ev.Reply <- registry.Response{Status: okCode()}
		}
	}
}

// connectResponse builds the standalone consumer's reply to a connect
// event. When the connecting skill did not supply its own
// UniqueAuthenticationToken, the registry mints one so the skill has a
// stable opaque handle to present on subsequent requests.
func connectResponse(codec *registry.Codec, connect *registry.MsgConnect) []byte {
	token := connect.UniqueAuthenticationToken
	if token == "" {
		token = uuid.NewString()
	}
	payload, err := codec.Encode(registry.MsgConnectResponse{
		Langs:                     []registry.Language{{Country: "US", Language: "en"}},
		UniqueAuthenticationToken: &token,
	})
	if err != nil {
		return nil
	}
	return payload
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOr(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

package commsutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"
)

const connectTestPrefix = "commsutil:connect_test"

func TestConnect_InvalidURL(t *testing.T) {
	nc, err := Connect("invalid://not-a-nats-server", "test-client", &ConnectOptions{Timeout: time.Second})
	if err == nil {
		if nc != nil {
			nc.Close()
		}
		t.Fatalf("%s - expected error for invalid URL", connectTestPrefix)
	}
	if nc != nil {
		t.Errorf("%s - expected nil connection on error", connectTestPrefix)
	}
}

func TestConnectOptions_Defaults(t *testing.T) {
	var nilOpts *ConnectOptions
	d := nilOpts.withDefaults()
	if d.Timeout != 10*time.Second || d.ReconnectWait != 2*time.Second || d.MaxReconnects != 60 {
		t.Errorf("%s - defaults = %+v", connectTestPrefix, d)
	}
	o := (&ConnectOptions{Timeout: time.Second, MaxReconnects: -1}).withDefaults()
	if o.Timeout != time.Second || o.MaxReconnects != -1 || o.ReconnectWait != 2*time.Second {
		t.Errorf("%s - overrides = %+v", connectTestPrefix, o)
	}
}

func TestRequestJSON(t *testing.T) {
	ns, err := commsserver.NewServer(&commsserver.Options{Host: "127.0.0.1", Port: 14241, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", connectTestPrefix, err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", connectTestPrefix)
	}
	defer func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	}()

	nc, err := Connect(ns.ClientURL(), "request-json-test", nil)
	if err != nil {
		t.Fatalf("%s - Connect: %v", connectTestPrefix, err)
	}
	defer nc.Close()

	sub, err := nc.Subscribe("echo.upper", func(msg *comms.Msg) {
		var in map[string]string
		_ = json.Unmarshal(msg.Data, &in)
		out, _ := json.Marshal(map[string]string{"echo": in["say"] + "!"})
		msg.Respond(out)
	})
	if err != nil {
		t.Fatalf("%s - Subscribe: %v", connectTestPrefix, err)
	}
	defer sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out map[string]string
	if err := RequestJSON(ctx, nc, "echo.upper", map[string]string{"say": "hi"}, &out); err != nil {
		t.Fatalf("%s - RequestJSON: %v", connectTestPrefix, err)
	}
	if out["echo"] != "hi!" {
		t.Errorf("%s - echo = %q, want hi!", connectTestPrefix, out["echo"])
	}
}

// Package notify provides the 'notify' runner: a fire-and-confirm status
// event pushed to a socket.io endpoint, typically a build dashboard.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/vk/frostline/internal/ctxlog"
	"github.com/vk/frostline/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the notify runner.
type Input struct {
	URL                string            `hcl:"url"`
	Namespace          string            `hcl:"namespace,optional"`
	Event              string            `hcl:"event,optional"`
	Status             string            `hcl:"status"`
	Details            map[string]string `hcl:"details,optional"`
	Timeout            string            `hcl:"timeout,optional"`
	InsecureSkipVerify bool              `hcl:"insecure_skip_verify,optional"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// OnRunNotify is the handler for the 'notify' runner's on_run event. It
// connects, emits one status event, and waits for the connection (bounded by
// the timeout) before reporting success.
func OnRunNotify(ctx context.Context, deps *Deps, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("runner", "notify", "url", input.URL, "status", input.Status)
	logger.Debug("Handler started")
	defer logger.Debug("Handler finished")

	event := input.Event
	if event == "" {
		event = "pipeline_status"
	}

	timeout := 10 * time.Second
	if input.Timeout != "" {
		parsed, err := time.ParseDuration(input.Timeout)
		if err != nil {
			logger.Warn("Failed to parse timeout, using default 10s", "inputTimeout", input.Timeout, "error", err)
		} else {
			timeout = parsed
		}
	}

	parsedURL, err := url.Parse(input.URL)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to parse URL: %w", err)
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)

	if input.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var isConnected atomic.Bool
	done := make(chan error, 1)

	payload := map[string]any{"status": input.Status}
	for k, v := range input.Details {
		payload[k] = v
	}

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(input.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client")
		io.Disconnect()
	}()

	io.On(types.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Info("Connected, emitting status event", "event", event, "sid", io.Id())
		io.Emit(event, payload)
		done <- nil
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		if err, ok := errs[0].(error); ok {
			done <- err
			return
		}
		done <- fmt.Errorf("connection failed: %v", errs[0])
	})

	io.Connect()

	select {
	case <-opCtx.Done():
		if isConnected.Load() {
			return cty.NilVal, fmt.Errorf("timed out after connecting while emitting '%s'", event)
		}
		return cty.NilVal, fmt.Errorf("timed out while waiting for initial connection")
	case err := <-done:
		if err != nil {
			return cty.NilVal, err
		}
	}

	return cty.ObjectVal(map[string]cty.Value{
		"delivered": cty.BoolVal(true),
		"event":     cty.StringVal(event),
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunNotify", &registry.RegisteredRunner{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunNotify,
	})
}

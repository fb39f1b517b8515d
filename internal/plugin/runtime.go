package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"
)

// Runtime wraps a goja VM with plugin-specific bindings
type Runtime struct {
	vm     *goja.Runtime
	logger zerolog.Logger
}

// NewRuntime creates a new Runtime with console bindings
func NewRuntime(logger zerolog.Logger) *Runtime {
	vm := goja.New()
	r := &Runtime{
		vm:     vm,
		logger: logger,
	}
	r.setupConsole()
	return r
}

// VM returns the underlying goja runtime
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

// setupConsole creates console.* bindings routed to the logger
func (r *Runtime) setupConsole() {
	console := r.vm.NewObject()

	console.Set("log", func(call goja.FunctionCall) goja.Value {
		r.logger.Info().Msgf("[plugin] %v", exportArgs(call))
		return goja.Undefined()
	})

	console.Set("error", func(call goja.FunctionCall) goja.Value {
		r.logger.Error().Msgf("[plugin] %v", exportArgs(call))
		return goja.Undefined()
	})

	console.Set("warn", func(call goja.FunctionCall) goja.Value {
		r.logger.Warn().Msgf("[plugin] %v", exportArgs(call))
		return goja.Undefined()
	})

	console.Set("debug", func(call goja.FunctionCall) goja.Value {
		r.logger.Debug().Msgf("[plugin] %v", exportArgs(call))
		return goja.Undefined()
	})

	r.vm.Set("console", console)
}

func exportArgs(call goja.FunctionCall) []interface{} {
	args := make([]interface{}, len(call.Arguments))
	for i, arg := range call.Arguments {
		args[i] = arg.Export()
	}
	return args
}

// SetupAPICaller creates the vk object with API call methods
func (r *Runtime) SetupAPICaller(caller APICaller) {
	vk := r.vm.NewObject()

	// send sends a text message: vk.send(peerId, message) -> messageId
	vk.Set("send", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(r.vm.ToValue("vk.send requires peerId and message"))
		}
		peerID := call.Arguments[0].ToInteger()
		message := call.Arguments[1].String()

		id, err := caller.Send(peerID, message)
		if err != nil {
			panic(r.vm.ToValue(fmt.Sprintf("vk.send failed: %v", err)))
		}
		return r.vm.ToValue(id)
	})

	// call invokes an arbitrary API method: vk.call(method, params) -> response
	vk.Set("call", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(r.vm.ToValue("vk.call requires a method name"))
		}
		method := call.Arguments[0].String()

		params := map[string]any{}
		if len(call.Arguments) > 1 {
			exported := call.Arguments[1].Export()
			if m, ok := exported.(map[string]interface{}); ok {
				params = m
			} else if exported != nil {
				panic(r.vm.ToValue("vk.call params must be an object"))
			}
		}

		result, err := caller.Call(method, params)
		if err != nil {
			panic(r.vm.ToValue(fmt.Sprintf("vk.call failed: %v", err)))
		}

		var parsed interface{}
		if err := json.Unmarshal(result, &parsed); err != nil {
			return r.vm.ToValue(string(result))
		}
		return r.vm.ToValue(parsed)
	})

	r.vm.Set("vk", vk)
}

// RunScript executes JavaScript code and returns the result
func (r *Runtime) RunScript(script string) (goja.Value, error) {
	return r.vm.RunString(script)
}

package classify

import (
	"context"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// PluginHost loads user-supplied WASM modules that extend
// classification for languages the built-in rule table doesn't cover.
// A plugin module must export an "alloc" function (byte length in,
// pointer into the module's linear memory out) and a "classify"
// function taking a pointer and length into that memory (the candidate
// filename, UTF-8) and returning a packed (ptr<<32|len) result pointing
// at the classification tag, UTF-8 encoded, or an empty result to decline.
//
// This mirrors the teacher's molecule-loader precedence chain
// (built-in < project-local) but for executable extension code rather
// than data templates, since a file-type rule can need logic (e.g.
// inspecting shebang lines) that a static table can't express.
type PluginHost struct {
	runtime wazero.Runtime
	modules []pluginModule
}

type pluginModule struct {
	name     string
	compiled wazero.CompiledModule
}

// NewPluginHost constructs a host with its own wazero runtime. Callers
// must call Close when done to release the runtime's compiled code.
func NewPluginHost(ctx context.Context) (*PluginHost, error) {
	rt := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}
	return &PluginHost{runtime: rt}, nil
}

// LoadPlugin compiles the WASM module at path and registers it under
// name, so it participates in subsequent Classify calls.
func (h *PluginHost) LoadPlugin(ctx context.Context, name, path string) error {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read plugin %s: %w", name, err)
	}
	compiled, err := h.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return fmt.Errorf("compile plugin %s: %w", name, err)
	}
	h.modules = append(h.modules, pluginModule{name: name, compiled: compiled})
	return nil
}

// Classify asks each loaded plugin in registration order for a
// classification of filename, returning the first non-empty answer.
func (h *PluginHost) Classify(ctx context.Context, filename string) (tag string, ok bool, err error) {
	for _, m := range h.modules {
		instance, err := h.runtime.InstantiateModule(ctx, m.compiled, wazero.NewModuleConfig().WithName(""))
		if err != nil {
			return "", false, fmt.Errorf("instantiate plugin %s: %w", m.name, err)
		}

		result, err := invokeClassify(ctx, instance, filename)
		instance.Close(ctx)
		if err != nil {
			return "", false, fmt.Errorf("invoke plugin %s: %w", m.name, err)
		}
		if result != "" {
			return result, true, nil
		}
	}
	return "", false, nil
}

// invokeClassify writes filename into the instance's memory, calls its
// exported "classify" function, and reads back the result string.
// Isolated into its own function since it is the one part of this file
// that depends on a specific (name, length) ABI a plugin author must
// match (the alloc/classify exports described on PluginHost).
func invokeClassify(ctx context.Context, instance api.Module, filename string) (string, error) {
	alloc := instance.ExportedFunction("alloc")
	classifyFn := instance.ExportedFunction("classify")
	if alloc == nil || classifyFn == nil {
		return "", fmt.Errorf("plugin missing required exports alloc/classify")
	}

	nameBytes := []byte(filename)
	results, err := alloc.Call(ctx, uint64(len(nameBytes)))
	if err != nil {
		return "", fmt.Errorf("call alloc: %w", err)
	}
	ptr := uint32(results[0])

	if !instance.Memory().Write(ptr, nameBytes) {
		return "", fmt.Errorf("write filename to plugin memory out of range")
	}

	packed, err := classifyFn.Call(ctx, uint64(ptr), uint64(len(nameBytes)))
	if err != nil {
		return "", fmt.Errorf("call classify: %w", err)
	}

	resultPtr := uint32(packed[0] >> 32)
	resultLen := uint32(packed[0])
	if resultLen == 0 {
		return "", nil
	}
	data, ok := instance.Memory().Read(resultPtr, resultLen)
	if !ok {
		return "", fmt.Errorf("read classify result out of range")
	}
	return string(data), nil
}

// Close releases the host's wazero runtime and every compiled module.
func (h *PluginHost) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}

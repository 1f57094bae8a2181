package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"ember/internal/compilerapi"
	"ember/internal/diag"
	"ember/internal/trace"
)

// ServeOptions configures the worker-side loop.
type ServeOptions struct {
	Compiler compilerapi.Compiler
	// NewHost builds the worker's own file host once Init arrives.
	NewHost func(basePath string, pathReplacements map[string]string) compilerapi.FileHost
	In      io.Reader
	Out     io.Writer
}

// Serve runs the worker side of the protocol: one Init, then an
// Update per build cycle, semantic findings reported back as Log
// messages. Returns nil when the driver closes the pipe.
func Serve(ctx context.Context, opts ServeOptions) error {
	if opts.Compiler == nil || opts.NewHost == nil {
		return fmt.Errorf("worker: missing compiler or host factory")
	}

	dec := msgpack.NewDecoder(opts.In)
	var encMu sync.Mutex
	enc := msgpack.NewEncoder(opts.Out)
	logf := func(level trace.Level, format string, args ...any) {
		encMu.Lock()
		defer encMu.Unlock()
		_ = enc.Encode(&Envelope{Kind: KindLog, Log: &LogMessage{
			Level: level,
			Text:  fmt.Sprintf(format, args...),
		}})
	}

	var (
		init    *InitMessage
		host    compilerapi.FileHost
		program compilerapi.Program
	)

	for {
		var env Envelope
		if err := dec.Decode(&env); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return fmt.Errorf("worker: failed to decode message: %w", err)
		}
		if err := env.validate(); err != nil {
			return err
		}

		switch env.Kind {
		case KindInit:
			if init != nil {
				return &ProtocolError{Got: KindInit, Want: "update"}
			}
			init = env.Init
			host = opts.NewHost(init.BasePath, init.PathReplacements)
			logf(trace.LevelDebug, "initialized (mode %s, %d roots)", init.Mode, len(init.RootNames))

		case KindUpdate:
			if init == nil {
				return &ProtocolError{Got: KindUpdate, Want: "init"}
			}
			for _, path := range env.Update.ChangedFiles {
				host.Invalidate(path)
			}
			prog, err := opts.Compiler.CreateProgram(env.Update.RootNames, init.Options, host, program)
			if err != nil {
				// The driver's own pass will surface the failure; the
				// worker just drops its stale handle.
				program = nil
				logf(trace.LevelError, "type check pass failed: %v", err)
				continue
			}
			program = prog
			if err := prog.WaitStructure(ctx); err != nil {
				logf(trace.LevelError, "structural loading failed: %v", err)
				continue
			}
			findings := prog.SemanticDiagnostics()
			for _, d := range findings {
				level := trace.LevelWarn
				if d.Severity >= diag.SevError {
					level = trace.LevelError
				}
				if d.File != "" {
					logf(level, "%s: %s (%s)", d.File, d.Message, d.Code)
				} else {
					logf(level, "%s (%s)", d.Message, d.Code)
				}
			}
			logf(trace.LevelDebug, "type check pass done: %d findings", len(findings))

		case KindLog:
			// Log only flows worker to driver.
			return &ProtocolError{Got: KindLog, Want: "init or update"}
		}
	}
}

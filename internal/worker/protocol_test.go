package worker

import (
	"bytes"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"ember/internal/compilerapi"
	"ember/internal/trace"
)

func TestEnvelopeValidate(t *testing.T) {
	initMsg := &InitMessage{BasePath: "/p"}
	updateMsg := &UpdateMessage{RootNames: []string{"/p/main.em"}}
	logMsg := &LogMessage{Level: trace.LevelInfo, Text: "hi"}

	tests := []struct {
		name    string
		env     Envelope
		wantErr bool
	}{
		{name: "init ok", env: Envelope{Kind: KindInit, Init: initMsg}},
		{name: "update ok", env: Envelope{Kind: KindUpdate, Update: updateMsg}},
		{name: "log ok", env: Envelope{Kind: KindLog, Log: logMsg}},
		{name: "init missing payload", env: Envelope{Kind: KindInit}, wantErr: true},
		{name: "init with extra payload", env: Envelope{Kind: KindInit, Init: initMsg, Log: logMsg}, wantErr: true},
		{name: "update with wrong payload", env: Envelope{Kind: KindUpdate, Init: initMsg}, wantErr: true},
		{name: "unknown kind", env: Envelope{Kind: Kind(9)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.env.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvelopeWireRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	sent := Envelope{Kind: KindUpdate, Update: &UpdateMessage{
		RootNames:    []string{"/p/main.em", "/p/lazy.em"},
		ChangedFiles: []string{"/p/lazy.em"},
	}}
	if err := enc.Encode(&sent); err != nil {
		t.Fatal(err)
	}

	var got Envelope
	if err := msgpack.NewDecoder(&buf).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindUpdate || got.Update == nil {
		t.Fatalf("decoded %+v", got)
	}
	if got.Init != nil || got.Log != nil {
		t.Fatalf("omitted payloads materialized: %+v", got)
	}
	if len(got.Update.ChangedFiles) != 1 || got.Update.ChangedFiles[0] != "/p/lazy.em" {
		t.Errorf("ChangedFiles = %v", got.Update.ChangedFiles)
	}
}

func TestInitMessageCarriesOptions(t *testing.T) {
	var buf bytes.Buffer
	sent := Envelope{Kind: KindInit, Init: &InitMessage{
		Options: compilerapi.Options{
			BasePath: "/p",
			Mode:     compilerapi.ModeAOT,
			Extra:    map[string]string{"strict": "true"},
		},
		BasePath:         "/p",
		Mode:             compilerapi.ModeAOT,
		RootNames:        []string{"/p/main.em"},
		PathReplacements: map[string]string{"/virtual": "/real"},
	}}
	if err := msgpack.NewEncoder(&buf).Encode(&sent); err != nil {
		t.Fatal(err)
	}
	var got Envelope
	if err := msgpack.NewDecoder(&buf).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Init.Options.Mode != compilerapi.ModeAOT {
		t.Errorf("Options.Mode = %v", got.Init.Options.Mode)
	}
	if got.Init.PathReplacements["/virtual"] != "/real" {
		t.Errorf("PathReplacements = %v", got.Init.PathReplacements)
	}
}

func TestKindString(t *testing.T) {
	if KindInit.String() != "init" || KindUpdate.String() != "update" || KindLog.String() != "log" {
		t.Error("kind names changed")
	}
	if got := Kind(42).String(); !strings.Contains(got, "42") {
		t.Errorf("unknown kind = %q", got)
	}
}

func TestProtocolErrorMessage(t *testing.T) {
	err := &ProtocolError{Got: KindUpdate, Want: "init"}
	msg := err.Error()
	if !strings.Contains(msg, "update") || !strings.Contains(msg, "init") {
		t.Errorf("error %q does not name got and want", msg)
	}
}

package version

import (
	"encoding/json"
	"sync"
	"testing"
)

func resetRuntime() {
	rtOnce = sync.Once{}
	rt = Runtime{}
}

func TestSetRuntime_Frozen(t *testing.T) {
	resetRuntime()
	t.Cleanup(resetRuntime)

	first := Runtime{Runtime: "deno", Engine: "v8 12.4", Compiler: "tsc 5.4", Loader: "1.0.0"}
	if !SetRuntime(first) {
		t.Fatalf("first SetRuntime should freeze the record")
	}
	if SetRuntime(Runtime{Runtime: "other"}) {
		t.Fatalf("second SetRuntime should be ignored")
	}
	if got := GetRuntime(); got != first {
		t.Fatalf("runtime = %+v, want %+v", got, first)
	}
}

func TestGetRuntime_FreezesDefaults(t *testing.T) {
	resetRuntime()
	t.Cleanup(resetRuntime)

	got := GetRuntime()
	if got != DefaultRuntime() {
		t.Fatalf("runtime = %+v, want defaults", got)
	}
	if SetRuntime(Runtime{Runtime: "late"}) {
		t.Fatalf("SetRuntime after GetRuntime should be ignored")
	}
}

func TestInfo_JSON(t *testing.T) {
	resetRuntime()
	t.Cleanup(resetRuntime)
	SetRuntime(Runtime{Runtime: "deno", Engine: "v8", Compiler: "tsc", Loader: "x"})

	b, err := json.Marshal(Info())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["service"] != "modloader-api" {
		t.Fatalf("service = %v", m["service"])
	}
	rtm, ok := m["runtime"].(map[string]any)
	if !ok || rtm["engine"] != "v8" {
		t.Fatalf("runtime = %v", m["runtime"])
	}
}

package protocol

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
)

func TestEncodeCommandRequiresKind(t *testing.T) {
	if _, err := EncodeCommand(Command{}); err == nil {
		t.Fatal("expected error for empty command kind")
	}
}

func TestRunScriptCarriesCorrelation(t *testing.T) {
	cmd := RunScript(7, "console.log(msg)", map[string]any{"msg": "hi"})

	data, err := EncodeCommand(cmd)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var decoded struct {
		Kind string `json:"command"`
		Task int64  `json:"task_id"`
		Spec struct {
			Code string         `json:"code"`
			Args map[string]any `json:"args"`
		} `json:"spec"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Kind != CommandRunScript {
		t.Errorf("kind = %q, want %q", decoded.Kind, CommandRunScript)
	}
	if decoded.Task != 7 {
		t.Errorf("task = %d, want 7", decoded.Task)
	}
	if decoded.Spec.Code != "console.log(msg)" {
		t.Errorf("code = %q", decoded.Spec.Code)
	}
	if decoded.Spec.Args["msg"] != "hi" {
		t.Errorf("args = %v", decoded.Spec.Args)
	}
}

func TestRunScriptOmitsEmptyArgs(t *testing.T) {
	cmd := RunScript(0, "history.back()", nil)
	if _, ok := cmd.Spec["args"]; ok {
		t.Error("empty args should not appear in spec")
	}
	data, err := EncodeCommand(cmd)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if strings.Contains(string(data), "task_id") {
		t.Errorf("uncorrelated command should omit task_id: %s", data)
	}
}

func TestDownloadEncodesBase64(t *testing.T) {
	content := []byte{0x00, 0xFF, 0x10, 0x42}
	cmd := Download("report.bin", content)

	got, ok := cmd.Spec["content"].(string)
	if !ok {
		t.Fatalf("content spec is %T, want string", cmd.Spec["content"])
	}
	decoded, err := base64.StdEncoding.DecodeString(got)
	if err != nil {
		t.Fatalf("content is not valid base64: %v", err)
	}
	if string(decoded) != string(content) {
		t.Errorf("decoded content = %v, want %v", decoded, content)
	}
	if cmd.Spec["name"] != "report.bin" {
		t.Errorf("name = %v", cmd.Spec["name"])
	}
}

func TestEncodeCommandsEmptyBatch(t *testing.T) {
	data, err := EncodeCommands(nil)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("empty batch = %s, want []", data)
	}
}

package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Command kinds sent from server to client.
const (
	CommandOutput       = "output"
	CommandRunScript    = "run_script"
	CommandDownload     = "download"
	CommandSetEnv       = "set_env"
	CommandCloseSession = "close_session"
)

// Command is a single server-to-client message.
//
// Task carries the correlation ID of the issuing execution unit when
// the command expects a correlated reply (e.g. a run_script with a
// submission wrapper). Zero means uncorrelated.
type Command struct {
	Kind string         `json:"command"`
	Task int64          `json:"task_id,omitempty"`
	Spec map[string]any `json:"spec,omitempty"`
}

// EncodeCommand serializes a command for the transport.
func EncodeCommand(cmd Command) ([]byte, error) {
	if cmd.Kind == "" {
		return nil, fmt.Errorf("protocol: command kind is empty")
	}
	return json.Marshal(cmd)
}

// EncodeCommands serializes a batch of commands as a JSON array. Used
// by the HTTP transport, which drains buffered commands per poll.
func EncodeCommands(cmds []Command) ([]byte, error) {
	if cmds == nil {
		cmds = []Command{}
	}
	return json.Marshal(cmds)
}

// Output builds a render command for a single chunk of content.
func Output(spec map[string]any) Command {
	return Command{Kind: CommandOutput, Spec: spec}
}

// RunScript builds a script-execution command. args become local
// variables in the client's evaluation scope.
func RunScript(task int64, code string, args map[string]any) Command {
	spec := map[string]any{"code": code}
	if len(args) > 0 {
		spec["args"] = args
	}
	return Command{Kind: CommandRunScript, Task: task, Spec: spec}
}

// Download builds a file-delivery command. Content travels base64
// encoded in the spec.
func Download(name string, content []byte) Command {
	return Command{Kind: CommandDownload, Spec: map[string]any{
		"name":    name,
		"content": base64.StdEncoding.EncodeToString(content),
	}}
}

// SetEnv builds an environment-update command. Callers validate the
// spec with ValidateEnv first; SetEnv does not check it again.
func SetEnv(spec map[string]any) Command {
	return Command{Kind: CommandSetEnv, Spec: spec}
}

// CloseSession tells the client the conversation is over.
func CloseSession() Command {
	return Command{Kind: CommandCloseSession}
}

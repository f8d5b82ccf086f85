package mqtt

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Command is a remote control message received on TopicCommand.
//
// Accepted payloads are a bare name ("trigger") or a JSON object
// ({"command":"key","key":"+"}).
type Command struct {
	Name string `json:"command"`
	// Key is set for the "key" command.
	Key string `json:"key,omitempty"`
}

// CommandHandler receives decoded commands. It is called from the MQTT
// client's goroutine and must not block.
type CommandHandler func(Command)

var errEmptyCommand = errors.New("empty command")

// ParseCommand decodes a command payload.
func ParseCommand(payload []byte) (Command, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return Command{}, errEmptyCommand
	}

	if trimmed[0] != '{' {
		return Command{Name: strings.ToLower(string(trimmed))}, nil
	}

	var c Command
	if err := json.Unmarshal(trimmed, &c); err != nil {
		return Command{}, err
	}
	c.Name = strings.ToLower(strings.TrimSpace(c.Name))
	if c.Name == "" {
		return Command{}, errEmptyCommand
	}
	return c, nil
}

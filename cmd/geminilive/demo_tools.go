package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AltairaLabs/geminilive/tools"
)

var demoTools = []struct {
	decl    tools.Declaration
	handler tools.Handler
}{
	{
		decl: tools.Declaration{
			Name:        "turn_on_the_lights",
			Description: "Turns on the lights in the room.",
		},
		handler: func(context.Context, map[string]any) (map[string]any, error) {
			return map[string]any{"lights": "on"}, nil
		},
	},
	{
		decl: tools.Declaration{
			Name:        "schedule_meeting",
			Description: "Schedules a meeting with specified attendees at a given time and date.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"attendees": {"type": "array", "items": {"type": "string"}, "description": "List of people attending the meeting."},
					"date": {"type": "string", "description": "Date of the meeting (e.g., '2024-07-29')"},
					"time": {"type": "string", "description": "Time of the meeting (e.g., '15:00')"},
					"topic": {"type": "string", "description": "The subject or topic of the meeting."}
				},
				"required": ["attendees", "date", "time", "topic"]
			}`),
		},
		handler: func(_ context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{
				"status":  "scheduled",
				"summary": fmt.Sprintf("%v on %v at %v", args["topic"], args["date"], args["time"]),
			}, nil
		},
	},
}

func registerDemoTools(reg *tools.Registry) error {
	for _, t := range demoTools {
		if err := reg.Register(t.decl, t.handler); err != nil {
			return err
		}
	}
	return nil
}

package memagent

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	heartbeatReason = "[This is an automated system message hidden from the user] Function called using request_heartbeat=true, returning control"
	failedReason    = "[This is an automated system message hidden from the user] Function call failed, returning control"
)

const timeFormat = "2006-01-02 03:04:05 PM MST-0700"

func packageJSON(v map[string]any) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func packageUserMessage(name, text string, now time.Time) string {
	v := map[string]any{
		"type":    "user_message",
		"message": text,
		"time":    now.Format(timeFormat),
	}
	if name != "" {
		v["name"] = name
	}
	return packageJSON(v)
}

func packageHeartbeat(reason string, now time.Time) string {
	return packageJSON(map[string]any{
		"type":   "heartbeat",
		"reason": reason,
		"time":   now.Format(timeFormat),
	})
}

func packageFunctionResponse(ok bool, result string, now time.Time) string {
	status := "OK"
	if !ok {
		status = "Failed"
	}
	return packageJSON(map[string]any{
		"status":  status,
		"message": result,
		"time":    now.Format(timeFormat),
	})
}

func packageSummary(summary string, hidden, total int, now time.Time) string {
	return packageJSON(map[string]any{
		"type": "system_alert",
		"message": fmt.Sprintf("Note: prior messages (%d of %d total messages) have been hidden from view due to conversation memory constraints.\n"+
			"The following is a summary of the previous %d messages:\n %s", hidden, total, hidden, summary),
		"time": now.Format(timeFormat),
	})
}

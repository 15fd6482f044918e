package parliament

import (
	"encoding/json"
	"time"

	"github.com/golang/glog"
)

// logEvent logs a structured event in JSON format.
func logEvent(peer, eventType string, data map[string]any) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["component"] = "parliament"
	data["event_type"] = eventType
	data["peer"] = peer

	jsonData, err := json.Marshal(data)
	if err != nil {
		glog.Warningf("[Parliament] Failed to marshal log event: %v", err)
		return
	}

	glog.Info(string(jsonData))
}

package ingest

import (
	"encoding/json"
	"regexp"
	"strings"
)

// macPattern recovers a MAC address from raw BLE scanner payloads when both
// JSON parses fail.
var macPattern = regexp.MustCompile(`(?i)'mac':\s*'([0-9A-F:]+)'`)

// normalizePayload extracts a device identifier from a beacon payload using
// three strategies in order: strict JSON, JSON after swapping single quotes
// for double quotes (the scanner fleet emits Python-dict syntax), and finally
// a regex scan for the mac field. The raw payload is persisted regardless;
// ok reports whether any strategy understood it.
func normalizePayload(payload string) (deviceID string, ok bool) {
	if id, parsed := deviceIDFromJSON(payload); parsed {
		return id, true
	}

	swapped := strings.ReplaceAll(payload, "'", `"`)
	if id, parsed := deviceIDFromJSON(swapped); parsed {
		return id, true
	}

	if m := macPattern.FindStringSubmatch(payload); m != nil {
		return m[1], true
	}
	return "", false
}

// deviceIDFromJSON parses a payload as JSON and pulls the device identifier
// from either a top-level device_id or the BLE scanner's data.mac field.
func deviceIDFromJSON(payload string) (string, bool) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return "", false
	}
	if id, found := doc["device_id"].(string); found {
		return id, true
	}
	if data, found := doc["data"].(map[string]any); found {
		if mac, found := data["mac"].(string); found {
			return mac, true
		}
	}
	return "", true
}

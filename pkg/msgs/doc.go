// Package msgs provides the protobuf records exchanged outside the link:
// packets published by the MQTT bridge, send requests accepted by it and
// frames recorded by the debug tap capture.
package msgs
